// internal/publish/publisher_test.go
package publish

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) BeginUpdateSequence() { r.add("begin") }
func (r *recorder) EndUpdateSequence()   { r.add("end") }
func (r *recorder) FrameCommitted()      { r.add("commit") }

func TestFrame_Brackets(t *testing.T) {
	rec := &recorder{}
	p := New(rec)

	err := p.Frame(func() error {
		rec.add("work")
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"begin", "work", "end", "commit"}, rec.events)
}

func TestFrame_ReleasesOnError(t *testing.T) {
	p := New()
	boom := errors.New("boom")

	assert.ErrorIs(t, p.Frame(func() error { return boom }), boom)

	done := make(chan struct{})
	go func() {
		p.Read(func() {})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("section not released after error")
	}
}

func TestFrame_ReleasesOnPanic(t *testing.T) {
	rec := &recorder{}
	p := New()
	p.Subscribe(rec)

	err := p.Frame(func() error { panic("bad offset") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad offset")
	assert.Equal(t, []string{"begin", "end", "commit"}, rec.events)

	require.NoError(t, p.Frame(func() error { return nil }))
}

func TestReadNeverSeesTornFrame(t *testing.T) {
	p := New()
	var a, b int

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 1; i <= 5000; i++ {
			_ = p.Frame(func() error {
				a = i
				b = i
				return nil
			})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 5000; i++ {
			p.Read(func() {
				assert.Equal(t, a, b)
			})
		}
	}()

	wg.Wait()
}
