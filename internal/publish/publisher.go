// internal/publish/publisher.go
package publish

import (
	"fmt"
	"sync"
)

// Listener is notified around each frame.
// Begin runs after the exclusive section is acquired, End right before it is
// released; listeners must not call back into Read or Frame from these hooks.
type Listener interface {
	BeginUpdateSequence()
	EndUpdateSequence()
}

// Committed is an optional Listener extension invoked after the exclusive
// section is released, when readers can observe the new frame.
type Committed interface {
	FrameCommitted()
}

// Publisher brackets one frame's decode-and-update work in a single
// exclusive section. Readers share the section and never see a torn frame.
type Publisher struct {
	mu sync.RWMutex

	lmu       sync.Mutex
	listeners []Listener

	active []Listener // listeners of the open frame, guarded by mu
}

// New creates a publisher with optional initial listeners.
func New(ls ...Listener) *Publisher {
	return &Publisher{listeners: ls}
}

// Subscribe adds a listener. It takes effect from the next frame.
func (p *Publisher) Subscribe(l Listener) {
	if l == nil {
		return
	}
	p.lmu.Lock()
	p.listeners = append(p.listeners, l)
	p.lmu.Unlock()
}

// Begin acquires the exclusive section and signals "begin update sequence".
// Every Begin must be paired with exactly one End.
func (p *Publisher) Begin() {
	p.lmu.Lock()
	ls := make([]Listener, len(p.listeners))
	copy(ls, p.listeners)
	p.lmu.Unlock()

	p.mu.Lock()
	p.active = ls
	for _, l := range ls {
		l.BeginUpdateSequence()
	}
}

// End signals "end update sequence" and releases the exclusive section.
func (p *Publisher) End() {
	ls := p.active
	p.active = nil
	for _, l := range ls {
		l.EndUpdateSequence()
	}
	p.mu.Unlock()

	for _, l := range ls {
		if c, ok := l.(Committed); ok {
			c.FrameCommitted()
		}
	}
}

// Frame runs fn inside the exclusive section.
// The section is released on every path; a panic in fn becomes an error.
func (p *Publisher) Frame(fn func() error) (err error) {
	p.Begin()
	defer p.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publish: frame panicked: %v", r)
		}
	}()

	return fn()
}

// Read runs fn in the shared section.
func (p *Publisher) Read(fn func()) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fn()
}
