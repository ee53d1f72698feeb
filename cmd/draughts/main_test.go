// cmd/draughts/main_test.go
package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/draughts-telemetry/internal/decode"
	"github.com/tamzrod/draughts-telemetry/internal/series"
)

func TestFrameCommitted(t *testing.T) {
	assert.True(t, frameCommitted(nil))

	st, err := series.New(series.Config{Channels: 1})
	require.NoError(t, err)
	require.NoError(t, st.Append(2000, []float64{1}))
	refused := st.Append(1000, []float64{1})
	require.Error(t, refused)

	// readings committed, only the sample was refused
	assert.True(t, frameCommitted(refused))
	assert.True(t, frameCommitted(fmt.Errorf("session: %w", series.ErrChannelCount)))

	assert.False(t, frameCommitted(fmt.Errorf("session: analog: %w", &decode.TruncatedFrameError{Offset: 8, Width: 4, Len: 10})))
	assert.False(t, frameCommitted(fmt.Errorf("session: digital: %w", decode.ErrBitRange)))
}
