package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := NewScheduler(time.Second)
	err := s.Register("broken", "every now and then", func(context.Context) error { return nil })
	assert.ErrorContains(t, err, "broken")
}

func TestScheduledJobRuns(t *testing.T) {
	s := NewScheduler(time.Second)

	var calls atomic.Int32
	require.NoError(t, s.Register("tick", "@every 1s", func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		calls.Add(1)
		return errors.New("logged, not fatal")
	}))

	s.Start()
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}
