package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	failures int
	attempts []int
}

func (h *recordingHandler) handle(ctx context.Context, task Task) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.attempts = append(h.attempts, task.Attempt)
	if h.failures > 0 {
		h.failures--
		return errors.New("transient")
	}
	return nil
}

func (h *recordingHandler) runs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.attempts)
}

func TestPoolRunsSubmittedTasks(t *testing.T) {
	h := &recordingHandler{}
	p := NewPool("test", h.handle, Options{Workers: 2, Backoff: time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit(Task{ID: "task", Kind: "noop"}))
	}

	require.Eventually(t, func() bool {
		return h.runs() == 5
	}, 2*time.Second, 5*time.Millisecond)
}

func TestPoolStampsAttemptsAcrossRetries(t *testing.T) {
	h := &recordingHandler{failures: 2}
	p := NewPool("test", h.handle, Options{Workers: 1, MaxAttempts: 4, Backoff: time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Submit(Task{ID: "flaky", Kind: "noop"}))

	require.Eventually(t, func() bool {
		return h.runs() == 3
	}, 2*time.Second, 5*time.Millisecond)

	// Handlers see the running attempt number, first run included.
	h.mu.Lock()
	defer h.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, h.attempts)
}

func TestPoolDropsTaskAfterAttemptBudget(t *testing.T) {
	h := &recordingHandler{failures: 10}
	p := NewPool("test", h.handle, Options{Workers: 1, MaxAttempts: 3, Backoff: time.Millisecond})
	p.Start(context.Background())
	defer p.Stop()

	require.NoError(t, p.Submit(Task{ID: "doomed", Kind: "noop"}))

	require.Eventually(t, func() bool {
		return h.runs() == 3
	}, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 3, h.runs())
}

func TestPoolSubmitBeforeStart(t *testing.T) {
	p := NewPool("test", (&recordingHandler{}).handle, Options{})

	err := p.Submit(Task{ID: "early"})
	require.Error(t, err)
}

func TestPoolSubmitAfterStop(t *testing.T) {
	p := NewPool("test", (&recordingHandler{}).handle, Options{})
	p.Start(context.Background())
	p.Stop()

	err := p.Submit(Task{ID: "late"})
	require.Error(t, err)
}
