package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/medjeex/exam-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFinalizer struct {
	mu    sync.Mutex
	keys  []models.AttemptKey
	fired chan models.AttemptKey
}

func newStubFinalizer() *stubFinalizer {
	return &stubFinalizer{fired: make(chan models.AttemptKey, 16)}
}

func (s *stubFinalizer) ForceSubmit(ctx context.Context, key models.AttemptKey) error {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	s.fired <- key
	return nil
}

func (s *stubFinalizer) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

func testKey(paperID string) models.AttemptKey {
	return models.AttemptKey{UserID: "u1", TestSeriesID: "s1", TestPaperID: paperID}
}

func newTestScheduler(t *testing.T) (*AutoSubmitScheduler, *stubFinalizer) {
	t.Helper()
	s := NewAutoSubmitScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Close)

	finalizer := newStubFinalizer()
	s.Bind(finalizer)
	return s, finalizer
}

func waitForFire(t *testing.T, finalizer *stubFinalizer) models.AttemptKey {
	t.Helper()
	select {
	case key := <-finalizer.fired:
		return key
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
		return models.AttemptKey{}
	}
}

func TestAutoSubmitScheduler_FiresAtDeadline(t *testing.T) {
	s, finalizer := newTestScheduler(t)

	key := testKey("p1")
	s.Arm(key, time.Now().Add(20*time.Millisecond))
	assert.Equal(t, 1, s.Pending())

	fired := waitForFire(t, finalizer)
	assert.Equal(t, key, fired)
	assert.Equal(t, 0, s.Pending())
}

func TestAutoSubmitScheduler_PastDeadlineFiresImmediately(t *testing.T) {
	s, finalizer := newTestScheduler(t)

	s.Arm(testKey("p1"), time.Now().Add(-time.Hour))
	waitForFire(t, finalizer)
}

func TestAutoSubmitScheduler_RearmReplacesTimer(t *testing.T) {
	s, finalizer := newTestScheduler(t)

	key := testKey("p1")
	s.Arm(key, time.Now().Add(time.Hour))
	s.Arm(key, time.Now().Add(10*time.Millisecond))
	assert.Equal(t, 1, s.Pending())

	waitForFire(t, finalizer)

	// The replaced timer must not fire a second time.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, finalizer.calls())
}

func TestAutoSubmitScheduler_IndependentTimersPerKey(t *testing.T) {
	s, finalizer := newTestScheduler(t)

	s.Arm(testKey("p1"), time.Now().Add(10*time.Millisecond))
	s.Arm(testKey("p2"), time.Now().Add(15*time.Millisecond))
	assert.Equal(t, 2, s.Pending())

	first := waitForFire(t, finalizer)
	second := waitForFire(t, finalizer)
	require.NotEqual(t, first, second)
}

func TestAutoSubmitScheduler_CloseStopsPendingTimers(t *testing.T) {
	s, finalizer := newTestScheduler(t)

	s.Arm(testKey("p1"), time.Now().Add(30*time.Millisecond))
	s.Close()
	assert.Equal(t, 0, s.Pending())

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 0, finalizer.calls())

	// Arming after close is ignored.
	s.Arm(testKey("p2"), time.Now().Add(time.Millisecond))
	assert.Equal(t, 0, s.Pending())
}

func TestAutoSubmitScheduler_UnboundTimerIsHarmless(t *testing.T) {
	s := NewAutoSubmitScheduler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(s.Close)

	// No Bind: the fire path must not panic.
	s.Arm(testKey("p1"), time.Now().Add(5*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, s.Pending())
}
