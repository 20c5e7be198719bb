package taskengine

import (
	"runtime"
	"testing"
	"time"
)

var fastRetry = RetryPolicy{Attempts: 3, Delay: 2 * time.Millisecond, MaxDelay: 5 * time.Millisecond}

func newTestEngine(t *testing.T, cfg Config) *Engine[int] {
	t.Helper()

	e, err := New[int](cfg)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { e.Shutdown(time.Second) })
	return e
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		runtime.Gosched()
	}
	t.Fatal("condition not satisfied before timeout")
}
