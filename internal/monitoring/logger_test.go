package monitoring

import (
	"fmt"
	"sync"
	"testing"
)

// capture installs a logger recording formatted lines and restores
// log.Printf when the test ends.
func capture(t *testing.T) func() []string {
	t.Helper()
	var (
		mu    sync.Mutex
		lines []string
	)
	SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { SetLogger(nil) })
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), lines...)
	}
}

func TestSetLogger(t *testing.T) {
	got := capture(t)

	Logf("scan %s", "started")
	if lines := got(); len(lines) != 1 || lines[0] != "scan started" {
		t.Fatalf("unexpected lines %q", lines)
	}

	SetLogger(nil)
	// Must not panic and must not reach the old logger.
	Logf("muted")
	if lines := got(); len(lines) != 1 {
		t.Errorf("muted logger still wrote: %q", lines)
	}
}

func TestPrefixed(t *testing.T) {
	got := capture(t)

	logf := Prefixed("gateway:")
	logf("connected to %s", "aa:bb")
	if lines := got(); len(lines) != 1 || lines[0] != "gateway: connected to aa:bb" {
		t.Errorf("unexpected lines %q", lines)
	}
}

func TestLogfConcurrentSwap(t *testing.T) {
	capture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				SetLogger(func(string, ...interface{}) {})
				return
			}
			Logf("line %d", i)
		}(i)
	}
	wg.Wait()
}
