// Package shellenv captures the PATH of the user's fully-initialized
// login shell exactly once per process. Login shells run profile
// scripts that add user-installed tool locations missing from the
// minimal PATH a GUI- or service-launched process inherits.
package shellenv

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const defaultShell = "/bin/sh"

// Cache is the process-wide single-flight holder for the captured
// login-shell PATH. Once a capture completes (even with a nil result)
// the value is permanent; the shell is never spawned again.
type Cache struct {
	mu       sync.Mutex
	captured bool
	value    []string
	inFlight bool
	waiters  []func([]string)

	// runShell is swapped in tests to avoid spawning real shells.
	runShell func(shell string, timeout time.Duration) (string, error)
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{runShell: runLoginShell}
}

// CaptureOnce delivers the cached login-shell PATH to onFinish,
// capturing it first if this is the first call. onFinish may be nil.
//
// Guarantees: at most one shell spawn per process lifetime regardless
// of concurrent callers; every registered callback is invoked exactly
// once, in registration order; a timed-out capture caches a nil value
// rather than a partial one.
func (c *Cache) CaptureOnce(shellOverride string, timeout time.Duration, onFinish func([]string)) {
	c.mu.Lock()
	if c.captured {
		value := c.value
		c.mu.Unlock()
		if onFinish != nil {
			onFinish(value)
		}
		return
	}
	if onFinish != nil {
		c.waiters = append(c.waiters, onFinish)
	}
	if c.inFlight {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	go func() {
		shell := shellOverride
		if shell == "" {
			shell = os.Getenv("SHELL")
		}
		if shell == "" {
			shell = defaultShell
		}

		var value []string
		if out, err := c.runShell(shell, timeout); err == nil {
			value = splitPath(out)
		}
		c.finish(value)
	}()
}

// Value returns the captured PATH and whether a capture has completed.
func (c *Cache) Value() ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value, c.captured
}

func (c *Cache) finish(value []string) {
	c.mu.Lock()
	c.value = value
	c.captured = true
	c.inFlight = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	for _, w := range waiters {
		w(value)
	}
}

// runLoginShell spawns the shell non-interactively with the login flag
// and reads the printed PATH. The child is killed on timeout and the
// result discarded; a partial read is never used.
func runLoginShell(shell string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, shell, "-l", "-c", `printf %s "$PATH"`)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return string(out), nil
}

func splitPath(raw string) []string {
	var entries []string
	for _, entry := range strings.Split(raw, string(os.PathListSeparator)) {
		if entry != "" {
			entries = append(entries, entry)
		}
	}
	return entries
}
