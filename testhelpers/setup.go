// Package testhelpers provides shared utilities for testing seqmap
package testhelpers

import (
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// WaitFor waits for a condition to become true with timeout
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return watcher.GetStats().IsActive
//	}, 5*time.Second)
func WaitFor(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}

// RetryOptions configures retry behavior
type RetryOptions struct {
	MaxAttempts int           // Maximum number of attempts
	BaseDelay   time.Duration // Base delay for exponential backoff
	MaxDelay    time.Duration // Maximum delay between attempts
	Jitter      bool          // Add random jitter to delays
	Timeout     time.Duration // Total timeout for all attempts
}

// RetryWithBackoff retries a function with exponential backoff
// Usage:
//
//	err := testhelpers.RetryWithBackoff(t, testhelpers.RetryOptions{
//	    MaxAttempts: 5,
//	    BaseDelay:   100 * time.Millisecond,
//	    MaxDelay:    2 * time.Second,
//	    Jitter:      true,
//	}, func() error {
//	    return performOperation()
//	})
func RetryWithBackoff(t *testing.T, opts RetryOptions, fn func() error) error {
	t.Helper()

	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseDelay == 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay == 0 {
		opts.MaxDelay = 5 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	var lastErr error
	start := time.Now()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		// Check total timeout
		if time.Since(start) > opts.Timeout {
			return fmt.Errorf("timeout after %v (attempt %d/%d): last error: %v",
				time.Since(start), attempt, opts.MaxAttempts, lastErr)
		}

		err := fn()
		if err == nil {
			// Success on attempt 1 doesn't need to log
			if attempt > 1 {
				t.Logf("Succeeded on attempt %d/%d", attempt, opts.MaxAttempts)
			}
			return nil
		}

		lastErr = err

		// Last attempt - return error
		if attempt == opts.MaxAttempts {
			t.Logf("Failed after %d attempts: %v", attempt, err)
			return err
		}

		// Calculate delay with exponential backoff
		delay := time.Duration(1<<uint(attempt-1)) * opts.BaseDelay
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}

		// Add jitter if enabled (10-20% random variation)
		if opts.Jitter {
			jitter := time.Duration(float64(delay) * (0.1 + 0.1*float64(attempt%2)))
			if attempt%2 == 0 {
				delay += jitter
			} else {
				delay -= jitter
			}
		}

		t.Logf("Attempt %d/%d failed: %v, retrying in %v...",
			attempt, opts.MaxAttempts, err, delay)

		time.Sleep(delay)
	}

	return lastErr
}

// WaitForWithJitter waits for a condition with exponential backoff retry
// Usage:
//
//	err := testhelpers.WaitForWithJitter(t, testhelpers.RetryOptions{
//	    MaxAttempts: 5,
//	    BaseDelay:   50 * time.Millisecond,
//	    Jitter:      true,
//	}, func() bool {
//	    return checkResourceCleaned()
//	})
func WaitForWithJitter(t *testing.T, opts RetryOptions, condition func() bool) error {
	return RetryWithBackoff(t, opts, func() error {
		if condition() {
			return nil
		}
		return errors.New("condition not yet met")
	})
}

// NoRetry is a convenience function for WaitFor without retry
func NoRetry() RetryOptions {
	return RetryOptions{
		MaxAttempts: 1,
		Timeout:     1 * time.Minute,
	}
}

// WaitForCleanup waits for background operations to complete
// Used in tests that spawn goroutines to ensure proper cleanup
func WaitForCleanup(t *testing.T, timeout time.Duration) {
	t.Helper()

	// Give goroutines time to cleanup
	time.Sleep(100 * time.Millisecond)

	// Verify no goroutine leaks
	if err := goleak.Find(goleak.IgnoreCurrent()); err != nil {
		t.Errorf("Goroutine leak detected: %v", err)
	}
}

// AssertNoLeaks verifies no goroutine leaks occurred during the test
func AssertNoLeaks(t *testing.T) {
	t.Helper()

	// Ignore goroutines started by the test runtime
	ignore := goleak.IgnoreCurrent()

	if err := goleak.Find(ignore); err != nil {
		t.Errorf("Goroutine leak detected: %v", err)
	}
}

// SkipIfShort skips the test if -short flag is provided
func SkipIfShort(t *testing.T, reason string) {
	t.Helper()
	if testing.Short() {
		t.Skipf("Skipping in short mode: %s", reason)
	}
}

// SkipInCI skips the test if running in CI environment
func SkipInCI(t *testing.T, reason string) {
	t.Helper()
	if os.Getenv("CI") != "" {
		t.Skipf("Skipping in CI: %s", reason)
	}
}

// TestData provides access to common test text patterns
var TestData = struct {
	Plain    string
	Markdown string
	Numbered string
	Log      string
}{
	Plain: `The quick brown fox jumps over the lazy dog.
Pack my box with five dozen liquor jugs.
How vexingly quick daft zebras jump.
`,

	Markdown: `# Release Notes

## Added

- Segment recipes can now insert literal text
- Offsets survive sub-viewing

## Fixed

- Reverse lookups on windowed views
`,

	Numbered: "0123456789",

	Log: `2024-03-01T10:00:00Z INFO  service started
2024-03-01T10:00:01Z DEBUG cache warmed in 120ms
2024-03-01T10:00:05Z WARN  slow request: 1.2s
2024-03-01T10:00:09Z ERROR upstream timeout
`,
}

// GetMultiDocProject returns a test project with assorted text inputs
func GetMultiDocProject() map[string]string {
	return map[string]string{
		"notes.txt":      TestData.Plain,
		"docs/notes.md":  TestData.Markdown,
		"digits.txt":     TestData.Numbered,
		"logs/app.log":   TestData.Log,
		"README.md":      "# Test Project\n\nInputs for provenance tests.\n",
	}
}
