// Package testing switches the process into test mode when imported for side effects.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

// ensureTestMode keeps tests from enqueueing jobs or reading a developer's .env.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
		if os.Getenv("LOG_FORMAT") == "" {
			_ = os.Setenv("LOG_FORMAT", "json")
		}
	})
}

func init() {
	ensureTestMode()
}
