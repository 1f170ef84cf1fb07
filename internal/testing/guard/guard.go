// Package guard switches binaries into test mode when imported by a test.
package guard

import (
	"os"
	"sync"
)

// TestModeEnv is read by internal/app.InTestMode.
const TestModeEnv = "WORKSHOP_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(TestModeEnv) == "" {
			_ = os.Setenv(TestModeEnv, "1")
		}
	})
}
