// Package guard forces test mode for packages that start the full stack.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SUPPLIERHUB_TEST_MODE") == "" {
			_ = os.Setenv("SUPPLIERHUB_TEST_MODE", "1")
		}
	})
}
