//go:build !linux

package blockio

import (
	"fmt"
	"os"

	"github.com/bamsammich/blit/internal/job"
)

func openDirect(_ string, _ int, _ os.FileMode, _ int64) (Endpoint, error) {
	return nil, fmt.Errorf("%w: direct I/O is not supported on this platform", job.ErrConfig)
}

// Preallocate is a no-op where fallocate is unavailable.
func Preallocate(_ Endpoint, _, _ int64) {}
