// Package blockio opens input and output resources behind a small positioned
// I/O capability interface, so the copy engines never care whether they are
// talking to a regular file or a block device.
package blockio

import (
	"fmt"
	"io"
	"os"

	"github.com/bamsammich/blit/internal/job"
)

// Endpoint is one open OS-level resource supporting random-access reads or
// writes. Endpoints are never shared between goroutines; each shard opens its
// own pair.
//
// Sync blocks until previously written data has reached stable storage.
// Alignment reports the required buffer/length alignment for I/O (1 unless
// the endpoint was opened with direct I/O).
type Endpoint interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
	Fd() uintptr
	Alignment() int64
}

type fileEndpoint struct {
	*os.File
	align int64
}

var _ Endpoint = (*fileEndpoint)(nil)

func (e *fileEndpoint) Alignment() int64 { return e.align }

// OpenInput opens path read-only. With direct set, the OS page cache is
// bypassed and blockSize must be a multiple of the device's logical block
// size; that alignment is a runtime property, so it is checked here rather
// than at parse time.
func OpenInput(path string, direct bool, blockSize int64) (Endpoint, error) {
	return open(path, os.O_RDONLY, 0, direct, blockSize)
}

// OpenOutput opens path write-only, creating it if absent and truncating it
// if present. There is no append mode.
func OpenOutput(path string, direct bool, blockSize int64) (Endpoint, error) {
	return open(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644, direct, blockSize)
}

// OpenOutputShard opens an already-created output strictly for positioned
// writes. Shards must never re-truncate the file the coordinator set up.
func OpenOutputShard(path string, direct bool, blockSize int64) (Endpoint, error) {
	return open(path, os.O_WRONLY, 0, direct, blockSize)
}

func open(path string, flag int, perm os.FileMode, direct bool, blockSize int64) (Endpoint, error) {
	if direct {
		return openDirect(path, flag, perm, blockSize)
	}
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", job.ErrIO, path, err)
	}
	return &fileEndpoint{File: f, align: 1}, nil
}
