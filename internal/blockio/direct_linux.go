//go:build linux

package blockio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bamsammich/blit/internal/job"
)

// openDirect opens path with O_DIRECT and validates that blockSize is a
// multiple of the underlying storage's logical block size. O_DIRECT transfers
// whose length or memory address violate that alignment fail with EINVAL at
// read/write time, so the mismatch is reported up front as a configuration
// error instead.
func openDirect(path string, flag int, perm os.FileMode, blockSize int64) (Endpoint, error) {
	f, err := os.OpenFile(path, flag|unix.O_DIRECT, perm)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s (direct): %v", job.ErrIO, path, err)
	}

	logical, err := logicalBlockSize(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: query logical block size of %s: %v", job.ErrIO, path, err)
	}
	if blockSize%logical != 0 {
		f.Close()
		return nil, fmt.Errorf("%w: block size %d is not a multiple of %s's logical block size %d",
			job.ErrConfig, blockSize, path, logical)
	}

	return &fileEndpoint{File: f, align: logical}, nil
}

// logicalBlockSize returns the device sector size for block devices
// (BLKSSZGET) and the filesystem block size otherwise.
func logicalBlockSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if info.Mode()&os.ModeDevice != 0 {
		if ssz, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET); err == nil && ssz > 0 {
			return int64(ssz), nil
		}
	}

	var st unix.Statfs_t
	if err := unix.Fstatfs(int(f.Fd()), &st); err != nil {
		return 0, err
	}
	if st.Bsize <= 0 {
		return 512, nil
	}
	return int64(st.Bsize), nil
}

// Preallocate reserves [off, off+size) on the endpoint. Errors are ignored:
// fallocate is not supported on all filesystems.
func Preallocate(e Endpoint, off, size int64) {
	_ = unix.Fallocate(int(e.Fd()), 0, off, size)
}
