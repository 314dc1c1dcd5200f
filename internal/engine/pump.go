package engine

import (
	"fmt"
	"io"

	"github.com/bamsammich/blit/internal/blockio"
	"github.com/bamsammich/blit/internal/job"
	"github.com/bamsammich/blit/internal/platform"
)

// ioPump abstracts how blocks reach the kernel: plain positioned reads and
// writes through the endpoint, or an io_uring submission ring when requested
// and the kernel supports one. Each copy path owns its own pump.
type ioPump struct {
	ring *platform.Ring
}

func newPump(useIOURing bool) (*ioPump, error) {
	if !useIOURing {
		return &ioPump{}, nil
	}
	ring, err := platform.NewRing(8)
	if err != nil {
		return nil, fmt.Errorf("%w: init io_uring: %v", job.ErrIO, err)
	}
	// ring is nil on pre-5.6 kernels; plain syscalls take over silently.
	return &ioPump{ring: ring}, nil
}

func (p *ioPump) Close() {
	if p.ring != nil {
		_ = p.ring.Close()
	}
}

// readAt reads up to len(buf) bytes at off. Like io.ReaderAt it may return
// n > 0 together with io.EOF on the final block.
func (p *ioPump) readAt(e blockio.Endpoint, buf []byte, off int64) (int, error) {
	if p.ring == nil {
		n, err := e.ReadAt(buf, off)
		if err == io.EOF && n > 0 {
			return n, io.EOF
		}
		return n, err
	}
	n, err := p.ring.Pread(e.Fd(), buf, off)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

// writeAt writes all of buf at off, looping over short writes.
func (p *ioPump) writeAt(e blockio.Endpoint, buf []byte, off int64) (int, error) {
	if p.ring == nil {
		return e.WriteAt(buf, off)
	}
	written := 0
	for written < len(buf) {
		n, err := p.ring.Pwrite(e.Fd(), buf[written:], off+int64(written))
		if err != nil {
			return written, err
		}
		if n == 0 {
			return written, io.ErrShortWrite
		}
		written += n
	}
	return written, nil
}
