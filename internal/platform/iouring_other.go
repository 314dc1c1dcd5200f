//go:build !linux

package platform

// Ring is a no-op stub on non-Linux platforms.
type Ring struct{}

// NewRing always returns (nil, nil) off Linux; callers use plain pread/pwrite.
func NewRing(_ uint32) (*Ring, error) { return nil, nil }

func (r *Ring) Pread(_ uintptr, _ []byte, _ int64) (int, error)  { return 0, nil }
func (r *Ring) Pwrite(_ uintptr, _ []byte, _ int64) (int, error) { return 0, nil }
func (r *Ring) Close() error                                     { return nil }

// KernelSupportsIOURing always returns false on non-Linux platforms.
func KernelSupportsIOURing() bool { return false }
