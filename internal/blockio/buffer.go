package blockio

import "unsafe"

// AlignedBlock allocates a size-byte buffer whose base address is a multiple
// of align. O_DIRECT requires the memory address, not just the transfer
// length, to be aligned to the logical block size.
func AlignedBlock(size, align int64) []byte {
	if align <= 1 {
		return make([]byte, size)
	}
	raw := make([]byte, size+align)
	off := align - int64(uintptr(unsafe.Pointer(&raw[0]))%uintptr(align))
	if off == align {
		off = 0
	}
	return raw[off : off+size : off+size]
}
