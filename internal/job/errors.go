package job

import "errors"

// Failure classes. Every error leaving the engine wraps exactly one of these
// so callers can classify with errors.Is without inspecting messages.
var (
	// ErrConfig marks problems detected before any I/O begins: bad size
	// strings, a zero block size, misaligned direct-I/O parameters.
	ErrConfig = errors.New("configuration error")

	// ErrIO marks open/read/write/seek/sync failures. Fatal to the engine
	// instance that hit them; never retried here.
	ErrIO = errors.New("i/o error")

	// ErrVerify marks a digest mismatch. The copy itself may have fully
	// succeeded; both facts are observable on the Result.
	ErrVerify = errors.New("verification failed")

	// ErrCoordination marks internal engine faults (a worker panicking, a
	// digest update arriving out of order) as distinct from device problems.
	ErrCoordination = errors.New("coordination error")
)
