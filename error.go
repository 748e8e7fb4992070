package flashcache

import "github.com/cockroachdb/errors"

type constError string

const (
	// ErrInvalidOptions may be returned from [New].
	ErrInvalidOptions = constError("invalid options")
	// ErrObjectTooLarge is returned from [Cache.Admit]
	// when an object does not fit into a single block.
	ErrObjectTooLarge = constError("object too large")
	// ErrInvalidSize is returned from [Cache.Admit]
	// for objects without a positive size.
	ErrInvalidSize = constError("invalid object size")
)

func (errStr constError) Error() string { return string(errStr) }

func invalidOptionError(option string, minimum, requested int64) error {
	return errors.Wrapf(ErrInvalidOptions,
		"%s must be >=%d but %d was requested",
		option, minimum, requested)
}

func objectTooLargeError(size, blockSize int64) error {
	return errors.Wrapf(ErrObjectTooLarge,
		"%d bytes exceeds block size %d", size, blockSize)
}
