// Package trace provides request sources for the simulator.
package trace

type constError string

const (
	// ErrMalformedRecord may be returned from [Reader.Next].
	ErrMalformedRecord = constError("malformed trace record")
	// ErrInvalidGenerator may be returned from [NewZipf].
	ErrInvalidGenerator = constError("invalid generator")
)

func (errStr constError) Error() string { return string(errStr) }

type (
	// Request is a single access to an object.
	Request struct {
		ID   uint64
		Size int64
	}
	// Source yields requests until it returns io.EOF.
	Source interface {
		Next() (Request, error)
	}
)
