package hostfunc

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies a failed op.
type Kind string

const (
	KindNotFound         Kind = "NotFound"
	KindPermissionDenied Kind = "PermissionDenied"
	KindOther            Kind = "Other"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrTooLarge         = errors.New("size limit exceeded")
)

// OpError reports a failed host op.
type OpError struct {
	Op   string
	Path string
	Kind Kind
	Err  error
}

func (e *OpError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Is lets callers match on the classification with ErrNotFound and
// ErrPermissionDenied regardless of the underlying error.
func (e *OpError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPermissionDenied:
		return e.Kind == KindPermissionDenied
	}
	return false
}

// Classify maps an error from the filesystem or a PathPolicy to a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	default:
		return KindOther
	}
}

// Wrap returns err as an *OpError for op. An *OpError already in err's
// chain is returned as is.
func Wrap(op, path string, err error) *OpError {
	return newOpError(op, path, err)
}

func newOpError(op, path string, err error) *OpError {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr
	}
	return &OpError{Op: op, Path: path, Kind: Classify(err), Err: err}
}

// AsOpError extracts an *OpError from err's chain.
func AsOpError(err error) (*OpError, bool) {
	var opErr *OpError
	if errors.As(err, &opErr) {
		return opErr, true
	}
	return nil, false
}
