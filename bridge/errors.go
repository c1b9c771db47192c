package bridge

import (
	"errors"
	"fmt"
)

var ErrUnsupported = errors.New("value not representable as JSON")

// MarshalError reports a value that cannot cross the host/engine boundary.
// Path locates the value inside the converted structure, e.g. "$.items[2]".
type MarshalError struct {
	Path   string
	Reason string
}

func (e *MarshalError) Error() string {
	return fmt.Sprintf("cannot marshal value at %s: %s", e.Path, e.Reason)
}

func (e *MarshalError) Unwrap() error { return ErrUnsupported }

func unsupported(path, format string, args ...any) *MarshalError {
	return &MarshalError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func childPath(path, key string) string {
	return path + "." + key
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
