package engine

import (
	"errors"
	"fmt"

	"github.com/caffeineduck/gofaas/hostfunc"
)

var (
	ErrBootstrap        = errors.New("bootstrap failed")
	ErrLoad             = errors.New("load failed")
	ErrInvoke           = errors.New("invocation failed")
	ErrNoHandler        = errors.New("no global handler function")
	ErrInstanceBusy     = errors.New("instance busy")
	ErrInstanceSpent    = errors.New("instance already served an invocation")
	ErrInstancePoisoned = errors.New("instance poisoned by an earlier failure")
	ErrInstanceClosed   = errors.New("instance closed")
	ErrNotLoaded        = errors.New("no handler loaded")
	ErrAlreadyLoaded    = errors.New("handler already loaded")
)

// BootstrapError reports a failure to set up the script environment. It
// indicates a packaging defect and is never worth retrying.
type BootstrapError struct {
	Err error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap: %v", e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }

func (e *BootstrapError) Is(target error) bool { return target == ErrBootstrap }

// LoadError reports a handler script that failed to compile or evaluate,
// or that did not define a handler.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// Kind classifies an invocation failure.
type Kind string

const (
	KindException          Kind = "exception"
	KindRejection          Kind = "rejection"
	KindUnhandledRejection Kind = "unhandled_rejection"
	KindMarshal            Kind = "marshal"
	KindStalled            Kind = "stalled"
	KindCanceled           Kind = "canceled"
	KindNoHandler          Kind = "no_handler"
)

// InvokeError reports a failed invocation. When a host op failure caused it,
// OpKind carries the op's classification and Err is the *hostfunc.OpError.
type InvokeError struct {
	Function string
	Kind     Kind
	OpKind   hostfunc.Kind
	Message  string
	Err      error
}

func (e *InvokeError) Error() string {
	name := e.Function
	if name == "" {
		name = "handler"
	}
	return fmt.Sprintf("invoke %s: %s: %s", name, e.Kind, e.Message)
}

func (e *InvokeError) Unwrap() error { return e.Err }

func (e *InvokeError) Is(target error) bool { return target == ErrInvoke }

// AsInvokeError extracts an *InvokeError from err's chain.
func AsInvokeError(err error) (*InvokeError, bool) {
	var ie *InvokeError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
