package hostfunc

// Builtin op names, as seen by script code.
const (
	OpReadFile   = "read_file"
	OpWriteFile  = "write_file"
	OpRemoveFile = "remove_file"
)

// Mode declares how an op completes relative to the calling script.
type Mode int

const (
	// Sync ops run to completion before control returns to the script.
	Sync Mode = iota
	// Async ops return a promise and run on their own goroutine.
	Async
)

func (m Mode) String() string {
	switch m {
	case Sync:
		return "sync"
	case Async:
		return "async"
	default:
		return "unknown"
	}
}

// Access is the kind of filesystem access an op needs from a PathPolicy.
type Access int

const (
	AccessRead Access = iota
	AccessWrite
	AccessRemove
)

func (a Access) String() string {
	switch a {
	case AccessRead:
		return "read"
	case AccessWrite:
		return "write"
	case AccessRemove:
		return "remove"
	default:
		return "unknown"
	}
}
