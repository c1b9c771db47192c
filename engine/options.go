package engine

import (
	"io"

	"github.com/caffeineduck/gofaas/hostfunc"
	"go.uber.org/zap"
)

// Option configures an Instance at bootstrap.
type Option func(*config)

type config struct {
	logger    *zap.Logger
	name      string
	id        string
	console   io.Writer
	ops       []hostfunc.Decl
	fileOps   *hostfunc.FileOps
	fsOptions []hostfunc.FSOption
}

func defaultConfig() config {
	return config{}
}

// WithLogger sets the logger used for console output and lifecycle events.
// Defaults to the package Logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithName sets the function name reported in logs and errors.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithID sets the invocation id reported in logs. Defaults to a process
// unique sequence number.
func WithID(id string) Option {
	return func(c *config) {
		c.id = id
	}
}

// WithConsole copies every console line the script writes to w.
func WithConsole(w io.Writer) Option {
	return func(c *config) {
		c.console = w
	}
}

// WithOp registers an additional host op, reachable from script code as
// runjs.ops[name]. The builtin ops cannot be replaced.
func WithOp(d hostfunc.Decl) Option {
	return func(c *config) {
		c.ops = append(c.ops, d)
	}
}

// WithFileOps binds the builtin file ops to f instead of an unrestricted
// default.
func WithFileOps(f *hostfunc.FileOps) Option {
	return func(c *config) {
		c.fileOps = f
	}
}

// WithFSOptions configures the default file ops. Ignored when WithFileOps
// is given.
func WithFSOptions(opts ...hostfunc.FSOption) Option {
	return func(c *config) {
		c.fsOptions = append(c.fsOptions, opts...)
	}
}

// WithPolicy restricts the builtin file ops with p.
func WithPolicy(p hostfunc.PathPolicy) Option {
	return WithFSOptions(hostfunc.WithPolicy(p))
}
