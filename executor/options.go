package executor

import (
	"time"

	"github.com/caffeineduck/gofaas/hostfunc"
	"go.uber.org/zap"
)

// Option configures a single invocation.
type Option func(*runConfig)

type runConfig struct {
	timeout time.Duration
}

// WithTimeout bounds the invocation, overriding the executor default. Zero
// disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// Mount permission modes (re-exported from hostfunc for convenience).
const (
	MountReadOnly        = hostfunc.MountReadOnly
	MountReadWrite       = hostfunc.MountReadWrite
	MountReadWriteCreate = hostfunc.MountReadWriteCreate
)

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	timeout       time.Duration
	maxConcurrent int
	poolSize      int
	logger        *zap.Logger
	mounts        []hostfunc.Mount
	policy        hostfunc.PathPolicy
	fsOptions     []hostfunc.FSOption
	ops           []hostfunc.Decl
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		timeout:       30 * time.Second,
		maxConcurrent: 64,
		poolSize:      4,
	}
}

// WithDefaultTimeout sets the timeout applied to invocations that do not
// pass WithTimeout.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		c.timeout = d
	}
}

// WithMaxConcurrent bounds how many invocations run at once. Further calls
// wait for a slot or for their context to end.
func WithMaxConcurrent(n int) ExecutorOption {
	return func(c *executorConfig) {
		c.maxConcurrent = n
	}
}

// WithPoolSize sets how many bootstrapped instances are kept warm. Zero
// bootstraps on demand.
func WithPoolSize(n int) ExecutorOption {
	return func(c *executorConfig) {
		c.poolSize = n
	}
}

// WithLogger sets the executor logger. Engine instances log through it too.
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}

// WithMount restricts file ops to the given mounts. The virtual path is
// what handler code sees; host path is the actual location. Without any
// mount or policy, file ops reach the whole host filesystem.
//
// Examples:
//
//	executor.WithMount("/data", "./input", executor.MountReadOnly)
//	executor.WithMount("/output", "./results", executor.MountReadWrite)
//	executor.WithMount("/workspace", "./work", executor.MountReadWriteCreate)
func WithMount(virtualPath, hostPath string, mode hostfunc.MountMode) ExecutorOption {
	return func(c *executorConfig) {
		c.mounts = append(c.mounts, hostfunc.Mount{
			VirtualPath: virtualPath,
			HostPath:    hostPath,
			Mode:        mode,
		})
	}
}

// WithPolicy sets a custom path policy. It takes precedence over mounts.
func WithPolicy(p hostfunc.PathPolicy) ExecutorOption {
	return func(c *executorConfig) {
		c.policy = p
	}
}

// WithOp adds a host op to every instance.
func WithOp(d hostfunc.Decl) ExecutorOption {
	return func(c *executorConfig) {
		c.ops = append(c.ops, d)
	}
}

// Security limit options

// WithFSMaxFileSize sets the maximum file size for read operations.
func WithFSMaxFileSize(size int64) ExecutorOption {
	return func(c *executorConfig) {
		c.fsOptions = append(c.fsOptions, hostfunc.WithMaxFileSize(size))
	}
}

// WithFSMaxWriteSize sets the maximum content size for write operations.
func WithFSMaxWriteSize(size int64) ExecutorOption {
	return func(c *executorConfig) {
		c.fsOptions = append(c.fsOptions, hostfunc.WithMaxWriteSize(size))
	}
}

// WithFSMaxPathLength sets the maximum path length for filesystem operations.
func WithFSMaxPathLength(length int) ExecutorOption {
	return func(c *executorConfig) {
		c.fsOptions = append(c.fsOptions, hostfunc.WithMaxPathLength(length))
	}
}
