package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/caffeineduck/gofaas/hostfunc"
	"github.com/caffeineduck/gofaas/language/javascript"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// State is the lifecycle position of an Instance.
type State int

const (
	StateReady State = iota
	StateLoaded
	StateSpent
	StatePoisoned
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateLoaded:
		return "loaded"
	case StateSpent:
		return "spent"
	case StatePoisoned:
		return "poisoned"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

var (
	preludeOnce sync.Once
	preludeProg *goja.Program
	preludeErr  error

	instanceSeq atomic.Uint64
)

func preludeProgram() (*goja.Program, error) {
	preludeOnce.Do(func() {
		preludeProg, preludeErr = goja.Compile(javascript.PreludeName, javascript.New().Prelude(), true)
	})
	return preludeProg, preludeErr
}

// Instance is one engine runtime with the prelude evaluated. It is not safe
// for concurrent use; overlapping calls fail with ErrInstanceBusy.
type Instance struct {
	id       string
	name     string
	vm       *goja.Runtime
	registry *hostfunc.Registry
	loop     *loop
	base     *zap.Logger
	log      *zap.Logger
	console  io.Writer

	errorCtor      goja.Value
	promiseResolve goja.Callable
	promiseCtor    goja.Value

	// ctx is the context of the Load or Invoke call in progress.
	ctx context.Context

	mu      sync.Mutex
	state   State
	running bool
}

// Bootstrap creates an instance: a fresh runtime with the host dispatcher
// installed and the prelude evaluated.
func Bootstrap(opts ...Option) (*Instance, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	fileOps := cfg.fileOps
	if fileOps == nil {
		fileOps = hostfunc.NewFileOps(cfg.fsOptions...)
	}
	registry, err := hostfunc.NewRegistry(fileOps.Decls()...)
	if err != nil {
		return nil, &BootstrapError{Err: err}
	}
	for _, d := range cfg.ops {
		if err := registry.Register(d); err != nil {
			return nil, &BootstrapError{Err: err}
		}
	}
	registry.Freeze()

	id := cfg.id
	if id == "" {
		id = strconv.FormatUint(instanceSeq.Add(1), 10)
	}
	log := cfg.logger
	if log == nil {
		log = Logger()
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	i := &Instance{
		id:       id,
		name:     cfg.name,
		vm:       vm,
		registry: registry,
		loop:     newLoop(),
		base:     log.With(zap.String("invocation", id)),
		console:  cfg.console,
		ctx:      context.Background(),
	}
	i.log = i.base
	if cfg.name != "" {
		i.log = i.base.With(zap.String("function", cfg.name))
	}
	vm.SetPromiseRejectionTracker(i.loop.track)

	if err := i.install(); err != nil {
		return nil, &BootstrapError{Err: err}
	}

	prog, err := preludeProgram()
	if err != nil {
		return nil, &BootstrapError{Err: fmt.Errorf("compile prelude: %w", err)}
	}
	if _, err := vm.RunProgram(prog); err != nil {
		return nil, &BootstrapError{Err: fmt.Errorf("run prelude: %w", err)}
	}
	if v := vm.Get("__host"); v != nil && !goja.IsUndefined(v) {
		return nil, &BootstrapError{Err: errors.New("prelude left __host in global scope")}
	}

	i.log.Debug("instance bootstrapped", zap.Strings("ops", registry.List()))
	return i, nil
}

// MustBootstrap is like Bootstrap but panics on failure.
func MustBootstrap(opts ...Option) *Instance {
	i, err := Bootstrap(opts...)
	if err != nil {
		panic(err)
	}
	return i
}

// install captures the intrinsics the runtime needs before user code can
// replace them, then exposes the host dispatcher as __host.
func (i *Instance) install() error {
	vm := i.vm

	i.errorCtor = vm.Get("Error")
	i.promiseCtor = vm.Get("Promise")
	resolve, ok := goja.AssertFunction(i.promiseCtor.ToObject(vm).Get("resolve"))
	if !ok {
		return errors.New("promise resolve is not callable")
	}
	i.promiseResolve = resolve

	host := vm.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"opSync":  i.opSync,
		"opAsync": i.opAsync,
		"log":     i.consoleLog,
		"ops":     i.listOps,
	} {
		if err := host.Set(name, fn); err != nil {
			return fmt.Errorf("install __host.%s: %w", name, err)
		}
	}
	return vm.Set("__host", host)
}

// ID returns the invocation id this instance reports in logs.
func (i *Instance) ID() string { return i.id }

// Name returns the function name given at bootstrap or load.
func (i *Instance) Name() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.name
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// SetConsole replaces the console writer given with WithConsole. It must
// not be called while a Load or Invoke is running.
func (i *Instance) SetConsole(w io.Writer) {
	i.mu.Lock()
	i.console = w
	i.mu.Unlock()
}

// Ops returns the names of the host ops bound into this instance.
func (i *Instance) Ops() []string {
	return i.registry.List()
}

// Close releases the runtime. A call in progress is interrupted.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.state == StateClosed {
		return nil
	}
	if i.running {
		i.vm.Interrupt(ErrInstanceClosed)
	}
	i.state = StateClosed
	return nil
}

// begin moves the instance into a running call if it is in state want.
func (i *Instance) begin(ctx context.Context, want State) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.running {
		return ErrInstanceBusy
	}
	if i.state != want {
		return i.stateErr(want)
	}
	i.running = true
	i.ctx = ctx
	return nil
}

// end leaves the running call and moves to next.
func (i *Instance) end(next State) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.running = false
	i.ctx = context.Background()
	if i.state != StateClosed {
		i.state = next
	}
}

func (i *Instance) stateErr(want State) error {
	switch i.state {
	case StateSpent:
		return ErrInstanceSpent
	case StatePoisoned:
		return ErrInstancePoisoned
	case StateClosed:
		return ErrInstanceClosed
	case StateLoaded:
		return ErrAlreadyLoaded
	case StateReady:
		return ErrNotLoaded
	}
	return fmt.Errorf("instance %s, want %s", i.state, want)
}

// interruptOn interrupts the runtime when ctx is done. The returned func
// stops the watch.
func (i *Instance) interruptOn(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		i.vm.Interrupt(ctx.Err())
	})
}
