package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/caffeineduck/gofaas/bridge"
	"github.com/caffeineduck/gofaas/engine"
	"github.com/caffeineduck/gofaas/hostfunc"
	"go.uber.org/zap"
)

var (
	ErrClosed           = errors.New("executor closed")
	ErrFunctionNotFound = errors.New("function not found")
	ErrInvalidName      = errors.New("invalid function name")
)

// Result holds the response and metadata from one invocation.
type Result struct {
	// Value is the handler's response; JSON is the same value as JSON text.
	Value bridge.Value
	JSON  json.RawMessage
	// Output is everything the handler wrote to the console.
	Output string
	// ID is the invocation id used in logs.
	ID       string
	Ops      int
	Duration time.Duration
	Error    error
}

// Executor runs handler invocations. Every invocation gets a fresh engine
// instance; the executor keeps compiled handlers and a pool of bootstrapped
// instances so invocations skip parsing and bootstrap work.
type Executor struct {
	cfg      executorConfig
	log      *zap.Logger
	instOpts []engine.Option

	compiled map[string]*engine.Program
	mu       sync.RWMutex
	closed   bool

	sem  chan struct{}
	pool chan *engine.Instance
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates an Executor. It bootstraps one instance up front so
// configuration errors surface here rather than on the first invocation.
func New(opts ...ExecutorOption) (*Executor, error) {
	cfg := defaultExecutorConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxConcurrent <= 0 {
		return nil, fmt.Errorf("max concurrent must be positive, got %d", cfg.maxConcurrent)
	}
	if cfg.poolSize < 0 {
		return nil, fmt.Errorf("pool size must not be negative, got %d", cfg.poolSize)
	}

	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	fsOpts := append([]hostfunc.FSOption(nil), cfg.fsOptions...)
	switch {
	case cfg.policy != nil:
		fsOpts = append(fsOpts, hostfunc.WithPolicy(cfg.policy))
	case len(cfg.mounts) > 0:
		fsOpts = append(fsOpts, hostfunc.WithPolicy(hostfunc.NewMountPolicy(cfg.mounts...)))
	}
	fileOps := hostfunc.NewFileOps(fsOpts...)

	instOpts := []engine.Option{engine.WithLogger(log), engine.WithFileOps(fileOps)}
	for _, d := range cfg.ops {
		instOpts = append(instOpts, engine.WithOp(d))
	}

	e := &Executor{
		cfg:      cfg,
		log:      log,
		instOpts: instOpts,
		compiled: make(map[string]*engine.Program),
		sem:      make(chan struct{}, cfg.maxConcurrent),
		pool:     make(chan *engine.Instance, cfg.poolSize),
		done:     make(chan struct{}),
	}

	first, err := e.bootstrap()
	if err != nil {
		return nil, err
	}
	if cfg.poolSize > 0 {
		e.pool <- first
		e.wg.Add(1)
		go e.fill()
	} else {
		first.Close()
	}

	return e, nil
}

func (e *Executor) bootstrap() (*engine.Instance, error) {
	return engine.Bootstrap(e.instOpts...)
}

// fill keeps the warm pool topped up until the executor closes.
func (e *Executor) fill() {
	defer e.wg.Done()
	for {
		select {
		case <-e.done:
			return
		default:
		}

		inst, err := e.bootstrap()
		if err != nil {
			e.log.Error("warm pool bootstrap failed", zap.Error(err))
			return
		}
		select {
		case e.pool <- inst:
		case <-e.done:
			inst.Close()
			return
		}
	}
}

// instance takes a warm instance, or bootstraps one when the pool is empty.
func (e *Executor) instance() (*engine.Instance, error) {
	select {
	case inst := <-e.pool:
		return inst, nil
	default:
		return e.bootstrap()
	}
}

// Deploy compiles source and registers it under name, replacing any
// earlier deployment. Syntax errors are returned as *engine.LoadError.
func (e *Executor) Deploy(name, source string) error {
	if name == "" {
		return ErrInvalidName
	}
	prog, err := engine.Compile(name, source)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	_, replaced := e.compiled[name]
	e.compiled[name] = prog

	e.log.Info("function deployed", zap.String("function", name), zap.Bool("replaced", replaced))
	return nil
}

// Undeploy removes a deployed function. Invocations already running finish
// normally.
func (e *Executor) Undeploy(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.compiled[name]; !ok {
		return fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	delete(e.compiled, name)

	e.log.Info("function undeployed", zap.String("function", name))
	return nil
}

// Functions returns the deployed function names in sorted order.
func (e *Executor) Functions() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.compiled))
	for name := range e.compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the deployed function name with the given request JSON.
func (e *Executor) Invoke(ctx context.Context, name string, requestJSON []byte, opts ...Option) Result {
	start := time.Now()

	e.mu.RLock()
	prog, ok := e.compiled[name]
	closed := e.closed
	e.mu.RUnlock()

	if closed {
		return Result{Error: ErrClosed, Duration: time.Since(start)}
	}
	if !ok {
		return Result{Error: fmt.Errorf("%w: %s", ErrFunctionNotFound, name), Duration: time.Since(start)}
	}
	return e.run(ctx, start, prog, requestJSON, opts)
}

// Run compiles source and invokes it once without deploying it.
func (e *Executor) Run(ctx context.Context, source string, requestJSON []byte, opts ...Option) Result {
	start := time.Now()

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return Result{Error: ErrClosed, Duration: time.Since(start)}
	}

	prog, err := engine.Compile("inline.js", source)
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}
	return e.run(ctx, start, prog, requestJSON, opts)
}

func (e *Executor) run(ctx context.Context, start time.Time, prog *engine.Program, requestJSON []byte, opts []Option) Result {
	cfg := runConfig{timeout: e.cfg.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return Result{Error: e.timeoutErr(ctx, cfg), Duration: time.Since(start)}
	}

	inst, err := e.instance()
	if err != nil {
		return Result{Error: err, Duration: time.Since(start)}
	}
	defer inst.Close()

	var output bytes.Buffer
	inst.SetConsole(&output)

	result := Result{ID: inst.ID()}
	log := e.log.With(zap.String("function", prog.Name()), zap.String("invocation", inst.ID()))

	if err := inst.LoadProgram(ctx, prog); err != nil {
		result.Error = err
	} else if res, err := inst.Invoke(ctx, requestJSON); err != nil {
		result.Ops = res.Ops
		result.Error = err
	} else {
		result.Ops = res.Ops
		result.Value = res.Value
		result.JSON, result.Error = res.JSON()
	}

	if result.Error != nil && ctx.Err() == context.DeadlineExceeded && cfg.timeout > 0 {
		result.Error = fmt.Errorf("timeout after %v: %w", cfg.timeout, result.Error)
	}

	result.Output = output.String()
	result.Duration = time.Since(start)

	if result.Error != nil {
		log.Warn("invocation failed", zap.Error(result.Error), zap.Duration("duration", result.Duration))
	} else {
		log.Debug("invocation complete", zap.Int("ops", result.Ops), zap.Duration("duration", result.Duration))
	}
	return result
}

func (e *Executor) timeoutErr(ctx context.Context, cfg runConfig) error {
	if ctx.Err() == context.DeadlineExceeded && cfg.timeout > 0 {
		return fmt.Errorf("timeout after %v waiting for a worker: %w", cfg.timeout, ctx.Err())
	}
	return ctx.Err()
}

// Close stops the warm pool and releases pooled instances. Running
// invocations are not interrupted.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.done)
	e.mu.Unlock()

	e.wg.Wait()

	var errs []error
	for {
		select {
		case inst := <-e.pool:
			if err := inst.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}
