package engine

import (
	"context"
	"fmt"

	"github.com/caffeineduck/gofaas/language/javascript"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Program is a compiled handler script. Programs are immutable and can be
// loaded into any number of instances, concurrently.
type Program struct {
	name string
	prog *goja.Program
}

// Name returns the name the program was compiled under.
func (p *Program) Name() string { return p.name }

// Compile parses source as a classic (non-module) script. Syntax errors are
// returned as *LoadError.
func Compile(name, source string) (*Program, error) {
	prog, err := goja.Compile(name, source, false)
	if err != nil {
		return nil, &LoadError{Name: name, Err: err}
	}
	return &Program{name: name, prog: prog}, nil
}

// Load compiles source and evaluates it as top-level script code. See
// LoadProgram.
func (i *Instance) Load(ctx context.Context, source string) error {
	if err := i.begin(ctx, StateReady); err != nil {
		return err
	}

	name := i.name
	if name == "" {
		name = "handler.js"
	}
	prog, err := Compile(name, source)
	if err == nil {
		err = i.load(ctx, prog)
	}
	return i.finishLoad(err)
}

// LoadProgram evaluates a compiled handler script. Host ops started by
// top-level code complete before LoadProgram returns. Afterwards a global
// function named handler must exist. Any failure is a *LoadError and
// poisons the instance.
func (i *Instance) LoadProgram(ctx context.Context, p *Program) error {
	if err := i.begin(ctx, StateReady); err != nil {
		return err
	}
	return i.finishLoad(i.load(ctx, p))
}

func (i *Instance) finishLoad(err error) error {
	if err != nil {
		i.log.Debug("load failed", zap.Error(err))
		i.end(StatePoisoned)
		return err
	}
	i.end(StateLoaded)
	return nil
}

func (i *Instance) load(ctx context.Context, p *Program) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &LoadError{Name: p.name, Err: panicCause(r)}
		}
	}()

	i.mu.Lock()
	if i.name == "" {
		i.name = p.name
		i.log = i.base.With(zap.String("function", p.name))
	}
	i.mu.Unlock()

	stop := i.interruptOn(ctx)
	defer stop()

	if _, err := i.vm.RunProgram(p.prog); err != nil {
		return &LoadError{Name: p.name, Err: err}
	}
	if err := i.loop.run(ctx, func() bool { return true }); err != nil {
		return &LoadError{Name: p.name, Err: err}
	}
	if rejected := i.loop.unhandled(nil); rejected != nil {
		return &LoadError{Name: p.name, Err: fmt.Errorf("unhandled rejection: %s", i.describe(rejected.Result()))}
	}
	if _, err := i.handler(); err != nil {
		return &LoadError{Name: p.name, Err: err}
	}
	return nil
}

// handler resolves the global handler function.
func (i *Instance) handler() (goja.Callable, error) {
	var v goja.Value
	if ex := i.vm.Try(func() {
		v = i.vm.Get(javascript.HandlerName)
	}); ex != nil {
		return nil, fmt.Errorf("%w: reading %s threw %s", ErrNoHandler, javascript.HandlerName, i.describe(ex.Value()))
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, ErrNoHandler
	}
	return fn, nil
}

// describe renders a script value for error messages.
func (i *Instance) describe(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	s := "<unprintable value>"
	i.vm.Try(func() {
		s = v.String()
	})
	return s
}
