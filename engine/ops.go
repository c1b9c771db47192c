package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caffeineduck/gofaas/bridge"
	"github.com/caffeineduck/gofaas/hostfunc"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// hostOpErrorName is the Error name script code sees on failed host ops.
const hostOpErrorName = "HostOpError"

func (i *Instance) lookupOp(call goja.FunctionCall, mode hostfunc.Mode) (hostfunc.Decl, []any) {
	name := call.Argument(0).String()
	decl, ok := i.registry.Get(name)
	if !ok {
		panic(i.vm.NewTypeError("unknown host op %q", name))
	}
	if decl.Mode != mode {
		panic(i.vm.NewTypeError("host op %q is %s", name, decl.Mode))
	}

	var args []any
	if len(call.Arguments) > 1 {
		args = make([]any, len(call.Arguments)-1)
		for n, a := range call.Arguments[1:] {
			args[n] = a.Export()
		}
	}
	return decl, args
}

// opSync runs a sync op to completion and returns its result, throwing a
// HostOpError on failure.
func (i *Instance) opSync(call goja.FunctionCall) goja.Value {
	decl, args := i.lookupOp(call, hostfunc.Sync)

	i.loop.dispatched++
	v, err := decl.Func(i.ctx, args)
	if err != nil {
		i.log.Debug("host op failed", zap.String("op", decl.Name), zap.Error(err))
		panic(i.opErrorValue(decl.Name, err))
	}
	ev, err := bridge.ToEngine(i.vm, v)
	if err != nil {
		panic(i.vm.NewGoError(fmt.Errorf("%s result: %w", decl.Name, err)))
	}
	return ev
}

// opAsync starts an async op on its own goroutine and returns a promise
// that settles on the loop when the op completes.
func (i *Instance) opAsync(call goja.FunctionCall) goja.Value {
	decl, args := i.lookupOp(call, hostfunc.Async)

	p, resolve, reject := i.vm.NewPromise()
	ctx := i.ctx
	i.loop.begin()

	go func() {
		v, err := decl.Func(ctx, args)
		i.loop.post(func() error {
			if err != nil {
				i.log.Debug("host op failed", zap.String("op", decl.Name), zap.Error(err))
				return reject(i.opErrorValue(decl.Name, err))
			}
			ev, cerr := bridge.ToEngine(i.vm, v)
			if cerr != nil {
				return reject(i.vm.NewGoError(fmt.Errorf("%s result: %w", decl.Name, cerr)))
			}
			return resolve(ev)
		})
	}()

	return i.vm.ToValue(p)
}

// listOps describes the registered ops to the prelude.
func (i *Instance) listOps(goja.FunctionCall) goja.Value {
	names := i.registry.List()
	items := make([]any, 0, len(names))
	for _, name := range names {
		d, _ := i.registry.Get(name)
		obj := i.vm.NewObject()
		_ = obj.Set("name", d.Name)
		_ = obj.Set("mode", d.Mode.String())
		items = append(items, obj)
	}
	return i.vm.NewArray(items...)
}

// consoleLog receives console output from the prelude.
func (i *Instance) consoleLog(call goja.FunctionCall) goja.Value {
	level := call.Argument(0).String()
	msg := call.Argument(1).String()

	switch level {
	case "debug":
		i.log.Debug(msg, zap.String("source", "console"))
	case "warn":
		i.log.Warn(msg, zap.String("source", "console"))
	case "error":
		i.log.Error(msg, zap.String("source", "console"))
	default:
		i.log.Info(msg, zap.String("source", "console"))
	}

	if i.console != nil {
		line := msg
		if level != "info" {
			line = strings.ToUpper(level) + " " + msg
		}
		fmt.Fprintln(i.console, line)
	}
	return goja.Undefined()
}

// opErrorValue builds the Error object script code sees for a failed op.
func (i *Instance) opErrorValue(op string, err error) goja.Value {
	opErr := hostfunc.Wrap(op, "", err)

	obj, cerr := i.vm.New(i.errorCtor, i.vm.ToValue(opErr.Error()))
	if cerr != nil {
		return i.vm.ToValue(opErr.Error())
	}
	_ = obj.Set("name", hostOpErrorName)
	_ = obj.Set("kind", string(opErr.Kind))
	_ = obj.Set("op", opErr.Op)
	_ = obj.Set("path", opErr.Path)
	return obj
}

// opErrorFrom recovers the host op failure carried by a thrown or rejected
// script value, if any.
func (i *Instance) opErrorFrom(v goja.Value) (opErr *hostfunc.OpError, ok bool) {
	obj, isObject := v.(*goja.Object)
	if !isObject || obj.ClassName() != "Error" {
		return nil, false
	}
	// The value is script controlled; its getters may throw.
	if ex := i.vm.Try(func() {
		if stringProp(obj, "name") != hostOpErrorName {
			return
		}
		opErr = &hostfunc.OpError{
			Op:   stringProp(obj, "op"),
			Path: stringProp(obj, "path"),
			Kind: hostfunc.Kind(stringProp(obj, "kind")),
		}
		msg := stringProp(obj, "message")
		prefix := opErr.Op + ": "
		if opErr.Path != "" {
			prefix = opErr.Op + " " + opErr.Path + ": "
		}
		opErr.Err = errors.New(strings.TrimPrefix(msg, prefix))
	}); ex != nil {
		return nil, false
	}
	return opErr, opErr != nil
}

func stringProp(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
