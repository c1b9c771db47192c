package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/caffeineduck/gofaas/bridge"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var promiseType = reflect.TypeOf((*goja.Promise)(nil))

// Result is the outcome of a successful invocation.
type Result struct {
	// Value is the handler's settled return value.
	Value bridge.Value
	// Ops counts the host ops the script dispatched.
	Ops      int
	Duration time.Duration
}

// JSON renders Value as JSON text.
func (r Result) JSON() (json.RawMessage, error) {
	return bridge.Encode(r.Value)
}

// Invoke calls the loaded handler with the request decoded from
// requestJSON and waits for the result. It returns once the handler's
// return value has settled and all host ops started during the call have
// completed. The instance is spent afterwards, or poisoned on failure.
//
// ctx bounds the whole call. When it is done the runtime is interrupted and
// Invoke fails with KindCanceled.
func (i *Instance) Invoke(ctx context.Context, requestJSON []byte) (Result, error) {
	start := time.Now()
	if err := i.begin(ctx, StateLoaded); err != nil {
		return Result{}, err
	}

	v, err := i.invoke(ctx, requestJSON)
	res := Result{Ops: i.loop.dispatched, Duration: time.Since(start)}
	if err != nil {
		i.log.Debug("invocation failed", zap.Error(err), zap.Duration("duration", res.Duration))
		i.end(StatePoisoned)
		return res, err
	}

	res.Value = v
	i.log.Debug("invocation complete", zap.Int("ops", res.Ops), zap.Duration("duration", res.Duration))
	i.end(StateSpent)
	return res, nil
}

func (i *Instance) invoke(ctx context.Context, requestJSON []byte) (out bridge.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, i.scriptErr(ctx, KindException, panicCause(r))
		}
	}()

	req, err := bridge.Decode(requestJSON)
	if err != nil {
		return nil, i.fail(KindMarshal, fmt.Sprintf("request: %v", err), err)
	}

	stop := i.interruptOn(ctx)
	defer stop()

	arg, err := bridge.ToEngine(i.vm, req)
	if err != nil {
		return nil, i.fail(KindMarshal, fmt.Sprintf("request: %v", err), err)
	}
	fn, err := i.handler()
	if err != nil {
		return nil, i.fail(KindNoHandler, err.Error(), err)
	}

	ret, err := fn(goja.Undefined(), arg)
	if err != nil {
		return nil, i.scriptErr(ctx, KindException, err)
	}

	promise, err := i.promiseOf(ret)
	if err != nil {
		return nil, i.scriptErr(ctx, KindException, err)
	}

	settled := func() bool {
		return promise == nil || promise.State() != goja.PromiseStatePending
	}
	if err := i.loop.run(ctx, settled); err != nil {
		if errors.Is(err, errStalled) {
			return nil, i.fail(KindStalled, err.Error(), err)
		}
		return nil, i.scriptErr(ctx, KindException, err)
	}

	if promise != nil {
		if promise.State() == goja.PromiseStateRejected {
			return nil, i.thrown(KindRejection, promise.Result(), nil)
		}
		ret = promise.Result()
	}
	if rejected := i.loop.unhandled(promise); rejected != nil {
		return nil, i.thrown(KindUnhandledRejection, rejected.Result(), nil)
	}

	out, err = bridge.FromEngine(i.vm, ret)
	if err != nil {
		if ctx.Err() != nil {
			// toJSON was interrupted.
			return nil, i.scriptErr(ctx, KindMarshal, err)
		}
		return nil, i.fail(KindMarshal, err.Error(), err)
	}
	return out, nil
}

// panicCause converts a value recovered from the runtime into an error. goja
// re-panics an interrupt raised while script code runs under vm.Try, such
// as a getter or toString called from Go.
func panicCause(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}

// promiseOf returns the promise v settles through, or nil when v is a plain
// value. Foreign thenables are adopted with the Promise.resolve captured at
// bootstrap.
func (i *Instance) promiseOf(v goja.Value) (*goja.Promise, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, nil
	}
	if obj.ExportType() == promiseType {
		p, _ := obj.Export().(*goja.Promise)
		return p, nil
	}

	var thenable bool
	if ex := i.vm.Try(func() {
		_, thenable = goja.AssertFunction(obj.Get("then"))
	}); ex != nil {
		return nil, ex
	}
	if !thenable {
		return nil, nil
	}

	adopted, err := i.promiseResolve(i.promiseCtor, obj)
	if err != nil {
		return nil, err
	}
	p, _ := adopted.Export().(*goja.Promise)
	return p, nil
}

func (i *Instance) fail(kind Kind, msg string, err error) *InvokeError {
	return &InvokeError{Function: i.Name(), Kind: kind, Message: msg, Err: err}
}

// thrown builds the error for a script value that was thrown or used as a
// rejection reason.
func (i *Instance) thrown(kind Kind, v goja.Value, err error) *InvokeError {
	ie := i.fail(kind, i.describe(v), err)
	if opErr, ok := i.opErrorFrom(v); ok {
		ie.OpKind = opErr.Kind
		ie.Err = opErr
	}
	return ie
}

// scriptErr classifies an error returned by the runtime.
func (i *Instance) scriptErr(ctx context.Context, kind Kind, err error) *InvokeError {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) || ctx.Err() != nil {
		cause := ctx.Err()
		if cause == nil {
			cause = err
		}
		return i.fail(KindCanceled, cause.Error(), cause)
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		return i.thrown(kind, ex.Value(), ex)
	}
	return i.fail(kind, err.Error(), err)
}
