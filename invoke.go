package gofaas

import (
	"context"
	"encoding/json"

	"github.com/caffeineduck/gofaas/engine"
)

// Invoke bootstraps a fresh engine instance, loads handlerSource into it
// and calls its handler with requestJSON. The instance is discarded
// afterwards whatever the outcome.
//
// Failures are *engine.BootstrapError, *engine.LoadError or
// *engine.InvokeError. opts configure the instance, e.g. engine.WithPolicy
// to confine the file ops.
func Invoke(ctx context.Context, handlerSource string, requestJSON []byte, opts ...engine.Option) (json.RawMessage, error) {
	inst, err := engine.Bootstrap(opts...)
	if err != nil {
		return nil, err
	}
	defer inst.Close()

	if err := inst.Load(ctx, handlerSource); err != nil {
		return nil, err
	}

	res, err := inst.Invoke(ctx, requestJSON)
	if err != nil {
		return nil, err
	}
	return res.JSON()
}
