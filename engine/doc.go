// Package engine embeds the JavaScript engine and runs handler invocations
// on it.
//
// An Instance owns one engine runtime. It is bootstrapped with the prelude
// and the host capability ops, loads one handler script, and serves exactly
// one invocation:
//
//	inst, err := engine.Bootstrap()
//	if err != nil {
//		return err
//	}
//	defer inst.Close()
//
//	if err := inst.Load(ctx, `async function handler(req) { return req }`); err != nil {
//		return err
//	}
//	res, err := inst.Invoke(ctx, []byte(`{"code":"hello run it"}`))
//
// Invoke does not return until the handler's result has settled and every
// host op the script started has completed. Any failure poisons the
// instance; callers discard it and bootstrap a new one.
package engine
