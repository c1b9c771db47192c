// Package hostfunc provides the host capability ops exposed to script code.
//
// Host ops are Go functions that script code running inside an engine
// instance can call by name. The set is deliberately narrow: instead of a
// filesystem API, script code gets three named file operations.
//
// # Declarations and Registry
//
// A [Decl] names an op, declares whether it completes synchronously or
// asynchronously, and carries its implementation. Each engine instance owns
// its own [Registry], built from a shared declaration list and frozen once
// bootstrap completes:
//
//	registry, _ := hostfunc.NewRegistry(hostfunc.Builtins()...)
//	registry.Freeze()
//
// # Builtin Ops
//
//	read_file(path)            async, resolves to the file contents
//	write_file(path, contents) async, creates or truncates
//	remove_file(path)          sync, throws on failure
//
// Failures are reported as [*OpError] with a [Kind] of NotFound,
// PermissionDenied or Other.
//
// # Path Policy
//
// The ops enforce no sandboxing on their own. An embedder that needs one
// supplies a [PathPolicy]; [MountPolicy] maps virtual paths onto explicitly
// mounted host directories:
//
//	ops := hostfunc.NewFileOps(hostfunc.WithPolicy(hostfunc.NewMountPolicy(
//	    hostfunc.Mount{VirtualPath: "/data", HostPath: "./input", Mode: hostfunc.MountReadOnly},
//	)))
package hostfunc
