// Package executor runs JavaScript handler functions in a
// function-as-a-service style.
//
// # Overview
//
// Handlers are deployed by name and invoked with a JSON request. Each
// invocation runs on its own engine instance, so no state leaks between
// invocations. Compiled handlers are cached, and a pool of bootstrapped
// instances is kept warm to keep invocation latency low.
//
// # Basic Usage
//
//	exec, err := executor.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	if err := exec.Deploy("echo", `async function handler(req) { return req }`); err != nil {
//	    log.Fatal(err)
//	}
//	result := exec.Invoke(ctx, "echo", []byte(`{"code":"hello run it"}`))
//	fmt.Println(string(result.JSON))
//
// One-off scripts can skip deployment:
//
//	result := exec.Run(ctx, source, []byte(`{}`))
//
// # Capabilities
//
// Handlers reach the host only through the file ops read_file, write_file
// and remove_file. Restrict them with mounts:
//
//	exec, _ := executor.New(
//	    executor.WithMount("/data", "./input", executor.MountReadOnly),
//	    executor.WithMount("/out", "./results", executor.MountReadWriteCreate),
//	    executor.WithFSMaxFileSize(1<<20),
//	)
//
// Additional ops can be bound with [WithOp].
package executor
