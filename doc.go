// Package gofaas runs short-lived JavaScript handler functions inside an
// embedded engine, function-as-a-service style.
//
// # Overview
//
// A handler is a classic script that defines a global function named
// handler. Each invocation gets a fresh engine instance: the request JSON
// is decoded and passed to handler, and once its return value has settled
// and every host op it started has completed, the value is encoded back to
// JSON.
//
// Handlers reach the host only through three file ops: read_file and
// write_file return promises, remove_file is synchronous. The same ops are
// available on the runjs namespace, and console output goes to the host
// logger.
//
// # Basic Usage
//
//	out, err := gofaas.Invoke(ctx, `
//	    async function handler(req) {
//	        await write_file("/tmp/greeting", req.name);
//	        return { greeting: "hello " + await read_file("/tmp/greeting") };
//	    }`, []byte(`{"name":"world"}`))
//	fmt.Println(string(out)) // {"greeting":"hello world"}
//
// # Long-lived Services
//
//	exec, _ := executor.New(executor.WithMount("/data", "./data", executor.MountReadOnly))
//	defer exec.Close()
//
//	exec.Deploy("greet", source)
//	result := exec.Invoke(ctx, "greet", []byte(`{"name":"world"}`))
//	fmt.Println(string(result.JSON))
//
// See the [executor], [engine], [bridge], and [hostfunc] packages for
// detailed API documentation.
package gofaas
