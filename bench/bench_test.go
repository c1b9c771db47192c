// Package bench provides benchmarks comparing the ways gofaas can run a
// handler, plus a native node baseline when one is installed.
//
// Run with: go test -v -run=Test ./bench/
// Benchmarks: go test -bench=. -benchtime=3x ./bench/
package bench

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/caffeineduck/gofaas"
	"github.com/caffeineduck/gofaas/bridge"
	"github.com/caffeineduck/gofaas/engine"
	"github.com/caffeineduck/gofaas/executor"
	"github.com/dop251/goja"
)

const (
	identity    = `function handler(req) { return req }`
	computation = `function handler(req) { let s = 0; for (let i = 0; i < req.n; i++) s += i * i; return s }`
	request     = `{"code":"hello run it","n":1000}`
)

// --- Cold start: bootstrap, load and invoke every time ---

func BenchmarkGofaas_ColdStart(b *testing.B) {
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		if _, err := gofaas.Invoke(ctx, identity, []byte(request)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEngine_Bootstrap(b *testing.B) {
	for i := 0; i < b.N; i++ {
		inst, err := engine.Bootstrap()
		if err != nil {
			b.Fatal(err)
		}
		inst.Close()
	}
}

// --- Warm start: pooled instances, compiled on every call ---

func BenchmarkGofaas_WarmRun(b *testing.B) {
	e, _ := executor.New()
	defer e.Close()
	ctx := context.Background()

	e.Run(ctx, identity, []byte(request)) // warmup

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Run(ctx, identity, []byte(request))
	}
}

// --- Deployed: pooled instances, compiled once ---

func BenchmarkGofaas_Deployed(b *testing.B) {
	e, _ := executor.New()
	defer e.Close()
	ctx := context.Background()
	e.Deploy("identity", identity)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Invoke(ctx, "identity", []byte(request))
	}
}

func BenchmarkGofaas_Deployed_Computation(b *testing.B) {
	e, _ := executor.New()
	defer e.Close()
	ctx := context.Background()
	e.Deploy("computation", computation)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Invoke(ctx, "computation", []byte(request))
	}
}

func BenchmarkGofaas_Deployed_HostOps(b *testing.B) {
	dir := b.TempDir()
	e, _ := executor.New(executor.WithMount("/work", dir, executor.MountReadWriteCreate))
	defer e.Close()
	ctx := context.Background()
	e.Deploy("ops", `async function handler(req) {
		await write_file("/work/f.txt", req.code);
		return await read_file("/work/f.txt");
	}`)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Invoke(ctx, "ops", []byte(request))
	}
}

func BenchmarkGofaas_Deployed_Parallel(b *testing.B) {
	e, _ := executor.New(executor.WithPoolSize(runtime.NumCPU()))
	defer e.Close()
	e.Deploy("identity", identity)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		ctx := context.Background()
		for pb.Next() {
			e.Invoke(ctx, "identity", []byte(request))
		}
	})
}

// --- Value bridge ---

func BenchmarkBridge_RoundTrip(b *testing.B) {
	vm := goja.New()
	v, err := bridge.Decode([]byte(`{"items":[1,2,3,{"nested":true}],"name":"n","meta":{"a":null,"b":"x"}}`))
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ev, _ := bridge.ToEngine(vm, v)
		back, _ := bridge.FromEngine(vm, ev)
		bridge.Encode(back)
	}
}

// --- Native node baseline (if available) ---

func BenchmarkNative_Node(b *testing.B) {
	if _, err := exec.LookPath("node"); err != nil {
		b.Skip("node not available")
	}
	for i := 0; i < b.N; i++ {
		exec.Command("node", "-e", "JSON.stringify(JSON.parse(process.argv[1]))", request).Run()
	}
}

// =============================================================================
// COMPARISON TEST - Human readable output
// =============================================================================

func TestComparison(t *testing.T) {
	fmt.Println()
	fmt.Println("=== gofaas invocation paths ===")
	fmt.Printf("Platform: %s/%s, CPUs: %d\n", runtime.GOOS, runtime.GOARCH, runtime.NumCPU())
	fmt.Println()

	measure := func(runs int, fn func()) time.Duration {
		var total time.Duration
		for i := 0; i < runs; i++ {
			start := time.Now()
			fn()
			total += time.Since(start)
		}
		return total / time.Duration(runs)
	}

	ctx := context.Background()
	runs := 20

	cold := measure(runs, func() {
		gofaas.Invoke(ctx, identity, []byte(request))
	})

	e, err := executor.New()
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if err := e.Deploy("identity", identity); err != nil {
		t.Fatal(err)
	}
	warm := measure(runs, func() {
		e.Run(ctx, identity, []byte(request))
	})
	deployed := measure(runs, func() {
		e.Invoke(ctx, "identity", []byte(request))
	})

	fmt.Printf("%-28s %10s\n", "path", "per call")
	fmt.Printf("%-28s %10s\n", "gofaas.Invoke (cold)", formatDuration(cold))
	fmt.Printf("%-28s %10s\n", "Executor.Run (warm pool)", formatDuration(warm))
	fmt.Printf("%-28s %10s\n", "Executor.Invoke (deployed)", formatDuration(deployed))

	if _, err := exec.LookPath("node"); err == nil {
		node := measure(3, func() {
			exec.Command("node", "-e", "0").Run()
		})
		fmt.Printf("%-28s %10s\n", "node process", formatDuration(node))
	}
	fmt.Println()

	t.Log("Comparison complete - see stdout for results")
}

func formatDuration(d time.Duration) string {
	if d >= time.Millisecond {
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%dµs", d.Microseconds())
}

// =============================================================================
// MEMORY BENCHMARK
// =============================================================================

func TestMemoryUsage(t *testing.T) {
	var m runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&m)
	before := m.Alloc

	e, _ := executor.New()
	e.Deploy("identity", identity)

	for i := 0; i < 50; i++ {
		e.Invoke(context.Background(), "identity", []byte(request))
	}

	runtime.ReadMemStats(&m)
	after := m.Alloc

	e.Close()

	runtime.GC()
	runtime.ReadMemStats(&m)
	afterGC := m.Alloc

	t.Logf("Memory before: %d KB", before/1024)
	t.Logf("Memory after 50 invocations: %d KB", after/1024)
	t.Logf("Memory after GC: %d KB", afterGC/1024)
}

// =============================================================================
// WARM POOL BENEFIT
// =============================================================================

func TestWarmPoolBenefit(t *testing.T) {
	ctx := context.Background()

	for _, size := range []int{0, 4} {
		e, err := executor.New(executor.WithPoolSize(size))
		if err != nil {
			t.Fatal(err)
		}
		e.Deploy("identity", identity)

		var total time.Duration
		for i := 0; i < 20; i++ {
			// Let the pool refill between calls.
			time.Sleep(time.Millisecond)
			res := e.Invoke(ctx, "identity", []byte(request))
			if res.Error != nil {
				t.Fatal(res.Error)
			}
			total += res.Duration
		}
		e.Close()

		fmt.Printf("pool size %d: %v per invocation\n", size, total/20)
	}
}
