package hostfunc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileOpsWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	ops := NewFileOps()
	ctx := context.Background()

	if err := ops.WriteFile(ctx, path, "x"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	content, err := ops.ReadFile(ctx, path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if content != "x" {
		t.Errorf("expected 'x', got %q", content)
	}

	// Truncates on overwrite
	if err := ops.WriteFile(ctx, path, ""); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if len(data) != 0 {
		t.Errorf("expected empty file, got %q", data)
	}
}

func TestFileOpsReadMissing(t *testing.T) {
	ops := NewFileOps()
	_, err := ops.ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	if err == nil {
		t.Fatal("expected error")
	}

	opErr, ok := AsOpError(err)
	if !ok {
		t.Fatalf("expected *OpError, got %T", err)
	}
	if opErr.Kind != KindNotFound {
		t.Errorf("expected NotFound, got %s", opErr.Kind)
	}
	if opErr.Op != OpReadFile {
		t.Errorf("expected op %q, got %q", OpReadFile, opErr.Op)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound)")
	}
}

func TestFileOpsRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.txt")
	os.WriteFile(path, []byte("bye"), 0644)

	ops := NewFileOps()
	ctx := context.Background()

	if err := ops.RemoveFile(ctx, path); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file to be removed")
	}

	err := ops.RemoveFile(ctx, path)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected NotFound on second remove, got %v", err)
	}
}

func TestFileOpsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileOps().ReadFile(ctx, filepath.Join(t.TempDir(), "a.txt"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFileOpsLimits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.txt")
	os.WriteFile(path, []byte(strings.Repeat("a", 100)), 0644)
	ctx := context.Background()

	ops := NewFileOps(WithMaxFileSize(10), WithMaxWriteSize(10), WithMaxPathLength(len(path)))

	if _, err := ops.ReadFile(ctx, path); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge on read, got %v", err)
	}
	if err := ops.WriteFile(ctx, path, strings.Repeat("b", 11)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("expected ErrTooLarge on write, got %v", err)
	}
	if err := ops.WriteFile(ctx, path+"x", "ok"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for long path, got %v", err)
	}

	// Limits at exactly the boundary are fine
	os.WriteFile(path, []byte(strings.Repeat("a", 10)), 0644)
	if _, err := ops.ReadFile(ctx, path); err != nil {
		t.Errorf("read at limit failed: %v", err)
	}
}

func TestMountReadOnly(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("hello world"), 0644)

	ops := NewFileOps(WithPolicy(NewMountPolicy(Mount{
		VirtualPath: "/data",
		HostPath:    dir,
		Mode:        MountReadOnly,
	})))
	ctx := context.Background()

	content, err := ops.ReadFile(ctx, "/data/test.txt")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if content != "hello world" {
		t.Errorf("expected 'hello world', got %q", content)
	}

	err = ops.WriteFile(ctx, "/data/test.txt", "modified")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected permission denied on read-only mount, got %v", err)
	}
	err = ops.RemoveFile(ctx, "/data/test.txt")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected permission denied on remove, got %v", err)
	}
}

func TestMountReadWrite(t *testing.T) {
	dir := t.TempDir()
	testFile := filepath.Join(dir, "test.txt")
	os.WriteFile(testFile, []byte("original"), 0644)

	ops := NewFileOps(WithPolicy(NewMountPolicy(Mount{
		VirtualPath: "/output",
		HostPath:    dir,
		Mode:        MountReadWrite,
	})))
	ctx := context.Background()

	if err := ops.WriteFile(ctx, "/output/test.txt", "modified"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	content, _ := os.ReadFile(testFile)
	if string(content) != "modified" {
		t.Errorf("expected 'modified', got %q", content)
	}

	err := ops.WriteFile(ctx, "/output/new.txt", "new")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("expected creating new file to fail on MountReadWrite, got %v", err)
	}
}

func TestMountReadWriteCreate(t *testing.T) {
	dir := t.TempDir()

	ops := NewFileOps(WithPolicy(NewMountPolicy(Mount{
		VirtualPath: "/workspace",
		HostPath:    dir,
		Mode:        MountReadWriteCreate,
	})))
	ctx := context.Background()

	if err := ops.WriteFile(ctx, "/workspace/new.txt", "created"); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	content, _ := os.ReadFile(filepath.Join(dir, "new.txt"))
	if string(content) != "created" {
		t.Errorf("expected 'created', got %q", content)
	}
	if err := ops.RemoveFile(ctx, "/workspace/new.txt"); err != nil {
		t.Errorf("remove failed: %v", err)
	}
}

func TestMountPathEscape(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "inner")
	os.Mkdir(dir, 0755)
	os.WriteFile(filepath.Join(root, "secret.txt"), []byte("secret"), 0644)

	policy := NewMountPolicy(Mount{VirtualPath: "/data", HostPath: dir, Mode: MountReadOnly})

	attacks := []string{
		"/data/../secret.txt",
		"/data/../../etc/passwd",
		"../secret.txt",
		"/other/secret.txt",
	}
	for _, path := range attacks {
		hostPath, err := policy.Resolve(path, AccessRead)
		if err == nil {
			t.Errorf("expected %q to be denied, resolved to %q", path, hostPath)
			continue
		}
		if Classify(err) != KindPermissionDenied {
			t.Errorf("expected PermissionDenied for %q, got %v", path, err)
		}
	}
}

func TestMountPrefixIsNotAMatch(t *testing.T) {
	dir := t.TempDir()
	policy := NewMountPolicy(Mount{VirtualPath: "/data", HostPath: dir, Mode: MountReadOnly})

	if _, err := policy.Resolve("/database/x", AccessRead); err == nil {
		t.Error("expected /database to not match the /data mount")
	}
}

func TestParseMountMode(t *testing.T) {
	for _, mode := range []MountMode{MountReadOnly, MountReadWrite, MountReadWriteCreate} {
		parsed, err := ParseMountMode(mode.String())
		if err != nil {
			t.Fatalf("parse %q: %v", mode, err)
		}
		if parsed != mode {
			t.Errorf("expected %v, got %v", mode, parsed)
		}
	}
	if _, err := ParseMountMode("rx"); err == nil {
		t.Error("expected error for invalid mode")
	}
}
