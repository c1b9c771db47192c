package gofaas_test

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/caffeineduck/gofaas"
	"github.com/caffeineduck/gofaas/engine"
	"github.com/caffeineduck/gofaas/hostfunc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeIdentity(t *testing.T) {
	out, err := gofaas.Invoke(context.Background(),
		`function handler(req) { return req }`,
		[]byte(`{"code":"hello run it"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"code":"hello run it"}`, string(out))
}

func TestInvokeWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	src := `async function handler(req) {
		await write_file(req.path, "x");
		return await read_file(req.path);
	}`

	out, err := gofaas.Invoke(context.Background(), src, []byte(`{"path":`+strconv.Quote(path)+`}`))
	require.NoError(t, err)
	assert.Equal(t, `"x"`, string(out))
}

func TestInvokeErrors(t *testing.T) {
	ctx := context.Background()

	_, err := gofaas.Invoke(ctx, `function handler( {`, []byte(`{}`))
	assert.ErrorIs(t, err, engine.ErrLoad)

	_, err = gofaas.Invoke(ctx, `const x = 1`, []byte(`{}`))
	assert.ErrorIs(t, err, engine.ErrNoHandler)

	_, err = gofaas.Invoke(ctx, `function handler() { throw new Error("boom") }`, []byte(`{}`))
	ie, ok := engine.AsInvokeError(err)
	require.True(t, ok, "expected *InvokeError, got %v", err)
	assert.Equal(t, engine.KindException, ie.Kind)
	assert.Contains(t, ie.Message, "boom")
}

func TestInvokeWithPolicy(t *testing.T) {
	dir := t.TempDir()
	policy := hostfunc.NewMountPolicy(hostfunc.Mount{VirtualPath: "/data", HostPath: dir, Mode: hostfunc.MountReadOnly})

	_, err := gofaas.Invoke(context.Background(),
		`async function handler() { await write_file("/data/out.txt", "x") }`,
		[]byte(`null`), engine.WithPolicy(policy))

	ie, ok := engine.AsInvokeError(err)
	require.True(t, ok, "expected *InvokeError, got %v", err)
	assert.Equal(t, hostfunc.KindPermissionDenied, ie.OpKind)
	assert.True(t, errors.Is(err, hostfunc.ErrPermissionDenied))
}
