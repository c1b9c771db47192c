package hostfunc

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinsDeclareFixedOpSet(t *testing.T) {
	registry, err := NewRegistry(Builtins()...)
	require.NoError(t, err)

	assert.Equal(t, []string{OpReadFile, OpRemoveFile, OpWriteFile}, registry.List())

	modes := map[string]Mode{
		OpReadFile:   Async,
		OpWriteFile:  Async,
		OpRemoveFile: Sync,
	}
	for name, want := range modes {
		d, ok := registry.Get(name)
		require.True(t, ok, name)
		assert.Equal(t, want, d.Mode, name)
		assert.True(t, IsBuiltin(name))
	}
	assert.False(t, IsBuiltin("exec"))
}

func TestRegistryFreeze(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	noop := func(ctx context.Context, args []any) (any, error) { return nil, nil }
	require.NoError(t, registry.Register(Decl{Name: "custom", Func: noop}))

	registry.Freeze()
	assert.True(t, registry.Frozen())

	err = registry.Register(Decl{Name: "late", Func: noop})
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	_, ok := registry.Get("late")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicatesAndEmpty(t *testing.T) {
	_, err := NewRegistry(append(Builtins(), Builtins()[0])...)
	assert.ErrorIs(t, err, ErrDuplicateOp)

	registry, _ := NewRegistry()
	assert.Error(t, registry.Register(Decl{Name: "nofunc"}))
	assert.Error(t, registry.Register(Decl{Func: func(ctx context.Context, args []any) (any, error) { return nil, nil }}))
}

func TestRegistriesAreIndependent(t *testing.T) {
	decls := Builtins()
	a, err := NewRegistry(decls...)
	require.NoError(t, err)
	b, err := NewRegistry(decls...)
	require.NoError(t, err)

	a.Freeze()
	require.NoError(t, b.Register(Decl{Name: "extra", Func: func(ctx context.Context, args []any) (any, error) { return 1, nil }}))

	_, ok := a.Get("extra")
	assert.False(t, ok)
	assert.False(t, b.Frozen())
}

func TestStringArg(t *testing.T) {
	s, err := StringArg("op", []any{"a", "b"}, 1, "second")
	require.NoError(t, err)
	assert.Equal(t, "b", s)

	_, err = StringArg("op", []any{"a"}, 1, "second")
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = StringArg("op", []any{42.0}, 0, "first")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"not exist", fs.ErrNotExist, KindNotFound},
		{"permission", fs.ErrPermission, KindPermissionDenied},
		{"policy denial", ErrPermissionDenied, KindPermissionDenied},
		{"wrapped", &fs.PathError{Op: "open", Path: "/x", Err: fs.ErrNotExist}, KindNotFound},
		{"other", errors.New("disk on fire"), KindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestOpErrorMessage(t *testing.T) {
	err := newOpError(OpRemoveFile, "/tmp/x", fs.ErrNotExist)
	assert.Equal(t, "remove_file /tmp/x: file does not exist", err.Error())
	assert.Equal(t, KindNotFound, err.Kind)

	// Already-classified errors pass through unchanged
	assert.Same(t, err, newOpError(OpReadFile, "/other", err))
}
