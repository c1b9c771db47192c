package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MountMode defines the permission level for a mount point.
type MountMode int

const (
	// MountReadOnly allows only read operations.
	MountReadOnly MountMode = iota
	// MountReadWrite allows read and write operations to existing files.
	MountReadWrite
	// MountReadWriteCreate allows read, write, and create operations.
	MountReadWriteCreate
)

func (m MountMode) String() string {
	switch m {
	case MountReadOnly:
		return "ro"
	case MountReadWrite:
		return "rw"
	case MountReadWriteCreate:
		return "rwc"
	default:
		return "unknown"
	}
}

// ParseMountMode parses "ro", "rw" or "rwc".
func ParseMountMode(s string) (MountMode, error) {
	switch s {
	case "ro":
		return MountReadOnly, nil
	case "rw":
		return MountReadWrite, nil
	case "rwc":
		return MountReadWriteCreate, nil
	default:
		return 0, fmt.Errorf("invalid mount mode %q (expected ro, rw, or rwc)", s)
	}
}

// Mount represents a virtual path mapped to a host path with specific permissions.
type Mount struct {
	VirtualPath string    // Path as seen by script code (e.g., "/data")
	HostPath    string    // Actual path on host filesystem
	Mode        MountMode // Permission level
}

// PathPolicy decides whether script code may touch a path and maps it to
// the host path actually used. The file ops enforce nothing themselves; a
// policy is the embedder's sandbox.
type PathPolicy interface {
	Resolve(path string, access Access) (string, error)
}

// MountPolicy is a PathPolicy that only exposes explicitly mounted
// directories.
type MountPolicy struct {
	mounts []Mount
}

// NewMountPolicy normalizes the given mounts. Mounts whose host path cannot
// be made absolute are dropped.
func NewMountPolicy(mounts ...Mount) *MountPolicy {
	normalized := make([]Mount, 0, len(mounts))
	for _, m := range mounts {
		hp, err := filepath.Abs(m.HostPath)
		if err != nil {
			continue
		}
		normalized = append(normalized, Mount{
			VirtualPath: "/" + strings.Trim(m.VirtualPath, "/"),
			HostPath:    hp,
			Mode:        m.Mode,
		})
	}
	return &MountPolicy{mounts: normalized}
}

func (p *MountPolicy) Mounts() []Mount {
	out := make([]Mount, len(p.mounts))
	copy(out, p.mounts)
	return out
}

// Resolve maps a virtual path to a host path, checking permissions.
func (p *MountPolicy) Resolve(virtualPath string, access Access) (string, error) {
	vp := filepath.Clean("/" + strings.TrimPrefix(virtualPath, "/"))

	for _, m := range p.mounts {
		if vp != m.VirtualPath && !strings.HasPrefix(vp, m.VirtualPath+"/") && m.VirtualPath != "/" {
			continue
		}

		hostPath := filepath.Join(m.HostPath, strings.TrimPrefix(vp, m.VirtualPath))
		rel, err := filepath.Rel(m.HostPath, hostPath)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: path escape attempt", ErrPermissionDenied)
		}

		switch access {
		case AccessRead:
		case AccessRemove:
			if m.Mode == MountReadOnly {
				return "", fmt.Errorf("%w: read-only mount", ErrPermissionDenied)
			}
		case AccessWrite:
			if m.Mode == MountReadOnly {
				return "", fmt.Errorf("%w: read-only mount", ErrPermissionDenied)
			}
			if _, statErr := os.Stat(hostPath); errors.Is(statErr, os.ErrNotExist) && m.Mode != MountReadWriteCreate {
				return "", fmt.Errorf("%w: cannot create new files", ErrPermissionDenied)
			}
		}
		return hostPath, nil
	}

	return "", fmt.Errorf("%w: path not in any mount", ErrPermissionDenied)
}

// FileOps implements the builtin file capability ops.
type FileOps struct {
	policy        PathPolicy
	maxFileSize   int64
	maxWriteSize  int64
	maxPathLength int
}

// FSOption configures FileOps.
type FSOption func(*FileOps)

// WithPolicy routes every path through p before touching the filesystem.
func WithPolicy(p PathPolicy) FSOption {
	return func(f *FileOps) {
		f.policy = p
	}
}

// WithMaxFileSize limits how many bytes read_file returns. Zero means no limit.
func WithMaxFileSize(size int64) FSOption {
	return func(f *FileOps) {
		f.maxFileSize = size
	}
}

// WithMaxWriteSize limits the contents accepted by write_file. Zero means no limit.
func WithMaxWriteSize(size int64) FSOption {
	return func(f *FileOps) {
		f.maxWriteSize = size
	}
}

// WithMaxPathLength limits path arguments. Zero means no limit.
func WithMaxPathLength(length int) FSOption {
	return func(f *FileOps) {
		f.maxPathLength = length
	}
}

// NewFileOps returns file ops with no policy and no limits unless
// configured otherwise.
func NewFileOps(opts ...FSOption) *FileOps {
	f := &FileOps{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FileOps) resolve(path string, access Access) (string, error) {
	if f.maxPathLength > 0 && len(path) > f.maxPathLength {
		return "", fmt.Errorf("%w: path exceeds %d bytes", ErrInvalidArgument, f.maxPathLength)
	}
	if f.policy == nil {
		return path, nil
	}
	return f.policy.Resolve(path, access)
}

// ReadFile returns the full textual contents of path.
func (f *FileOps) ReadFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newOpError(OpReadFile, path, err)
	}
	hostPath, err := f.resolve(path, AccessRead)
	if err != nil {
		return "", newOpError(OpReadFile, path, err)
	}

	file, err := os.Open(hostPath)
	if err != nil {
		return "", newOpError(OpReadFile, path, err)
	}
	defer file.Close()

	var r io.Reader = file
	if f.maxFileSize > 0 {
		r = io.LimitReader(file, f.maxFileSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", newOpError(OpReadFile, path, err)
	}
	if f.maxFileSize > 0 && int64(len(data)) > f.maxFileSize {
		return "", newOpError(OpReadFile, path, fmt.Errorf("%w: file exceeds %d bytes", ErrTooLarge, f.maxFileSize))
	}
	return string(data), nil
}

// WriteFile creates or truncates path and writes contents to it. A failed
// write may leave a partially written file behind.
func (f *FileOps) WriteFile(ctx context.Context, path, contents string) error {
	if err := ctx.Err(); err != nil {
		return newOpError(OpWriteFile, path, err)
	}
	if f.maxWriteSize > 0 && int64(len(contents)) > f.maxWriteSize {
		return newOpError(OpWriteFile, path, fmt.Errorf("%w: content exceeds %d bytes", ErrTooLarge, f.maxWriteSize))
	}
	hostPath, err := f.resolve(path, AccessWrite)
	if err != nil {
		return newOpError(OpWriteFile, path, err)
	}
	if err := os.WriteFile(hostPath, []byte(contents), 0o644); err != nil {
		return newOpError(OpWriteFile, path, err)
	}
	return nil
}

// RemoveFile deletes path.
func (f *FileOps) RemoveFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return newOpError(OpRemoveFile, path, err)
	}
	hostPath, err := f.resolve(path, AccessRemove)
	if err != nil {
		return newOpError(OpRemoveFile, path, err)
	}
	if err := os.Remove(hostPath); err != nil {
		return newOpError(OpRemoveFile, path, err)
	}
	return nil
}

// Decls returns the declarations of the builtin file ops bound to f.
func (f *FileOps) Decls() []Decl {
	return []Decl{
		{
			Name: OpReadFile,
			Mode: Async,
			Func: func(ctx context.Context, args []any) (any, error) {
				path, err := StringArg(OpReadFile, args, 0, "path")
				if err != nil {
					return nil, err
				}
				return f.ReadFile(ctx, path)
			},
		},
		{
			Name: OpWriteFile,
			Mode: Async,
			Func: func(ctx context.Context, args []any) (any, error) {
				path, err := StringArg(OpWriteFile, args, 0, "path")
				if err != nil {
					return nil, err
				}
				contents, err := StringArg(OpWriteFile, args, 1, "contents")
				if err != nil {
					return nil, err
				}
				return nil, f.WriteFile(ctx, path, contents)
			},
		},
		{
			Name: OpRemoveFile,
			Mode: Sync,
			Func: func(ctx context.Context, args []any) (any, error) {
				path, err := StringArg(OpRemoveFile, args, 0, "path")
				if err != nil {
					return nil, err
				}
				return nil, f.RemoveFile(ctx, path)
			},
		},
	}
}

// Builtins returns the declarations of the builtin ops with default file
// ops: no policy, no limits.
func Builtins() []Decl {
	return NewFileOps().Decls()
}

// IsBuiltin reports whether name is one of the builtin op names.
func IsBuiltin(name string) bool {
	switch name {
	case OpReadFile, OpWriteFile, OpRemoveFile:
		return true
	}
	return false
}

// StringArg returns args[i] as a string.
func StringArg(op string, args []any, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("%s: %w: %s required", op, ErrInvalidArgument, name)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s: %w: %s must be a string", op, ErrInvalidArgument, name)
	}
	return s, nil
}
