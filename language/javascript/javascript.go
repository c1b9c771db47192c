// Package javascript holds the guest-side half of the runtime: the prelude
// evaluated into every engine instance and the file conventions for handler
// sources.
package javascript

import (
	_ "embed"
	"path/filepath"
	"strings"
)

//go:embed prelude.js
var prelude string

// PreludeName is the script name the prelude is compiled under. It shows up
// in stack traces.
const PreludeName = "gofaas:prelude.js"

// HandlerName is the global every handler script must define.
const HandlerName = "handler"

// JavaScript describes the JavaScript guest language.
type JavaScript struct{}

// New returns a JavaScript language adapter.
func New() *JavaScript {
	return &JavaScript{}
}

// Name returns "javascript".
func (j *JavaScript) Name() string {
	return "javascript"
}

// Prelude returns the bootstrap script. It expects a global __host
// dispatcher, binds the capability ops and console on top of it, and removes
// __host before user code runs.
func (j *JavaScript) Prelude() string {
	return prelude
}

// Extensions lists the file extensions treated as handler sources.
func (j *JavaScript) Extensions() []string {
	return []string{".js", ".cjs"}
}

// Matches reports whether path looks like a handler source file.
func (j *JavaScript) Matches(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range j.Extensions() {
		if ext == e {
			return true
		}
	}
	return false
}

// FunctionName derives a function name from a handler file path:
// "fns/hello.js" becomes "hello".
func (j *JavaScript) FunctionName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
