// Package load provides convenience helpers for loading binary modules from
// files and readers.
package load

import (
	"bufio"
	"io"
	"os"

	"github.com/neri/wami/exec"
	"github.com/neri/wami/interpreter"
	"github.com/neri/wami/wasm"
	"github.com/neri/wami/wasm/validate"
)

// LoadModule decodes a binary module from r.
func LoadModule(r io.Reader) (*wasm.Module, error) {
	return wasm.DecodeModule(bufio.NewReader(r))
}

// LoadFile decodes a binary module from the file at the given path.
func LoadFile(path string) (*wasm.Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return LoadModule(f)
}

// Interpret validates the given module and wraps it in an interpreted module
// definition.
func Interpret(mod *wasm.Module) (exec.ModuleDefinition, error) {
	if err := validate.ValidateModule(mod, true); err != nil {
		return nil, err
	}
	return interpreter.NewModuleDefinition(mod), nil
}

// FSResolver resolves module names against a filesystem: the module name
// "env" resolves to the file "env.wasm" in the root.
type FSResolver struct {
	fs        fs
	interpret func(*wasm.Module) (exec.ModuleDefinition, error)
}

type fs interface {
	Open(name string) (io.ReadCloser, error)
}

type dirFS string

func (d dirFS) Open(name string) (io.ReadCloser, error) {
	return os.Open(string(d) + "/" + name)
}

// NewDirResolver creates a ModuleResolver that loads modules from .wasm files
// in the given directory.
func NewDirResolver(dir string) exec.ModuleResolver {
	return &FSResolver{fs: dirFS(dir), interpret: Interpret}
}

// ResolveModule resolves the given module name to a module definition.
func (r *FSResolver) ResolveModule(name string) (exec.ModuleDefinition, error) {
	f, err := r.fs.Open(name + ".wasm")
	if err != nil {
		return nil, exec.ErrModuleNotFound
	}
	defer f.Close()

	mod, err := LoadModule(f)
	if err != nil {
		return nil, err
	}
	return r.interpret(mod)
}
