package exec

import (
	"errors"
	"fmt"

	"github.com/neri/wami/wasm"
)

// ErrDataSegmentDoesNotFit is returned by Instantiate if a data segment attempts to write outside of
// its target memory's bounds.
var ErrDataSegmentDoesNotFit = fmt.Errorf("data segment does not fit: %w", TrapOutOfBoundsMemoryInit)

// ErrElementSegmentDoesNotFit is returned by Instantiate if an element segment attempts to write outside
// of its target table's bounds.
var ErrElementSegmentDoesNotFit = fmt.Errorf("element segment does not fit: %w", TrapOutOfBoundsTableInit)

// ErrInvalidTypeIndex is returned by Instantiate if the module's imports contain an invalid type index.
var ErrInvalidTypeIndex = errors.New("invalid type index")

type InvalidTableIndexError uint32

func (e InvalidTableIndexError) Error() string {
	return fmt.Sprintf("wasm: invalid table to table index space: %d", uint32(e))
}

// An ExportNotFoundError is returned when a named export could not be found.
type ExportNotFoundError struct {
	ModuleName string
	FieldName  string
}

func (e *ExportNotFoundError) Error() string {
	return fmt.Sprintf("wasm: couldn't find export with name %s in module %s", e.FieldName, e.ModuleName)
}

// A KindMismatchError is returned when a named export exists but has a kind
// other than the requested one.
type KindMismatchError struct {
	ModuleName string
	FieldName  string
	Import     wasm.External
	Export     wasm.External
}

func (e *KindMismatchError) Error() string {
	return fmt.Sprintf("wasm: mismatching import and export external kind values for %s.%s (%v, %v)", e.FieldName, e.ModuleName, e.Import, e.Export)
}

// An InvalidImportError is returned when the export of a resolved module
// doesn't match the signature of its import declaration.
type InvalidImportError struct {
	ModuleName string
	FieldName  string
	TypeIndex  uint32
}

func (e *InvalidImportError) Error() string {
	return fmt.Sprintf("wasm: invalid signature for import %#x with name '%s' in module %s", e.TypeIndex, e.FieldName, e.ModuleName)
}

var ErrTableType = errors.New("table type mismatch")
var ErrMemoryType = errors.New("memory type mismatch")
var ErrGlobalType = errors.New("global type mismatch")

// An ImportResolver resolves import entries to function, memory, table, and global instances.
type ImportResolver interface {
	ResolveFunction(moduleName, functionName string, type_ wasm.FunctionSig) (Function, error)
	ResolveMemory(moduleName, memoryName string, type_ wasm.Memory) (*Memory, error)
	ResolveTable(moduleName, tableName string, type_ wasm.Table) (*Table, error)
	ResolveGlobal(moduleName, globalName string, type_ wasm.GlobalVar) (*Global, error)
}

// A ModuleEventHandler responds to module allocations and instantiations.
type ModuleEventHandler interface {
	ModuleAllocated(m AllocatedModule) error
	ModuleInstantiated(m Module) error
}

// ModuleDefinition represents a WASM module definition.
type ModuleDefinition interface {
	// Allocate creates an allocated, uninitialized module with the given name from this module definition.
	Allocate(name string) (AllocatedModule, error)
}

// NewKindMismatchError creates a new error that reports a mismatch between an import and export kind. This function
// should be used to create the errors returned by Module.Get{Function,Table,Memory,Global} if the requested name
// refers to an export of a different kind.
func NewKindMismatchError(exportingModuleName, exportName string, importKind, exportKind wasm.External) error {
	return &KindMismatchError{
		FieldName:  exportName,
		ModuleName: exportingModuleName,
		Import:     importKind,
		Export:     exportKind,
	}
}

// An AllocatedModule is an allocated but uninitialized WASM module.
type AllocatedModule interface {
	Module

	// Instantiate initializes the allocated module with imports supplied by the given resolver.
	Instantiate(imports ImportResolver) (Module, error)
}

// A Module is an instantiated WASM module.
type Module interface {
	// Name returns the name of this module.
	Name() string
	// GetFunction returns the exported function with the given name. If the function does not exist or the name
	// refers to an export of a different kind, this function returns an error.
	GetFunction(name string) (Function, error)
	// GetTable returns the exported table with the given name. If the table does not exist or the name
	// refers to an export of a different kind, this function returns an error.
	GetTable(name string) (*Table, error)
	// GetMemory returns the exported memory with the given name. If the memory does not exist or the name
	// refers to an export of a different kind, this function returns an error.
	GetMemory(name string) (*Memory, error)
	// GetGlobal returns the exported global with the given name. If the global does not exist or the name
	// refers to an export of a different kind, this function returns an error.
	GetGlobal(name string) (*Global, error)
}
