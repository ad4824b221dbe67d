package witmeta

import (
	"fmt"

	"github.com/componentize-go/canon/internal/restable"
)

// HostService supplies the Go implementation behind a host-provided
// function, looked up by its fully-qualified (interface, name) pair (name
// alone for a free function).
type HostService interface {
	// Invoke runs the host implementation of fn and returns its result, or
	// an error if fn is unknown or its call failed.
	Invoke(iface, name string, args []any) (any, error)
}

// GuestExports is the minimal surface create_imports/bind_exports need from
// an instantiated guest module; internal/wazeroadapter implements this over
// wazero's api.Module.
type GuestExports interface {
	// CallExported invokes an exported guest function by its WIT name.
	CallExported(name string, args []any) (any, error)
}

// ImportBinding is one resolved entry of an ImportTable: the WIT name the
// guest's import expects, and the Go closure that serves it.
type ImportBinding struct {
	WitName string
	Iface   string // empty for a free function
	Invoke  func(args []any) (any, error)
}

// ResourceShims is the set of table-bound shim functions a resource import
// requires, named "[resource-new]", "[resource-rep]", "[resource-drop]".
type ResourceShims struct {
	ResourceName string
	New          func(rep uint32) (uint32, error)
	Rep          func(handle uint32) (uint32, error)
	Drop         func(handle uint32) error
}

// ImportTable is create_imports's result: every free-function and
// interface-function binding plus the resource shims for any exported
// resource.
type ImportTable struct {
	Bindings []ImportBinding
	Shims    []ResourceShims
}

// CreateImports builds the ImportTable for world.Imports, wrapping every
// host-provided function with a closure that calls through to service, and
// publishing resource-table shims for every resource named in the import
// side's interfaces.
func CreateImports(world *World, service HostService, tables map[string]*restable.Table) (*ImportTable, error) {
	it := &ImportTable{}

	for name, f := range world.Imports.Functions {
		fn := f
		it.Bindings = append(it.Bindings, ImportBinding{
			WitName: name,
			Invoke: func(args []any) (any, error) {
				return service.Invoke("", fn.Meta.Name, args)
			},
		})
	}
	for ifaceName, iface := range world.Imports.Interfaces {
		for name, f := range iface.Functions {
			fn := f
			ifn := ifaceName
			it.Bindings = append(it.Bindings, ImportBinding{
				WitName: name,
				Iface:   ifn,
				Invoke: func(args []any) (any, error) {
					return service.Invoke(ifn, fn.Meta.Name, args)
				},
			})
		}
		for _, resName := range iface.Resources() {
			tbl, ok := tables[resName]
			if !ok {
				return nil, fmt.Errorf("witmeta: no resource table registered for %q", resName)
			}
			it.Shims = append(it.Shims, resourceShims(resName, tbl))
		}
	}
	return it, nil
}

// Resources returns the resource names the interface's InterfaceMeta listed,
// as Resolve carried them onto the Interface.
func (i *Interface) Resources() []string { return i.resourceNames }

func resourceShims(resourceName string, tbl *restable.Table) ResourceShims {
	return ResourceShims{
		ResourceName: resourceName,
		New: func(rep uint32) (uint32, error) {
			return tbl.NewHandle(rep), nil
		},
		Rep: func(handle uint32) (uint32, error) {
			return tbl.Representation(handle)
		},
		Drop: func(handle uint32) error {
			_, err := tbl.DropHandle(handle)
			return err
		},
	}
}

// GuestProxy is bind_exports's result: a host-callable closure per exported
// function, plus a class-like constructor per exported resource.
type GuestProxy struct {
	Functions map[string]func(args []any) (any, error)
	Resources map[string]*ResourceProxy
}

// ResourceProxy is the class-like binding for one exported resource: New
// dispatches to the guest's [constructor] export, and Methods holds one
// closure per [method] export, each expecting the receiver's handle as its
// first argument.
type ResourceProxy struct {
	New     func(args []any) (uint32, error)
	Methods map[string]func(receiver uint32, args []any) (any, error)
}

// BindExports builds the GuestProxy for world.Exports against an
// instantiated module's exports.
func BindExports(world *World, exports GuestExports) *GuestProxy {
	gp := &GuestProxy{Functions: map[string]func(args []any) (any, error){}, Resources: map[string]*ResourceProxy{}}

	bindFunctions := func(fns map[string]*Func) {
		for name := range fns {
			n := name
			gp.Functions[n] = func(args []any) (any, error) {
				return exports.CallExported(n, args)
			}
		}
	}
	bindFunctions(world.Exports.Functions)
	for _, iface := range world.Exports.Interfaces {
		bindFunctions(iface.Functions)
		for _, resName := range iface.Resources() {
			gp.Resources[resName] = bindResource(resName, exports)
		}
	}
	return gp
}

func bindResource(name string, exports GuestExports) *ResourceProxy {
	ctorName := fmt.Sprintf("[constructor]%s", name)
	rp := &ResourceProxy{
		New: func(args []any) (uint32, error) {
			v, err := exports.CallExported(ctorName, args)
			if err != nil {
				return 0, err
			}
			return v.(uint32), nil
		},
		Methods: map[string]func(receiver uint32, args []any) (any, error){},
	}
	return rp
}

// BindMethod registers a [method] export for a resource proxy previously
// built by bindResource; callers populate this after walking the world's
// per-resource method list (carried on InterfaceMeta in the source YAML).
func (rp *ResourceProxy) BindMethod(methodName string, exports GuestExports) {
	exportName := fmt.Sprintf("[method]%s", methodName)
	rp.Methods[methodName] = func(receiver uint32, args []any) (any, error) {
		callArgs := append([]any{receiver}, args...)
		return exports.CallExported(exportName, callArgs)
	}
}
