// Package witmeta implements world binding: walking a YAML-described
// world's interface metadata to build import tables for a guest module and
// export proxies over an instantiated one.
package witmeta

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/componentize-go/canon/cm"
	"github.com/componentize-go/canon/internal/call"
)

// ParamMeta and FuncMeta are the YAML-facing shape of a function signature;
// Resolve turns them into call.Param/cm.Type values using a TypeResolver
// supplied by the caller (the type registry is per-world, not global).
type ParamMeta struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type FuncMeta struct {
	Name    string      `yaml:"name"`
	Params  []ParamMeta `yaml:"params"`
	Return  string      `yaml:"return,omitempty"`
	IsCtor  bool        `yaml:"constructor,omitempty"`
	IsDtor  bool        `yaml:"destructor,omitempty"`
	Method  string      `yaml:"method,omitempty"` // owning resource name, if a method
}

// InterfaceMeta groups the functions and resources exposed under one WIT
// interface name.
type InterfaceMeta struct {
	Name      string     `yaml:"name"`
	Functions []FuncMeta `yaml:"functions"`
	Resources []string   `yaml:"resources,omitempty"`
}

// WorldMeta is the YAML document shape for one world: its free functions plus
// any grouped interfaces (which carry the resources), on both the import and
// export side.
type WorldMeta struct {
	ID      string `yaml:"id"`
	WitName string `yaml:"wit-name"`
	Imports Side   `yaml:"imports"`
	Exports Side   `yaml:"exports"`
}

type Side struct {
	Functions  []FuncMeta      `yaml:"functions,omitempty"`
	Interfaces []InterfaceMeta `yaml:"interfaces,omitempty"`
}

// LoadWorldMeta parses a world document from r.
func LoadWorldMeta(r io.Reader) (*WorldMeta, error) {
	var w WorldMeta
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("witmeta: decoding world metadata: %w", err)
	}
	return &w, nil
}

// TypeResolver maps a WIT type name (as it appears in YAML) to its cm.Type
// codec; the registry is world-specific since resource type names resolve
// to distinct restable.Table-backed cm.ResourceType values.
type TypeResolver func(name string) (cm.Type, error)

// Func is a resolved function signature bound to its owning world side.
type Func struct {
	Meta     FuncMeta
	Callable *call.Callable
}

// Interface is a resolved InterfaceMeta.
type Interface struct {
	Name          string
	Functions     map[string]*Func
	resourceNames []string
}

// World is a fully resolved WorldMeta: every function's parameter and
// return types have been looked up via a TypeResolver.
type World struct {
	ID      string
	WitName string
	Imports ResolvedSide
	Exports ResolvedSide
}

type ResolvedSide struct {
	Functions  map[string]*Func
	Interfaces map[string]*Interface
}

// Resolve builds a World from a WorldMeta, resolving every parameter and
// return type through resolve.
func Resolve(meta *WorldMeta, resolve TypeResolver) (*World, error) {
	imports, err := resolveSide(meta.Imports, resolve)
	if err != nil {
		return nil, fmt.Errorf("witmeta: resolving imports: %w", err)
	}
	exports, err := resolveSide(meta.Exports, resolve)
	if err != nil {
		return nil, fmt.Errorf("witmeta: resolving exports: %w", err)
	}
	return &World{ID: meta.ID, WitName: meta.WitName, Imports: imports, Exports: exports}, nil
}

func resolveSide(s Side, resolve TypeResolver) (ResolvedSide, error) {
	rs := ResolvedSide{Functions: map[string]*Func{}, Interfaces: map[string]*Interface{}}
	for _, fm := range s.Functions {
		f, err := resolveFunc(fm, resolve)
		if err != nil {
			return rs, err
		}
		rs.Functions[fm.Name] = f
	}
	for _, im := range s.Interfaces {
		iface := &Interface{Name: im.Name, Functions: map[string]*Func{}, resourceNames: im.Resources}
		for _, fm := range im.Functions {
			f, err := resolveFunc(fm, resolve)
			if err != nil {
				return rs, err
			}
			iface.Functions[fm.Name] = f
		}
		rs.Interfaces[im.Name] = iface
	}
	return rs, nil
}

func resolveFunc(fm FuncMeta, resolve TypeResolver) (*Func, error) {
	params := make([]call.Param, len(fm.Params))
	for i, p := range fm.Params {
		ty, err := resolve(p.Type)
		if err != nil {
			return nil, fmt.Errorf("witmeta: function %q param %q: %w", fm.Name, p.Name, err)
		}
		params[i] = call.Param{Name: p.Name, Type: ty}
	}
	var ret cm.Type
	if fm.Return != "" {
		var err error
		ret, err = resolve(fm.Return)
		if err != nil {
			return nil, fmt.Errorf("witmeta: function %q return: %w", fm.Name, err)
		}
	}
	return &Func{Meta: fm, Callable: call.New(fm.Name, params, ret)}, nil
}

// Loop swaps imports and exports, so the same module's binding can be rerun
// to play both the client and server role of a world.
func (w *World) Loop() *World {
	return &World{ID: w.ID, WitName: w.WitName, Imports: w.Exports, Exports: w.Imports}
}
