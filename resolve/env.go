// Package resolve resolves identifier, type, member, package and module
// references against a syntax tree snapshot, its imports and a symbol index,
// memoizing results per anchor node version.
package resolve

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/typesys"
)

// SymbolIndex supplies declarations that live outside the file being
// resolved. The resolver consults it only after the tree scopes are
// exhausted.
type SymbolIndex interface {
	LookupType(ctx context.Context, qualifiedName string) (core.Declaration, bool, error)
	PackageTypes(ctx context.Context, pkg string) ([]core.Declaration, error)
	HasPackage(ctx context.Context, pkg string) (bool, error)
	Members(ctx context.Context, owner string) ([]core.Declaration, error)
	LookupModule(ctx context.Context, name string) (core.Declaration, bool, error)
	ModuleExports(ctx context.Context, module string) ([]string, error)
}

// Env bundles the capabilities a resolution needs. There are no global
// registries: every resolver is handed its index, type system and logger.
type Env struct {
	Index  SymbolIndex
	Types  typesys.System
	Logger *zap.Logger
}

func (e Env) withDefaults() Env {
	if e.Index == nil {
		e.Index = emptyIndex{}
	}
	if e.Types == nil {
		e.Types = typesys.NewHierarchy()
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	return e
}

// typeLookup is implemented by type systems that know declarations, such as
// typesys.Hierarchy with its java.lang built-ins.
type typeLookup interface {
	Lookup(name string) (*typesys.TypeInfo, bool)
}

// lookupType finds a type by qualified name in the index, then in the type
// system's own declarations.
func (e Env) lookupType(ctx context.Context, qualified string) (core.Declaration, bool, error) {
	d, ok, err := e.Index.LookupType(ctx, qualified)
	if err != nil || ok {
		return d, ok, err
	}
	tl, isLookup := e.Types.(typeLookup)
	if !isLookup || !strings.Contains(qualified, ".") {
		return core.Declaration{}, false, nil
	}
	info, ok := tl.Lookup(qualified)
	if !ok || info.Name != qualified {
		return core.Declaration{}, false, nil
	}
	return fromTypeInfo(info), true, nil
}

func fromTypeInfo(info *typesys.TypeInfo) core.Declaration {
	pkg := ""
	if i := strings.LastIndexByte(info.Name, '.'); i >= 0 {
		pkg = info.Name[:i]
	}
	return core.Declaration{
		Name:          info.Name[strings.LastIndexByte(info.Name, '.')+1:],
		QualifiedName: info.Name,
		Kind:          info.Kind,
		Package:       pkg,
		Superclass:    info.Superclass,
		Interfaces:    info.Interfaces,
		Components:    info.Components,
		Permits:       info.Permits,
	}
}

type emptyIndex struct{}

func (emptyIndex) LookupType(context.Context, string) (core.Declaration, bool, error) {
	return core.Declaration{}, false, nil
}
func (emptyIndex) PackageTypes(context.Context, string) ([]core.Declaration, error) { return nil, nil }
func (emptyIndex) HasPackage(context.Context, string) (bool, error)                 { return false, nil }
func (emptyIndex) Members(context.Context, string) ([]core.Declaration, error)      { return nil, nil }
func (emptyIndex) LookupModule(context.Context, string) (core.Declaration, bool, error) {
	return core.Declaration{}, false, nil
}
func (emptyIndex) ModuleExports(context.Context, string) ([]string, error) { return nil, nil }
