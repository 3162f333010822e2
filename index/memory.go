// Package index implements the symbol index consulted by reference
// resolution: an in-memory variant, a gorm-backed persistent variant, and a
// builder and watcher that keep either of them in sync with source files.
package index

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/symbols"
)

// Sink receives the symbols of indexed files
type Sink interface {
	Put(ctx context.Context, fs symbols.FileSymbols, digest string) error
	RemoveFile(ctx context.Context, path string) error
	// Digest returns the content hash recorded for path, if any
	Digest(ctx context.Context, path string) (string, bool, error)
}

type memoryFile struct {
	symbols symbols.FileSymbols
	digest  string
}

// Memory is an in-memory symbol index. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	files   map[string]memoryFile
	types   map[string]core.Declaration
	members map[string][]core.Declaration
	pkgs    map[string]int
	modules map[string]core.Declaration
	exports map[string][]string
}

// NewMemory returns an empty index
func NewMemory() *Memory {
	return &Memory{
		files:   make(map[string]memoryFile),
		types:   make(map[string]core.Declaration),
		members: make(map[string][]core.Declaration),
		pkgs:    make(map[string]int),
		modules: make(map[string]core.Declaration),
		exports: make(map[string][]string),
	}
}

// Put replaces everything recorded for fs.File
func (m *Memory) Put(ctx context.Context, fs symbols.FileSymbols, digest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(fs.File)
	m.files[fs.File] = memoryFile{symbols: fs, digest: digest}
	m.pkgs[fs.Package]++
	for _, d := range fs.Declarations {
		switch {
		case d.Kind == core.DeclModule:
			m.modules[d.QualifiedName] = d
		case d.Kind.IsType():
			m.types[d.QualifiedName] = d
		}
		if d.Owner != "" {
			m.members[d.Owner] = append(m.members[d.Owner], d)
		}
	}
	if fs.Module != "" {
		m.exports[fs.Module] = append([]string(nil), fs.Exports...)
	}
	return nil
}

// RemoveFile drops everything recorded for path
func (m *Memory) RemoveFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remove(path)
	return nil
}

func (m *Memory) remove(path string) {
	old, ok := m.files[path]
	if !ok {
		return
	}
	delete(m.files, path)
	if m.pkgs[old.symbols.Package]--; m.pkgs[old.symbols.Package] <= 0 {
		delete(m.pkgs, old.symbols.Package)
	}
	for _, d := range old.symbols.Declarations {
		switch {
		case d.Kind == core.DeclModule:
			delete(m.modules, d.QualifiedName)
		case d.Kind.IsType():
			if cur, ok := m.types[d.QualifiedName]; ok && cur.File == path {
				delete(m.types, d.QualifiedName)
			}
		}
		if d.Owner != "" {
			m.members[d.Owner] = withoutFile(m.members[d.Owner], path)
			if len(m.members[d.Owner]) == 0 {
				delete(m.members, d.Owner)
			}
		}
	}
	if old.symbols.Module != "" {
		delete(m.exports, old.symbols.Module)
	}
}

func withoutFile(decls []core.Declaration, path string) []core.Declaration {
	out := decls[:0]
	for _, d := range decls {
		if d.File != path {
			out = append(out, d)
		}
	}
	return out
}

// Digest returns the content hash recorded for path
func (m *Memory) Digest(_ context.Context, path string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[path]
	return f.digest, ok, nil
}

// Files returns the indexed paths in lexical order
func (m *Memory) Files() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LookupType returns the type declaration with the given qualified name
func (m *Memory) LookupType(ctx context.Context, qualified string) (core.Declaration, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.Declaration{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.types[qualified]
	return d, ok, nil
}

// PackageTypes returns the top-level types of a package, sorted by name
func (m *Memory) PackageTypes(ctx context.Context, pkg string) ([]core.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []core.Declaration
	for _, d := range m.types {
		if d.Package == pkg && d.Owner == "" {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out, nil
}

// HasPackage reports whether pkg or one of its subpackages holds indexed files
func (m *Memory) HasPackage(ctx context.Context, pkg string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pkgs[pkg] > 0 {
		return true, nil
	}
	for p := range m.pkgs {
		if strings.HasPrefix(p, pkg+".") {
			return true, nil
		}
	}
	return false, nil
}

// Members returns the member declarations of the type owner
func (m *Memory) Members(ctx context.Context, owner string) ([]core.Declaration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.Declaration(nil), m.members[owner]...), nil
}

// LookupModule returns the declaration of a named module
func (m *Memory) LookupModule(ctx context.Context, name string) (core.Declaration, bool, error) {
	if err := ctx.Err(); err != nil {
		return core.Declaration{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.modules[name]
	return d, ok, nil
}

// ModuleExports returns the packages a module exports
func (m *Memory) ModuleExports(ctx context.Context, module string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.exports[module]...), nil
}

// Types returns every indexed type declaration, for seeding a type hierarchy
func (m *Memory) Types() []core.Declaration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Declaration, 0, len(m.types))
	for _, d := range m.types {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QualifiedName < out[j].QualifiedName })
	return out
}
