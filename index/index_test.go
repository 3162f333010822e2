package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/resolve"
	"github.com/oxhq/psitree/symbols"
)

var (
	_ resolve.SymbolIndex = (*Memory)(nil)
	_ resolve.SymbolIndex = (*Store)(nil)
	_ Sink                = (*Memory)(nil)
	_ Sink                = (*Store)(nil)
)

type testIndex interface {
	resolve.SymbolIndex
	Sink
}

func indexes(t *testing.T) map[string]testIndex {
	t.Helper()
	store, err := Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return map[string]testIndex{
		"memory": NewMemory(),
		"store":  store,
	}
}

func shapes() symbols.FileSymbols {
	return symbols.FileSymbols{
		File:    "src/shapes/Shape.java",
		Package: "shapes",
		Declarations: []core.Declaration{
			{
				Name: "Shape", QualifiedName: "shapes.Shape", Kind: core.DeclInterface, Package: "shapes",
				File: "src/shapes/Shape.java", Permits: []string{"shapes.Circle"}, Modifiers: []string{"sealed"},
			},
			{
				Name: "Circle", QualifiedName: "shapes.Circle", Kind: core.DeclRecord, Package: "shapes",
				File: "src/shapes/Shape.java", Interfaces: []string{"shapes.Shape"},
				Components: []core.Component{{Name: "radius", Type: "double"}},
			},
			{
				Name: "radius", QualifiedName: "shapes.Circle.radius", Kind: core.DeclRecordComponent,
				Owner: "shapes.Circle", Package: "shapes", File: "src/shapes/Shape.java", TypeName: "double",
			},
			{
				Name: "Unit", QualifiedName: "shapes.Circle.Unit", Kind: core.DeclEnum,
				Owner: "shapes.Circle", Package: "shapes", File: "src/shapes/Shape.java",
			},
		},
	}
}

func moduleInfo() symbols.FileSymbols {
	return symbols.FileSymbols{
		File:    "src/module-info.java",
		Module:  "geo",
		Exports: []string{"shapes", "shapes.io"},
		Declarations: []core.Declaration{
			{Name: "geo", QualifiedName: "geo", Kind: core.DeclModule, File: "src/module-info.java"},
		},
	}
}

func TestIndex_Lookups(t *testing.T) {
	ctx := context.Background()
	for name, idx := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Put(ctx, shapes(), "d1"))
			require.NoError(t, idx.Put(ctx, moduleInfo(), "d2"))

			circle, ok, err := idx.LookupType(ctx, "shapes.Circle")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, core.DeclRecord, circle.Kind)
			assert.Equal(t, "src/shapes/Shape.java", circle.File)
			assert.Equal(t, []core.Component{{Name: "radius", Type: "double"}}, circle.Components)
			assert.Equal(t, []string{"shapes.Shape"}, circle.Interfaces)

			_, ok, err = idx.LookupType(ctx, "shapes.Circle.radius")
			require.NoError(t, err)
			assert.False(t, ok, "members are not types")

			unit, ok, err := idx.LookupType(ctx, "shapes.Circle.Unit")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "shapes.Circle", unit.Owner)

			top, err := idx.PackageTypes(ctx, "shapes")
			require.NoError(t, err)
			require.Len(t, top, 2)
			assert.Equal(t, "shapes.Circle", top[0].QualifiedName)
			assert.Equal(t, "shapes.Shape", top[1].QualifiedName)
			assert.Equal(t, []string{"sealed"}, top[1].Modifiers)

			members, err := idx.Members(ctx, "shapes.Circle")
			require.NoError(t, err)
			require.Len(t, members, 2)
			assert.Equal(t, "radius", members[0].Name)
			assert.Equal(t, "double", members[0].TypeName)

			for pkg, want := range map[string]bool{"shapes": true, "shapes.io": false, "shape": false, "": true} {
				got, err := idx.HasPackage(ctx, pkg)
				require.NoError(t, err)
				assert.Equal(t, want, got, "package %q", pkg)
			}

			mod, ok, err := idx.LookupModule(ctx, "geo")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, core.DeclModule, mod.Kind)

			exports, err := idx.ModuleExports(ctx, "geo")
			require.NoError(t, err)
			assert.Equal(t, []string{"shapes", "shapes.io"}, exports)

			digest, ok, err := idx.Digest(ctx, "src/shapes/Shape.java")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "d1", digest)
		})
	}
}

func TestIndex_HasPackagePrefix(t *testing.T) {
	ctx := context.Background()
	for name, idx := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			fs := shapes()
			fs.Package = "com.example.shapes"
			require.NoError(t, idx.Put(ctx, fs, ""))

			for _, pkg := range []string{"com", "com.example", "com.example.shapes"} {
				ok, err := idx.HasPackage(ctx, pkg)
				require.NoError(t, err)
				assert.True(t, ok, pkg)
			}
			ok, err := idx.HasPackage(ctx, "com.exam")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestIndex_PutReplacesFile(t *testing.T) {
	ctx := context.Background()
	for name, idx := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Put(ctx, shapes(), "d1"))

			updated := shapes()
			updated.Declarations = updated.Declarations[:1]
			require.NoError(t, idx.Put(ctx, updated, "d2"))

			_, ok, err := idx.LookupType(ctx, "shapes.Circle")
			require.NoError(t, err)
			assert.False(t, ok)
			members, err := idx.Members(ctx, "shapes.Circle")
			require.NoError(t, err)
			assert.Empty(t, members)

			digest, _, err := idx.Digest(ctx, updated.File)
			require.NoError(t, err)
			assert.Equal(t, "d2", digest)
		})
	}
}

func TestIndex_RemoveFile(t *testing.T) {
	ctx := context.Background()
	for name, idx := range indexes(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, idx.Put(ctx, shapes(), "d1"))
			require.NoError(t, idx.Put(ctx, moduleInfo(), "d2"))
			require.NoError(t, idx.RemoveFile(ctx, "src/shapes/Shape.java"))
			require.NoError(t, idx.RemoveFile(ctx, "src/missing.java"))

			_, ok, err := idx.LookupType(ctx, "shapes.Shape")
			require.NoError(t, err)
			assert.False(t, ok)
			has, err := idx.HasPackage(ctx, "shapes")
			require.NoError(t, err)
			assert.False(t, has)
			_, ok, err = idx.Digest(ctx, "src/shapes/Shape.java")
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = idx.LookupModule(ctx, "geo")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := NewMemory()
	assert.ErrorIs(t, m.Put(ctx, shapes(), ""), context.Canceled)
	_, _, err := m.LookupType(ctx, "shapes.Shape")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	store, err := Open(":memory:", false)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, shapes(), ""))
	require.NoError(t, store.Put(ctx, moduleInfo(), ""))
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats["files"])
	assert.Equal(t, int64(5), stats["declarations"])
	assert.Equal(t, int64(2), stats["exports"])

	types, err := store.Types(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 3)
}

func TestStore_EnumConstants(t *testing.T) {
	ctx := context.Background()
	store, err := Open(":memory:", false)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(ctx, shapes(), ""))
	color := symbols.FileSymbols{File: "src/paint/Color.java", Package: "paint"}
	color.Declarations = append(color.Declarations, core.Declaration{
		Name: "Color", QualifiedName: "paint.Color", Kind: core.DeclEnum, Package: "paint", File: color.File,
	})
	for _, name := range []string{"RED", "GREEN"} {
		color.Declarations = append(color.Declarations, core.Declaration{
			Name: name, QualifiedName: "paint.Color." + name, Kind: core.DeclEnumConstant,
			Owner: "paint.Color", Package: "paint", File: color.File, TypeName: "paint.Color", Static: true,
		})
	}
	require.NoError(t, store.Put(ctx, color, ""))

	constants, err := store.EnumConstants(ctx)
	require.NoError(t, err)
	require.Len(t, constants, 2)
	assert.Equal(t, "RED", constants[0].Name)
	assert.Equal(t, "GREEN", constants[1].Name)
	assert.Equal(t, "paint.Color", constants[1].Owner)
}

// The index feeds the resolver end to end
func TestIndex_ServesResolver(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, shapes(), ""))

	env := resolve.Env{Index: m}
	cache := resolve.NewCache(env)
	snap, err := lineParser{}.ParseFile(ctx, "Main.java", []byte("package shapes\nclass Main\n  field Circle c\n"))
	require.NoError(t, err)

	refs := snap.FindKind(snap.Root(), core.KindTypeRef)
	require.Len(t, refs, 1)
	result, err := cache.ResolveAt(ctx, snap, refs[0])
	require.NoError(t, err)
	require.Equal(t, resolve.Single, result.Kind)
	assert.Equal(t, "shapes.Circle", result.Declaration().QualifiedName)
}
