package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relPaths(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		out = append(out, filepath.ToSlash(rel))
	}
	sort.Strings(out)
	return out
}

func TestWalker_DefaultScope(t *testing.T) {
	root := project(t)
	paths, err := NewWalker().Paths(context.Background(), Scope{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"src/app/Base.java",
		"src/app/Main.java",
		"src/app/util/Strings.java",
		"src/module-info.java",
	}, relPaths(t, root, paths))
}

func TestWalker_Patterns(t *testing.T) {
	root := project(t)
	tests := []struct {
		name  string
		scope Scope
		want  []string
	}{
		{
			name:  "explicit include",
			scope: Scope{Root: root, Include: []string{"**/util/*.java"}},
			want:  []string{"src/app/util/Strings.java"},
		},
		{
			name:  "base name exclude",
			scope: Scope{Root: root, Exclude: []string{"module-info.java", "build"}},
			want:  []string{"src/app/Base.java", "src/app/Main.java", "src/app/util/Strings.java"},
		},
		{
			name:  "empty exclude walks build output",
			scope: Scope{Root: root, Exclude: []string{}},
			want: []string{
				"build/Generated.java",
				"src/app/Base.java",
				"src/app/Main.java",
				"src/app/util/Strings.java",
				"src/module-info.java",
			},
		},
		{
			name:  "max depth",
			scope: Scope{Root: root, MaxDepth: 1},
			want:  []string{"src/module-info.java"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			paths, err := NewWalker().Paths(context.Background(), tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, relPaths(t, root, paths))
		})
	}
}

func TestWalker_MaxFiles(t *testing.T) {
	root := project(t)
	paths, err := NewWalker().Paths(context.Background(), Scope{Root: root, MaxFiles: 2})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestWalker_InvalidScope(t *testing.T) {
	root := project(t)
	w := NewWalker()
	ctx := context.Background()

	_, err := w.Walk(ctx, Scope{})
	assert.ErrorContains(t, err, "root is required")

	_, err = w.Walk(ctx, Scope{Root: filepath.Join(root, "missing")})
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = w.Walk(ctx, Scope{Root: filepath.Join(root, "README.md")})
	assert.ErrorContains(t, err, "not a directory")

	_, err = w.Walk(ctx, Scope{Root: root, Include: []string{"[a-"}})
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestWalker_Cancelled(t *testing.T) {
	root := project(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWalker().Paths(ctx, Scope{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScope_Matches(t *testing.T) {
	s := Scope{Root: "/src"}
	assert.True(t, s.Matches("/src/app/Main.java"))
	assert.False(t, s.Matches("/src/app/notes.txt"))
	assert.False(t, s.Matches("/src/target/Gen.java"))
}
