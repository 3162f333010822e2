package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/symbols"
	"github.com/oxhq/psitree/tree"
)

// MockProvider builds a one-node file tree for any input
type MockProvider struct {
	language   string
	extensions []string
	parsed     []string
}

func (m *MockProvider) Language() string     { return m.language }
func (m *MockProvider) Extensions() []string { return m.extensions }

func (m *MockProvider) Parse(_ context.Context, src []byte) (*tree.Store, error) {
	s := tree.NewStore(core.StringSource(src))
	root, err := s.CreateNode(tree.NodeSpec{Kind: core.KindFile, Span: core.Span{End: len(src)}})
	if err != nil {
		return nil, err
	}
	_, err = s.SetRoot(root)
	return s, err
}

func (m *MockProvider) ParseFile(ctx context.Context, path string, src []byte) (*tree.Snapshot, error) {
	m.parsed = append(m.parsed, path)
	s, err := m.Parse(ctx, src)
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

func (m *MockProvider) Validate([]byte) ValidationResult { return ValidationResult{Valid: true} }

func (m *MockProvider) Extract(snap *tree.Snapshot, file string) symbols.FileSymbols {
	return symbols.Extract(snap, file)
}

func (m *MockProvider) Stats() Stats { return Stats{} }

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&MockProvider{language: "Java", extensions: []string{".java", "JAV", " .java "}})

	p, ok := r.Get("java")
	require.True(t, ok)
	assert.Equal(t, "Java", p.Language())

	_, ok = r.Get("go")
	assert.False(t, ok)
	assert.Equal(t, []string{"java"}, r.Languages())
	assert.Len(t, r.List(), 1)
}

func TestRegistry_ForPath(t *testing.T) {
	r := NewRegistry()
	java := &MockProvider{language: "java", extensions: []string{".java"}}
	groovy := &MockProvider{language: "groovy", extensions: []string{"groovy", "gvy"}}
	r.Register(java)
	r.Register(groovy)

	tests := []struct {
		path string
		want Provider
	}{
		{"src/Main.java", java},
		{"src/Main.JAVA", java},
		{"build.groovy", groovy},
		{"script.gvy", groovy},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, ok := r.ForPath(tt.path)
			require.True(t, ok)
			assert.Same(t, tt.want, p)
		})
	}

	_, ok := r.ForPath("README.md")
	assert.False(t, ok)
	assert.Equal(t, []string{"groovy", "java"}, r.Languages())
}

func TestRegistry_ParseFile(t *testing.T) {
	r := NewRegistry()
	java := &MockProvider{language: "java", extensions: []string{".java"}}
	r.Register(java)

	snap, err := r.ParseFile(context.Background(), "A.java", []byte("class A {}"))
	require.NoError(t, err)
	assert.Equal(t, core.KindFile, snap.Kind(snap.Root()))
	assert.Equal(t, []string{"A.java"}, java.parsed)

	_, err = r.ParseFile(context.Background(), "notes.txt", nil)
	assert.ErrorContains(t, err, "no provider")
}

func TestRegistry_ReplacesLanguage(t *testing.T) {
	r := NewRegistry()
	first := &MockProvider{language: "java", extensions: []string{".java"}}
	second := &MockProvider{language: "java", extensions: []string{".java"}}
	r.Register(first)
	r.Register(second)

	p, ok := r.Get("java")
	require.True(t, ok)
	assert.Same(t, second, p)
	assert.Len(t, r.List(), 1)
}
