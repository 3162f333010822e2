// Package java is the Java front end: it parses source with tree-sitter and
// converts the concrete syntax tree into a copy-on-write tree store.
package java

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/pmezard/go-difflib/difflib"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/providers"
	"github.com/oxhq/psitree/symbols"
	"github.com/oxhq/psitree/tree"
)

// Provider parses Java source. Parsers are pooled, so one Provider serves
// any number of goroutines.
type Provider struct {
	pool  sync.Pool
	cache *ParseCache

	borrowCount atomic.Int64
	returnCount atomic.Int64
	active      atomic.Int64
}

var _ providers.Provider = (*Provider)(nil)

// New creates a Java provider with its own parse cache
func New() *Provider {
	return NewWithCache(NewParseCache(DefaultMaxAge))
}

// NewWithCache creates a Java provider using cache for ParseFile
func NewWithCache(cache *ParseCache) *Provider {
	p := &Provider{cache: cache}
	p.pool.New = func() any {
		parser := sitter.NewParser()
		parser.SetLanguage(java.GetLanguage())
		return parser
	}
	return p
}

// Language returns language identifier
func (p *Provider) Language() string { return "java" }

// Extensions returns supported file extensions
func (p *Provider) Extensions() []string { return []string{".java"} }

func (p *Provider) borrow() *sitter.Parser {
	p.borrowCount.Add(1)
	p.active.Add(1)
	return p.pool.Get().(*sitter.Parser)
}

func (p *Provider) giveBack(parser *sitter.Parser) {
	parser.Reset()
	p.pool.Put(parser)
	p.returnCount.Add(1)
	p.active.Add(-1)
}

// Parse builds a fresh store holding the tree of src
func (p *Provider) Parse(ctx context.Context, src []byte) (*tree.Store, error) {
	snap, err := p.build(ctx, src)
	if err != nil {
		return nil, err
	}
	return tree.NewStoreFrom(snap), nil
}

// ParseFile returns the tree of src, served from the parse cache when the
// same content was parsed recently
func (p *Provider) ParseFile(ctx context.Context, path string, src []byte) (*tree.Snapshot, error) {
	snap, _, err := p.cache.GetOrParse(src, func() (*tree.Snapshot, error) {
		return p.build(ctx, src)
	})
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return snap, nil
}

func (p *Provider) build(ctx context.Context, src []byte) (*tree.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parser := p.borrow()
	defer p.giveBack(parser)

	cst, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer cst.Close()

	store := tree.NewStore(core.StringSource(src))
	c := &converter{src: src, store: store}
	root, err := c.file(cst.RootNode())
	if err != nil {
		return nil, err
	}
	if _, err := store.SetRoot(root); err != nil {
		return nil, err
	}
	return store.Snapshot(), nil
}

// Validate checks syntax
func (p *Provider) Validate(src []byte) providers.ValidationResult {
	parser := p.borrow()
	defer p.giveBack(parser)

	cst, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || cst == nil {
		return providers.ValidationResult{
			Valid:  false,
			Errors: []string{"Failed to parse source"},
		}
	}
	defer cst.Close()

	var errors []string
	findErrors(cst.RootNode(), &errors)
	return providers.ValidationResult{
		Valid:  len(errors) == 0,
		Errors: errors,
	}
}

// findErrors looks for syntax errors in the concrete tree
func findErrors(node *sitter.Node, errors *[]string) {
	switch {
	case node.Type() == "ERROR":
		*errors = append(*errors, fmt.Sprintf(
			"Syntax error at line %d, column %d",
			node.StartPoint().Row+1,
			node.StartPoint().Column+1,
		))
	case node.IsMissing():
		*errors = append(*errors, fmt.Sprintf(
			"Missing %s at line %d, column %d",
			node.Type(),
			node.StartPoint().Row+1,
			node.StartPoint().Column+1,
		))
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		findErrors(node.Child(i), errors)
	}
}

// Extract collects the declarations of a parsed file
func (p *Provider) Extract(snap *tree.Snapshot, file string) symbols.FileSymbols {
	return symbols.Extract(snap, file)
}

// Stats reports parser pool and cache counters
func (p *Provider) Stats() providers.Stats {
	cache := p.cache.Stats()
	return providers.Stats{
		BorrowCount: p.borrowCount.Load(),
		ReturnCount: p.returnCount.Load(),
		Active:      p.active.Load(),
		CacheHits:   cache["hits"],
		CacheMisses: cache["misses"],
	}
}

// Diff renders a unified diff between the outlines of two trees
func Diff(before, after *tree.Snapshot) string {
	return DiffText("before", "after", before.Dump(before.Root()), after.Dump(after.Root()))
}

// DiffText creates a unified diff between two texts
func DiffText(fromFile, toFile, original, modified string) string {
	if original == modified {
		return ""
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(modified),
		FromFile: fromFile,
		ToFile:   toFile,
		Context:  3,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return fmt.Sprintf("--- %s\n+++ %s\n@@ changes @@\n%d bytes -> %d bytes",
			fromFile, toFile, len(original), len(modified))
	}
	return strings.TrimSuffix(text, "\n") + "\n"
}
