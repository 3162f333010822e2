// Package providers defines the contract of language front ends and a
// registry that dispatches source files to them by extension.
package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/oxhq/psitree/symbols"
	"github.com/oxhq/psitree/tree"
)

// Provider is a language front end building syntax trees from source text
type Provider interface {
	// Metadata
	Language() string
	Extensions() []string

	// Parse builds an editable store holding the tree of src
	Parse(ctx context.Context, src []byte) (*tree.Store, error)
	// ParseFile returns an immutable snapshot of the tree of src
	ParseFile(ctx context.Context, path string, src []byte) (*tree.Snapshot, error)
	Validate(src []byte) ValidationResult
	Extract(snap *tree.Snapshot, file string) symbols.FileSymbols

	// Observability
	Stats() Stats
}

// ValidationResult from syntax check
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Stats captures parser-pool and parse-cache metrics exposed by providers
type Stats struct {
	BorrowCount int64 `json:"borrow_count"`
	ReturnCount int64 `json:"return_count"`
	Active      int64 `json:"active"`
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
}

// Registry manages all providers
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	byExt     map[string]Provider
}

// NewRegistry creates provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		byExt:     make(map[string]Provider),
	}
}

// Register adds a provider. A later registration for the same language or
// extension replaces the earlier one.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[strings.ToLower(provider.Language())] = provider
	for _, ext := range normalizeExtensions(provider.Extensions()) {
		r.byExt[ext] = provider
	}
}

// Get retrieves provider by language
func (r *Registry) Get(language string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, exists := r.providers[strings.ToLower(language)]
	return p, exists
}

// ForPath returns the provider handling the extension of path
func (r *Registry) ForPath(path string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byExt[strings.ToLower(filepath.Ext(path))]
	return p, ok
}

// ParseFile parses src with the provider registered for path's extension
func (r *Registry) ParseFile(ctx context.Context, path string, src []byte) (*tree.Snapshot, error) {
	p, ok := r.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("no provider for %s", path)
	}
	return p.ParseFile(ctx, path, src)
}

// List returns all providers sorted by language
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Language() < result[j].Language() })
	return result
}

// Languages returns all registered language identifiers, sorted
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	langs := make([]string, 0, len(r.providers))
	for k := range r.providers {
		langs = append(langs, k)
	}
	sort.Strings(langs)
	return langs
}

func normalizeExtensions(exts []string) []string {
	seen := make(map[string]struct{})
	result := make([]string, 0, len(exts))
	for _, ext := range exts {
		normalized := strings.ToLower(strings.TrimSpace(ext))
		if normalized == "" {
			continue
		}
		if !strings.HasPrefix(normalized, ".") {
			normalized = "." + normalized
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		result = append(result, normalized)
	}
	return result
}
