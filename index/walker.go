package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude selects Java sources
var DefaultInclude = []string{"**/*.java"}

// DefaultExclude skips build output and VCS metadata
var DefaultExclude = []string{"**/.git", "**/build", "**/target", "**/out", "**/node_modules"}

// Scope describes which files under Root are indexed
type Scope struct {
	Root           string
	Include        []string
	Exclude        []string
	MaxDepth       int
	MaxFiles       int
	FollowSymlinks bool
}

func (s Scope) withDefaults() Scope {
	if len(s.Include) == 0 {
		s.Include = DefaultInclude
	}
	if s.Exclude == nil {
		s.Exclude = DefaultExclude
	}
	return s
}

// Matches reports whether path, relative or absolute, is selected by the
// include and exclude patterns of the scope
func (s Scope) Matches(path string) bool {
	s = s.withDefaults()
	if !matchAny(path, s.Include) {
		return false
	}
	root := filepath.Clean(s.Root)
	for dir := path; ; {
		if matchAny(dir, s.Exclude) {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir || parent == root {
			return true
		}
		dir = parent
	}
}

// Walker discovers source files in parallel
type Walker struct {
	workers    int
	bufferSize int
}

// NewWalker creates a walker with a worker pool sized for I/O bound work
func NewWalker() *Walker {
	return &Walker{
		workers:    runtime.NumCPU() * 2,
		bufferSize: 256,
	}
}

// Found is a discovered file
type Found struct {
	Path string
	Info fs.FileInfo
	Err  error
}

// Walk streams the files selected by scope. The channel is closed when the
// scan completes or ctx is done.
func (w *Walker) Walk(ctx context.Context, scope Scope) (<-chan Found, error) {
	scope = scope.withDefaults()
	if err := validateScope(scope); err != nil {
		return nil, err
	}

	results := make(chan Found, w.bufferSize)
	paths := make(chan string, w.bufferSize)

	var wg sync.WaitGroup
	for range w.workers {
		wg.Add(1)
		go w.worker(ctx, paths, results, &wg)
	}

	go func() {
		defer close(paths)
		processed := 0
		var visited map[string]struct{}
		if scope.FollowSymlinks {
			visited = make(map[string]struct{})
			if resolved, err := filepath.EvalSymlinks(scope.Root); err == nil {
				visited[resolved] = struct{}{}
			} else {
				visited[scope.Root] = struct{}{}
			}
		}
		w.scanDirectory(ctx, scope.Root, scope, paths, 0, &processed, visited)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results, nil
}

// Paths collects the selected files, skipping unreadable ones
func (w *Walker) Paths(ctx context.Context, scope Scope) ([]string, error) {
	results, err := w.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}
	var files []string
	for r := range results {
		if r.Err == nil {
			files = append(files, r.Path)
		}
	}
	return files, ctx.Err()
}

func (w *Walker) worker(ctx context.Context, paths <-chan string, results chan<- Found, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-paths:
			if !ok {
				return
			}
			info, err := os.Stat(path)
			select {
			case <-ctx.Done():
				return
			case results <- Found{Path: path, Info: info, Err: err}:
			}
		}
	}
}

func (w *Walker) scanDirectory(
	ctx context.Context,
	dirPath string,
	scope Scope,
	paths chan<- string,
	depth int,
	processed *int,
	visited map[string]struct{},
) {
	if scope.MaxFiles > 0 && *processed >= scope.MaxFiles {
		return
	}
	if ctx.Err() != nil {
		return
	}
	if scope.MaxDepth > 0 && depth > scope.MaxDepth {
		return
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return // unreadable directories are skipped
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		fullPath := filepath.Join(dirPath, entry.Name())
		if matchAny(fullPath, scope.Exclude) {
			continue
		}

		if entry.Type()&os.ModeSymlink != 0 && scope.FollowSymlinks {
			resolvedPath, err := filepath.EvalSymlinks(fullPath)
			if err != nil || resolvedPath == "" {
				continue
			}
			info, err := os.Stat(resolvedPath)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if _, seen := visited[resolvedPath]; seen {
					continue
				}
				visited[resolvedPath] = struct{}{}
				w.scanDirectory(ctx, fullPath, scope, paths, depth+1, processed, visited)
				continue
			}
		}

		if entry.IsDir() {
			if visited != nil {
				realPath := fullPath
				if resolved, err := filepath.EvalSymlinks(fullPath); err == nil && resolved != "" {
					realPath = resolved
				}
				if _, seen := visited[realPath]; seen {
					continue
				}
				visited[realPath] = struct{}{}
			}
			w.scanDirectory(ctx, fullPath, scope, paths, depth+1, processed, visited)
			continue
		}

		if !matchAny(fullPath, scope.Include) {
			continue
		}
		if scope.MaxFiles > 0 && *processed >= scope.MaxFiles {
			return
		}
		select {
		case <-ctx.Done():
			return
		case paths <- fullPath:
			*processed++
		}
	}
}

func matchAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		if matchPattern(path, pattern) {
			return true
		}
	}
	return false
}

// matchPattern matches with ** support; patterns without a separator are
// also tried against the base name
func matchPattern(path, pattern string) bool {
	path = filepath.ToSlash(path)
	if matched, err := doublestar.PathMatch(pattern, path); err == nil && matched {
		return true
	}
	if strings.HasPrefix(pattern, "**/") {
		// **/x also selects x relative to an absolute root
		if matched, err := doublestar.Match(pattern, strings.TrimPrefix(path, "/")); err == nil && matched {
			return true
		}
	}
	if !strings.Contains(pattern, "/") {
		if matched, err := doublestar.Match(pattern, filepath.Base(path)); err == nil && matched {
			return true
		}
	}
	return false
}

func validateScope(scope Scope) error {
	if scope.Root == "" {
		return fmt.Errorf("root is required")
	}
	info, err := os.Stat(scope.Root)
	if err != nil {
		return fmt.Errorf("cannot access root %s: %w", scope.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root %s is not a directory", scope.Root)
	}
	for _, p := range append(append([]string(nil), scope.Include...), scope.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid pattern %q", p)
		}
	}
	return nil
}
