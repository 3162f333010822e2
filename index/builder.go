package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/oxhq/psitree/symbols"
	"github.com/oxhq/psitree/tree"
)

// Parser builds a syntax tree for one source file
type Parser interface {
	ParseFile(ctx context.Context, path string, src []byte) (*tree.Snapshot, error)
}

// Builder indexes source files into a Sink
type Builder struct {
	Parser  Parser
	Sink    Sink
	Walker  *Walker
	Logger  *zap.Logger
	Workers int
}

// Report summarises one indexing run
type Report struct {
	Indexed  int64         `json:"indexed"`
	Skipped  int64         `json:"skipped"`
	Failed   int64         `json:"failed"`
	Duration time.Duration `json:"duration"`
	Errors   []error       `json:"-"`
}

// ErrUnchanged is returned by IndexFile when the recorded digest matches
var ErrUnchanged = errors.New("index: file unchanged")

func (b *Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// Build indexes every file of scope. Per-file failures are collected in the
// report; only cancellation and walk setup errors abort the run.
func (b *Builder) Build(ctx context.Context, scope Scope) (*Report, error) {
	start := time.Now()
	walker := b.Walker
	if walker == nil {
		walker = NewWalker()
	}
	found, err := walker.Walk(ctx, scope)
	if err != nil {
		return nil, err
	}

	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var (
		indexed, skipped, failed atomic.Int64
		mu                       sync.Mutex
		errs                     []error
		wg                       sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range found {
				err := f.Err
				if err == nil {
					err = b.IndexFile(ctx, f.Path)
				}
				switch {
				case err == nil:
					indexed.Add(1)
				case errors.Is(err, ErrUnchanged):
					skipped.Add(1)
				case ctx.Err() != nil:
					return
				default:
					failed.Add(1)
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
					b.logger().Warn("index failed", zap.String("file", f.Path), zap.Error(err))
				}
			}
		}()
	}
	wg.Wait()

	report := &Report{
		Indexed:  indexed.Load(),
		Skipped:  skipped.Load(),
		Failed:   failed.Load(),
		Duration: time.Since(start),
		Errors:   errs,
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	b.logger().Info("index built",
		zap.String("root", scope.Root),
		zap.Int64("indexed", report.Indexed),
		zap.Int64("skipped", report.Skipped),
		zap.Int64("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// IndexFile parses path and records its symbols. It returns ErrUnchanged
// when the sink already holds the same content.
func (b *Builder) IndexFile(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	digest := Digest(src)
	if old, ok, err := b.Sink.Digest(ctx, path); err != nil {
		return fmt.Errorf("digest of %s: %w", path, err)
	} else if ok && old == digest {
		return ErrUnchanged
	}

	snap, err := b.Parser.ParseFile(ctx, path, src)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	fs := symbols.Extract(snap, path)
	if err := b.Sink.Put(ctx, fs, digest); err != nil {
		return fmt.Errorf("store %s: %w", path, err)
	}
	b.logger().Debug("indexed file",
		zap.String("file", path),
		zap.String("package", fs.Package),
		zap.Int("declarations", len(fs.Declarations)),
	)
	return nil
}

// Remove drops path from the sink
func (b *Builder) Remove(ctx context.Context, path string) error {
	if err := b.Sink.RemoveFile(ctx, path); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	b.logger().Debug("removed file", zap.String("file", path))
	return nil
}

// Digest returns the hex SHA-256 of src
func Digest(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
