package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/edit"
	"github.com/oxhq/psitree/index"
	"github.com/oxhq/psitree/internal/config"
	"github.com/oxhq/psitree/pattern"
	"github.com/oxhq/psitree/providers"
	"github.com/oxhq/psitree/providers/java"
	"github.com/oxhq/psitree/resolve"
	"github.com/oxhq/psitree/tree"
	"github.com/oxhq/psitree/typesys"
)

var errSyntax = errors.New("syntax errors found")

func (a *app) initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default " + config.FileName,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.cfgFile
			if path == "" {
				path = config.FileName
			}
			if err := config.Init(path, force); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Configuration file created: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing file")
	return cmd
}

// source is a parsed file
type source struct {
	path     string
	text     string
	snap     *tree.Snapshot
	provider providers.Provider
}

func (a *app) load(ctx context.Context, path string) (*source, error) {
	prov, ok := a.registry.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("no provider for %s", path)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	snap, err := prov.ParseFile(ctx, path, src)
	if err != nil {
		return nil, err
	}
	return &source{path: path, text: string(src), snap: snap, provider: prov}, nil
}

func (s *source) pos(span core.Span) string {
	loc := core.LocationOf(s.text, span)
	return fmt.Sprintf("%s:%d:%d", s.path, loc.Line, loc.Column)
}

func (a *app) parseCmd() *cobra.Command {
	var dump, check bool
	cmd := &cobra.Command{
		Use:   "parse FILE...",
		Short: "Parse files and list their declarations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := false
			for _, path := range args {
				if check {
					prov, ok := a.registry.ForPath(path)
					if !ok {
						return fmt.Errorf("no provider for %s", path)
					}
					src, err := os.ReadFile(path)
					if err != nil {
						return err
					}
					res := prov.Validate(src)
					if res.Valid {
						fmt.Fprintf(a.out, "%s: ok\n", path)
					}
					for _, e := range res.Errors {
						fmt.Fprintf(a.out, "%s: %s\n", path, e)
						failed = true
					}
					continue
				}

				s, err := a.load(cmd.Context(), path)
				if err != nil {
					return err
				}
				if dump {
					fmt.Fprint(a.out, s.snap.Dump(s.snap.Root()))
					continue
				}
				for _, d := range s.provider.Extract(s.snap, path).Declarations {
					fmt.Fprintf(a.out, "%s %s %s\n", s.pos(d.Span), d.Kind, d.QualifiedName)
				}
			}
			if failed {
				return errSyntax
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "Print the syntax tree outline")
	cmd.Flags().BoolVar(&check, "check", false, "Only report syntax errors")
	return cmd
}

func (a *app) indexCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "index [ROOT]",
		Short: "Index the declarations of a source tree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			root, err := filepath.Abs(root)
			if err != nil {
				return err
			}

			store, err := a.openIndex()
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			builder := &index.Builder{
				Parser:  a.registry,
				Sink:    store,
				Logger:  a.logger,
				Workers: a.cfg.Workers,
			}
			scope := a.cfg.Scope(root)
			report, err := builder.Build(ctx, scope)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "indexed %d, unchanged %d, failed %d in %s\n",
				report.Indexed, report.Skipped, report.Failed, report.Duration.Round(time.Millisecond))
			for _, e := range report.Errors {
				fmt.Fprintf(a.out, "  %v\n", e)
			}
			if !watch {
				return nil
			}

			fmt.Fprintf(a.out, "watching %s\n", root)
			w := &index.Watcher{
				Builder:  builder,
				Scope:    scope,
				Debounce: a.cfg.Debounce,
				Logger:   a.logger,
				OnChange: func(changed []string) {
					fmt.Fprintf(a.out, "reindexed %s\n", strings.Join(changed, ", "))
				},
			}
			return w.Run(ctx)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep the index current as files change")
	return cmd
}

// analysis holds what resolution and pattern checks need for one file
type analysis struct {
	resolver *resolve.Cache
	types    *typesys.Hierarchy
	close    func()
}

// analyze prepares a resolver for s. With useIndex the configured index
// supplies declarations of other files.
func (a *app) analyze(ctx context.Context, s *source, useIndex bool) (*analysis, error) {
	types := typesys.NewHierarchy()
	env := resolve.Env{Types: types, Logger: a.logger}
	an := &analysis{types: types, close: func() {}}

	if useIndex {
		store, err := a.openIndex()
		if err != nil {
			return nil, err
		}
		an.close = func() { store.Close() }
		decls, err := store.Types(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		constants, err := store.EnumConstants(ctx)
		if err != nil {
			store.Close()
			return nil, err
		}
		for _, d := range append(decls, constants...) {
			types.Add(d)
		}
		env.Index = store
	}
	for _, d := range s.provider.Extract(s.snap, s.path).Declarations {
		if d.Kind.IsType() || d.Kind == core.DeclEnumConstant {
			types.Add(d)
		}
	}
	an.resolver = resolve.NewCache(env)
	return an, nil
}

// referenceNear returns the innermost node at offset holding a reference
func referenceNear(snap *tree.Snapshot, offset int) (tree.NodeID, bool) {
	id, ok := snap.NodeAt(offset)
	if !ok {
		return 0, false
	}
	for _, cand := range append([]tree.NodeID{id}, snap.Ancestors(id)...) {
		if _, ok := resolve.ReferenceAt(snap, cand); ok {
			return cand, true
		}
	}
	return 0, false
}

func (a *app) resolveCmd() *cobra.Command {
	var (
		offset   int
		name     string
		useIndex bool
	)
	cmd := &cobra.Command{
		Use:   "resolve FILE",
		Short: "Resolve the references of a file to their declarations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.load(ctx, args[0])
			if err != nil {
				return err
			}
			an, err := a.analyze(ctx, s, useIndex)
			if err != nil {
				return err
			}
			defer an.close()

			var refs []tree.NodeID
			if offset >= 0 {
				id, ok := referenceNear(s.snap, offset)
				if !ok {
					return fmt.Errorf("no reference at offset %d", offset)
				}
				refs = append(refs, id)
			} else {
				refs = s.snap.Find(s.snap.Root(), func(id tree.NodeID) bool {
					ref, ok := resolve.ReferenceAt(s.snap, id)
					return ok && (name == "" || ref.Name == name)
				})
			}

			for _, id := range refs {
				r, err := an.resolver.ResolveAt(ctx, s.snap, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s %s %q -> %s", s.pos(s.snap.Span(id)), r.Reference.Kind, r.Reference.Name, r.Kind)
				for _, d := range r.Declarations {
					fmt.Fprintf(a.out, " %s", a.where(s, d))
				}
				fmt.Fprintln(a.out)
			}
			a.logger.Debug("resolved", zap.String("file", s.path), zap.Int("references", len(refs)),
				zap.Any("cache", an.resolver.Stats()))
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", -1, "Byte offset of the reference to resolve")
	cmd.Flags().StringVar(&name, "name", "", "Only resolve references with this name")
	cmd.Flags().BoolVar(&useIndex, "index", false, "Resolve against the symbol index")
	return cmd
}

// where renders a declaration with its location
func (a *app) where(s *source, d core.Declaration) string {
	label := fmt.Sprintf("%s %s", d.Kind, d.QualifiedName)
	switch {
	case d.NodeID != 0 && s.snap.Contains(tree.NodeID(d.NodeID)):
		return label + " (" + s.pos(d.Span) + ")"
	case d.File != "":
		return label + " (" + d.File + ")"
	}
	return label
}

func (a *app) patternsCmd() *cobra.Command {
	var (
		selector string
		useIndex bool
	)
	cmd := &cobra.Command{
		Use:   "patterns FILE",
		Short: "Report dominated labels and exhaustiveness of every switch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.load(ctx, args[0])
			if err != nil {
				return err
			}
			an, err := a.analyze(ctx, s, useIndex)
			if err != nil {
				return err
			}
			defer an.close()

			m := pattern.NewMatcher(an.types)
			for _, id := range s.snap.FindKind(s.snap.Root(), core.KindSwitchStatement, core.KindSwitchExpression) {
				sw, err := pattern.SwitchFromTree(s.snap, id, an.types)
				if err != nil {
					fmt.Fprintf(a.out, "%s switch: %v\n", s.pos(s.snap.Span(id)), err)
					continue
				}
				typ := selector
				if typ == "" {
					typ = selectorType(ctx, an, s.snap, id)
				}
				fmt.Fprintf(a.out, "%s switch on %s\n", s.pos(s.snap.Span(id)), orUnknown(typ))
				for ci, c := range sw.Cases {
					labels := make([]string, len(c.Labels))
					for li, l := range c.Labels {
						labels[li] = l.String()
					}
					line := fmt.Sprintf("  case %d: %s", ci, strings.Join(labels, ", "))
					if g, ok := c.Guard.(fmt.Stringer); ok {
						line += " when " + g.String()
					}
					fmt.Fprintln(a.out, line)
				}
				for _, d := range m.Dominated(sw) {
					fmt.Fprintf(a.out, "  %s\n", d)
				}
				if typ == "" {
					continue
				}
				if ok, missing := m.Exhaustive(sw, typ); ok {
					fmt.Fprintln(a.out, "  exhaustive")
				} else {
					fmt.Fprintf(a.out, "  not exhaustive, missing %s\n", strings.Join(missing, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&selector, "selector", "", "Selector type used for the exhaustiveness check")
	cmd.Flags().BoolVar(&useIndex, "index", false, "Load types from the symbol index")
	return cmd
}

// selectorType resolves the static type of a switch selector
func selectorType(ctx context.Context, an *analysis, snap *tree.Snapshot, sw tree.NodeID) string {
	sel, ok := snap.Child(sw, core.RoleSelector)
	if !ok {
		return ""
	}
	r, err := an.resolver.ResolveAt(ctx, snap, sel)
	if err != nil {
		return ""
	}
	d, ok := r.Declaration()
	if !ok || d.TypeName == "" {
		return ""
	}
	return an.types.Qualify(typesys.Erase(d.TypeName))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown type"
	}
	return s
}

func (a *app) renameCmd() *cobra.Command {
	var (
		offset   int
		to       string
		write    bool
		useIndex bool
	)
	cmd := &cobra.Command{
		Use:   "rename FILE",
		Short: "Rename the declaration at an offset and every reference to it in the file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.load(ctx, args[0])
			if err != nil {
				return err
			}
			an, err := a.analyze(ctx, s, useIndex)
			if err != nil {
				return err
			}
			defer an.close()

			at, ok := s.snap.NodeAt(offset)
			if !ok {
				return fmt.Errorf("offset %d is outside %s", offset, s.path)
			}
			plan, err := edit.PlanRename(ctx, an.resolver, s.snap, at, to)
			if err != nil {
				return err
			}
			out, err := plan.Apply(s.text)
			if err != nil {
				return err
			}
			if res := s.provider.Validate([]byte(out)); !res.Valid {
				a.logger.Warn("renamed source has syntax errors", zap.Strings("errors", res.Errors))
			}

			if !write {
				fmt.Fprint(a.out, java.DiffText(s.path, s.path, s.text, out))
				return nil
			}
			w := edit.NewWriter(edit.DefaultWriterConfig())
			defer w.Cleanup()
			if err := w.WriteFile(s.path, out); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "renamed %s %s to %s (%d edits)\n", plan.Target.Kind, plan.Target.Name, to, len(plan.Edits))
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Byte offset of the declaration or a reference to it")
	cmd.Flags().StringVar(&to, "to", "", "New name")
	cmd.Flags().BoolVar(&write, "write", false, "Rewrite the file instead of printing a diff")
	cmd.Flags().BoolVar(&useIndex, "index", false, "Resolve against the symbol index")
	_ = cmd.MarkFlagRequired("offset")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
