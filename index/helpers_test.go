package index

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

// lineParser understands a tiny outline format, one declaration per line:
//
//	package a.b
//	class Name [extends Super]
//	  field Type name
//	  method name
//	module m
//	exports a.b
//
// A line "broken" makes the parse fail.
type lineParser struct{}

var errBroken = errors.New("broken source")

func (lineParser) ParseFile(_ context.Context, _ string, src []byte) (*tree.Snapshot, error) {
	var (
		children []tree.Blueprint
		class    *tree.Blueprint
		members  []tree.Blueprint
		exports  []tree.Blueprint
		module   string
	)
	flush := func() {
		if class == nil {
			return
		}
		body := tree.Branch(core.KindClassBody, members...).As(core.RoleBody)
		class.Children = append(class.Children, body)
		children = append(children, *class)
		class, members = nil, nil
	}
	name := func(n string) tree.Blueprint { return tree.Leaf(core.KindName, n).As(core.RoleName) }

	sc := bufio.NewScanner(strings.NewReader(string(src)))
	for sc.Scan() {
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "broken":
			return nil, errBroken
		case "package":
			children = append(children, tree.Branch(core.KindPackage, name(f[1])).As(core.RolePackage))
		case "class":
			flush()
			c := tree.Branch(core.KindClass, name(f[1]))
			if len(f) == 4 && f[2] == "extends" {
				c.Children = append(c.Children, tree.Branch(core.KindSuperclass,
					tree.Leaf(core.KindTypeRef, f[3])).As(core.RoleSuperclass))
			}
			class = &c
		case "field":
			members = append(members, tree.Branch(core.KindField,
				tree.Leaf(core.KindTypeRef, f[1]).As(core.RoleType),
				tree.Branch(core.KindVariableDeclarator, name(f[2])).As(core.RoleDeclarator),
			).As(core.RoleMember))
		case "method":
			members = append(members, tree.Branch(core.KindMethod,
				tree.Leaf(core.KindTypeRef, "void").As(core.RoleType),
				name(f[1]),
				tree.Branch(core.KindBlock).As(core.RoleBody),
			).As(core.RoleMember))
		case "module":
			module = f[1]
		case "exports":
			exports = append(exports, tree.Branch(core.KindExportsDirective, name(f[1])))
		}
	}
	flush()
	if module != "" {
		children = append(children, tree.Branch(core.KindModule,
			name(module),
			tree.Branch(core.KindModuleBody, exports...).As(core.RoleBody),
		))
	}

	s := tree.NewStore(nil)
	root, err := s.Build(0, tree.Branch(core.KindFile, children...))
	if err != nil {
		return nil, err
	}
	if _, err := s.SetRoot(root); err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// project lays out a small source tree and returns its root
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src/app/Main.java"), "package app\nclass Main extends Base\n  field int count\n  method run\n")
	writeFile(t, filepath.Join(root, "src/app/Base.java"), "package app\nclass Base\n  method start\n")
	writeFile(t, filepath.Join(root, "src/app/util/Strings.java"), "package app.util\nclass Strings\n")
	writeFile(t, filepath.Join(root, "src/module-info.java"), "module app.core\nexports app\nexports app.util\n")
	writeFile(t, filepath.Join(root, "build/Generated.java"), "package gen\nclass Generated\n")
	writeFile(t, filepath.Join(root, "README.md"), "not java")
	return root
}
