package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/psitree/internal/config"
)

const shapes = `package geo;

public sealed interface Shape permits Circle, Square {}

record Circle(double radius) implements Shape {}

record Square(double side) implements Shape {}

class Area {
    double of(Shape s) {
        return switch (s) {
            case Circle c when c.radius() > 10 -> 0;
            case Circle(double r) -> Math.PI * r * r;
            case Square sq -> sq.side() * sq.side();
        };
    }

    int partial(Shape s) {
        return switch (s) {
            case Circle c -> 1;
        };
    }
}
`

const counter = `class Counter {
    private int count;

    void inc() {
        count++;
    }
}
`

// run executes psi with args and returns everything it printed
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd := newRootCmd(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func workspace(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	assert.Equal(t, "psi", cmd.Use)
	assert.Equal(t, version, cmd.Version)

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"init", "parse", "index", "resolve", "patterns", "rename"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
}

func TestInit(t *testing.T) {
	dir := workspace(t, nil)

	out, err := run(t, "init")
	require.NoError(t, err)
	assert.Contains(t, out, config.FileName)
	assert.FileExists(t, filepath.Join(dir, config.FileName))

	_, err = run(t, "init")
	assert.Error(t, err)
	_, err = run(t, "init", "--force")
	assert.NoError(t, err)
}

func TestParse(t *testing.T) {
	workspace(t, map[string]string{"Shapes.java": shapes})

	out, err := run(t, "parse", "Shapes.java")
	require.NoError(t, err)
	assert.Contains(t, out, "Shapes.java:3:1 interface geo.Shape")
	assert.Contains(t, out, "record geo.Circle")
	assert.Contains(t, out, "method geo.Area.partial")

	out, err = run(t, "parse", "--dump", "Shapes.java")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "File "), out)
	assert.Contains(t, out, "\n  Interface ")
}

func TestParse_Check(t *testing.T) {
	workspace(t, map[string]string{
		"Good.java":   "class Good {}\n",
		"Broken.java": "class Broken { int x = ; }\n",
	})

	out, err := run(t, "parse", "--check", "Good.java")
	require.NoError(t, err)
	assert.Contains(t, out, "Good.java: ok")

	out, err = run(t, "parse", "--check", "Good.java", "Broken.java")
	assert.ErrorIs(t, err, errSyntax)
	assert.Contains(t, out, "Broken.java: ")
	assert.Contains(t, out, "at line 1")

	_, err = run(t, "parse", "notes.txt")
	assert.ErrorContains(t, err, "no provider")
}

func TestPatterns(t *testing.T) {
	workspace(t, map[string]string{"Shapes.java": shapes})

	out, err := run(t, "patterns", "Shapes.java")
	require.NoError(t, err)
	assert.Contains(t, out, "switch on geo.Shape")
	assert.Contains(t, out, "case 0: Circle c when")
	assert.Contains(t, out, "case 1: Circle(double r)")
	assert.Contains(t, out, "  exhaustive\n")
	assert.Contains(t, out, "not exhaustive, missing")
	assert.Contains(t, out, "Square")
}

func TestPatterns_EnumsAndNestedRecords(t *testing.T) {
	workspace(t, map[string]string{"Paint.java": `package geo;

enum Color { RED, GREEN, BLUE }

sealed interface Shape permits Circle, Square {}

record Circle(double radius) implements Shape {}

record Square(double side) implements Shape {}

record Box(Shape s) {}

class Paint {
    int all(Color c) {
        return switch (c) {
            case RED, GREEN -> 1;
            case BLUE -> 2;
        };
    }

    int some(Color c) {
        return switch (c) {
            case RED -> 1;
            case GREEN -> 2;
        };
    }

    int boxed(Box b) {
        return switch (b) {
            case Box(Circle c) -> 1;
            case Box(Square q) -> 2;
        };
    }
}
`})

	out, err := run(t, "patterns", "Paint.java")
	require.NoError(t, err)
	assert.Contains(t, out, "switch on geo.Color")
	assert.Contains(t, out, "switch on geo.Box")
	assert.Equal(t, 2, strings.Count(out, "  exhaustive\n"), out)
	assert.Contains(t, out, "not exhaustive, missing geo.Color.BLUE\n")
}

func TestPatterns_Dominated(t *testing.T) {
	workspace(t, map[string]string{"D.java": `class D {
    void f(Object o) {
        switch (o) {
            case CharSequence cs -> {}
            case String s -> {}
            default -> {}
        }
    }
}
`})

	out, err := run(t, "patterns", "--selector", "java.lang.Object", "D.java")
	require.NoError(t, err)
	assert.Contains(t, out, "case 1 label 0 is dominated by case 0 label 0")
	assert.Contains(t, out, "  exhaustive\n")
}

func TestResolve(t *testing.T) {
	workspace(t, map[string]string{"Counter.java": counter})

	out, err := run(t, "resolve", "--name", "count", "Counter.java")
	require.NoError(t, err)
	assert.Contains(t, out, `"count" -> single field Counter.count (Counter.java:2:17)`)

	offset := strings.Index(counter, "count++")
	out, err = run(t, "resolve", "--offset", strconv.Itoa(offset), "Counter.java")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, "Counter.java:5:9")

	_, err = run(t, "resolve", "--offset", "0", "Counter.java")
	assert.ErrorContains(t, err, "no reference")
}

func TestIndexAndResolve(t *testing.T) {
	dir := workspace(t, map[string]string{
		"src/geo/Shape.java": "package geo;\n\npublic interface Shape {}\n",
		"src/app/Main.java":  "package app;\n\nimport geo.Shape;\n\nclass Main {\n    Shape s;\n}\n",
	})
	dbPath := filepath.Join(dir, "data", "index.db")

	out, err := run(t, "--db", dbPath, "index", "src")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 2, unchanged 0, failed 0")
	assert.FileExists(t, dbPath)

	out, err = run(t, "--db", dbPath, "index", "src")
	require.NoError(t, err)
	assert.Contains(t, out, "indexed 0, unchanged 2")

	main := filepath.Join("src", "app", "Main.java")
	out, err = run(t, "resolve", "--name", "Shape", main)
	require.NoError(t, err)
	assert.Contains(t, out, "-> unresolved")

	out, err = run(t, "--db", dbPath, "resolve", "--index", "--name", "Shape", main)
	require.NoError(t, err)
	assert.Contains(t, out, "-> single interface geo.Shape")
	assert.Contains(t, out, "Shape.java")
}

func TestRename(t *testing.T) {
	dir := workspace(t, map[string]string{"Counter.java": counter})
	offset := strconv.Itoa(strings.Index(counter, "count;"))

	out, err := run(t, "rename", "--offset", offset, "--to", "total", "Counter.java")
	require.NoError(t, err)
	assert.Contains(t, out, "-    private int count;")
	assert.Contains(t, out, "+    private int total;")
	assert.Contains(t, out, "+        total++;")

	data, err := os.ReadFile(filepath.Join(dir, "Counter.java"))
	require.NoError(t, err)
	assert.Equal(t, counter, string(data))

	out, err = run(t, "rename", "--offset", offset, "--to", "total", "--write", "Counter.java")
	require.NoError(t, err)
	assert.Contains(t, out, "renamed field count to total (2 edits)")

	data, err = os.ReadFile(filepath.Join(dir, "Counter.java"))
	require.NoError(t, err)
	assert.Equal(t, strings.ReplaceAll(counter, "count", "total"), string(data))

	_, err = run(t, "rename", "--offset", offset, "--to", "class", "Counter.java")
	assert.Error(t, err)
}
