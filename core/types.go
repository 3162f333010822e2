package core

import (
	"fmt"
	"strings"
)

// Span is a half-open byte range [Start, End) into a source text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span
func (s Span) Len() int {
	return s.End - s.Start
}

// Contains reports whether o lies entirely inside s
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// ContainsOffset reports whether offset falls inside the span
func (s Span) ContainsOffset(offset int) bool {
	return s.Start <= offset && offset < s.End
}

// Shift moves the span by delta bytes
func (s Span) Shift(delta int) Span {
	return Span{Start: s.Start + delta, End: s.End + delta}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// Location in source code
type Location struct {
	File      string `json:"file,omitempty"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line,omitempty"`
	EndColumn int    `json:"end_column,omitempty"`
}

// SourceProvider supplies immutable character ranges for spans.
// The tree never owns raw source text; it only stores spans into it.
type SourceProvider interface {
	Text(span Span) (string, bool)
}

// StringSource is a SourceProvider over an in-memory string
type StringSource string

// Text returns the substring covered by span
func (s StringSource) Text(span Span) (string, bool) {
	if span.Start < 0 || span.End > len(s) || span.Start > span.End {
		return "", false
	}
	return string(s[span.Start:span.End]), true
}

// LocationOf converts a byte span into 1-based line/column positions
func LocationOf(source string, span Span) Location {
	loc := Location{}
	loc.Line, loc.Column = lineColumn(source, span.Start)
	loc.EndLine, loc.EndColumn = lineColumn(source, span.End)
	return loc
}

func lineColumn(source string, offset int) (int, int) {
	if offset > len(source) {
		offset = len(source)
	}
	prefix := source[:offset]
	line := strings.Count(prefix, "\n") + 1
	col := offset - strings.LastIndexByte(prefix, '\n')
	return line, col
}

// DeclKind classifies a declaration
type DeclKind string

const (
	DeclClass           DeclKind = "class"
	DeclInterface       DeclKind = "interface"
	DeclEnum            DeclKind = "enum"
	DeclRecord          DeclKind = "record"
	DeclAnnotation      DeclKind = "annotation"
	DeclMethod          DeclKind = "method"
	DeclConstructor     DeclKind = "constructor"
	DeclField           DeclKind = "field"
	DeclEnumConstant    DeclKind = "enum_constant"
	DeclRecordComponent DeclKind = "record_component"
	DeclParameter       DeclKind = "parameter"
	DeclLocalVariable   DeclKind = "local_variable"
	DeclPatternVariable DeclKind = "pattern_variable"
	DeclTypeParameter   DeclKind = "type_parameter"
	DeclPackage         DeclKind = "package"
	DeclModule          DeclKind = "module"
)

// IsType reports whether the declaration introduces a type name
func (k DeclKind) IsType() bool {
	switch k {
	case DeclClass, DeclInterface, DeclEnum, DeclRecord, DeclAnnotation, DeclTypeParameter:
		return true
	}
	return false
}

// IsVariable reports whether the declaration introduces a variable name
func (k DeclKind) IsVariable() bool {
	switch k {
	case DeclField, DeclEnumConstant, DeclRecordComponent, DeclParameter,
		DeclLocalVariable, DeclPatternVariable:
		return true
	}
	return false
}

// IsCallable reports whether the declaration can be invoked
func (k DeclKind) IsCallable() bool {
	return k == DeclMethod || k == DeclConstructor
}

// Component describes one record component in declaration order
type Component struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Declaration is something a reference can resolve to. Declarations found in
// a syntax tree carry the id of their declaring node; declarations coming from
// a symbol index carry NodeID 0 and a File instead.
type Declaration struct {
	Name          string      `json:"name"`
	QualifiedName string      `json:"qualified_name"`
	Kind          DeclKind    `json:"kind"`
	Owner         string      `json:"owner,omitempty"` // qualified name of the enclosing type
	Package       string      `json:"package,omitempty"`
	Module        string      `json:"module,omitempty"`
	File          string      `json:"file,omitempty"`
	Span          Span        `json:"span"`
	NodeID        uint64      `json:"node_id,omitempty"`
	Static        bool        `json:"static,omitempty"`
	TypeName      string      `json:"type_name,omitempty"` // declared type of variables, return type of methods
	Superclass    string      `json:"superclass,omitempty"`
	Interfaces    []string    `json:"interfaces,omitempty"`
	Components    []Component `json:"components,omitempty"`
	Permits       []string    `json:"permits,omitempty"`
	Modifiers     []string    `json:"modifiers,omitempty"`
}

// HasModifier reports whether the declaration carries the given modifier
func (d Declaration) HasModifier(mod string) bool {
	for _, m := range d.Modifiers {
		if m == mod {
			return true
		}
	}
	return false
}

func (d Declaration) String() string {
	name := d.QualifiedName
	if name == "" {
		name = d.Name
	}
	return fmt.Sprintf("%s %s", d.Kind, name)
}
