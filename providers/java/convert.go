package java

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/tree"
)

var typeDeclarations = map[string]core.Kind{
	"class_declaration":           core.KindClass,
	"interface_declaration":       core.KindInterface,
	"enum_declaration":            core.KindEnum,
	"record_declaration":          core.KindRecord,
	"annotation_type_declaration": core.KindAnnotationType,
}

var literalNodes = map[string]bool{
	"decimal_integer_literal":        true,
	"hex_integer_literal":            true,
	"octal_integer_literal":          true,
	"binary_integer_literal":         true,
	"decimal_floating_point_literal": true,
	"hex_floating_point_literal":     true,
	"character_literal":              true,
	"string_literal":                 true,
	"text_block":                     true,
	"null_literal":                   true,
	"true":                           true,
	"false":                          true,
}

var typeNodes = map[string]bool{
	"type_identifier":        true,
	"scoped_type_identifier": true,
	"generic_type":           true,
	"array_type":             true,
	"integral_type":          true,
	"floating_point_type":    true,
	"boolean_type":           true,
	"void_type":              true,
	"annotated_type":         true,
}

var directiveKinds = map[string]core.Kind{
	"requires": core.KindRequiresDirective,
	"exports":  core.KindExportsDirective,
	"opens":    core.KindOpensDirective,
	"uses":     core.KindUsesDirective,
	"provides": core.KindProvidesDirective,
}

type field struct {
	node *sitter.Node
	name string
}

// fields lists the children of n together with their grammar field names
func fields(n *sitter.Node) []field {
	cur := sitter.NewTreeCursor(n)
	defer cur.Close()
	if !cur.GoToFirstChild() {
		return nil
	}
	var out []field
	for {
		out = append(out, field{node: cur.CurrentNode(), name: cur.CurrentFieldName()})
		if !cur.GoToNextSibling() {
			return out
		}
	}
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, f := range fields(n) {
		if f.node.IsNamed() && !isComment(f.node) {
			out = append(out, f.node)
		}
	}
	return out
}

func isComment(n *sitter.Node) bool {
	t := n.Type()
	return t == "line_comment" || t == "block_comment" || t == "comment"
}

// kids accumulates converted children, keeping the first error
type kids struct {
	ids []tree.NodeID
	err error
}

func (k *kids) add(id tree.NodeID, err error) {
	if k.err != nil {
		return
	}
	if err != nil {
		k.err = err
		return
	}
	if id != 0 {
		k.ids = append(k.ids, id)
	}
}

// converter builds the store nodes of one tree-sitter tree bottom-up
type converter struct {
	src   []byte
	store *tree.Store
}

func (c *converter) span(n *sitter.Node) core.Span {
	return core.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func (c *converter) text(n *sitter.Node) string {
	return string(c.src[n.StartByte():n.EndByte()])
}

// compact drops all whitespace: "java . util" becomes "java.util"
func (c *converter) compact(n *sitter.Node) string {
	return strings.Join(strings.Fields(c.text(n)), "")
}

func (c *converter) create(kind core.Kind, role core.Role, span core.Span, token string, k *kids) (tree.NodeID, error) {
	if k != nil && k.err != nil {
		return 0, k.err
	}
	var children []tree.NodeID
	if k != nil {
		children = k.ids
	}
	id, err := c.store.CreateNode(tree.NodeSpec{Kind: kind, Role: role, Span: span, Token: token}, children...)
	if err != nil {
		return 0, fmt.Errorf("%s at %s: %w", kind, span, err)
	}
	return id, nil
}

func (c *converter) node(n *sitter.Node, kind core.Kind, role core.Role, token string, k *kids) (tree.NodeID, error) {
	return c.create(kind, role, c.span(n), token, k)
}

func (c *converter) leaf(n *sitter.Node, kind core.Kind, role core.Role, token string) (tree.NodeID, error) {
	return c.create(kind, role, c.span(n), token, nil)
}

func (c *converter) name(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	return c.leaf(n, core.KindName, role, c.compact(n))
}

// file converts the program node. The file node covers the whole source.
func (c *converter) file(n *sitter.Node) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		role := core.RoleStatement
		switch t := f.node.Type(); {
		case t == "package_declaration":
			role = core.RolePackage
		case t == "import_declaration":
			role = core.RoleImport
		case t == "module_declaration":
			role = core.RoleModule
		case typeDeclarations[t] != core.KindInvalid:
			role = core.RoleNone
		}
		k.add(c.convert(f.node, role))
	}
	return c.create(core.KindFile, core.RoleNone, core.Span{End: len(c.src)}, "", &k)
}

func (c *converter) convert(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	if n == nil || n.IsMissing() || isComment(n) {
		return 0, nil
	}
	t := n.Type()
	if t == "ERROR" {
		return c.leaf(n, core.KindError, role, "")
	}
	if !n.IsNamed() {
		return 0, nil
	}
	if kind, ok := typeDeclarations[t]; ok {
		return c.typeDeclaration(n, kind, role)
	}
	if literalNodes[t] {
		return c.leaf(n, core.KindLiteral, role, c.text(n))
	}
	if typeNodes[t] {
		return c.typeRef(n, role)
	}

	switch t {
	case "program":
		return c.file(n)
	case "package_declaration":
		return c.packageDeclaration(n, role)
	case "import_declaration":
		return c.importDeclaration(n, role)
	case "module_declaration":
		return c.moduleDeclaration(n, role)
	case "modifiers":
		return c.modifiers(n, role)
	case "marker_annotation", "annotation":
		return c.leaf(n, core.KindAnnotation, role, c.text(n))

	case "field_declaration", "constant_declaration":
		return c.variables(n, core.KindField, role)
	case "local_variable_declaration":
		return c.variables(n, core.KindLocalVariable, role)
	case "method_declaration", "annotation_type_element_declaration":
		return c.callable(n, core.KindMethod, role)
	case "constructor_declaration", "compact_constructor_declaration":
		return c.callable(n, core.KindConstructor, role)
	case "enum_constant":
		return c.enumConstant(n, role)
	case "static_initializer":
		return c.initializer(n, role)
	case "formal_parameters":
		return c.parameters(n, role)
	case "formal_parameter", "spread_parameter":
		return c.parameter(n, role)

	case "block", "constructor_body":
		return c.block(n, role)
	case "expression_statement":
		var k kids
		for _, ch := range namedChildren(n) {
			k.add(c.convert(ch, core.RoleValue))
		}
		return c.node(n, core.KindExpressionStatement, role, "", &k)
	case "if_statement":
		return c.ifStatement(n, role)
	case "while_statement":
		return c.fielded(n, core.KindWhile, role, map[string]core.Role{"condition": core.RoleCondition, "body": core.RoleBody})
	case "do_statement":
		return c.fielded(n, core.KindDoWhile, role, map[string]core.Role{"body": core.RoleBody, "condition": core.RoleCondition})
	case "for_statement":
		return c.fielded(n, core.KindFor, role, map[string]core.Role{
			"init": core.RoleInit, "condition": core.RoleCondition, "update": core.RoleUpdate, "body": core.RoleBody,
		})
	case "enhanced_for_statement":
		return c.forEach(n, role)
	case "switch_expression", "switch_statement":
		kind := core.KindSwitchExpression
		if t == "switch_statement" || statementRole(role) {
			kind = core.KindSwitchStatement
		}
		return c.switchNode(n, kind, role)
	case "return_statement":
		return c.valued(n, core.KindReturn, role)
	case "throw_statement":
		return c.valued(n, core.KindThrow, role)
	case "yield_statement":
		return c.valued(n, core.KindYield, role)
	case "break_statement":
		return c.jump(n, core.KindBreak, role)
	case "continue_statement":
		return c.jump(n, core.KindContinue, role)
	case "labeled_statement":
		var k kids
		for _, ch := range namedChildren(n) {
			if ch.Type() == "identifier" && len(k.ids) == 0 {
				k.add(c.name(ch, core.RoleLabel))
				continue
			}
			k.add(c.convert(ch, core.RoleBody))
		}
		return c.node(n, core.KindLabeled, role, "", &k)
	case "try_statement", "try_with_resources_statement":
		return c.try(n, role)
	case "synchronized_statement":
		var k kids
		for _, ch := range namedChildren(n) {
			if ch.Type() == "block" {
				k.add(c.block(ch, core.RoleBody))
				continue
			}
			k.add(c.unwrapped(ch, core.RoleValue))
		}
		return c.node(n, core.KindSynchronized, role, "", &k)
	case "assert_statement":
		var k kids
		for i, ch := range namedChildren(n) {
			r := core.RoleCondition
			if i > 0 {
				r = core.RoleValue
			}
			k.add(c.convert(ch, r))
		}
		return c.node(n, core.KindAssert, role, "", &k)
	case "explicit_constructor_invocation":
		return c.constructorInvocation(n, role)

	case "identifier":
		return c.leaf(n, core.KindIdentifier, role, c.text(n))
	case "this":
		return c.leaf(n, core.KindThis, role, "this")
	case "super":
		return c.leaf(n, core.KindSuper, role, "super")
	case "parenthesized_expression":
		var k kids
		for _, ch := range namedChildren(n) {
			k.add(c.convert(ch, core.RoleOperand))
		}
		return c.node(n, core.KindParenthesized, role, "", &k)
	case "binary_expression":
		return c.operator(n, core.KindBinary, role, map[string]core.Role{"left": core.RoleLeft, "right": core.RoleRight})
	case "assignment_expression":
		return c.operator(n, core.KindAssignment, role, map[string]core.Role{"left": core.RoleLeft, "right": core.RoleRight})
	case "unary_expression":
		return c.operator(n, core.KindUnary, role, map[string]core.Role{"operand": core.RoleOperand})
	case "update_expression":
		return c.update(n, role)
	case "ternary_expression":
		return c.fielded(n, core.KindConditional, role, map[string]core.Role{
			"condition": core.RoleCondition, "consequence": core.RoleThen, "alternative": core.RoleElse,
		})
	case "cast_expression":
		return c.fielded(n, core.KindCast, role, map[string]core.Role{"type": core.RoleType, "value": core.RoleOperand})
	case "instanceof_expression":
		return c.instanceOf(n, role)
	case "method_invocation":
		return c.fielded(n, core.KindMethodCall, role, map[string]core.Role{
			"object": core.RoleQualifier, "name": core.RoleName, "arguments": core.RoleArguments,
		})
	case "field_access":
		return c.fielded(n, core.KindFieldAccess, role, map[string]core.Role{
			"object": core.RoleQualifier, "field": core.RoleName,
		})
	case "argument_list":
		var k kids
		for _, ch := range namedChildren(n) {
			k.add(c.convert(ch, core.RoleArgument))
		}
		return c.node(n, core.KindArgumentList, role, "", &k)
	case "object_creation_expression":
		return c.creation(n, role)
	case "array_creation_expression":
		return c.arrayCreation(n, role)
	case "array_initializer":
		var k kids
		for _, ch := range namedChildren(n) {
			k.add(c.convert(ch, core.RoleArgument))
		}
		return c.node(n, core.KindArrayInit, role, "", &k)
	case "array_access":
		return c.fielded(n, core.KindArrayAccess, role, map[string]core.Role{"array": core.RoleOperand, "index": core.RoleIndex})
	case "lambda_expression":
		return c.lambda(n, role)
	case "method_reference":
		var k kids
		for i, ch := range namedChildren(n) {
			r := core.RoleQualifier
			if i > 0 {
				r = core.RoleName
			}
			if ch.Type() == "identifier" && i > 0 {
				k.add(c.name(ch, r))
				continue
			}
			k.add(c.convert(ch, r))
		}
		return c.node(n, core.KindMethodRef, role, "", &k)
	case "class_literal":
		var k kids
		for _, ch := range namedChildren(n) {
			k.add(c.typeRef(ch, core.RoleType))
		}
		return c.node(n, core.KindClassLiteral, role, "", &k)
	case "scoped_identifier":
		return c.scopedIdentifier(n, role)
	}
	return c.leaf(n, core.KindError, role, t)
}

func statementRole(role core.Role) bool {
	switch role {
	case core.RoleStatement, core.RoleThen, core.RoleElse, core.RoleBody:
		return true
	}
	return false
}

// unwrapped converts n, replacing a parenthesized wrapper by its content
func (c *converter) unwrapped(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	if n.Type() == "parenthesized_expression" {
		if inner := namedChildren(n); len(inner) == 1 {
			return c.convert(inner[0], role)
		}
	}
	return c.convert(n, role)
}

// fielded converts the children of n carrying one of the given grammar
// fields. Name-like fields become Name leaves; parenthesized conditions are
// unwrapped.
func (c *converter) fielded(n *sitter.Node, kind core.Kind, role core.Role, roles map[string]core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		r, ok := roles[f.name]
		if !ok {
			continue
		}
		switch {
		case r == core.RoleName && f.node.Type() == "identifier":
			k.add(c.name(f.node, r))
		case r == core.RoleCondition:
			k.add(c.unwrapped(f.node, r))
		case r == core.RoleType:
			k.add(c.typeRef(f.node, r))
		default:
			k.add(c.convert(f.node, r))
		}
	}
	return c.node(n, kind, role, "", &k)
}

// operator is fielded with the operator text as token
func (c *converter) operator(n *sitter.Node, kind core.Kind, role core.Role, roles map[string]core.Role) (tree.NodeID, error) {
	var k kids
	op := ""
	for _, f := range fields(n) {
		if f.name == "operator" {
			op = f.node.Type()
			continue
		}
		if r, ok := roles[f.name]; ok {
			k.add(c.convert(f.node, r))
		}
	}
	return c.node(n, kind, role, op, &k)
}

func (c *converter) update(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	kind, op := core.KindPostfix, ""
	for i, f := range fields(n) {
		if !f.node.IsNamed() {
			op = f.node.Type()
			if i == 0 {
				kind = core.KindUnary
			}
			continue
		}
		k.add(c.convert(f.node, core.RoleOperand))
	}
	return c.node(n, kind, role, op, &k)
}

func (c *converter) typeRef(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	return c.leaf(n, core.KindTypeRef, role, c.typeText(n))
}

// typeText renders a type without annotations and with normalized spacing
func (c *converter) typeText(n *sitter.Node) string {
	if n.Type() == "annotated_type" {
		if parts := namedChildren(n); len(parts) > 0 {
			return c.typeText(parts[len(parts)-1])
		}
	}
	text := strings.Join(strings.Fields(c.text(n)), " ")
	for _, r := range []struct{ from, to string }{{" <", "<"}, {"< ", "<"}, {" >", ">"}, {" ,", ","}, {" [", "["}, {"[ ", "["}, {" ]", "]"}, {" .", "."}, {". ", "."}} {
		text = strings.ReplaceAll(text, r.from, r.to)
	}
	return text
}

func (c *converter) packageDeclaration(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, ch := range namedChildren(n) {
		if t := ch.Type(); t == "identifier" || t == "scoped_identifier" {
			k.add(c.name(ch, core.RoleName))
		}
	}
	return c.node(n, core.KindPackage, role, "", &k)
}

// importDeclaration keeps the imported path as one Name token, on-demand
// imports included: "java.util.*"
func (c *converter) importDeclaration(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	var path, star *sitter.Node
	for _, f := range fields(n) {
		switch t := f.node.Type(); {
		case !f.node.IsNamed() && (t == "static" || t == "module"):
			var mod kids
			mod.add(c.leaf(f.node, core.KindKeyword, core.RoleNone, t))
			k.add(c.node(f.node, core.KindModifiers, core.RoleModifiers, "", &mod))
		case t == "identifier" || t == "scoped_identifier":
			path = f.node
		case t == "asterisk" || t == "*":
			star = f.node
		}
	}
	if path != nil {
		span, token := c.span(path), c.compact(path)
		if star != nil {
			span.End = int(star.EndByte())
			token += ".*"
		}
		k.add(c.create(core.KindName, core.RoleName, span, token, nil))
	}
	return c.node(n, core.KindImport, role, "", &k)
}

func (c *converter) moduleDeclaration(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch {
		case !f.node.IsNamed() && f.node.Type() == "open":
			var mod kids
			mod.add(c.leaf(f.node, core.KindKeyword, core.RoleNone, "open"))
			k.add(c.node(f.node, core.KindModifiers, core.RoleModifiers, "", &mod))
		case f.name == "name":
			k.add(c.name(f.node, core.RoleName))
		case f.name == "body" || f.node.Type() == "module_body":
			var body kids
			for _, d := range namedChildren(f.node) {
				body.add(c.directive(d))
			}
			k.add(c.node(f.node, core.KindModuleBody, core.RoleBody, "", &body))
		}
	}
	return c.node(n, core.KindModule, role, "", &k)
}

// directive converts a module directive. Grammar versions differ in whether
// directives are wrapped, so the kind comes from the leading keyword.
func (c *converter) directive(n *sitter.Node) (tree.NodeID, error) {
	if n.Type() == "module_directive" {
		if inner := namedChildren(n); len(inner) == 1 && strings.HasSuffix(inner[0].Type(), "_module_directive") {
			return c.directive(inner[0])
		}
	}
	var kind core.Kind
	var k kids
	first := true
	for _, f := range fields(n) {
		t := f.node.Type()
		if !f.node.IsNamed() {
			if d, ok := directiveKinds[t]; ok && kind == core.KindInvalid {
				kind = d
			}
			continue
		}
		if isComment(f.node) {
			continue
		}
		nameRole, typeRole := core.RoleTarget, core.RoleTarget
		if first {
			nameRole, typeRole = core.RoleName, core.RoleType
		}
		switch {
		case t == "requires_modifier":
			var mod kids
			mod.add(c.leaf(f.node, core.KindKeyword, core.RoleNone, c.text(f.node)))
			k.add(c.node(f.node, core.KindModifiers, core.RoleModifiers, "", &mod))
			continue
		case kind == core.KindUsesDirective || kind == core.KindProvidesDirective:
			k.add(c.leaf(f.node, core.KindTypeRef, typeRole, c.compact(f.node)))
		default:
			k.add(c.name(f.node, nameRole))
		}
		first = false
	}
	if kind == core.KindInvalid {
		return c.leaf(n, core.KindError, core.RoleStatement, n.Type())
	}
	return c.node(n, kind, core.RoleStatement, "", &k)
}

func (c *converter) modifiers(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch t := f.node.Type(); {
		case t == "marker_annotation" || t == "annotation":
			k.add(c.leaf(f.node, core.KindAnnotation, core.RoleNone, c.text(f.node)))
		case !f.node.IsNamed():
			k.add(c.leaf(f.node, core.KindKeyword, core.RoleNone, t))
		}
	}
	return c.node(n, core.KindModifiers, role, "", &k)
}

func (c *converter) typeDeclaration(n *sitter.Node, kind core.Kind, role core.Role) (tree.NodeID, error) {
	if kind == core.KindClass && role == core.RoleStatement {
		kind = core.KindLocalClass
	}
	var k kids
	for _, f := range fields(n) {
		switch f.node.Type() {
		case "modifiers":
			k.add(c.modifiers(f.node, core.RoleModifiers))
		case "identifier":
			if f.name == "name" {
				k.add(c.name(f.node, core.RoleName))
			}
		case "type_parameters":
			for _, p := range namedChildren(f.node) {
				k.add(c.typeParameter(p))
			}
		case "superclass", "extends_interfaces":
			k.add(c.typeList(f.node, core.KindSuperclass, core.RoleSuperclass))
		case "super_interfaces":
			k.add(c.typeList(f.node, core.KindInterfaces, core.RoleInterfaces))
		case "permits":
			k.add(c.typeList(f.node, core.KindPermits, core.RolePermits))
		case "formal_parameters":
			for _, p := range namedChildren(f.node) {
				k.add(c.component(p))
			}
		case "class_body", "interface_body", "enum_body", "annotation_type_body":
			k.add(c.classBody(f.node, core.RoleBody))
		}
	}
	return c.node(n, kind, role, "", &k)
}

func (c *converter) typeParameter(n *sitter.Node) (tree.NodeID, error) {
	var k kids
	named := false
	for _, ch := range namedChildren(n) {
		switch {
		case !named && (ch.Type() == "type_identifier" || ch.Type() == "identifier"):
			k.add(c.name(ch, core.RoleName))
			named = true
		case ch.Type() == "type_bound":
			for i, b := range namedChildren(ch) {
				r := core.RoleType
				if i > 0 {
					r = core.RoleNone
				}
				k.add(c.typeRef(b, r))
			}
		}
	}
	return c.node(n, core.KindTypeParameter, core.RoleTypeParameters, "", &k)
}

// typeList collects every type below n, looking through type_list wrappers
func (c *converter) typeList(n *sitter.Node, kind core.Kind, role core.Role) (tree.NodeID, error) {
	var k kids
	var collect func(*sitter.Node)
	collect = func(p *sitter.Node) {
		for _, ch := range namedChildren(p) {
			switch {
			case typeNodes[ch.Type()]:
				k.add(c.typeRef(ch, core.RoleNone))
			case ch.Type() == "type_list":
				collect(ch)
			}
		}
	}
	collect(n)
	return c.node(n, kind, role, "", &k)
}

func (c *converter) component(n *sitter.Node) (tree.NodeID, error) {
	if n.Type() != "formal_parameter" && n.Type() != "spread_parameter" {
		return 0, nil
	}
	var k kids
	for _, f := range fields(n) {
		switch {
		case f.node.Type() == "modifiers":
			k.add(c.modifiers(f.node, core.RoleModifiers))
		case f.name == "type":
			k.add(c.typeRef(f.node, core.RoleType))
		case f.name == "name":
			k.add(c.name(f.node, core.RoleName))
		}
	}
	return c.node(n, core.KindRecordComponent, core.RoleComponent, "", &k)
}

func (c *converter) classBody(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	var members func(*sitter.Node)
	members = func(p *sitter.Node) {
		for _, ch := range namedChildren(p) {
			switch ch.Type() {
			case "enum_body_declarations":
				members(ch)
			case "block":
				var init kids
				init.add(c.block(ch, core.RoleBody))
				k.add(c.node(ch, core.KindInitializer, core.RoleMember, "", &init))
			default:
				k.add(c.convert(ch, core.RoleMember))
			}
		}
	}
	members(n)
	return c.node(n, core.KindClassBody, role, "", &k)
}

func (c *converter) initializer(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch {
		case !f.node.IsNamed() && f.node.Type() == "static":
			var mod kids
			mod.add(c.leaf(f.node, core.KindKeyword, core.RoleNone, "static"))
			k.add(c.node(f.node, core.KindModifiers, core.RoleModifiers, "", &mod))
		case f.node.Type() == "block":
			k.add(c.block(f.node, core.RoleBody))
		}
	}
	return c.node(n, core.KindInitializer, role, "", &k)
}

func (c *converter) enumConstant(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch {
		case f.node.Type() == "modifiers":
			k.add(c.modifiers(f.node, core.RoleModifiers))
		case f.name == "name":
			k.add(c.name(f.node, core.RoleName))
		case f.name == "arguments":
			k.add(c.convert(f.node, core.RoleArguments))
		case f.name == "body":
			k.add(c.classBody(f.node, core.RoleBody))
		}
	}
	return c.node(n, core.KindEnumConstant, role, "", &k)
}

// variables converts field and local variable declarations
func (c *converter) variables(n *sitter.Node, kind core.Kind, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch {
		case f.node.Type() == "modifiers":
			k.add(c.modifiers(f.node, core.RoleModifiers))
		case f.name == "type":
			k.add(c.typeRef(f.node, core.RoleType))
		case f.name == "declarator":
			k.add(c.declarator(f.node))
		}
	}
	return c.node(n, kind, role, "", &k)
}

func (c *converter) declarator(n *sitter.Node) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch f.name {
		case "name":
			k.add(c.name(f.node, core.RoleName))
		case "value":
			k.add(c.convert(f.node, core.RoleValue))
		}
	}
	return c.node(n, core.KindVariableDeclarator, core.RoleDeclarator, "", &k)
}

// callable converts methods and constructors. Constructor bodies become
// ordinary blocks.
func (c *converter) callable(n *sitter.Node, kind core.Kind, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch {
		case f.node.Type() == "modifiers":
			k.add(c.modifiers(f.node, core.RoleModifiers))
		case f.node.Type() == "type_parameters":
			for _, p := range namedChildren(f.node) {
				k.add(c.typeParameter(p))
			}
		case f.name == "type" && kind == core.KindMethod:
			k.add(c.typeRef(f.node, core.RoleType))
		case f.name == "name":
			k.add(c.name(f.node, core.RoleName))
		case f.name == "parameters":
			k.add(c.parameters(f.node, core.RoleParameters))
		case f.name == "body":
			k.add(c.block(f.node, core.RoleBody))
		}
	}
	return c.node(n, kind, role, "", &k)
}

func (c *converter) parameters(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, ch := range namedChildren(n) {
		switch ch.Type() {
		case "formal_parameter", "spread_parameter":
			k.add(c.parameter(ch, core.RoleParameter))
		case "identifier":
			// inferred lambda parameters
			var p kids
			p.add(c.name(ch, core.RoleName))
			k.add(c.node(ch, core.KindParameter, core.RoleParameter, "", &p))
		}
	}
	return c.node(n, core.KindParameterList, role, "", &k)
}

func (c *converter) parameter(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	spread := n.Type() == "spread_parameter"
	for _, f := range fields(n) {
		t := f.node.Type()
		switch {
		case t == "modifiers":
			k.add(c.modifiers(f.node, core.RoleModifiers))
		case f.name == "type" || (spread && typeNodes[t]):
			token := c.typeText(f.node)
			if spread {
				token += "[]"
			}
			k.add(c.leaf(f.node, core.KindTypeRef, core.RoleType, token))
		case f.name == "name":
			k.add(c.name(f.node, core.RoleName))
		case spread && t == "variable_declarator":
			if name := f.node.ChildByFieldName("name"); name != nil {
				k.add(c.name(name, core.RoleName))
			}
		}
	}
	return c.node(n, core.KindParameter, role, "", &k)
}

func (c *converter) block(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, ch := range namedChildren(n) {
		k.add(c.convert(ch, core.RoleStatement))
	}
	return c.node(n, core.KindBlock, role, "", &k)
}

func (c *converter) ifStatement(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	return c.fielded(n, core.KindIf, role, map[string]core.Role{
		"condition": core.RoleCondition, "consequence": core.RoleThen, "alternative": core.RoleElse,
	})
}

// valued converts return, throw and yield
func (c *converter) valued(n *sitter.Node, kind core.Kind, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, ch := range namedChildren(n) {
		k.add(c.convert(ch, core.RoleValue))
	}
	return c.node(n, kind, role, "", &k)
}

func (c *converter) jump(n *sitter.Node, kind core.Kind, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, ch := range namedChildren(n) {
		if ch.Type() == "identifier" {
			k.add(c.name(ch, core.RoleLabel))
		}
	}
	return c.node(n, kind, role, "", &k)
}

// forEach gives the loop variable of an enhanced for the shape of a local
// variable declaration in the init slot
func (c *converter) forEach(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var variable kids
	var start, end = -1, -1
	var rest []field
	for _, f := range fields(n) {
		switch {
		case f.node.Type() == "modifiers":
			variable.add(c.modifiers(f.node, core.RoleModifiers))
			start = int(f.node.StartByte())
		case f.name == "type":
			variable.add(c.typeRef(f.node, core.RoleType))
			if start < 0 {
				start = int(f.node.StartByte())
			}
		case f.name == "name":
			var decl kids
			decl.add(c.name(f.node, core.RoleName))
			variable.add(c.node(f.node, core.KindVariableDeclarator, core.RoleDeclarator, "", &decl))
			end = int(f.node.EndByte())
		case f.name == "value" || f.name == "body":
			rest = append(rest, f)
		}
	}
	var k kids
	if start >= 0 && end >= start {
		k.add(c.create(core.KindLocalVariable, core.RoleInit, core.Span{Start: start, End: end}, "", &variable))
	} else if variable.err != nil {
		k.add(0, variable.err)
	}
	for _, f := range rest {
		r := core.RoleValue
		if f.name == "body" {
			r = core.RoleBody
		}
		k.add(c.convert(f.node, r))
	}
	return c.node(n, core.KindForEach, role, "", &k)
}

func (c *converter) try(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch t := f.node.Type(); {
		case t == "resource_specification":
			var res kids
			for _, r := range namedChildren(f.node) {
				res.add(c.resource(r))
			}
			k.add(c.node(f.node, core.KindResourceList, core.RoleResources, "", &res))
		case f.name == "body":
			k.add(c.block(f.node, core.RoleBody))
		case t == "catch_clause":
			k.add(c.catch(f.node))
		case t == "finally_clause":
			var fin kids
			for _, b := range namedChildren(f.node) {
				fin.add(c.block(b, core.RoleBody))
			}
			k.add(c.node(f.node, core.KindFinally, core.RoleFinally, "", &fin))
		}
	}
	return c.node(n, core.KindTry, role, "", &k)
}

func (c *converter) resource(n *sitter.Node) (tree.NodeID, error) {
	name := n.ChildByFieldName("name")
	if name == nil {
		var k kids
		for _, ch := range namedChildren(n) {
			k.add(c.convert(ch, core.RoleValue))
		}
		if len(k.ids) == 1 && k.err == nil {
			return k.ids[0], nil
		}
		return c.node(n, core.KindExpressionStatement, core.RoleStatement, "", &k)
	}
	var k kids
	for _, f := range fields(n) {
		switch {
		case f.node.Type() == "modifiers":
			k.add(c.modifiers(f.node, core.RoleModifiers))
		case f.name == "type":
			k.add(c.typeRef(f.node, core.RoleType))
		}
	}
	var decl kids
	decl.add(c.name(name, core.RoleName))
	span := c.span(name)
	if value := n.ChildByFieldName("value"); value != nil {
		decl.add(c.convert(value, core.RoleValue))
		span.End = int(value.EndByte())
	}
	k.add(c.create(core.KindVariableDeclarator, core.RoleDeclarator, span, "", &decl))
	return c.node(n, core.KindLocalVariable, core.RoleStatement, "", &k)
}

func (c *converter) catch(n *sitter.Node) (tree.NodeID, error) {
	var k kids
	for _, ch := range namedChildren(n) {
		switch ch.Type() {
		case "catch_formal_parameter":
			var p kids
			for _, f := range fields(ch) {
				switch {
				case f.node.Type() == "modifiers":
					p.add(c.modifiers(f.node, core.RoleModifiers))
				case f.node.Type() == "catch_type":
					for _, alt := range namedChildren(f.node) {
						p.add(c.typeRef(alt, core.RoleType))
					}
				case f.name == "name":
					p.add(c.name(f.node, core.RoleName))
				}
			}
			k.add(c.node(ch, core.KindParameter, core.RoleParameter, "", &p))
		case "block":
			k.add(c.block(ch, core.RoleBody))
		}
	}
	return c.node(n, core.KindCatch, core.RoleCatch, "", &k)
}

func (c *converter) switchNode(n *sitter.Node, kind core.Kind, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch f.name {
		case "condition":
			k.add(c.unwrapped(f.node, core.RoleSelector))
		case "body":
			k.add(c.switchBlock(f.node))
		}
	}
	return c.node(n, kind, role, "", &k)
}

func (c *converter) switchBlock(n *sitter.Node) (tree.NodeID, error) {
	var k kids
	for _, entry := range namedChildren(n) {
		var e kids
		kind := core.KindCaseGroup
		if entry.Type() == "switch_rule" {
			kind = core.KindSwitchRule
		} else if entry.Type() != "switch_block_statement_group" {
			k.add(c.convert(entry, core.RoleStatement))
			continue
		}
		for _, ch := range namedChildren(entry) {
			switch {
			case ch.Type() == "switch_label":
				e.add(c.switchLabel(ch))
			case kind == core.KindSwitchRule:
				e.add(c.convert(ch, core.RoleBody))
			default:
				e.add(c.convert(ch, core.RoleStatement))
			}
		}
		k.add(c.node(entry, kind, core.RoleNone, "", &e))
	}
	return c.node(n, core.KindSwitchBlock, core.RoleBody, "", &k)
}

func (c *converter) switchLabel(n *sitter.Node) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch t := f.node.Type(); {
		case !f.node.IsNamed() && t == "default":
			k.add(c.leaf(f.node, core.KindDefaultLabel, core.RoleNone, "default"))
		case t == "pattern" || t == "type_pattern" || t == "record_pattern":
			k.add(c.pattern(f.node, core.RoleNone))
		case t == "guard":
			var g kids
			for _, ch := range namedChildren(f.node) {
				g.add(c.convert(ch, core.RoleValue))
			}
			k.add(c.node(f.node, core.KindPatternGuard, core.RoleGuard, "", &g))
		case f.node.IsNamed():
			k.add(c.convert(f.node, core.RoleNone))
		}
	}
	return c.node(n, core.KindSwitchLabel, core.RoleLabel, "", &k)
}

func (c *converter) pattern(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	switch n.Type() {
	case "pattern", "record_pattern_component":
		inner := namedChildren(n)
		if len(inner) == 1 {
			return c.pattern(inner[0], role)
		}
		return c.typeTest(n, role)
	case "type_pattern":
		return c.typeTest(n, role)
	case "record_pattern":
		var k kids
		typed := false
		for _, ch := range namedChildren(n) {
			switch t := ch.Type(); {
			case !typed && (typeNodes[t] || t == "identifier" || t == "scoped_identifier"):
				k.add(c.leaf(ch, core.KindTypeRef, core.RoleType, c.typeText(ch)))
				typed = true
			case t == "record_pattern_body":
				for _, comp := range namedChildren(ch) {
					k.add(c.pattern(comp, core.RoleComponent))
				}
			case t == "identifier":
				k.add(c.name(ch, core.RoleName))
			}
		}
		return c.node(n, core.KindRecordPattern, role, "", &k)
	case "underscore_pattern", "_":
		return c.leaf(n, core.KindUnnamedPattern, role, "_")
	case "parenthesized_pattern":
		var k kids
		for _, ch := range namedChildren(n) {
			k.add(c.pattern(ch, core.RolePattern))
		}
		return c.node(n, core.KindParenthesizedPattern, role, "", &k)
	}
	return c.leaf(n, core.KindError, role, n.Type())
}

// typeTest converts "Type name" pattern shapes
func (c *converter) typeTest(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch t := f.node.Type(); {
		case typeNodes[t]:
			k.add(c.typeRef(f.node, core.RoleType))
		case t == "identifier" || t == "underscore_pattern" || t == "_":
			k.add(c.name(f.node, core.RoleName))
		}
	}
	return c.node(n, core.KindTypeTestPattern, role, "", &k)
}

// instanceOf converts both "x instanceof T" and "x instanceof T t"; the
// latter gets a synthesized type test pattern covering "T t"
func (c *converter) instanceOf(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	var typ, name *sitter.Node
	for _, f := range fields(n) {
		switch {
		case f.name == "left":
			k.add(c.convert(f.node, core.RoleOperand))
		case f.name == "right" && typeNodes[f.node.Type()]:
			typ = f.node
		case f.name == "name":
			name = f.node
		case f.name == "pattern" || f.node.Type() == "record_pattern" || f.node.Type() == "type_pattern":
			k.add(c.pattern(f.node, core.RolePattern))
		}
	}
	switch {
	case typ != nil && name != nil:
		var p kids
		p.add(c.typeRef(typ, core.RoleType))
		p.add(c.name(name, core.RoleName))
		span := core.Span{Start: int(typ.StartByte()), End: int(name.EndByte())}
		k.add(c.create(core.KindTypeTestPattern, core.RolePattern, span, "", &p))
	case typ != nil:
		k.add(c.typeRef(typ, core.RoleType))
	}
	return c.node(n, core.KindInstanceOf, role, "", &k)
}

func (c *converter) creation(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch {
		case f.name == "type":
			k.add(c.typeRef(f.node, core.RoleType))
		case f.name == "arguments":
			k.add(c.convert(f.node, core.RoleArguments))
		case f.node.Type() == "class_body":
			k.add(c.classBody(f.node, core.RoleBody))
		case f.node.IsNamed() && f.name == "" && !isComment(f.node) && f.node.Type() != "type_arguments":
			k.add(c.convert(f.node, core.RoleQualifier))
		}
	}
	return c.node(n, core.KindNew, role, "", &k)
}

func (c *converter) arrayCreation(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch {
		case f.name == "type":
			k.add(c.typeRef(f.node, core.RoleType))
		case f.node.Type() == "dimensions_expr":
			for _, d := range namedChildren(f.node) {
				k.add(c.convert(d, core.RoleDimensions))
			}
		case f.name == "value":
			k.add(c.convert(f.node, core.RoleValue))
		}
	}
	return c.node(n, core.KindNewArray, role, "", &k)
}

func (c *converter) lambda(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch f.name {
		case "parameters":
			switch f.node.Type() {
			case "identifier":
				var p kids
				p.add(c.name(f.node, core.RoleName))
				k.add(c.node(f.node, core.KindParameter, core.RoleParameter, "", &p))
			default:
				k.add(c.parameters(f.node, core.RoleParameters))
			}
		case "body":
			k.add(c.convert(f.node, core.RoleBody))
		}
	}
	return c.node(n, core.KindLambda, role, "", &k)
}

// constructorInvocation renders this(...) and super(...) as a call
// statement whose name slot holds the this or super node
func (c *converter) constructorInvocation(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var call kids
	for _, f := range fields(n) {
		switch f.name {
		case "object":
			call.add(c.convert(f.node, core.RoleQualifier))
		case "constructor":
			call.add(c.convert(f.node, core.RoleName))
		case "arguments":
			call.add(c.convert(f.node, core.RoleArguments))
		}
	}
	var k kids
	k.add(c.node(n, core.KindMethodCall, core.RoleValue, "", &call))
	return c.node(n, core.KindExpressionStatement, role, "", &k)
}

// scopedIdentifier renders a dotted name in expression position as nested
// field accesses
func (c *converter) scopedIdentifier(n *sitter.Node, role core.Role) (tree.NodeID, error) {
	var k kids
	for _, f := range fields(n) {
		switch f.name {
		case "scope":
			k.add(c.convert(f.node, core.RoleQualifier))
		case "name":
			k.add(c.name(f.node, core.RoleName))
		}
	}
	return c.node(n, core.KindFieldAccess, role, "", &k)
}
