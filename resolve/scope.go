package resolve

import (
	"github.com/oxhq/psitree/core"
	"github.com/oxhq/psitree/symbols"
	"github.com/oxhq/psitree/tree"
)

// declared returns the tree-local declarations that node p makes visible to
// its child. Nodes that are not scopes return nothing.
func (w *walk) declared(p, child tree.NodeID) []core.Declaration {
	s := w.snap
	role := s.Role(child)
	var out []core.Declaration
	add := func(ids ...tree.NodeID) {
		for _, id := range ids {
			if d, ok := symbols.Of(s, id, w.pkg); ok {
				out = append(out, d)
			}
		}
	}

	switch k := s.Kind(p); {
	case k == core.KindBlock, k == core.KindResourceList:
		out = append(out, w.statements(p, child)...)

	case k == core.KindCaseGroup:
		if role != core.RoleLabel {
			for _, label := range s.ChildrenWithRole(p, core.RoleLabel) {
				out = append(out, w.patternVars(label)...)
			}
			out = append(out, w.statements(p, child)...)
		}

	case k == core.KindSwitchBlock:
		// locals of earlier statement groups stay in scope for later groups
		for _, group := range s.Children(p) {
			if group == child {
				break
			}
			if s.Kind(group) != core.KindCaseGroup {
				continue
			}
			for _, stmt := range s.Children(group) {
				if s.Kind(stmt) == core.KindLocalVariable {
					add(symbols.Declarators(s, stmt)...)
				}
			}
		}

	case k == core.KindSwitchRule:
		if role != core.RoleLabel {
			if label, ok := s.Child(p, core.RoleLabel); ok {
				out = append(out, w.patternVars(label)...)
			}
		}

	case k == core.KindSwitchLabel:
		if s.Kind(child) == core.KindPatternGuard {
			out = append(out, w.patternVars(p)...)
		}

	case k == core.KindGuardedPattern:
		if role == core.RoleGuard {
			if inner, ok := s.Child(p, core.RolePattern); ok {
				out = append(out, w.patternVars(inner)...)
			}
		}

	case k == core.KindFor:
		inits := s.ChildrenWithRole(p, core.RoleInit)
		if role == core.RoleInit {
			out = append(out, w.statements(p, child)...)
			break
		}
		for _, init := range inits {
			if s.Kind(init) == core.KindLocalVariable {
				add(symbols.Declarators(s, init)...)
			}
		}
		if role == core.RoleBody || role == core.RoleUpdate {
			out = append(out, w.condition(p, true)...)
		}

	case k == core.KindForEach:
		if role == core.RoleBody {
			for _, init := range s.ChildrenWithRole(p, core.RoleInit) {
				add(symbols.Declarators(s, init)...)
			}
		}

	case k == core.KindWhile:
		if role == core.RoleBody {
			out = append(out, w.condition(p, true)...)
		}

	case k == core.KindIf, k == core.KindConditional:
		switch role {
		case core.RoleThen:
			out = append(out, w.condition(p, true)...)
		case core.RoleElse:
			out = append(out, w.condition(p, false)...)
		}

	case k == core.KindBinary:
		if role != core.RoleRight {
			break
		}
		if left, ok := s.Child(p, core.RoleLeft); ok {
			switch s.Token(p) {
			case "&&":
				out = append(out, w.whenTrue(left)...)
			case "||":
				out = append(out, w.whenFalse(left)...)
			}
		}

	case k == core.KindCatch:
		if role == core.RoleBody {
			add(s.ChildrenWithRole(p, core.RoleParameter)...)
		}

	case k == core.KindTry:
		if role == core.RoleBody {
			if res, ok := s.Child(p, core.RoleResources); ok {
				for _, r := range s.Children(res) {
					if s.Kind(r) == core.KindLocalVariable {
						add(symbols.Declarators(s, r)...)
					}
				}
			}
		}

	case k == core.KindLambda, k == core.KindMethod, k == core.KindConstructor:
		add(s.ChildrenWithRole(p, core.RoleTypeParameters)...)
		if role == core.RoleBody {
			add(s.ChildrenWithRole(p, core.RoleParameter)...)
			for _, list := range s.ChildrenWithRole(p, core.RoleParameters) {
				add(s.ChildrenWithRole(list, core.RoleParameter)...)
			}
		}

	case k.IsTypeDeclaration():
		add(s.ChildrenWithRole(p, core.RoleTypeParameters)...)
		if role == core.RoleBody {
			out = append(out, symbols.Members(s, p, w.pkg)...)
		}

	case k == core.KindClassBody:
		// anonymous class and enum constant bodies
		if parent, ok := s.Parent(p); ok && s.Kind(parent).IsTypeDeclaration() {
			break
		}
		for _, m := range s.Children(p) {
			switch s.Kind(m) {
			case core.KindField:
				add(symbols.Declarators(s, m)...)
			case core.KindMethod:
				add(m)
			}
		}
	}
	return out
}

// statements returns what the statements of a block-like node p declare
// before child, plus the declarators of child itself that start before the
// anchor.
func (w *walk) statements(p, child tree.NodeID) []core.Declaration {
	s := w.snap
	var out []core.Declaration
	for _, stmt := range s.Children(p) {
		if stmt == child {
			break
		}
		out = append(out, w.statementDecls(stmt)...)
	}
	if s.Kind(child) == core.KindLocalVariable {
		at := s.Span(w.ref.Anchor).Start
		for _, d := range symbols.Declarators(s, child) {
			if s.Span(d).Start > at {
				break
			}
			if decl, ok := symbols.Of(s, d, w.pkg); ok {
				out = append(out, decl)
			}
		}
	}
	return out
}

// statementDecls returns what a statement declares for the statements that
// follow it in the same block.
func (w *walk) statementDecls(stmt tree.NodeID) []core.Declaration {
	s := w.snap
	switch k := s.Kind(stmt); {
	case k == core.KindLocalVariable:
		var out []core.Declaration
		for _, d := range symbols.Declarators(s, stmt) {
			if decl, ok := symbols.Of(s, d, w.pkg); ok {
				out = append(out, decl)
			}
		}
		return out
	case k.IsTypeDeclaration():
		if d, ok := symbols.Of(s, stmt, w.pkg); ok {
			return []core.Declaration{d}
		}
	case k == core.KindIf:
		// if (!(o instanceof T t)) return; leaves t in scope afterwards
		if _, hasElse := s.Child(stmt, core.RoleElse); hasElse {
			return nil
		}
		then, ok := s.Child(stmt, core.RoleThen)
		if ok && !w.completesNormally(then) {
			return w.condition(stmt, false)
		}
	}
	return nil
}

func (w *walk) completesNormally(stmt tree.NodeID) bool {
	s := w.snap
	switch s.Kind(stmt) {
	case core.KindReturn, core.KindThrow, core.KindBreak, core.KindContinue, core.KindYield:
		return false
	case core.KindBlock:
		children := s.Children(stmt)
		if len(children) == 0 {
			return true
		}
		return w.completesNormally(children[len(children)-1])
	}
	return true
}

func (w *walk) condition(p tree.NodeID, holds bool) []core.Declaration {
	cond, ok := w.snap.Child(p, core.RoleCondition)
	if !ok {
		return nil
	}
	if holds {
		return w.whenTrue(cond)
	}
	return w.whenFalse(cond)
}

// whenTrue returns the pattern variables definitely matched when expression
// e evaluates to true.
func (w *walk) whenTrue(e tree.NodeID) []core.Declaration {
	s := w.snap
	switch s.Kind(e) {
	case core.KindInstanceOf:
		if pat, ok := s.Child(e, core.RolePattern); ok {
			return w.patternVars(pat)
		}
	case core.KindParenthesized:
		if op, ok := s.Child(e, core.RoleOperand); ok {
			return w.whenTrue(op)
		}
	case core.KindUnary:
		if op, ok := s.Child(e, core.RoleOperand); ok && s.Token(e) == "!" {
			return w.whenFalse(op)
		}
	case core.KindBinary:
		if s.Token(e) == "&&" {
			return w.both(e, w.whenTrue)
		}
	}
	return nil
}

// whenFalse returns the pattern variables definitely matched when expression
// e evaluates to false.
func (w *walk) whenFalse(e tree.NodeID) []core.Declaration {
	s := w.snap
	switch s.Kind(e) {
	case core.KindParenthesized:
		if op, ok := s.Child(e, core.RoleOperand); ok {
			return w.whenFalse(op)
		}
	case core.KindUnary:
		if op, ok := s.Child(e, core.RoleOperand); ok && s.Token(e) == "!" {
			return w.whenTrue(op)
		}
	case core.KindBinary:
		if s.Token(e) == "||" {
			return w.both(e, w.whenFalse)
		}
	}
	return nil
}

func (w *walk) both(e tree.NodeID, f func(tree.NodeID) []core.Declaration) []core.Declaration {
	var out []core.Declaration
	if l, ok := w.snap.Child(e, core.RoleLeft); ok {
		out = append(out, f(l)...)
	}
	if r, ok := w.snap.Child(e, core.RoleRight); ok {
		out = append(out, f(r)...)
	}
	return out
}

// patternVars returns the binding variables a pattern or case label declares
func (w *walk) patternVars(id tree.NodeID) []core.Declaration {
	s := w.snap
	var out []core.Declaration
	switch s.Kind(id) {
	case core.KindTypeTestPattern:
		if d, ok := symbols.Of(s, id, w.pkg); ok {
			out = append(out, d)
		}
	case core.KindRecordPattern:
		for _, c := range s.ChildrenWithRole(id, core.RoleComponent) {
			out = append(out, w.patternVars(c)...)
		}
		if d, ok := symbols.Of(s, id, w.pkg); ok {
			out = append(out, d)
		}
	case core.KindParenthesizedPattern, core.KindGuardedPattern:
		if inner, ok := s.Child(id, core.RolePattern); ok {
			out = append(out, w.patternVars(inner)...)
		}
	case core.KindSwitchLabel:
		for _, c := range s.Children(id) {
			if s.Kind(c) != core.KindPatternGuard {
				out = append(out, w.patternVars(c)...)
			}
		}
	}
	return out
}
