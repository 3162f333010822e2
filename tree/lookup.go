package tree

import "github.com/oxhq/psitree/core"

// Containment relations are computed from the parent lookup table on demand.
// Every lookup reports absence with false; incomplete source makes absence a
// normal outcome.

// NameOf returns the token of the name child of id
func (s *Snapshot) NameOf(id NodeID) (string, bool) {
	n, ok := s.Child(id, core.RoleName)
	if !ok {
		return "", false
	}
	return s.Token(n), true
}

// Nearest returns the closest proper ancestor of id accepted by match. The
// walk stops, reporting absence, at the first ancestor accepted by stop.
func (s *Snapshot) Nearest(id NodeID, match, stop func(core.Kind) bool) (NodeID, bool) {
	for p, ok := s.Parent(id); ok; p, ok = s.Parent(p) {
		k := s.Kind(p)
		if match(k) {
			return p, true
		}
		if stop != nil && stop(k) {
			return 0, false
		}
	}
	return 0, false
}

// ContainingClass returns the type declaration enclosing id
func (s *Snapshot) ContainingClass(id NodeID) (NodeID, bool) {
	return s.Nearest(id, core.Kind.IsTypeDeclaration, nil)
}

// ContainingMethod returns the method or constructor enclosing id, not
// crossing a type declaration.
func (s *Snapshot) ContainingMethod(id NodeID) (NodeID, bool) {
	return s.Nearest(id, isCallable, core.Kind.IsTypeDeclaration)
}

// EnclosingSwitch returns the switch statement or expression enclosing id,
// not crossing a method, lambda or type boundary.
func (s *Snapshot) EnclosingSwitch(id NodeID) (NodeID, bool) {
	return s.Nearest(id, isSwitch, isBoundary)
}

// ExitedStatement returns the statement a break, continue or yield transfers
// control out of. A labeled break exits the labeled statement; a labeled
// continue must name a loop.
func (s *Snapshot) ExitedStatement(id NodeID) (NodeID, bool) {
	kind := s.Kind(id)
	switch kind {
	case core.KindYield:
		return s.Nearest(id, func(k core.Kind) bool { return k == core.KindSwitchExpression }, isBoundary)
	case core.KindBreak, core.KindContinue:
	default:
		return 0, false
	}

	if label, ok := s.Child(id, core.RoleLabel); ok {
		name := s.Token(label)
		for p, ok := s.Parent(id); ok; p, ok = s.Parent(p) {
			k := s.Kind(p)
			if isBoundary(k) {
				return 0, false
			}
			if k != core.KindLabeled {
				continue
			}
			if l, ok := s.Child(p, core.RoleLabel); !ok || s.Token(l) != name {
				continue
			}
			stmt, ok := s.Child(p, core.RoleBody)
			if !ok {
				return 0, false
			}
			if kind == core.KindContinue && !s.Kind(stmt).IsLoop() {
				return 0, false
			}
			return stmt, true
		}
		return 0, false
	}

	if kind == core.KindContinue {
		return s.Nearest(id, core.Kind.IsLoop, isBoundary)
	}
	// an unlabeled break cannot leave a switch expression
	return s.Nearest(id, func(k core.Kind) bool {
		return k.IsLoop() || k == core.KindSwitchStatement
	}, func(k core.Kind) bool {
		return isBoundary(k) || k == core.KindSwitchExpression
	})
}

// EnclosingScope returns the nearest ancestor that introduces declarations
func (s *Snapshot) EnclosingScope(id NodeID) (NodeID, bool) {
	return s.Nearest(id, IsScope, nil)
}

// IsScope reports whether nodes of kind k introduce a declaration scope
func IsScope(k core.Kind) bool {
	switch k {
	case core.KindFile, core.KindClassBody, core.KindBlock, core.KindMethod, core.KindConstructor,
		core.KindLambda, core.KindFor, core.KindForEach, core.KindCatch, core.KindTry,
		core.KindSwitchRule, core.KindCaseGroup, core.KindSwitchBlock:
		return true
	}
	return k.IsTypeDeclaration()
}

func isCallable(k core.Kind) bool {
	return k == core.KindMethod || k == core.KindConstructor
}

func isSwitch(k core.Kind) bool {
	return k == core.KindSwitchStatement || k == core.KindSwitchExpression
}

func isBoundary(k core.Kind) bool {
	return isCallable(k) || k == core.KindLambda || k == core.KindInitializer || k.IsTypeDeclaration()
}
