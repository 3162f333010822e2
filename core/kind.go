package core

// Kind is the node kind of a syntax tree node. The deep per-kind interface
// taxonomy of the host platform is collapsed into one closed enumeration;
// Category groups kinds into syntactic families.
type Kind uint16

const (
	KindInvalid Kind = iota

	// File level
	KindFile
	KindPackage
	KindImportList
	KindImport
	KindModule
	KindModuleBody

	// Module directives
	KindRequiresDirective
	KindExportsDirective
	KindOpensDirective
	KindUsesDirective
	KindProvidesDirective

	// Declarations
	KindClass
	KindInterface
	KindEnum
	KindRecord
	KindAnnotationType
	KindClassBody
	KindMethod
	KindConstructor
	KindField
	KindEnumConstant
	KindRecordComponent
	KindParameterList
	KindParameter
	KindTypeParameter
	KindInitializer
	KindLocalVariable
	KindVariableDeclarator
	KindModifiers
	KindAnnotation

	// Types
	KindTypeRef
	KindTypeArguments
	KindSuperclass
	KindInterfaces
	KindPermits

	// Statements
	KindBlock
	KindExpressionStatement
	KindDeclarationStatement
	KindIf
	KindWhile
	KindDoWhile
	KindFor
	KindForEach
	KindSwitchStatement
	KindSwitchBlock
	KindCaseGroup
	KindSwitchRule
	KindSwitchLabel
	KindReturn
	KindBreak
	KindContinue
	KindYield
	KindThrow
	KindTry
	KindResourceList
	KindCatch
	KindFinally
	KindSynchronized
	KindLabeled
	KindAssert
	KindEmpty
	KindLocalClass

	// Expressions
	KindLiteral
	KindIdentifier
	KindFieldAccess
	KindMethodCall
	KindArgumentList
	KindNew
	KindNewArray
	KindArrayInit
	KindArrayAccess
	KindBinary
	KindUnary
	KindPostfix
	KindAssignment
	KindConditional
	KindCast
	KindInstanceOf
	KindLambda
	KindMethodRef
	KindParenthesized
	KindThis
	KindSuper
	KindClassLiteral
	KindSwitchExpression

	// Patterns and case label elements
	KindTypeTestPattern
	KindRecordPattern
	KindParenthesizedPattern
	KindGuardedPattern
	KindUnnamedPattern
	KindPatternGuard
	KindDefaultLabel
	KindNullLabel

	// Tokens and recovery
	KindName
	KindOperator
	KindKeyword
	KindComment
	KindError

	kindCount
)

var kindNames = [...]string{
	KindInvalid:               "Invalid",
	KindFile:                  "File",
	KindPackage:               "Package",
	KindImportList:            "ImportList",
	KindImport:                "Import",
	KindModule:                "Module",
	KindModuleBody:            "ModuleBody",
	KindRequiresDirective:     "RequiresDirective",
	KindExportsDirective:      "ExportsDirective",
	KindOpensDirective:        "OpensDirective",
	KindUsesDirective:         "UsesDirective",
	KindProvidesDirective:     "ProvidesDirective",
	KindClass:                 "Class",
	KindInterface:             "Interface",
	KindEnum:                  "Enum",
	KindRecord:                "Record",
	KindAnnotationType:        "AnnotationType",
	KindClassBody:             "ClassBody",
	KindMethod:                "Method",
	KindConstructor:           "Constructor",
	KindField:                 "Field",
	KindEnumConstant:          "EnumConstant",
	KindRecordComponent:       "RecordComponent",
	KindParameterList:         "ParameterList",
	KindParameter:             "Parameter",
	KindTypeParameter:         "TypeParameter",
	KindInitializer:           "Initializer",
	KindLocalVariable:         "LocalVariable",
	KindVariableDeclarator:    "VariableDeclarator",
	KindModifiers:             "Modifiers",
	KindAnnotation:            "Annotation",
	KindTypeRef:               "TypeRef",
	KindTypeArguments:         "TypeArguments",
	KindSuperclass:            "Superclass",
	KindInterfaces:            "Interfaces",
	KindPermits:               "Permits",
	KindBlock:                 "Block",
	KindExpressionStatement:   "ExpressionStatement",
	KindDeclarationStatement:  "DeclarationStatement",
	KindIf:                    "If",
	KindWhile:                 "While",
	KindDoWhile:               "DoWhile",
	KindFor:                   "For",
	KindForEach:               "ForEach",
	KindSwitchStatement:       "SwitchStatement",
	KindSwitchBlock:           "SwitchBlock",
	KindCaseGroup:             "CaseGroup",
	KindSwitchRule:            "SwitchRule",
	KindSwitchLabel:           "SwitchLabel",
	KindReturn:                "Return",
	KindBreak:                 "Break",
	KindContinue:              "Continue",
	KindYield:                 "Yield",
	KindThrow:                 "Throw",
	KindTry:                   "Try",
	KindResourceList:          "ResourceList",
	KindCatch:                 "Catch",
	KindFinally:               "Finally",
	KindSynchronized:          "Synchronized",
	KindLabeled:               "Labeled",
	KindAssert:                "Assert",
	KindEmpty:                 "Empty",
	KindLocalClass:            "LocalClass",
	KindLiteral:               "Literal",
	KindIdentifier:            "Identifier",
	KindFieldAccess:           "FieldAccess",
	KindMethodCall:            "MethodCall",
	KindArgumentList:          "ArgumentList",
	KindNew:                   "New",
	KindNewArray:              "NewArray",
	KindArrayInit:             "ArrayInit",
	KindArrayAccess:           "ArrayAccess",
	KindBinary:                "Binary",
	KindUnary:                 "Unary",
	KindPostfix:               "Postfix",
	KindAssignment:            "Assignment",
	KindConditional:           "Conditional",
	KindCast:                  "Cast",
	KindInstanceOf:            "InstanceOf",
	KindLambda:                "Lambda",
	KindMethodRef:             "MethodRef",
	KindParenthesized:         "Parenthesized",
	KindThis:                  "This",
	KindSuper:                 "Super",
	KindClassLiteral:          "ClassLiteral",
	KindSwitchExpression:      "SwitchExpression",
	KindTypeTestPattern:       "TypeTestPattern",
	KindRecordPattern:         "RecordPattern",
	KindParenthesizedPattern:  "ParenthesizedPattern",
	KindGuardedPattern:        "GuardedPattern",
	KindUnnamedPattern:        "UnnamedPattern",
	KindPatternGuard:          "PatternGuard",
	KindDefaultLabel:          "DefaultLabel",
	KindNullLabel:             "NullLabel",
	KindName:                  "Name",
	KindOperator:              "Operator",
	KindKeyword:               "Keyword",
	KindComment:               "Comment",
	KindError:                 "Error",
}

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return "Kind(?)"
}

// KindByName looks a kind up by its String form
func KindByName(name string) (Kind, bool) {
	for k := KindInvalid + 1; k < kindCount; k++ {
		if kindNames[k] == name {
			return k, true
		}
	}
	return KindInvalid, false
}

// Category is a syntactic family of node kinds
type Category uint8

const (
	CategoryOther Category = iota
	CategoryFile
	CategoryDirective
	CategoryDeclaration
	CategoryType
	CategoryStatement
	CategoryExpression
	CategoryPattern
	CategoryToken
)

func (c Category) String() string {
	switch c {
	case CategoryFile:
		return "file"
	case CategoryDirective:
		return "directive"
	case CategoryDeclaration:
		return "declaration"
	case CategoryType:
		return "type"
	case CategoryStatement:
		return "statement"
	case CategoryExpression:
		return "expression"
	case CategoryPattern:
		return "pattern"
	case CategoryToken:
		return "token"
	}
	return "other"
}

// Category returns the syntactic family of the kind
func (k Kind) Category() Category {
	switch {
	case k >= KindFile && k <= KindModuleBody:
		return CategoryFile
	case k >= KindRequiresDirective && k <= KindProvidesDirective:
		return CategoryDirective
	case k >= KindClass && k <= KindAnnotation:
		return CategoryDeclaration
	case k >= KindTypeRef && k <= KindPermits:
		return CategoryType
	case k >= KindBlock && k <= KindLocalClass:
		return CategoryStatement
	case k >= KindLiteral && k <= KindSwitchExpression:
		return CategoryExpression
	case k >= KindTypeTestPattern && k <= KindNullLabel:
		return CategoryPattern
	case k >= KindName && k <= KindError:
		return CategoryToken
	}
	return CategoryOther
}

// IsTypeDeclaration reports whether the kind declares a class-like type
func (k Kind) IsTypeDeclaration() bool {
	switch k {
	case KindClass, KindInterface, KindEnum, KindRecord, KindAnnotationType, KindLocalClass:
		return true
	}
	return false
}

// IsLoop reports whether the kind is a loop statement
func (k Kind) IsLoop() bool {
	switch k {
	case KindWhile, KindDoWhile, KindFor, KindForEach:
		return true
	}
	return false
}

// IsPrimaryPattern reports whether the kind is a pattern that may appear under a guard
func (k Kind) IsPrimaryPattern() bool {
	switch k {
	case KindTypeTestPattern, KindRecordPattern, KindParenthesizedPattern:
		return true
	}
	return false
}

// Role is the syntactic slot a child occupies inside its parent
type Role uint8

const (
	RoleNone Role = iota
	RoleName
	RoleType
	RoleModifiers
	RoleTypeParameters
	RoleTypeArguments
	RoleSuperclass
	RoleInterfaces
	RolePermits
	RoleParameters
	RoleParameter
	RoleBody
	RoleCondition
	RoleThen
	RoleElse
	RoleInit
	RoleUpdate
	RoleValue
	RoleLeft
	RoleRight
	RoleOperand
	RoleOperator
	RoleSelector
	RoleLabel
	RolePattern
	RoleGuard
	RoleQualifier
	RoleArguments
	RoleArgument
	RoleComponent
	RoleDeclarator
	RoleDimensions
	RoleResources
	RoleCatch
	RoleFinally
	RoleIndex
	RoleModule
	RolePackage
	RoleTarget
	RoleStatement
	RoleMember
	RoleImport
)

var roleNames = [...]string{
	RoleNone:           "",
	RoleName:           "name",
	RoleType:           "type",
	RoleModifiers:      "modifiers",
	RoleTypeParameters: "type_parameters",
	RoleTypeArguments:  "type_arguments",
	RoleSuperclass:     "superclass",
	RoleInterfaces:     "interfaces",
	RolePermits:        "permits",
	RoleParameters:     "parameters",
	RoleParameter:      "parameter",
	RoleBody:           "body",
	RoleCondition:      "condition",
	RoleThen:           "then",
	RoleElse:           "else",
	RoleInit:           "init",
	RoleUpdate:         "update",
	RoleValue:          "value",
	RoleLeft:           "left",
	RoleRight:          "right",
	RoleOperand:        "operand",
	RoleOperator:       "operator",
	RoleSelector:       "selector",
	RoleLabel:          "label",
	RolePattern:        "pattern",
	RoleGuard:          "guard",
	RoleQualifier:      "qualifier",
	RoleArguments:      "arguments",
	RoleArgument:       "argument",
	RoleComponent:      "component",
	RoleDeclarator:     "declarator",
	RoleDimensions:     "dimensions",
	RoleResources:      "resources",
	RoleCatch:          "catch",
	RoleFinally:        "finally",
	RoleIndex:          "index",
	RoleModule:         "module",
	RolePackage:        "package",
	RoleTarget:         "target",
	RoleStatement:      "statement",
	RoleMember:         "member",
	RoleImport:         "import",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "role(?)"
}
