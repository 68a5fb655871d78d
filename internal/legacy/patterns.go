// Package legacy imports google/wire provider sets as musubi modules.
package legacy

import (
	"go/ast"
	"go/token"
	"go/types"
)

const wireImportPath = "github.com/google/wire"

// WarningCode identifies warning types.
type WarningCode int

const (
	WarnNoWireImport WarningCode = iota
	WarnNoWirePatterns
	WarnUnsupportedPattern
	WarnUnresolvedSet
)

func (c WarningCode) String() string {
	switch c {
	case WarnNoWireImport:
		return "no-wire-import"
	case WarnNoWirePatterns:
		return "no-wire-patterns"
	case WarnUnsupportedPattern:
		return "unsupported-pattern"
	case WarnUnresolvedSet:
		return "unresolved-set"
	}

	return "unknown"
}

// Warning is a pattern that could not be imported.
type Warning struct {
	Code    WarningCode
	Message string
	// Pos is the file:line of the pattern, if known.
	Pos string
}

// WirePattern is a wire declaration found in a package.
type WirePattern interface {
	wirePattern()
	Position() token.Pos
}

type baseWirePattern struct {
	Pos token.Pos
}

func (b *baseWirePattern) Position() token.Pos { return b.Pos }

// WireNewSet represents var X = wire.NewSet(...).
type WireNewSet struct {
	baseWirePattern
	VarName  string
	Elements []WirePattern
}

func (*WireNewSet) wirePattern() {}

// WireBind represents wire.Bind(new(Interface), new(Impl)).
// Both types are the element types of the new() arguments.
type WireBind struct {
	baseWirePattern
	Interface      types.Type
	Implementation types.Type
}

func (*WireBind) wirePattern() {}

// WireValue represents wire.Value(expr).
type WireValue struct {
	baseWirePattern
	Expr ast.Expr
	Type types.Type
}

func (*WireValue) wirePattern() {}

// WireInterfaceValue represents wire.InterfaceValue(new(Interface), expr).
type WireInterfaceValue struct {
	baseWirePattern
	Interface types.Type
	Expr      ast.Expr
}

func (*WireInterfaceValue) wirePattern() {}

// WireStruct represents wire.Struct(new(T), fields...). A "*" field selects every field.
type WireStruct struct {
	baseWirePattern
	StructType types.Type
	Fields     []string
}

func (*WireStruct) wirePattern() {}

// WireFieldsOf represents wire.FieldsOf(new(T), fields...).
type WireFieldsOf struct {
	baseWirePattern
	StructType types.Type
	Fields     []string
}

func (*WireFieldsOf) wirePattern() {}

// WireProviderFunc is a provider function listed in a set.
type WireProviderFunc struct {
	baseWirePattern
	Func *types.Func
}

func (*WireProviderFunc) wirePattern() {}

// WireSetRef is a reference to another provider set variable.
type WireSetRef struct {
	baseWirePattern
	Var *types.Var
}

func (*WireSetRef) wirePattern() {}

// WireBuild represents a wire.Build injector function.
type WireBuild struct {
	baseWirePattern
	FuncName string
}

func (*WireBuild) wirePattern() {}

// WireUnsupported is a set element that has no module equivalent.
type WireUnsupported struct {
	baseWirePattern
	Expr ast.Expr
}

func (*WireUnsupported) wirePattern() {}
