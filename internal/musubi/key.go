package musubi

import (
	"fmt"
	"go/types"
)

// TypeKey identifies a binding: a type plus an optional qualifier.
type TypeKey struct {
	Type      types.Type
	Qualifier string
}

func NewTypeKey(t types.Type, qualifier string) TypeKey {
	return TypeKey{Type: t, Qualifier: qualifier}
}

// ID is the identity of the key. Two keys are equal iff their IDs are equal.
func (k TypeKey) ID() string {
	if k.Type == nil {
		return ""
	}

	s := types.TypeString(k.Type, nil)
	if k.Qualifier == "" {
		return s
	}

	return "@" + k.Qualifier + " " + s
}

func (k TypeKey) Equal(o TypeKey) bool {
	return k.ID() == o.ID()
}

func (k TypeKey) IsZero() bool {
	return k.Type == nil
}

// String renders the key with package names instead of import paths.
func (k TypeKey) String() string {
	if k.Type == nil {
		return "<nil>"
	}

	s := types.TypeString(k.Type, func(p *types.Package) string { return p.Name() })
	if k.Qualifier == "" {
		return s
	}

	return fmt.Sprintf("@%s %s", k.Qualifier, s)
}

// WithType returns a key with the same qualifier and another type.
func (k TypeKey) WithType(t types.Type) TypeKey {
	return TypeKey{Type: t, Qualifier: k.Qualifier}
}

type ShapeKind int

const (
	ShapeCanonical ShapeKind = iota
	ShapeProvider
	ShapeLazy
	ShapeMap
)

// Shape is the wrapping a consumer requests a key in.
// Provider and Lazy wrap Inner. Map holds the map key type and the value shape in Inner.
type Shape struct {
	Kind   ShapeKind
	Inner  *Shape
	MapKey types.Type
}

var Canonical = Shape{Kind: ShapeCanonical}

func ProviderOf(inner Shape) Shape {
	return Shape{Kind: ShapeProvider, Inner: &inner}
}

func LazyOf(inner Shape) Shape {
	return Shape{Kind: ShapeLazy, Inner: &inner}
}

func MapOf(key types.Type, value Shape) Shape {
	return Shape{Kind: ShapeMap, MapKey: key, Inner: &value}
}

// Deferrable reports whether a request in this shape does not need the instance during construction.
func (s Shape) Deferrable() bool {
	switch s.Kind {
	case ShapeProvider, ShapeLazy:
		return true
	case ShapeMap:
		return s.Inner != nil && s.Inner.Deferrable()
	case ShapeCanonical:
		return false
	}

	return false
}

func (s Shape) Equal(o Shape) bool {
	return s.String() == o.String()
}

func (s Shape) String() string {
	switch s.Kind {
	case ShapeCanonical:
		return "Canonical"
	case ShapeProvider:
		return "Provider(" + s.Inner.String() + ")"
	case ShapeLazy:
		return "Lazy(" + s.Inner.String() + ")"
	case ShapeMap:
		return "Map(" + types.TypeString(s.MapKey, nil) + ", " + s.Inner.String() + ")"
	}

	return fmt.Sprintf("Shape(%d)", s.Kind)
}

// ContextualKey is a key together with the shape it is requested in.
type ContextualKey struct {
	Key        TypeKey
	Shape      Shape
	HasDefault bool
}

// ContextualKeyOf derives the contextual key of a declared dependency type.
//
//	musubi.Provider[T]               Provider(Canonical) of T
//	musubi.Lazy[T]                   Lazy(Canonical) of T
//	musubi.Provider[musubi.Lazy[T]]  Provider(Lazy(Canonical)) of T
//	map[K]musubi.Provider[V]         Map(K, Provider(Canonical)) of map[K]V
func ContextualKeyOf(t types.Type, qualifier string, hasDefault bool) ContextualKey {
	shape, base := deriveShape(t)
	return ContextualKey{
		Key:        NewTypeKey(base, qualifier),
		Shape:      shape,
		HasDefault: hasDefault,
	}
}

func deriveShape(t types.Type) (Shape, types.Type) {
	if inner, ok := runtimeGeneric(t, "Provider"); ok {
		if lazyInner, ok := runtimeGeneric(inner, "Lazy"); ok {
			return ProviderOf(LazyOf(Canonical)), lazyInner
		}
		return ProviderOf(Canonical), inner
	}
	if inner, ok := runtimeGeneric(t, "Lazy"); ok {
		return LazyOf(Canonical), inner
	}
	if m, ok := types.Unalias(t).(*types.Map); ok {
		if v, ok := runtimeGeneric(m.Elem(), "Provider"); ok {
			return MapOf(m.Key(), ProviderOf(Canonical)), types.NewMap(m.Key(), v)
		}
		if v, ok := runtimeGeneric(m.Elem(), "Lazy"); ok {
			return MapOf(m.Key(), LazyOf(Canonical)), types.NewMap(m.Key(), v)
		}
	}

	return Canonical, t
}

func (c ContextualKey) String() string {
	if c.Shape.Kind == ShapeCanonical {
		return c.Key.String()
	}

	return c.Shape.String() + " " + c.Key.String()
}
