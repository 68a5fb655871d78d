package musubi

import (
	"fmt"
	"go/ast"
	"go/types"
)

// Kind enumerates the binding kinds. The set is closed: every switch over Kind
// must handle all of them.
type Kind int

const (
	KindConstructor Kind = iota + 1
	KindProvided
	KindAlias
	KindBoundInstance
	KindMultibinding
	KindMembersInjected
	KindCustomWrapper
	KindGraphDependency
	KindGraphExtension
	KindAssistedFactory
	KindAbsent
)

func (k Kind) String() string {
	switch k {
	case KindConstructor:
		return "constructor"
	case KindProvided:
		return "provided"
	case KindAlias:
		return "alias"
	case KindBoundInstance:
		return "bound instance"
	case KindMultibinding:
		return "multibinding"
	case KindMembersInjected:
		return "members injector"
	case KindCustomWrapper:
		return "optional"
	case KindGraphDependency:
		return "graph dependency"
	case KindGraphExtension:
		return "graph extension"
	case KindAssistedFactory:
		return "assisted factory"
	case KindAbsent:
		return "absent"
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Level is the locality of a declaration relative to the container being built.
type Level int

const (
	LevelInherited Level = iota
	LevelLocal
)

func (l Level) String() string {
	if l == LevelLocal {
		return "local"
	}

	return "inherited"
}

// Origin records where a binding was declared.
type Origin struct {
	Declaration string
	Level       Level
	Dynamic     bool
	// Synthetic is set for bindings created by lookup rather than declared.
	Synthetic bool
}

func (o Origin) String() string {
	switch {
	case o.Dynamic:
		return o.Declaration + " (dynamic)"
	case o.Synthetic:
		return o.Declaration + " (implicit)"
	default:
		return o.Declaration + " (" + o.Level.String() + ")"
	}
}

// Ref refers to a package level identifier. An empty Path is the generated package.
type Ref struct {
	Path string
	Name string
}

func (r Ref) String() string {
	if r.Path == "" {
		return r.Name
	}

	return r.Path + "." + r.Name
}

// Param is a single dependency of a binding.
type Param struct {
	Name string
	Key  ContextualKey
	// Default is used when Key resolves to an absent binding.
	Default ast.Expr
	// Field names the struct field or injected member the value is assigned to.
	Field string
	// Assisted params are supplied by the caller of an assisted factory.
	Assisted bool
}

// Binding is a resolved way to satisfy a type key.
type Binding interface {
	Key() TypeKey
	Kind() Kind
	Params() []Param
	Dependencies() []ContextualKey
	Scope() string
	Origin() Origin

	sealedBinding()
}

type bindingBase struct {
	key    TypeKey
	params []Param
	scope  string
	origin Origin
}

func (b *bindingBase) Key() TypeKey    { return b.key }
func (b *bindingBase) Params() []Param { return b.params }
func (b *bindingBase) Scope() string   { return b.scope }
func (b *bindingBase) Origin() Origin  { return b.origin }
func (b *bindingBase) sealedBinding()  {}

func (b *bindingBase) Dependencies() []ContextualKey {
	deps := make([]ContextualKey, 0, len(b.params))
	for _, p := range b.params {
		if p.Assisted {
			continue
		}
		deps = append(deps, p.Key)
	}

	return deps
}

// ConstructorBinding is an injectable type built by its single injected constructor.
// Params with a Field are members assigned after construction.
type ConstructorBinding struct {
	bindingBase
	Func Ref
	// Factory is the assisted factory type when the constructor has assisted params.
	Factory types.Type
}

func (*ConstructorBinding) Kind() Kind { return KindConstructor }

func (b *ConstructorBinding) Arguments() []Param {
	args := make([]Param, 0, len(b.params))
	for _, p := range b.params {
		if p.Field == "" {
			args = append(args, p)
		}
	}

	return args
}

func (b *ConstructorBinding) Members() []Param {
	var members []Param
	for _, p := range b.params {
		if p.Field != "" {
			members = append(members, p)
		}
	}

	return members
}

func (b *ConstructorBinding) IsAssisted() bool {
	return b.Factory != nil
}

type InvocationKind int

const (
	InvokeFunc InvocationKind = iota + 1
	InvokeMethod
	InvokeValue
	InvokeStruct
	InvokeField
)

// Invocation is how a provided binding produces its value.
// For InvokeMethod the first param is the receiver, for InvokeField it is the source.
type Invocation struct {
	Kind   InvocationKind
	Func   Ref
	Method string
	Value  ast.Expr
	Field  string
}

// ProvidedBinding is produced by a declared provider.
type ProvidedBinding struct {
	bindingBase
	Invocation Invocation
}

func (*ProvidedBinding) Kind() Kind { return KindProvided }

// AliasBinding satisfies its key with the binding of Target.
type AliasBinding struct {
	bindingBase
	Target TypeKey
}

func (*AliasBinding) Kind() Kind { return KindAlias }

// BoundInstanceBinding is a value passed to the container's creator.
type BoundInstanceBinding struct {
	bindingBase
	Field string
}

func (*BoundInstanceBinding) Kind() Kind { return KindBoundInstance }

type CollectionKind int

const (
	CollectionSet CollectionKind = iota + 1
	CollectionMap
)

func (c CollectionKind) String() string {
	if c == CollectionMap {
		return "map"
	}

	return "set"
}

// Contribution is one contributor of a multibinding.
type Contribution struct {
	// Key is the synthesized key the contributing binding is stored under.
	Key TypeKey
	// Source is the key the contributor was declared with.
	Source      TypeKey
	MapKey      ast.Expr
	Elements    bool
	Declaration string
}

// MultibindingBinding aggregates contributions into a slice or a map.
type MultibindingBinding struct {
	bindingBase
	Collection    CollectionKind
	Elem          types.Type
	MapKeyType    types.Type
	Contributions []Contribution
	AllowEmpty    bool
	Declared      bool

	frozen bool
}

func (*MultibindingBinding) Kind() Kind { return KindMultibinding }

func (b *MultibindingBinding) Params() []Param {
	params := make([]Param, 0, len(b.Contributions))
	for _, c := range b.Contributions {
		params = append(params, Param{Key: ContextualKey{Key: c.Key, Shape: Canonical}})
	}

	return params
}

func (b *MultibindingBinding) Dependencies() []ContextualKey {
	deps := make([]ContextualKey, 0, len(b.Contributions))
	for _, c := range b.Contributions {
		deps = append(deps, ContextualKey{Key: c.Key, Shape: Canonical})
	}

	return deps
}

// HasCollectionContributors reports whether any contributor supplies several elements.
func (b *MultibindingBinding) HasCollectionContributors() bool {
	for _, c := range b.Contributions {
		if c.Elements {
			return true
		}
	}

	return false
}

func (b *MultibindingBinding) add(c Contribution) error {
	if b.frozen {
		return fmt.Errorf("multibinding %s is sealed", b.key)
	}
	b.Contributions = append(b.Contributions, c)

	return nil
}

// MembersInjectedBinding assigns the injectable members of Target.
type MembersInjectedBinding struct {
	bindingBase
	Target types.Type
}

func (*MembersInjectedBinding) Kind() Kind { return KindMembersInjected }

// OptionalBinding wraps Inner in musubi.Optional, absent when Inner has no binding.
type OptionalBinding struct {
	bindingBase
	Inner TypeKey
}

func (*OptionalBinding) Kind() Kind { return KindCustomWrapper }

// GraphDependencyBinding is satisfied by another container instance: an included
// graph passed to the creator, or the parent of an extension container.
type GraphDependencyBinding struct {
	bindingBase
	// Graph is the creator param holding the included graph.
	Graph         string
	Accessor      string
	AccessorShape Shape
	// Parent is set when the key is resolved in the parent container.
	Parent bool
}

func (*GraphDependencyBinding) Kind() Kind { return KindGraphDependency }

// ExtensionArg is a creator param of an extension container.
type ExtensionArg struct {
	Name string
	Type types.Type
}

// GraphExtensionBinding creates an extension container whose parent is the current one.
type GraphExtensionBinding struct {
	bindingBase
	Child     string
	ChildType types.Type
	Args      []ExtensionArg
}

func (*GraphExtensionBinding) Kind() Kind { return KindGraphExtension }

// AssistedFactoryBinding builds an assisted type from caller supplied arguments.
type AssistedFactoryBinding struct {
	bindingBase
	Target    TypeKey
	Signature *types.Signature
}

func (*AssistedFactoryBinding) Kind() Kind { return KindAssistedFactory }

// AbsentBinding marks a key with no binding whose consumers declared a default.
type AbsentBinding struct {
	bindingBase
}

func (*AbsentBinding) Kind() Kind { return KindAbsent }

func canonicalParam(name string, key TypeKey) Param {
	return Param{Name: name, Key: ContextualKey{Key: key, Shape: Canonical}}
}
