package musubi

import (
	"go/token"
	"go/types"
	"sync"

	"go.trai.ch/zerr"
)

// RuntimePackagePath is the import path of the package that generated code depends on.
const RuntimePackagePath = "github.com/mazrean/musubi"

const runtimePackageName = "musubi"

// RuntimeTypes synthesizes the generic types of the runtime package so that
// declared types such as musubi.Provider[*DB] can be resolved without loading it.
type RuntimeTypes struct {
	mu              sync.Mutex
	pkg             *types.Package
	provider        *types.Named
	lazy            *types.Named
	optional        *types.Named
	membersInjector *types.Named
}

func NewRuntimeTypes() *RuntimeTypes {
	pkg := types.NewPackage(RuntimePackagePath, runtimePackageName)

	getter := func(tp *types.TypeParam) *types.Interface {
		sig := types.NewSignatureType(nil, nil, nil, nil, types.NewTuple(types.NewVar(token.NoPos, pkg, "", tp)), false)
		iface := types.NewInterfaceType([]*types.Func{types.NewFunc(token.NoPos, pkg, "Get", sig)}, nil)
		return iface.Complete()
	}

	rt := &RuntimeTypes{pkg: pkg}
	rt.provider = newGeneric(pkg, "Provider", getter)
	rt.lazy = newGeneric(pkg, "Lazy", getter)
	rt.optional = newGeneric(pkg, "Optional", func(tp *types.TypeParam) types.Type {
		return types.NewStruct([]*types.Var{
			types.NewField(token.NoPos, pkg, "value", tp, false),
			types.NewField(token.NoPos, pkg, "ok", types.Typ[types.Bool], false),
		}, nil)
	})
	rt.membersInjector = newGeneric(pkg, "MembersInjector", func(tp *types.TypeParam) types.Type {
		sig := types.NewSignatureType(nil, nil, nil, types.NewTuple(types.NewVar(token.NoPos, pkg, "target", tp)), nil, false)
		iface := types.NewInterfaceType([]*types.Func{types.NewFunc(token.NoPos, pkg, "InjectMembers", sig)}, nil)
		return iface.Complete()
	})
	pkg.MarkComplete()

	return rt
}

func newGeneric[U types.Type](pkg *types.Package, name string, underlying func(*types.TypeParam) U) *types.Named {
	obj := types.NewTypeName(token.NoPos, pkg, name, nil)
	named := types.NewNamed(obj, nil, nil)
	constraint := types.NewInterfaceType(nil, nil).Complete()
	tp := types.NewTypeParam(types.NewTypeName(token.NoPos, pkg, "T", nil), constraint)
	named.SetTypeParams([]*types.TypeParam{tp})
	named.SetUnderlying(underlying(tp))
	pkg.Scope().Insert(obj)

	return named
}

// Package returns the synthesized runtime package.
func (r *RuntimeTypes) Package() *types.Package {
	return r.pkg
}

func (r *RuntimeTypes) Provider(t types.Type) types.Type {
	return r.instantiate(r.provider, t)
}

func (r *RuntimeTypes) Lazy(t types.Type) types.Type {
	return r.instantiate(r.lazy, t)
}

func (r *RuntimeTypes) Optional(t types.Type) types.Type {
	return r.instantiate(r.optional, t)
}

func (r *RuntimeTypes) MembersInjector(t types.Type) types.Type {
	return r.instantiate(r.membersInjector, t)
}

// Instantiate instantiates the runtime generic called name.
func (r *RuntimeTypes) Instantiate(name string, args []types.Type) (types.Type, error) {
	var origin *types.Named
	switch name {
	case "Provider":
		origin = r.provider
	case "Lazy":
		origin = r.lazy
	case "Optional":
		origin = r.optional
	case "MembersInjector":
		origin = r.membersInjector
	default:
		return nil, zerr.With(zerr.Wrap(ErrUnknownType, "unknown runtime generic"), "name", name)
	}
	if len(args) != 1 {
		return nil, zerr.With(zerr.With(zerr.Wrap(ErrUnknownType, "runtime generics take exactly one type argument"), "name", name), "args", len(args))
	}

	return r.instantiate(origin, args[0]), nil
}

func (r *RuntimeTypes) instantiate(origin *types.Named, arg types.Type) types.Type {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := types.Instantiate(nil, origin, []types.Type{arg}, false)
	if err != nil {
		// validate=false never reports errors for a single unconstrained parameter
		panic(err)
	}

	return t
}

// runtimeGeneric reports the type argument of t when t is an instance of the runtime generic name.
func runtimeGeneric(t types.Type, name string) (types.Type, bool) {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return nil, false
	}

	obj := named.Origin().Obj()
	if obj.Pkg() == nil || obj.Pkg().Path() != RuntimePackagePath || obj.Name() != name {
		return nil, false
	}

	args := named.TypeArgs()
	if args == nil || args.Len() != 1 {
		return nil, false
	}

	return args.At(0), true
}
