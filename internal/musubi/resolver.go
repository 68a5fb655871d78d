package musubi

import (
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"strconv"
	"strings"
	"sync"

	"go.trai.ch/zerr"
)

// Resolver resolves the Go type and identifier expressions of a bundle.
// Types come from the bundle's own declarations, from loaded packages, from the
// runtime package, and otherwise are synthesized as opaque named types.
type Resolver struct {
	mu       sync.Mutex
	pkg      *types.Package
	runtime  *RuntimeTypes
	imports  map[string]string
	loaded   map[string]*types.Package
	external map[string]*types.Package
	declared map[*types.TypeName]bool
	facts    map[string]*TypeDecl
	assisted map[string]types.Type
}

func NewResolver(b *Bundle, rt *RuntimeTypes, loaded ...*types.Package) (*Resolver, error) {
	r := &Resolver{
		runtime:  rt,
		imports:  make(map[string]string, len(b.Imports)+1),
		loaded:   make(map[string]*types.Package),
		external: make(map[string]*types.Package),
		declared: make(map[*types.TypeName]bool),
		facts:    make(map[string]*TypeDecl),
		assisted: make(map[string]types.Type),
	}
	for alias, p := range b.Imports {
		r.imports[alias] = p
	}
	if _, ok := r.imports[runtimeImportName]; !ok {
		r.imports[runtimeImportName] = RuntimePackagePath
	}
	for _, pkg := range loaded {
		r.addLoaded(pkg)
	}

	if pkg, ok := r.loaded[b.Package.Path]; ok {
		r.pkg = pkg
	} else {
		r.pkg = types.NewPackage(b.Package.Path, b.Package.Name)
	}

	if err := r.declareTypes(b.Types); err != nil {
		return nil, err
	}

	for _, decl := range b.Types {
		t, err := r.Type(decl.Name)
		if err != nil {
			return nil, fmt.Errorf("type facts %s: %w", decl.Name, err)
		}
		r.facts[typeID(t)] = decl

		if decl.Assisted != nil {
			factory, err := r.Type(decl.Assisted.Factory)
			if err != nil {
				return nil, fmt.Errorf("assisted factory of %s: %w", decl.Name, err)
			}
			r.assisted[typeID(factory)] = t
		}
	}

	return r, nil
}

func (r *Resolver) addLoaded(pkg *types.Package) {
	if _, ok := r.loaded[pkg.Path()]; ok {
		return
	}
	r.loaded[pkg.Path()] = pkg
	for _, imp := range pkg.Imports() {
		r.addLoaded(imp)
	}
}

// declareTypes creates the named types the bundle declares but no loaded package provides.
func (r *Resolver) declareTypes(decls []*TypeDecl) error {
	type pending struct {
		named *types.Named
		decl  *TypeDecl
	}
	var todo []pending

	for _, decl := range decls {
		pkg, name, err := r.declarationTarget(decl.Name)
		if err != nil {
			return err
		}
		if pkg == nil || pkg.Scope().Lookup(name) != nil {
			continue
		}

		obj := types.NewTypeName(token.NoPos, pkg, name, nil)
		named := types.NewNamed(obj, nil, nil)
		pkg.Scope().Insert(obj)
		r.declared[obj] = true
		todo = append(todo, pending{named: named, decl: decl})
	}

	for _, p := range todo {
		underlying, err := r.underlyingOf(p.decl)
		if err != nil {
			return fmt.Errorf("declare %s: %w", p.decl.Name, err)
		}
		p.named.SetUnderlying(underlying)
	}

	return nil
}

// declarationTarget returns the package a declared name lives in, or nil when the
// package is loaded and the name must come from it.
func (r *Resolver) declarationTarget(name string) (*types.Package, string, error) {
	alias, local, ok := strings.Cut(name, ".")
	if !ok {
		if _, loaded := r.loaded[r.pkg.Path()]; loaded {
			return nil, name, nil
		}
		return r.pkg, name, nil
	}

	importPath, ok := r.imports[alias]
	if !ok {
		return nil, "", zerr.With(zerr.Wrap(ErrUnknownType, "unknown import alias"), "alias", alias)
	}
	if importPath == r.pkg.Path() {
		return r.pkg, local, nil
	}
	if _, loaded := r.loaded[importPath]; loaded {
		return nil, local, nil
	}

	return r.externalPackage(importPath, alias), local, nil
}

func (r *Resolver) underlyingOf(decl *TypeDecl) (types.Type, error) {
	if decl.Underlying != "" {
		t, err := r.Type(decl.Underlying)
		if err != nil {
			return nil, err
		}
		return t.Underlying(), nil
	}

	switch decl.Kind {
	case "interface":
		return types.NewInterfaceType(nil, nil).Complete(), nil
	case "func", "basic":
		return nil, fmt.Errorf("kind %s requires an underlying type", decl.Kind)
	default:
		return types.NewStruct(nil, nil), nil
	}
}

func (r *Resolver) externalPackage(importPath, alias string) *types.Package {
	if pkg, ok := r.external[importPath]; ok {
		return pkg
	}

	name := alias
	if name == "" {
		name = path.Base(importPath)
	}
	pkg := types.NewPackage(importPath, name)
	r.external[importPath] = pkg

	return pkg
}

// Package is the package generated code is written to.
func (r *Resolver) Package() *types.Package {
	return r.pkg
}

func (r *Resolver) Runtime() *RuntimeTypes {
	return r.runtime
}

// Imports returns the import aliases usable in bundle expressions.
func (r *Resolver) Imports() map[string]string {
	return r.imports
}

// Type resolves a Go type expression.
func (r *Resolver) Type(expr string) (types.Type, error) {
	return r.TypeWithImports(expr, nil)
}

// TypeWithImports resolves expr with extra import aliases layered over the bundle's.
func (r *Resolver) TypeWithImports(expr string, imports map[string]string) (types.Type, error) {
	e, err := parser.ParseExpr(expr)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(ErrUnknownType, "malformed type expression"), "type", expr)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.typeOf(e, imports)
	if err != nil {
		return nil, zerr.With(err, "type", expr)
	}

	return t, nil
}

func (r *Resolver) importPath(alias string, extra map[string]string) (string, bool) {
	if p, ok := extra[alias]; ok {
		return p, true
	}
	p, ok := r.imports[alias]

	return p, ok
}

func (r *Resolver) lookupType(pkg *types.Package, name string) (types.Type, error) {
	obj, ok := pkg.Scope().Lookup(name).(*types.TypeName)
	if !ok {
		return nil, zerr.With(zerr.Wrap(ErrUnknownType, "type not found"), "name", pkg.Path()+"."+name)
	}

	return obj.Type(), nil
}

func (r *Resolver) typeOf(e ast.Expr, imports map[string]string) (types.Type, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return r.typeOf(e.X, imports)
	case *ast.Ident:
		if obj, ok := r.pkg.Scope().Lookup(e.Name).(*types.TypeName); ok {
			return obj.Type(), nil
		}
		if obj, ok := types.Universe.Lookup(e.Name).(*types.TypeName); ok {
			return obj.Type(), nil
		}
		return nil, zerr.With(zerr.Wrap(ErrUnknownType, "type not found"), "name", e.Name)
	case *ast.SelectorExpr:
		alias, ok := e.X.(*ast.Ident)
		if !ok {
			return nil, zerr.Wrap(ErrUnknownType, "unsupported selector")
		}
		importPath, ok := r.importPath(alias.Name, imports)
		if !ok {
			return nil, zerr.With(zerr.Wrap(ErrUnknownType, "unknown import alias"), "alias", alias.Name)
		}
		switch {
		case importPath == r.pkg.Path():
			return r.lookupType(r.pkg, e.Sel.Name)
		case importPath == RuntimePackagePath:
			return r.lookupType(r.runtime.Package(), e.Sel.Name)
		}
		if pkg, ok := r.loaded[importPath]; ok {
			return r.lookupType(pkg, e.Sel.Name)
		}
		pkg := r.externalPackage(importPath, alias.Name)
		if obj, ok := pkg.Scope().Lookup(e.Sel.Name).(*types.TypeName); ok {
			return obj.Type(), nil
		}
		// unknown external types are opaque
		obj := types.NewTypeName(token.NoPos, pkg, e.Sel.Name, nil)
		named := types.NewNamed(obj, types.NewStruct(nil, nil), nil)
		pkg.Scope().Insert(obj)
		r.declared[obj] = true
		return named, nil
	case *ast.StarExpr:
		elem, err := r.typeOf(e.X, imports)
		if err != nil {
			return nil, err
		}
		return types.NewPointer(elem), nil
	case *ast.ArrayType:
		elem, err := r.typeOf(e.Elt, imports)
		if err != nil {
			return nil, err
		}
		if e.Len == nil {
			return types.NewSlice(elem), nil
		}
		n, err := arrayLen(e.Len)
		if err != nil {
			return nil, err
		}
		return types.NewArray(elem, n), nil
	case *ast.MapType:
		key, err := r.typeOf(e.Key, imports)
		if err != nil {
			return nil, err
		}
		value, err := r.typeOf(e.Value, imports)
		if err != nil {
			return nil, err
		}
		return types.NewMap(key, value), nil
	case *ast.ChanType:
		elem, err := r.typeOf(e.Value, imports)
		if err != nil {
			return nil, err
		}
		dir := types.SendRecv
		switch e.Dir {
		case ast.SEND:
			dir = types.SendOnly
		case ast.RECV:
			dir = types.RecvOnly
		}
		return types.NewChan(dir, elem), nil
	case *ast.FuncType:
		return r.signatureOf(e, imports)
	case *ast.InterfaceType:
		var methods []*types.Func
		for _, field := range e.Methods.List {
			ft, ok := field.Type.(*ast.FuncType)
			if !ok || len(field.Names) == 0 {
				return nil, zerr.Wrap(ErrUnknownType, "embedded interfaces are not supported")
			}
			sig, err := r.signatureOf(ft, imports)
			if err != nil {
				return nil, err
			}
			for _, name := range field.Names {
				methods = append(methods, types.NewFunc(token.NoPos, r.pkg, name.Name, sig))
			}
		}
		return types.NewInterfaceType(methods, nil).Complete(), nil
	case *ast.StructType:
		var fields []*types.Var
		for _, field := range e.Fields.List {
			t, err := r.typeOf(field.Type, imports)
			if err != nil {
				return nil, err
			}
			for _, name := range field.Names {
				fields = append(fields, types.NewField(token.NoPos, r.pkg, name.Name, t, false))
			}
		}
		return types.NewStruct(fields, nil), nil
	case *ast.IndexExpr:
		return r.instantiate(e.X, []ast.Expr{e.Index}, imports)
	case *ast.IndexListExpr:
		return r.instantiate(e.X, e.Indices, imports)
	}

	return nil, zerr.With(zerr.Wrap(ErrUnknownType, "unsupported type expression"), "expr", types.ExprString(e))
}

func (r *Resolver) instantiate(generic ast.Expr, indices []ast.Expr, imports map[string]string) (types.Type, error) {
	args := make([]types.Type, 0, len(indices))
	for _, index := range indices {
		t, err := r.typeOf(index, imports)
		if err != nil {
			return nil, err
		}
		args = append(args, t)
	}

	if sel, ok := generic.(*ast.SelectorExpr); ok {
		if alias, ok := sel.X.(*ast.Ident); ok {
			if p, _ := r.importPath(alias.Name, imports); p == RuntimePackagePath {
				return r.runtime.Instantiate(sel.Sel.Name, args)
			}
		}
	}

	origin, err := r.typeOf(generic, imports)
	if err != nil {
		return nil, err
	}
	t, err := types.Instantiate(nil, origin, args, true)
	if err != nil {
		return nil, zerr.Wrap(ErrUnknownType, err.Error())
	}

	return t, nil
}

func (r *Resolver) signatureOf(ft *ast.FuncType, imports map[string]string) (*types.Signature, error) {
	tuple := func(list *ast.FieldList) (*types.Tuple, bool, error) {
		if list == nil {
			return nil, false, nil
		}
		var vars []*types.Var
		variadic := false
		for _, field := range list.List {
			typeExpr := field.Type
			if ell, ok := typeExpr.(*ast.Ellipsis); ok {
				variadic = true
				typeExpr = &ast.ArrayType{Elt: ell.Elt}
			}
			t, err := r.typeOf(typeExpr, imports)
			if err != nil {
				return nil, false, err
			}
			if len(field.Names) == 0 {
				vars = append(vars, types.NewParam(token.NoPos, r.pkg, "", t))
				continue
			}
			for _, name := range field.Names {
				vars = append(vars, types.NewParam(token.NoPos, r.pkg, name.Name, t))
			}
		}
		return types.NewTuple(vars...), variadic, nil
	}

	params, variadic, err := tuple(ft.Params)
	if err != nil {
		return nil, err
	}
	results, _, err := tuple(ft.Results)
	if err != nil {
		return nil, err
	}

	return types.NewSignatureType(nil, nil, nil, params, results, variadic), nil
}

func arrayLen(e ast.Expr) (int64, error) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.INT {
		return 0, zerr.Wrap(ErrUnknownType, "array length must be an integer literal")
	}
	v := constant.MakeFromLiteral(lit.Value, lit.Kind, 0)
	n, ok := constant.Int64Val(v)
	if !ok {
		return 0, zerr.With(zerr.Wrap(ErrUnknownType, "array length out of range"), "len", lit.Value)
	}

	return n, nil
}

// Func resolves a function reference such as NewService or ext.NewClient.
func (r *Resolver) Func(expr string) (Ref, error) {
	alias, name, ok := strings.Cut(expr, ".")
	if !ok {
		if !token.IsIdentifier(expr) {
			return Ref{}, fmt.Errorf("invalid function name %q", expr)
		}
		return Ref{Name: expr}, nil
	}

	importPath, found := r.imports[alias]
	if !found {
		return Ref{}, zerr.With(zerr.Wrap(ErrUnknownType, "unknown import alias"), "alias", alias)
	}
	if !token.IsIdentifier(name) {
		return Ref{}, fmt.Errorf("invalid function name %q", expr)
	}
	if importPath == r.pkg.Path() {
		return Ref{Name: name}, nil
	}

	return Ref{Path: importPath, Name: name}, nil
}

// Expr parses a value or default expression.
func (r *Resolver) Expr(src string) (ast.Expr, error) {
	e, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parse expression %s: %w", strconv.Quote(src), err)
	}

	return e, nil
}

// Facts returns the declared facts for t, if any.
func (r *Resolver) Facts(t types.Type) *TypeDecl {
	return r.facts[typeID(t)]
}

// AssistedTarget returns the type built by the assisted factory type t.
func (r *Resolver) AssistedTarget(t types.Type) (types.Type, bool) {
	target, ok := r.assisted[typeID(t)]
	return target, ok
}

// IsDeclared reports whether t is a bundle-declared or opaque type with no loaded definition.
func (r *Resolver) IsDeclared(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.declared[named.Origin().Obj()]
}

func typeID(t types.Type) string {
	return types.TypeString(t, nil)
}
