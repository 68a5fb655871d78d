package musubi

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"maps"
	"path"
	"slices"
	"strconv"
)

// ImportSet assigns file local names to the packages a generated file refers to.
type ImportSet struct {
	self  string
	names map[string]string
	pool  *VarPool
}

// NewImportSet seeds the set with the bundle's aliases so that bundle expressions
// can be emitted verbatim.
func NewImportSet(self string, aliases map[string]string) *ImportSet {
	im := &ImportSet{
		self:  self,
		names: make(map[string]string, len(aliases)),
		pool:  NewVarPool(),
	}
	for _, alias := range slices.Sorted(maps.Keys(aliases)) {
		p := aliases[alias]
		if p == self {
			continue
		}
		if _, ok := im.names[p]; ok {
			continue
		}
		im.pool.Register(alias)
		im.names[p] = alias
	}

	return im
}

// Name returns the local name of pkg, or "" for the generated package itself.
func (im *ImportSet) Name(pkg *types.Package) string {
	if pkg == nil || pkg.Path() == im.self {
		return ""
	}
	if name, ok := im.names[pkg.Path()]; ok {
		return name
	}

	base := pkg.Name()
	if base == "" {
		base = path.Base(pkg.Path())
	}
	name := im.pool.GetName(base)
	im.names[pkg.Path()] = name

	return name
}

// ByPath returns the local name of the package at importPath.
func (im *ImportSet) ByPath(importPath string) string {
	return im.Name(types.NewPackage(importPath, path.Base(importPath)))
}

// Aliases returns the local name to import path mapping.
func (im *ImportSet) Aliases() map[string]string {
	out := make(map[string]string, len(im.names))
	for p, name := range im.names {
		out[name] = p
	}

	return out
}

// Specs returns the import specs sorted by path.
func (im *ImportSet) Specs() []*ast.ImportSpec {
	specs := make([]*ast.ImportSpec, 0, len(im.names))
	for _, p := range slices.Sorted(maps.Keys(im.names)) {
		spec := &ast.ImportSpec{Path: &ast.BasicLit{Kind: token.STRING, Value: strconv.Quote(p)}}
		if im.names[p] != path.Base(p) {
			spec.Name = ast.NewIdent(im.names[p])
		}
		specs = append(specs, spec)
	}

	return specs
}

// TypeString renders t with the local package names.
func (im *ImportSet) TypeString(t types.Type) (string, error) {
	expr, err := im.TypeExpr(t)
	if err != nil {
		return "", err
	}

	return types.ExprString(expr), nil
}

func (im *ImportSet) qualified(obj types.Object) ast.Expr {
	if name := im.Name(obj.Pkg()); name != "" {
		return &ast.SelectorExpr{X: ast.NewIdent(name), Sel: ast.NewIdent(obj.Name())}
	}

	return ast.NewIdent(obj.Name())
}

// TypeExpr creates an AST type expression for t and registers the packages it uses.
func (im *ImportSet) TypeExpr(t types.Type) (ast.Expr, error) {
	switch typ := t.(type) {
	case *types.Basic:
		return ast.NewIdent(typ.Name()), nil
	case *types.Pointer:
		expr, err := im.TypeExpr(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("pointer element: %w", err)
		}

		return &ast.StarExpr{X: expr}, nil
	case *types.Named:
		expr := im.qualified(typ.Obj())
		if typ.TypeArgs().Len() == 0 {
			return expr, nil
		}

		args := make([]ast.Expr, 0, typ.TypeArgs().Len())
		for i := range typ.TypeArgs().Len() {
			arg, err := im.TypeExpr(typ.TypeArgs().At(i))
			if err != nil {
				return nil, fmt.Errorf("type argument %d: %w", i, err)
			}
			args = append(args, arg)
		}
		if len(args) == 1 {
			return &ast.IndexExpr{X: expr, Index: args[0]}, nil
		}

		return &ast.IndexListExpr{X: expr, Indices: args}, nil
	case *types.Alias:
		return im.qualified(typ.Obj()), nil
	case *types.Slice:
		expr, err := im.TypeExpr(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("slice element: %w", err)
		}

		return &ast.ArrayType{Elt: expr}, nil
	case *types.Array:
		expr, err := im.TypeExpr(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}

		return &ast.ArrayType{
			Len: &ast.BasicLit{Kind: token.INT, Value: strconv.FormatInt(typ.Len(), 10)},
			Elt: expr,
		}, nil
	case *types.Map:
		keyExpr, err := im.TypeExpr(typ.Key())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		valueExpr, err := im.TypeExpr(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}

		return &ast.MapType{Key: keyExpr, Value: valueExpr}, nil
	case *types.Interface:
		methods := make([]*ast.Field, 0, typ.NumExplicitMethods()+typ.NumEmbeddeds())
		for i := range typ.NumEmbeddeds() {
			expr, err := im.TypeExpr(typ.EmbeddedType(i))
			if err != nil {
				return nil, fmt.Errorf("embedded interface: %w", err)
			}
			methods = append(methods, &ast.Field{Type: expr})
		}
		for i := range typ.NumExplicitMethods() {
			method := typ.ExplicitMethod(i)
			expr, err := im.TypeExpr(method.Signature())
			if err != nil {
				return nil, fmt.Errorf("method signature: %w", err)
			}
			methods = append(methods, &ast.Field{Names: []*ast.Ident{ast.NewIdent(method.Name())}, Type: expr})
		}

		return &ast.InterfaceType{Methods: &ast.FieldList{List: methods}}, nil
	case *types.Struct:
		fields := make([]*ast.Field, 0, typ.NumFields())
		for i := range typ.NumFields() {
			f := typ.Field(i)
			expr, err := im.TypeExpr(f.Type())
			if err != nil {
				return nil, fmt.Errorf("struct field %s: %w", f.Name(), err)
			}
			field := &ast.Field{Type: expr}
			if !f.Embedded() {
				field.Names = []*ast.Ident{ast.NewIdent(f.Name())}
			}
			fields = append(fields, field)
		}

		return &ast.StructType{Fields: &ast.FieldList{List: fields}}, nil
	case *types.Chan:
		var dir ast.ChanDir
		switch typ.Dir() {
		case types.SendRecv:
			dir = ast.SEND | ast.RECV
		case types.SendOnly:
			dir = ast.SEND
		case types.RecvOnly:
			dir = ast.RECV
		}
		expr, err := im.TypeExpr(typ.Elem())
		if err != nil {
			return nil, fmt.Errorf("chan element: %w", err)
		}

		return &ast.ChanType{Dir: dir, Value: expr}, nil
	case *types.Signature:
		params, err := im.fieldList(typ.Params(), typ.Variadic())
		if err != nil {
			return nil, fmt.Errorf("params: %w", err)
		}
		results, err := im.fieldList(typ.Results(), false)
		if err != nil {
			return nil, fmt.Errorf("results: %w", err)
		}

		return &ast.FuncType{Params: params, Results: results}, nil
	}

	return nil, fmt.Errorf("unsupported type %s", t)
}

func (im *ImportSet) fieldList(tuple *types.Tuple, variadic bool) (*ast.FieldList, error) {
	list := &ast.FieldList{}
	for i := range tuple.Len() {
		v := tuple.At(i)

		var (
			expr ast.Expr
			err  error
		)
		if variadic && i == tuple.Len()-1 {
			var elem ast.Expr
			elem, err = im.TypeExpr(v.Type().(*types.Slice).Elem())
			expr = &ast.Ellipsis{Elt: elem}
		} else {
			expr, err = im.TypeExpr(v.Type())
		}
		if err != nil {
			return nil, fmt.Errorf("%d: %w", i, err)
		}

		field := &ast.Field{Type: expr}
		if v.Name() != "" {
			field.Names = []*ast.Ident{ast.NewIdent(v.Name())}
		}
		list.List = append(list.List, field)
	}

	return list, nil
}
