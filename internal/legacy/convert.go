package legacy

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/format"
	"go/token"
	"go/types"
	"reflect"
	"slices"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/mazrean/musubi/internal/musubi"
	pkgstrings "github.com/mazrean/musubi/internal/pkg/strings"
)

// Package is a type checked package together with its syntax.
type Package struct {
	Types *types.Package
	Info  *types.Info
	Fset  *token.FileSet
	Files []*ast.File
}

// Result is the outcome of converting wire sets.
type Result struct {
	Modules []*musubi.ModuleDecl
	// Imports maps the aliases the modules use to import paths.
	Imports  map[string]string
	Warnings []Warning
}

type fileSets struct {
	pkg      *Package
	patterns []WirePattern
}

// Converter turns wire provider sets into modules of a bundle.
type Converter struct {
	parser *Parser
}

func NewConverter() *Converter {
	return &Converter{parser: NewParser()}
}

// Convert converts the provider sets of pkgs. Type and function references are
// written relative to the package and import aliases of b.
func (c *Converter) Convert(b *musubi.Bundle, pkgs []*Package) *Result {
	conv := &conversion{
		self:    b.Package.Path,
		imports: musubi.NewImportSet(b.Package.Path, b.Imports),
		sets:    make(map[*types.Var]string),
	}

	var files []fileSets
	for _, pkg := range pkgs {
		found := false
		for _, file := range pkg.Files {
			alias := c.parser.FindWireImport(file)
			if alias == "" {
				continue
			}
			found = true
			files = append(files, fileSets{pkg: pkg, patterns: c.parser.ExtractPatterns(file, pkg.Info, alias)})
		}
		if !found {
			conv.warn(WarnNoWireImport, "", fmt.Sprintf("package %s does not import %s", pkg.Types.Path(), wireImportPath))
		}
	}

	// register every set first so that references resolve regardless of declaration order
	for _, f := range files {
		for _, p := range f.patterns {
			set, ok := p.(*WireNewSet)
			if !ok {
				continue
			}
			if v, ok := f.pkg.Types.Scope().Lookup(set.VarName).(*types.Var); ok {
				conv.sets[v] = conv.moduleName(f.pkg.Types, set.VarName)
			}
		}
	}

	var modules []*musubi.ModuleDecl
	for _, f := range files {
		conv.pkg = f.pkg
		patterns := 0
		for _, p := range f.patterns {
			switch p := p.(type) {
			case *WireNewSet:
				patterns++
				m := &musubi.ModuleDecl{Name: conv.moduleName(f.pkg.Types, p.VarName)}
				conv.addElements(m, p.Elements)
				modules = append(modules, m)
			case *WireBuild:
				patterns++
				conv.warn(WarnUnsupportedPattern, conv.position(p), fmt.Sprintf("wire.Build injector %s is not imported, declare a container instead", p.FuncName))
			}
		}
		if patterns == 0 {
			conv.warn(WarnNoWirePatterns, "", fmt.Sprintf("no wire patterns found in package %s", f.pkg.Types.Path()))
		}
	}

	return &Result{
		Modules:  modules,
		Imports:  usedImports(conv.imports.Aliases(), modules),
		Warnings: conv.warnings,
	}
}

type conversion struct {
	self     string
	imports  *musubi.ImportSet
	pkg      *Package
	sets     map[*types.Var]string
	warnings []Warning
}

func (c *conversion) warn(code WarningCode, pos, msg string) {
	c.warnings = append(c.warnings, Warning{Code: code, Message: msg, Pos: pos})
}

func (c *conversion) position(p WirePattern) string {
	if c.pkg == nil || c.pkg.Fset == nil || !p.Position().IsValid() {
		return ""
	}

	return c.pkg.Fset.Position(p.Position()).String()
}

// moduleName names sets of the bundle package by their variable and others by alias.Var.
func (c *conversion) moduleName(pkg *types.Package, varName string) string {
	if pkg.Path() == c.self {
		return varName
	}

	return c.imports.Name(pkg) + "." + varName
}

func (c *conversion) typeString(t types.Type) (string, error) {
	return c.imports.TypeString(t)
}

func (c *conversion) addElements(m *musubi.ModuleDecl, elements []WirePattern) {
	for _, elem := range elements {
		if err := c.addElement(m, elem); err != nil {
			c.warn(WarnUnsupportedPattern, c.position(elem), fmt.Sprintf("set %s: %v", m.Name, err))
		}
	}
}

func (c *conversion) addElement(m *musubi.ModuleDecl, elem WirePattern) error {
	switch e := elem.(type) {
	case *WireNewSet:
		c.addElements(m, e.Elements)
	case *WireProviderFunc:
		p, err := c.provider(e.Func)
		if err != nil {
			return err
		}
		m.Provides = append(m.Provides, p)
	case *WireBind:
		iface, err := c.typeString(e.Interface)
		if err != nil {
			return err
		}
		impl, err := c.typeString(e.Implementation)
		if err != nil {
			return err
		}
		m.Binds = append(m.Binds, &musubi.BindDecl{Type: iface, Source: impl})
	case *WireValue:
		p, err := c.value(e.Type, e.Expr)
		if err != nil {
			return err
		}
		m.Provides = append(m.Provides, p)
	case *WireInterfaceValue:
		p, err := c.value(e.Interface, e.Expr)
		if err != nil {
			return err
		}
		m.Provides = append(m.Provides, p)
	case *WireStruct:
		p, err := c.structProvider(e)
		if err != nil {
			return err
		}
		m.Provides = append(m.Provides, p)
	case *WireFieldsOf:
		ps, err := c.fieldProviders(e)
		if err != nil {
			return err
		}
		m.Provides = append(m.Provides, ps...)
	case *WireSetRef:
		name, ok := c.sets[e.Var]
		if !ok {
			c.warn(WarnUnresolvedSet, c.position(e), fmt.Sprintf("set %s.%s is not part of the imported packages", e.Var.Pkg().Path(), e.Var.Name()))
			return nil
		}
		if !slices.Contains(m.Includes, name) {
			m.Includes = append(m.Includes, name)
		}
	case *WireUnsupported:
		return fmt.Errorf("unsupported element %s", types.ExprString(e.Expr))
	default:
		return fmt.Errorf("unsupported pattern %T", elem)
	}

	return nil
}

func (c *conversion) provider(fn *types.Func) (*musubi.ProvideDecl, error) {
	sig := fn.Signature()
	switch {
	case sig.TypeParams().Len() > 0:
		return nil, fmt.Errorf("generic provider %s", fn.Name())
	case sig.Variadic():
		return nil, fmt.Errorf("variadic provider %s", fn.Name())
	case sig.Results().Len() != 1:
		return nil, fmt.Errorf("provider %s returns %d values, only single value providers are imported", fn.Name(), sig.Results().Len())
	}

	ref, err := c.objectRef(fn)
	if err != nil {
		return nil, err
	}
	typ, err := c.typeString(sig.Results().At(0).Type())
	if err != nil {
		return nil, err
	}

	p := &musubi.ProvideDecl{Type: typ, Func: ref}
	for i := range sig.Params().Len() {
		param := sig.Params().At(i)
		t, err := c.typeString(param.Type())
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", fn.Name(), err)
		}
		name := param.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		p.Params = append(p.Params, &musubi.ParamDecl{Name: name, Type: t})
	}

	return p, nil
}

// objectRef renders a reference to a package level object usable from the bundle package.
func (c *conversion) objectRef(obj types.Object) (string, error) {
	if obj.Pkg() == nil || obj.Pkg().Path() == c.self {
		return obj.Name(), nil
	}
	if !obj.Exported() {
		return "", fmt.Errorf("%s.%s is not exported", obj.Pkg().Path(), obj.Name())
	}

	return c.imports.Name(obj.Pkg()) + "." + obj.Name(), nil
}

func (c *conversion) value(t types.Type, expr ast.Expr) (*musubi.ProvideDecl, error) {
	typ, err := c.typeString(t)
	if err != nil {
		return nil, err
	}
	src, err := c.expr(expr)
	if err != nil {
		return nil, err
	}

	return &musubi.ProvideDecl{Type: typ, Value: src}, nil
}

// expr rewrites package references of expr to the bundle's aliases and prints it.
func (c *conversion) expr(expr ast.Expr) (string, error) {
	var refErr error
	out := astutil.Apply(expr, func(cur *astutil.Cursor) bool {
		switch n := cur.Node().(type) {
		case *ast.SelectorExpr:
			ident, ok := n.X.(*ast.Ident)
			if !ok {
				return true
			}
			pkgName, ok := c.pkg.Info.Uses[ident].(*types.PkgName)
			if !ok {
				return true
			}
			if name := c.imports.Name(pkgName.Imported()); name != "" {
				cur.Replace(&ast.SelectorExpr{X: ast.NewIdent(name), Sel: ast.NewIdent(n.Sel.Name)})
			} else {
				cur.Replace(ast.NewIdent(n.Sel.Name))
			}
			return false
		case *ast.Ident:
			obj := c.pkg.Info.Uses[n]
			if obj == nil || obj.Pkg() == nil || obj.Parent() != obj.Pkg().Scope() {
				return true
			}
			ref, err := c.objectRef(obj)
			if err != nil {
				refErr = err
				return false
			}
			if alias, name, ok := strings.Cut(ref, "."); ok {
				cur.Replace(&ast.SelectorExpr{X: ast.NewIdent(alias), Sel: ast.NewIdent(name)})
			}
		}
		return true
	}, nil)
	if refErr != nil {
		return "", refErr
	}

	var buf bytes.Buffer
	if err := format.Node(&buf, c.pkg.Fset, out); err != nil {
		return "", fmt.Errorf("print value: %w", err)
	}

	return buf.String(), nil
}

// structProvider provides a pointer to the struct with the selected fields injected.
func (c *conversion) structProvider(ws *WireStruct) (*musubi.ProvideDecl, error) {
	base := ws.StructType
	if ptr, ok := types.Unalias(base).(*types.Pointer); ok {
		base = ptr.Elem()
	}
	st, ok := base.Underlying().(*types.Struct)
	if !ok {
		return nil, fmt.Errorf("wire.Struct of non struct type %s", base)
	}
	external := isExternal(base, c.self)

	typ, err := c.typeString(types.NewPointer(base))
	if err != nil {
		return nil, err
	}
	p := &musubi.ProvideDecl{Type: typ, Struct: true}
	for i := range st.NumFields() {
		f := st.Field(i)
		if ws.Fields[0] == "*" {
			if reflect.StructTag(st.Tag(i)).Get("wire") == "-" {
				continue
			}
		} else if !slices.Contains(ws.Fields, f.Name()) {
			continue
		}
		if external && !f.Exported() {
			c.warn(WarnUnsupportedPattern, c.position(ws), fmt.Sprintf("skipping unexported field %s of %s", f.Name(), base))
			continue
		}

		t, err := c.typeString(f.Type())
		if err != nil {
			return nil, err
		}
		p.Params = append(p.Params, &musubi.ParamDecl{
			Name:  pkgstrings.ToLowerCamel(f.Name()),
			Type:  t,
			Field: f.Name(),
		})
	}

	return p, nil
}

// fieldProviders provides each named field of the source struct.
func (c *conversion) fieldProviders(wf *WireFieldsOf) ([]*musubi.ProvideDecl, error) {
	base := wf.StructType
	for {
		ptr, ok := types.Unalias(base).(*types.Pointer)
		if !ok {
			break
		}
		base = ptr.Elem()
	}
	st, ok := base.Underlying().(*types.Struct)
	if !ok {
		return nil, fmt.Errorf("wire.FieldsOf of non struct type %s", base)
	}
	external := isExternal(base, c.self)

	source, err := c.typeString(wf.StructType)
	if err != nil {
		return nil, err
	}

	var out []*musubi.ProvideDecl
	for _, name := range wf.Fields {
		var field *types.Var
		for i := range st.NumFields() {
			if st.Field(i).Name() == name {
				field = st.Field(i)
				break
			}
		}
		if field == nil {
			return nil, fmt.Errorf("%s has no field %s", base, name)
		}
		if external && !field.Exported() {
			return nil, fmt.Errorf("field %s of %s is not exported", name, base)
		}

		t, err := c.typeString(field.Type())
		if err != nil {
			return nil, err
		}
		out = append(out, &musubi.ProvideDecl{Name: name, Type: t, Field: name, Source: source})
	}

	return out, nil
}

func isExternal(t types.Type, self string) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}

	return named.Obj().Pkg().Path() != self
}

// usedImports keeps the aliases referenced by the modules' Go expressions.
func usedImports(aliases map[string]string, modules []*musubi.ModuleDecl) map[string]string {
	var exprs []string
	for _, m := range modules {
		for _, p := range m.Provides {
			exprs = append(exprs, p.Type, p.Func, p.Value, p.Source)
			for _, param := range p.Params {
				exprs = append(exprs, param.Type)
			}
		}
		for _, b := range m.Binds {
			exprs = append(exprs, b.Type, b.Source)
		}
	}

	used := make(map[string]string)
	for alias, path := range aliases {
		for _, e := range exprs {
			if referencesAlias(e, alias) {
				used[alias] = path
				break
			}
		}
	}

	return used
}

func referencesAlias(expr, alias string) bool {
	for i := strings.Index(expr, alias+"."); i >= 0; {
		if i == 0 || !isIdentRune(expr[i-1]) {
			return true
		}
		next := strings.Index(expr[i+1:], alias+".")
		if next < 0 {
			return false
		}
		i += next + 1
	}

	return false
}

func isIdentRune(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
