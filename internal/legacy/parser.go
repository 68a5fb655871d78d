package legacy

import (
	"go/ast"
	"go/token"
	"go/types"
	"strconv"
	"strings"
)

// Constants for wire pattern argument counts.
const (
	wireBindArgCount           = 2
	wireInterfaceValueArgCount = 2
	wireFieldsOfMinArgs        = 2
)

// Parser extracts wire patterns from type checked files.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// FindWireImport returns the local name of the wire import, or "" if the file does not import it.
func (p *Parser) FindWireImport(file *ast.File) string {
	for _, imp := range file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil || path != wireImportPath {
			continue
		}
		if imp.Name != nil {
			return imp.Name.Name
		}
		return "wire"
	}

	return ""
}

// ExtractPatterns returns the provider sets and injectors declared at package level.
func (p *Parser) ExtractPatterns(file *ast.File, info *types.Info, wireAlias string) []WirePattern {
	var patterns []WirePattern

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.VAR {
				continue
			}
			for _, spec := range d.Specs {
				valueSpec, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for i, value := range valueSpec.Values {
					call, ok := value.(*ast.CallExpr)
					if !ok || !p.isWireCall(call, wireAlias, "NewSet") || i >= len(valueSpec.Names) {
						continue
					}
					patterns = append(patterns, p.parseNewSet(call, info, wireAlias, valueSpec.Names[i].Name))
				}
			}
		case *ast.FuncDecl:
			if d.Body == nil {
				continue
			}
			for _, stmt := range d.Body.List {
				exprStmt, ok := stmt.(*ast.ExprStmt)
				if !ok {
					continue
				}
				call, ok := exprStmt.X.(*ast.CallExpr)
				if !ok || !p.isWireCall(call, wireAlias, "Build") {
					continue
				}
				patterns = append(patterns, &WireBuild{
					baseWirePattern: baseWirePattern{Pos: call.Pos()},
					FuncName:        d.Name.Name,
				})
			}
		}
	}

	return patterns
}

func (p *Parser) isWireCall(call *ast.CallExpr, wireAlias, name string) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	ident, ok := sel.X.(*ast.Ident)

	return ok && ident.Name == wireAlias && sel.Sel.Name == name
}

func (p *Parser) parseNewSet(call *ast.CallExpr, info *types.Info, wireAlias, varName string) *WireNewSet {
	set := &WireNewSet{
		baseWirePattern: baseWirePattern{Pos: call.Pos()},
		VarName:         varName,
	}
	for _, arg := range call.Args {
		set.Elements = append(set.Elements, p.parseSetElement(arg, info, wireAlias))
	}

	return set
}

func (p *Parser) parseSetElement(expr ast.Expr, info *types.Info, wireAlias string) WirePattern {
	unsupported := &WireUnsupported{baseWirePattern: baseWirePattern{Pos: expr.Pos()}, Expr: expr}

	var ident *ast.Ident
	switch e := expr.(type) {
	case *ast.CallExpr:
		return p.parseCallExpr(e, info, wireAlias, unsupported)
	case *ast.Ident:
		ident = e
	case *ast.SelectorExpr:
		ident = e.Sel
	default:
		return unsupported
	}

	switch obj := info.ObjectOf(ident).(type) {
	case *types.Func:
		if obj.Signature().Recv() != nil {
			return unsupported
		}
		return &WireProviderFunc{baseWirePattern: baseWirePattern{Pos: expr.Pos()}, Func: obj}
	case *types.Var:
		if isProviderSet(obj.Type()) {
			return &WireSetRef{baseWirePattern: baseWirePattern{Pos: expr.Pos()}, Var: obj}
		}
	}

	return unsupported
}

func isProviderSet(t types.Type) bool {
	named, ok := types.Unalias(t).(*types.Named)
	if !ok || named.Obj().Pkg() == nil {
		return false
	}

	return named.Obj().Pkg().Path() == wireImportPath && named.Obj().Name() == "ProviderSet"
}

func (p *Parser) parseCallExpr(call *ast.CallExpr, info *types.Info, wireAlias string, unsupported WirePattern) WirePattern {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok {
		return unsupported
	}
	ident, ok := sel.X.(*ast.Ident)
	if !ok || ident.Name != wireAlias {
		return unsupported
	}

	var pattern WirePattern
	switch sel.Sel.Name {
	case "NewSet":
		pattern = p.parseNewSet(call, info, wireAlias, "")
	case "Bind":
		pattern = p.parseBind(call, info)
	case "Value":
		pattern = p.parseValue(call, info)
	case "InterfaceValue":
		pattern = p.parseInterfaceValue(call, info)
	case "Struct":
		pattern = p.parseStruct(call, info)
	case "FieldsOf":
		pattern = p.parseFieldsOf(call, info)
	}
	if pattern == nil {
		return unsupported
	}

	return pattern
}

// parseBind parses wire.Bind(new(Interface), new(Impl)).
func (p *Parser) parseBind(call *ast.CallExpr, info *types.Info) WirePattern {
	if len(call.Args) != wireBindArgCount {
		return nil
	}

	ifaceType := p.extractTypeFromNew(call.Args[0], info)
	implType := p.extractTypeFromNew(call.Args[1], info)
	if ifaceType == nil || implType == nil {
		return nil
	}

	return &WireBind{
		baseWirePattern: baseWirePattern{Pos: call.Pos()},
		Interface:       ifaceType,
		Implementation:  implType,
	}
}

// parseValue parses wire.Value(expr).
func (p *Parser) parseValue(call *ast.CallExpr, info *types.Info) WirePattern {
	if len(call.Args) != 1 {
		return nil
	}
	tv, ok := info.Types[call.Args[0]]
	if !ok {
		return nil
	}

	return &WireValue{
		baseWirePattern: baseWirePattern{Pos: call.Pos()},
		Expr:            call.Args[0],
		Type:            tv.Type,
	}
}

// parseInterfaceValue parses wire.InterfaceValue(new(Interface), expr).
func (p *Parser) parseInterfaceValue(call *ast.CallExpr, info *types.Info) WirePattern {
	if len(call.Args) != wireInterfaceValueArgCount {
		return nil
	}
	ifaceType := p.extractTypeFromNew(call.Args[0], info)
	if ifaceType == nil {
		return nil
	}

	return &WireInterfaceValue{
		baseWirePattern: baseWirePattern{Pos: call.Pos()},
		Interface:       ifaceType,
		Expr:            call.Args[1],
	}
}

// parseStruct parses wire.Struct(new(T), fields...).
func (p *Parser) parseStruct(call *ast.CallExpr, info *types.Info) WirePattern {
	if len(call.Args) < 1 {
		return nil
	}
	structType := p.extractTypeFromNew(call.Args[0], info)
	if structType == nil {
		return nil
	}

	fields := extractStringFields(call.Args[1:])
	if len(fields) == 0 {
		fields = []string{"*"}
	}

	return &WireStruct{
		baseWirePattern: baseWirePattern{Pos: call.Pos()},
		StructType:      structType,
		Fields:          fields,
	}
}

// parseFieldsOf parses wire.FieldsOf(new(T), fields...).
func (p *Parser) parseFieldsOf(call *ast.CallExpr, info *types.Info) WirePattern {
	if len(call.Args) < wireFieldsOfMinArgs {
		return nil
	}
	structType := p.extractTypeFromNew(call.Args[0], info)
	if structType == nil {
		return nil
	}

	return &WireFieldsOf{
		baseWirePattern: baseWirePattern{Pos: call.Pos()},
		StructType:      structType,
		Fields:          extractStringFields(call.Args[1:]),
	}
}

// extractTypeFromNew returns T of a new(T) expression.
func (p *Parser) extractTypeFromNew(expr ast.Expr, info *types.Info) types.Type {
	call, ok := expr.(*ast.CallExpr)
	if !ok || len(call.Args) != 1 {
		return nil
	}
	ident, ok := call.Fun.(*ast.Ident)
	if !ok || ident.Name != "new" {
		return nil
	}

	tv, ok := info.Types[call.Args[0]]
	if !ok {
		return nil
	}

	return tv.Type
}

func extractStringFields(args []ast.Expr) []string {
	var fields []string
	for _, arg := range args {
		lit, ok := arg.(*ast.BasicLit)
		if !ok || lit.Kind != token.STRING {
			continue
		}
		if field, err := strconv.Unquote(lit.Value); err == nil {
			fields = append(fields, strings.TrimSpace(field))
		}
	}

	return fields
}
