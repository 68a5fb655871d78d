package legacy

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"testing"
)

const wireStub = `package wire

type ProviderSet struct{}
type Binding struct{}
type ProvidedValue struct{}
type StructProvider struct{}
type StructFields struct{}

func NewSet(...interface{}) ProviderSet { return ProviderSet{} }
func Build(...interface{}) string { return "" }
func Bind(iface, to interface{}) Binding { return Binding{} }
func Value(interface{}) ProvidedValue { return ProvidedValue{} }
func InterfaceValue(typ interface{}, x interface{}) ProvidedValue { return ProvidedValue{} }
func Struct(structType interface{}, fieldNames ...string) StructProvider { return StructProvider{} }
func FieldsOf(structType interface{}, fieldNames ...string) StructFields { return StructFields{} }
`

const extSource = `package ext

import "github.com/google/wire"

type DB struct{}

type Clock interface{ Now() int }

type SystemClock struct{}

func (SystemClock) Now() int { return 0 }

type Ticker struct{}

func NewTicker(c Clock) *Ticker { return &Ticker{} }

const DefaultDSN = "postgres://"

func NewDB() *DB { return &DB{} }

var DBSet = wire.NewSet(NewDB)
`

// testUniverse type checks in-memory sources. Imports resolve to other sources of the universe.
type testUniverse struct {
	t       *testing.T
	fset    *token.FileSet
	sources map[string]string
	pkgs    map[string]*Package
}

func newTestUniverse(t *testing.T, sources map[string]string) *testUniverse {
	t.Helper()

	u := &testUniverse{
		t:       t,
		fset:    token.NewFileSet(),
		sources: map[string]string{"github.com/google/wire": wireStub},
		pkgs:    make(map[string]*Package),
	}
	for path, src := range sources {
		u.sources[path] = src
	}

	return u
}

func (u *testUniverse) Import(path string) (*types.Package, error) {
	pkg, err := u.load(path)
	if err != nil {
		return nil, err
	}

	return pkg.Types, nil
}

func (u *testUniverse) load(path string) (*Package, error) {
	if pkg, ok := u.pkgs[path]; ok {
		return pkg, nil
	}
	src, ok := u.sources[path]
	if !ok {
		return nil, fmt.Errorf("package %s not found", path)
	}

	file, err := parser.ParseFile(u.fset, path+"/source.go", src, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	info := &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}
	conf := types.Config{Importer: u}
	tpkg, err := conf.Check(path, u.fset, []*ast.File{file}, info)
	if err != nil {
		return nil, err
	}

	pkg := &Package{Types: tpkg, Info: info, Fset: u.fset, Files: []*ast.File{file}}
	u.pkgs[path] = pkg

	return pkg, nil
}

// packages returns the checked packages at paths, failing the test on type errors.
func (u *testUniverse) packages(paths ...string) []*Package {
	u.t.Helper()

	out := make([]*Package, 0, len(paths))
	for _, path := range paths {
		pkg, err := u.load(path)
		if err != nil {
			u.t.Fatalf("type check %s: %v", path, err)
		}
		out = append(out, pkg)
	}

	return out
}
