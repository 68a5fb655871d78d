package musubi

import (
	"errors"
	"go/token"
	"go/types"
	"strings"
	"testing"
)

func TestResolver_Type(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, `
types:
  - name: Service
  - name: Handler
    kind: interface
  - name: Factory
    kind: func
    underlying: "func(name string) *Service"
  - name: ext.Client
`)

	tests := []struct {
		expr        string
		expected    string
		shouldError bool
	}{
		{expr: "*Service", expected: "*example.com/app.Service"},
		{expr: "Handler", expected: "example.com/app.Handler"},
		{expr: "Factory", expected: "example.com/app.Factory"},
		{expr: "ext.Client", expected: "example.com/ext.Client"},
		{expr: "ext.Unknown", expected: "example.com/ext.Unknown"},
		{expr: "[]map[string]*Service", expected: "[]map[string]*example.com/app.Service"},
		{expr: "[3]int", expected: "[3]int"},
		{expr: "chan<- error", expected: "chan<- error"},
		{expr: "func(string, ...int) (Handler, error)", expected: "func(string, ...int) (example.com/app.Handler, error)"},
		{expr: "musubi.Provider[*Service]", expected: "github.com/mazrean/musubi.Provider[*example.com/app.Service]"},
		{expr: "musubi.Lazy[musubi.Optional[int]]", expected: "github.com/mazrean/musubi.Lazy[github.com/mazrean/musubi.Optional[int]]"},
		{expr: "interface{ Close() error }", expected: "interface{Close() error}"},
		{expr: "Missing", shouldError: true},
		{expr: "nope.Type", shouldError: true},
		{expr: "[n]int", shouldError: true},
		{expr: "musubi.Provider[int, string]", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			got, err := f.resolver.Type(tt.expr)
			if tt.shouldError {
				if !errors.Is(err, ErrUnknownType) {
					t.Fatalf("expected ErrUnknownType, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Type(%s) error = %v", tt.expr, err)
			}
			if s := types.TypeString(got, nil); s != tt.expected {
				t.Errorf("Type(%s) = %s, want %s", tt.expr, s, tt.expected)
			}
		})
	}
}

func TestResolver_Declarations(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, `
types:
  - name: Widget
    assisted:
      factory: WidgetFactory
  - name: WidgetFactory
    kind: func
    underlying: "func(size int) *Widget"
`)

	widget, _ := f.resolver.Type("Widget")
	factory, _ := f.resolver.Type("WidgetFactory")

	if !f.resolver.IsDeclared(widget) {
		t.Error("expected Widget to be declared by the bundle")
	}
	if f.resolver.IsDeclared(types.Typ[types.Int]) {
		t.Error("basic types are not declared")
	}
	if target, ok := f.resolver.AssistedTarget(factory); !ok || !types.Identical(target, widget) {
		t.Errorf("AssistedTarget() = %v, %v", target, ok)
	}
	if facts := f.resolver.Facts(widget); facts == nil || facts.Assisted == nil {
		t.Errorf("expected the facts of Widget, got %+v", facts)
	}
	if _, ok := factory.Underlying().(*types.Signature); !ok {
		t.Errorf("expected a func underlying type, got %s", factory.Underlying())
	}
}

func TestResolver_Loaded(t *testing.T) {
	t.Parallel()

	pkg := types.NewPackage("example.com/app", "app")
	obj := types.NewTypeName(token.NoPos, pkg, "Service", nil)
	loaded := types.NewNamed(obj, types.NewStruct(nil, nil), nil)
	pkg.Scope().Insert(obj)

	b, err := NewParser().Parse(strings.NewReader(testPackageHeader + `
types:
  - name: Service
    inject:
      - func: NewService
`))
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewResolver(b, NewRuntimeTypes(), pkg)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	got, err := r.Type("Service")
	if err != nil {
		t.Fatal(err)
	}
	if got != types.Type(loaded) {
		t.Error("expected the loaded type to be used instead of a declared one")
	}
	if r.IsDeclared(got) {
		t.Error("loaded types are not declared")
	}
	if r.Facts(got) == nil {
		t.Error("expected facts to attach to the loaded type")
	}
}

func TestResolver_Func(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, "")

	tests := []struct {
		expr        string
		expected    Ref
		shouldError bool
	}{
		{expr: "NewService", expected: Ref{Name: "NewService"}},
		{expr: "ext.NewClient", expected: Ref{Path: "example.com/ext", Name: "NewClient"}},
		{expr: "musubi.NewLazy", expected: Ref{Path: RuntimePackagePath, Name: "NewLazy"}},
		{expr: "other.NewClient", shouldError: true},
		{expr: "New-Service", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			got, err := f.resolver.Func(tt.expr)
			if tt.shouldError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Func(%s) error = %v", tt.expr, err)
			}
			if got != tt.expected {
				t.Errorf("Func(%s) = %v, want %v", tt.expr, got, tt.expected)
			}
		})
	}
}
