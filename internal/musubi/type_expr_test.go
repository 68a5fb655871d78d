package musubi

import (
	"go/token"
	"go/types"
	"testing"
)

func TestImportSet_TypeString(t *testing.T) {
	t.Parallel()

	app := types.NewPackage("example.com/app", "app")
	ext := types.NewPackage("example.com/ext", "ext")
	stdlog := types.NewPackage("log", "log")
	otherLog := types.NewPackage("example.com/other/log", "log")
	named := func(pkg *types.Package, name string) types.Type {
		return types.NewNamed(types.NewTypeName(token.NoPos, pkg, name, nil), types.NewStruct(nil, nil), nil)
	}
	rt := NewRuntimeTypes()
	service := named(app, "Service")
	client := named(ext, "Client")
	str := types.Typ[types.String]

	tests := []struct {
		name     string
		typ      types.Type
		expected string
	}{
		{name: "basic", typ: types.Typ[types.Int], expected: "int"},
		{name: "local named", typ: types.NewPointer(service), expected: "*Service"},
		{name: "imported named", typ: client, expected: "ext.Client"},
		{name: "runtime generic", typ: rt.Provider(types.NewPointer(service)), expected: "musubi.Provider[*Service]"},
		{name: "slice", typ: types.NewSlice(client), expected: "[]ext.Client"},
		{name: "array", typ: types.NewArray(str, 4), expected: "[4]string"},
		{name: "map", typ: types.NewMap(str, rt.Lazy(client)), expected: "map[string]musubi.Lazy[ext.Client]"},
		{name: "recv chan", typ: types.NewChan(types.RecvOnly, str), expected: "<-chan string"},
		{
			name: "variadic func",
			typ: types.NewSignatureType(nil, nil, nil,
				types.NewTuple(types.NewParam(token.NoPos, nil, "id", str), types.NewParam(token.NoPos, nil, "opts", types.NewSlice(client))),
				types.NewTuple(types.NewParam(token.NoPos, nil, "", service), types.NewParam(token.NoPos, nil, "", types.Universe.Lookup("error").Type())),
				true),
			expected: "func(id string, opts ...ext.Client) (Service, error)",
		},
		{
			name:     "struct",
			typ:      types.NewStruct([]*types.Var{types.NewField(token.NoPos, app, "Name", str, false)}, nil),
			expected: "struct{Name string}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			im := NewImportSet("example.com/app", map[string]string{"ext": "example.com/ext", "musubi": RuntimePackagePath})
			got, err := im.TypeString(tt.typ)
			if err != nil {
				t.Fatalf("TypeString() error = %v", err)
			}
			if got != tt.expected {
				t.Errorf("TypeString() = %s, want %s", got, tt.expected)
			}
		})
	}

	t.Run("name collisions", func(t *testing.T) {
		t.Parallel()

		im := NewImportSet("example.com/app", nil)
		first, _ := im.TypeString(named(stdlog, "Logger"))
		second, _ := im.TypeString(named(otherLog, "Logger"))
		if first != "log.Logger" || second != "log0.Logger" {
			t.Errorf("unexpected names %s and %s", first, second)
		}

		specs := im.Specs()
		if len(specs) != 2 {
			t.Fatalf("expected two imports, got %d", len(specs))
		}
		if specs[0].Name == nil || specs[0].Name.Name != "log0" || specs[0].Path.Value != `"example.com/other/log"` {
			t.Errorf("expected the renamed import first, got %+v", specs[0])
		}
		if specs[1].Name != nil || specs[1].Path.Value != `"log"` {
			t.Errorf("expected an unnamed log import, got %+v", specs[1])
		}
	})

	t.Run("aliases are kept", func(t *testing.T) {
		t.Parallel()

		im := NewImportSet("example.com/app", map[string]string{"extv2": "example.com/ext"})
		if got := im.ByPath("example.com/ext"); got != "extv2" {
			t.Errorf("ByPath() = %s, want extv2", got)
		}
		if got := im.Aliases()["extv2"]; got != "example.com/ext" {
			t.Errorf("Aliases() = %v", im.Aliases())
		}
	})
}
