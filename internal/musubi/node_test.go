package musubi

import (
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/mazrean/musubi/internal/musubi/mocks"
)

const layeredBody = `
types:
  - name: Base
    kind: interface
  - name: App
    kind: interface
modules:
  - name: common
    provides:
      - type: int
        value: "8080"
  - name: logging
    includes: [common]
    provides:
      - type: string
        value: '"info"'
containers:
  - name: Base
    modules: [common]
    provides:
      - type: bool
        value: "true"
    accessors:
      - name: Port
        type: int
  - name: App
    extends: [Base]
    modules: [logging]
    accessors:
      - name: Level
        type: string
`

func TestNodeBuilder_RecordsLookups(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	tracker := mocks.NewMockLookupTracker(ctrl)
	gomock.InOrder(
		tracker.EXPECT().Record("Base", "module common"),
		tracker.EXPECT().Record("App", "container Base"),
		tracker.EXPECT().Record("App", "module logging"),
		tracker.EXPECT().Record("App", "module common"),
	)

	f := newTestFixture(t, layeredBody, WithLookupTracker(tracker))
	f.node(t, "App")

	// cached nodes are not recorded again
	f.node(t, "Base")
}

func TestNodeBuilder_Inheritance(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, layeredBody)
	node := f.node(t, "App")

	var modules []string
	depths := make(map[string]int)
	for _, m := range node.Modules {
		modules = append(modules, m.Decl.Name)
		depths[m.Decl.Name] = m.Depth
	}
	if len(modules) != 2 || modules[0] != "logging" || modules[1] != "common" {
		t.Fatalf("expected modules [logging common], got %v", modules)
	}
	if depths["logging"] != 0 || depths["common"] != 1 {
		t.Errorf("unexpected module depths %v", depths)
	}
	if !node.Attached("common") || node.Attached("missing") {
		t.Error("unexpected Attached result")
	}

	var inherited *Declared[*ProvideDecl]
	for i, p := range node.Provides {
		if p.Decl.Type == "bool" {
			inherited = &node.Provides[i]
		}
	}
	if inherited == nil {
		t.Fatal("expected the container declaration of Base to be inherited")
	}
	if inherited.Level != LevelInherited || inherited.Owner != "container Base" {
		t.Errorf("unexpected inherited declaration %+v", inherited)
	}
	if got := inherited.origin("").String(); got != "container Base (inherited)" {
		t.Errorf("origin = %s", got)
	}

	var accessors []string
	for _, a := range node.Accessors {
		accessors = append(accessors, a.Name)
	}
	if len(accessors) != 2 || accessors[0] != "Level" || accessors[1] != "Port" {
		t.Errorf("expected accessors [Level Port], got %v", accessors)
	}
}

func TestNodeBuilder_IncludeCycle(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, `
types:
  - name: App
    kind: interface
modules:
  - name: a
    includes: [b]
  - name: b
    includes: [a]
containers:
  - name: App
    modules: [a]
`)

	node := f.node(t, "App")
	if len(node.Modules) != 2 {
		t.Errorf("expected both modules of the include cycle, got %d", len(node.Modules))
	}
}

func TestNodeBuilder_Dynamic(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, `
types:
  - name: App
    kind: interface
modules:
  - name: prod
    provides:
      - type: string
        value: '"prod"'
  - name: fake
    provides:
      - type: string
        value: '"fake"'
containers:
  - name: App
    modules: [prod]
    provides:
      - type: int
        value: "1"
    accessors:
      - name: Name
        type: string
  - name: TestApp
    dynamic:
      base: App
      modules: [fake]
`)

	base := f.node(t, "App")
	node := f.node(t, "TestApp")

	if node.Type != base.Type {
		t.Error("a dynamic container shares the type of its base")
	}
	if len(node.Accessors) != 1 {
		t.Errorf("expected the accessors of the base, got %d", len(node.Accessors))
	}

	dynamic := make(map[string]bool)
	for _, p := range node.Provides {
		dynamic[p.Owner] = p.Dynamic
	}
	want := map[string]bool{"container App": false, "module prod": false, "module fake": true}
	for owner, d := range want {
		got, ok := dynamic[owner]
		if !ok {
			t.Errorf("missing declaration of %s", owner)
			continue
		}
		if got != d {
			t.Errorf("%s: Dynamic = %v, want %v", owner, got, d)
		}
	}
}

func TestNodeBuilder_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		containers []string
		expected   error
	}{
		{
			name: "unknown module",
			body: `
types:
  - name: App
    kind: interface
containers:
  - name: App
    modules: [missing]
`,
			containers: []string{"App"},
			expected:   ErrUnknownModule,
		},
		{
			name: "unknown supertype",
			body: `
types:
  - name: App
    kind: interface
containers:
  - name: App
    extends: [Missing]
`,
			containers: []string{"App"},
			expected:   ErrUnknownContainer,
		},
		{
			name: "method provider without a receiver type",
			body: `
types:
  - name: App
    kind: interface
modules:
  - name: m
    provides:
      - type: string
        method: Name
containers:
  - name: App
    modules: [m]
`,
			containers: []string{"App"},
			expected:   ErrInvalidBundle,
		},
		{
			name: "extension with two parents",
			body: `
types:
  - name: A
    kind: interface
  - name: B
    kind: interface
  - name: Child
    kind: interface
containers:
  - name: A
    extensions: [Child]
  - name: B
    extensions: [Child]
  - name: Child
    extension: true
`,
			containers: []string{"A", "B"},
			expected:   ErrInvalidBundle,
		},
		{
			name: "included graph without summary",
			body: `
types:
  - name: App
    kind: interface
containers:
  - name: App
    creator:
      - name: core
        type: ext.Core
        kind: graph
`,
			containers: []string{"App"},
			expected:   ErrUnknownContainer,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newTestFixture(t, tt.body)

			var err error
			for _, name := range tt.containers {
				if _, err = f.nodes.Build(name); err != nil {
					break
				}
			}
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}
