package musubi

import (
	"slices"
	"testing"
)

func cycleBody(bParam string) string {
	return `
types:
  - name: App
    kind: interface
  - name: A
    inject:
      - func: NewA
        params:
          - type: "*B"
  - name: B
    inject:
      - func: NewB
        params:
          - type: "` + bParam + `"
containers:
  - name: App
    accessors:
      - name: A
        type: "*A"
`
}

func TestSeal_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		bParam         string
		expectCycle    bool
		expectDeferred []string
		expectOrder    []string
	}{
		{
			name:        "canonical cycle",
			bParam:      "*A",
			expectCycle: true,
		},
		{
			name:           "provider breaks the cycle",
			bParam:         "musubi.Provider[*A]",
			expectDeferred: []string{"*example.com/app.A"},
			expectOrder:    []string{"*example.com/app.B", "*example.com/app.A"},
		},
		{
			name:           "lazy breaks the cycle",
			bParam:         "musubi.Lazy[*A]",
			expectDeferred: []string{"*example.com/app.A"},
			expectOrder:    []string{"*example.com/app.B", "*example.com/app.A"},
		},
		{
			name:           "provider of lazy breaks the cycle",
			bParam:         "musubi.Provider[musubi.Lazy[*A]]",
			expectDeferred: []string{"*example.com/app.A"},
			expectOrder:    []string{"*example.com/app.B", "*example.com/app.A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newTestFixture(t, cycleBody(tt.bParam))
			g, err := f.graph(t, "App")
			if tt.expectCycle {
				d := diagnosticOf(t, err, ErrValueCycle)
				if len(d.Trace) != 3 || d.Trace[0] != d.Trace[2] {
					t.Errorf("expected a closed trace, got %v", d.Trace)
				}
				if len(d.Hints) == 0 {
					t.Error("expected a hint")
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildGraph() error = %v", err)
			}

			s := g.Sealed()
			var deferred []string
			for id := range s.Deferred {
				deferred = append(deferred, id)
			}
			if !slices.Equal(deferred, tt.expectDeferred) {
				t.Errorf("expected deferred %v, got %v", tt.expectDeferred, deferred)
			}

			var order []string
			for _, b := range s.Order {
				order = append(order, b.Key().ID())
			}
			if !slices.Equal(order, tt.expectOrder) {
				t.Errorf("expected order %v, got %v", tt.expectOrder, order)
			}
		})
	}
}

func TestSeal_SelfProvider(t *testing.T) {
	t.Parallel()

	_, g := mustGraph(t, `
types:
  - name: App
    kind: interface
  - name: Node
    inject:
      - func: NewNode
        params:
          - name: next
            type: musubi.Provider[*Node]
containers:
  - name: App
    accessors:
      - name: Node
        type: "*Node"
`, "App")

	if !g.Sealed().Deferred["*example.com/app.Node"] {
		t.Error("expected the self dependent binding to be deferred")
	}
}

func TestSeal_AssistedCycle(t *testing.T) {
	t.Parallel()

	f := newTestFixture(t, `
types:
  - name: App
    kind: interface
  - name: Widget
    inject:
      - func: NewWidget
        params:
          - name: size
            type: int
            assisted: true
          - name: self
            type: musubi.Provider[*Widget]
    assisted:
      factory: WidgetFactory
  - name: WidgetFactory
    kind: func
    underlying: "func(size int) *Widget"
containers:
  - name: App
    accessors:
      - name: Widgets
        type: WidgetFactory
`)
	_, err := f.graph(t, "App")
	diagnosticOf(t, err, ErrValueCycle)
}

func TestSeal_Reachability(t *testing.T) {
	t.Parallel()

	f, g := mustGraph(t, `
types:
  - name: App
    kind: interface
  - name: Server
containers:
  - name: App
    provides:
      - type: "*Server"
        func: NewServer
        params:
          - type: string
      - type: string
        value: '"addr"'
      - type: int
        value: "42"
    accessors:
      - name: Server
        type: "*Server"
`, "App")

	s := g.Sealed()
	if s.Reachable[f.key(t, "int", "").ID()] {
		t.Error("int is not requested and must not be reachable")
	}
	for _, k := range []string{"*Server", "string"} {
		if !s.Reachable[f.key(t, k, "").ID()] {
			t.Errorf("expected %s to be reachable", k)
		}
	}

	consumers := s.Consumers[f.key(t, "*Server", "").ID()]
	if len(consumers) != 1 || !IsRoot(consumers[0]) {
		t.Errorf("expected the accessor to consume *Server, got %v", consumers)
	}

	order := make([]string, 0, len(s.Order))
	for _, b := range s.Order {
		order = append(order, b.Key().ID())
	}
	if !slices.Equal(order, []string{"string", "*example.com/app.Server"}) {
		t.Errorf("expected dependencies first, got %v", order)
	}

	if _, err := g.Seal(); err != nil {
		t.Errorf("sealing twice must be a no-op, got %v", err)
	}
}

func TestSeal_FreezesMultibindings(t *testing.T) {
	t.Parallel()

	f, g := mustGraph(t, pluginTypes+`
containers:
  - name: App
    multibinds:
      - type: "[]Plugin"
        allowEmpty: true
    accessors:
      - name: Plugins
        type: "[]Plugin"
`, "App")

	b, _ := g.Binding(f.key(t, "[]Plugin", ""))
	if err := b.(*MultibindingBinding).add(Contribution{}); err == nil {
		t.Error("expected a sealed multibinding to reject contributions")
	}
}
