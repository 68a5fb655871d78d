package musubi

import (
	"errors"
	"strings"
	"testing"
)

const testPackageHeader = `version: 1
package:
  path: example.com/app
  name: app
imports:
  ext: example.com/ext
`

type testFixture struct {
	bundle   *Bundle
	resolver *Resolver
	nodes    *NodeBuilder
	env      *Env
}

func newTestFixture(t *testing.T, body string, opts ...NodeOption) *testFixture {
	t.Helper()

	b, err := NewParser().Parse(strings.NewReader(testPackageHeader + body))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	r, err := NewResolver(b, NewRuntimeTypes())
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	return &testFixture{
		bundle:   b,
		resolver: r,
		nodes:    NewNodeBuilder(b, r, opts...),
		env:      &Env{Bundle: b, Resolver: r, Oracle: NewTypeOracle(r), Tracker: NewRecordingTracker()},
	}
}

func (f *testFixture) node(t *testing.T, name string) *ContainerNode {
	t.Helper()

	node, err := f.nodes.Build(name)
	if err != nil {
		t.Fatalf("Build(%s) error = %v", name, err)
	}

	return node
}

func (f *testFixture) graph(t *testing.T, name string) (*BindingGraph, error) {
	t.Helper()

	return BuildGraph(f.env, f.node(t, name))
}

func (f *testFixture) key(t *testing.T, typ, qualifier string) TypeKey {
	t.Helper()

	tt, err := f.resolver.Type(typ)
	if err != nil {
		t.Fatalf("Type(%s) error = %v", typ, err)
	}

	return NewTypeKey(tt, qualifier)
}

// mustGraph builds the named container and fails the test on any diagnostic.
func mustGraph(t *testing.T, body, name string) (*testFixture, *BindingGraph) {
	t.Helper()

	f := newTestFixture(t, body)
	g, err := f.graph(t, name)
	if err != nil {
		t.Fatalf("BuildGraph(%s) error = %v", name, err)
	}

	return f, g
}

func diagnosticOf(t *testing.T, err error, kind error) *Diagnostic {
	t.Helper()

	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	for _, d := range DiagnosticsOf(err) {
		if errors.Is(d, kind) {
			return d
		}
	}
	t.Fatalf("no diagnostic of kind %v in %v", kind, err)

	return nil
}
