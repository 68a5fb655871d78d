package musubi

import (
	"testing"
)

func TestSelectStrategies(t *testing.T) {
	t.Parallel()

	f, g := mustGraph(t, `
types:
  - name: App
    kind: interface
  - name: Config
  - name: DB
  - name: Repo
  - name: Cache
  - name: Plugin
    kind: interface
  - name: Audit
    implements: [Plugin]
containers:
  - name: App
    scopes: [Singleton]
    creator:
      - name: cfg
        type: "*Config"
    provides:
      - type: "*DB"
        func: NewDB
        params:
          - type: "*Config"
      - type: "*Repo"
        func: NewRepo
        params:
          - type: "*DB"
          - type: "*Cache"
      - type: "*Cache"
        func: NewCache
        scope: Singleton
      - type: "*Audit"
        func: NewAudit
        params:
          - type: "*DB"
      - type: string
        value: '"name"'
    binds:
      - type: Plugin
        source: "*Audit"
        into: set
    accessors:
      - name: Repo
        type: "*Repo"
      - name: Plugins
        type: "[]Plugin"
      - name: Name
        type: string
`, "App")

	plan := SelectStrategies(g)

	tests := []struct {
		key    string
		expect Storage
		refs   int
	}{
		{key: "*Config", expect: StorageInstance, refs: 1},
		{key: "*DB", expect: StorageField, refs: 2},
		{key: "*Cache", expect: StorageField, refs: 1},
		{key: "*Repo", expect: StorageInline, refs: 1},
		{key: "[]Plugin", expect: StorageGetter, refs: 1},
		{key: "string", expect: StorageInline, refs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()

			key := f.key(t, tt.key, "")
			if got := plan.Storage(key); got != tt.expect {
				t.Errorf("expected %s, got %s", tt.expect, got)
			}
			if got := plan.Refs(key); got != tt.refs {
				t.Errorf("expected %d refs, got %d", tt.refs, got)
			}
		})
	}
}

func TestSelectStrategies_ContributorGetter(t *testing.T) {
	t.Parallel()

	f, g := mustGraph(t, `
types:
  - name: App
    kind: interface
  - name: Plugin
    kind: interface
  - name: Config
containers:
  - name: App
    creator:
      - name: cfg
        type: "*Config"
    provides:
      - type: Plugin
        func: NewAudit
        into: set
        params:
          - type: "*Config"
    accessors:
      - name: Plugins
        type: "[]Plugin"
`, "App")

	plan := SelectStrategies(g)

	b, _ := g.Binding(f.key(t, "[]Plugin", ""))
	contributor := b.(*MultibindingBinding).Contributions[0].Key
	if got := plan.Storage(contributor); got != StorageGetter {
		t.Errorf("expected the contributor to get a getter, got %s", got)
	}
}

func TestSelectStrategies_DeferredAndShapes(t *testing.T) {
	t.Parallel()

	f, g := mustGraph(t, cycleBody("musubi.Lazy[*A]"), "App")
	plan := SelectStrategies(g)

	a := f.key(t, "*A", "")
	if got := plan.Storage(a); got != StorageField {
		t.Errorf("expected the deferred binding to be a field, got %s", got)
	}

	shapes := plan.Shapes(a)
	if len(shapes) != 2 || !shapes[0].Equal(Canonical) || shapes[1].Kind != ShapeLazy {
		t.Errorf("unexpected shapes %v", shapes)
	}

	counts := plan.Counts()
	if counts["field"] != 1 || counts["inline"] != 1 {
		t.Errorf("unexpected counts %v", counts)
	}
}

func TestSelectStrategies_AliasForwardsRefs(t *testing.T) {
	t.Parallel()

	f, g := mustGraph(t, `
types:
  - name: App
    kind: interface
  - name: Logger
    kind: interface
  - name: FileLogger
containers:
  - name: App
    provides:
      - type: "*FileLogger"
        func: NewFileLogger
    binds:
      - type: Logger
        source: "*FileLogger"
    accessors:
      - name: Logger
        type: Logger
      - name: OtherLogger
        type: Logger
`, "App")

	plan := SelectStrategies(g)
	if got := plan.Storage(f.key(t, "Logger", "")); got != StorageInline {
		t.Errorf("expected the alias to be inline, got %s", got)
	}
	target := f.key(t, "*FileLogger", "")
	if got := plan.Refs(target); got != 2 {
		t.Errorf("expected the alias to forward both uses, got %d", got)
	}
	if got := plan.Storage(target); got != StorageField {
		t.Errorf("expected the shared target to be a field, got %s", got)
	}
}
