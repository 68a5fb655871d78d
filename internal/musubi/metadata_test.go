package musubi

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const summaryBody = `
types:
  - name: App
    kind: interface
containers:
  - name: App
    scopes: [singleton]
    provides:
      - type: int
        value: "8080"
      - type: "*ext.Store"
        func: ext.NewStore
    accessors:
      - name: Port
        type: int
      - name: Store
        type: "*ext.Store"
`

func newTestSummary(t *testing.T) *Summary {
	t.Helper()

	_, g := mustGraph(t, summaryBody, "App")
	s, err := NewSummary(g, SelectStrategies(g), []string{"container App"})
	require.NoError(t, err)

	return s
}

func TestNewSummary(t *testing.T) {
	t.Parallel()

	s := newTestSummary(t)

	assert.Equal(t, metadataVersion, s.Version)
	assert.Equal(t, "App", s.Container)
	assert.Equal(t, "app.App", s.Type)
	assert.Equal(t, "example.com/app", s.Package)
	assert.Equal(t, []string{"singleton"}, s.Scopes)
	assert.Equal(t, []SummaryAccessor{
		{Name: "Port", Type: "int"},
		{Name: "Store", Type: "*ext.Store"},
	}, s.Accessors)
	assert.Equal(t, map[string]string{
		"app": "example.com/app",
		"ext": "example.com/ext",
	}, s.Imports)
	assert.Equal(t, []string{"int", "*ext.Store"}, s.Exposed)
	assert.Equal(t, []string{"container App"}, s.Consumed)
	assert.NotEmpty(t, s.Bindings)
	assert.NoError(t, s.Verify())
}

func TestNewSummary_ExposedKeys(t *testing.T) {
	t.Parallel()

	_, g := mustGraph(t, `
types:
  - name: App
    kind: interface
  - name: Request
    kind: interface
  - name: Handler
containers:
  - name: App
    provides:
      - type: string
        value: '"root"'
      - type: string
        qualifier: dsn
        value: '"postgres://"'
    extensions: [Request]
    accessors:
      - name: DSN
        type: string
        qualifier: dsn
      - name: Request
        type: Request
  - name: Request
    extension: true
    provides:
      - type: "*Handler"
        struct: true
        params:
          - name: name
            type: string
    accessors:
      - name: Handler
        type: "*Handler"
`, "App")

	s, err := NewSummary(g, SelectStrategies(g), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"@dsn string", "app.Request", "string"}, s.Exposed)
	assert.NoError(t, s.Verify())
}

func TestSummary_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestSummary(t)

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, s))

	got, err := ReadSummary(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSummary_Verify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tamper func(*Summary)
	}{
		{
			name:   "unknown version",
			tamper: func(s *Summary) { s.Version = metadataVersion + 1 },
		},
		{
			name:   "accessor changed",
			tamper: func(s *Summary) { s.Accessors[0].Type = "string" },
		},
		{
			name:   "exposed key dropped",
			tamper: func(s *Summary) { s.Exposed = s.Exposed[:1] },
		},
		{
			name:   "import changed",
			tamper: func(s *Summary) { s.Imports["ext"] = "example.com/other" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := newTestSummary(t)
			tt.tamper(s)

			var buf bytes.Buffer
			require.NoError(t, WriteSummary(&buf, s))

			_, err := ReadSummary(&buf)
			assert.ErrorIs(t, err, ErrUnsupportedMetadata)
		})
	}
}

func TestSummary_FingerprintIgnoresBookkeeping(t *testing.T) {
	t.Parallel()

	s := newTestSummary(t)
	before := s.fingerprint()

	s.Consumed = append(s.Consumed, "module extra")
	s.Bindings["field"]++

	assert.Equal(t, before, s.fingerprint())
}

func TestSummaryPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		containerType string
		expected      string
	}{
		{containerType: "App", expected: filepath.Join("meta", "App.musubi.meta.yaml")},
		{containerType: "core.Core", expected: filepath.Join("meta", "Core.musubi.meta.yaml")},
		{containerType: "*core.Core", expected: filepath.Join("meta", "Core.musubi.meta.yaml")},
	}

	for _, tt := range tests {
		t.Run(tt.containerType, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, SummaryPath("meta", tt.containerType))
		})
	}
}

func TestDirSummaryLoader(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	core := &Summary{
		Version:   metadataVersion,
		Container: "Core",
		Type:      "core.Core",
		Package:   "example.com/core",
		Imports:   map[string]string{"core": "example.com/core"},
		Accessors: []SummaryAccessor{
			{Name: "Name", Type: "string"},
			{Name: "DB", Type: "*core.DB"},
		},
	}
	core.Fingerprint = core.fingerprint()

	f, err := os.Create(SummaryPath(dir, "core.Core"))
	require.NoError(t, err)
	require.NoError(t, WriteSummary(f, core))
	require.NoError(t, f.Close())

	b, err := NewParser().Parse(strings.NewReader(`version: 1
package:
  path: example.com/app
  name: app
imports:
  core: example.com/core
types:
  - name: App
    kind: interface
containers:
  - name: App
    creator:
      - name: core
        type: core.Core
        kind: graph
    accessors:
      - name: DB
        type: "*core.DB"
`))
	require.NoError(t, err)
	r, err := NewResolver(b, NewRuntimeTypes())
	require.NoError(t, err)

	tracker := NewRecordingTracker()
	nodes := NewNodeBuilder(b, r,
		WithLookupTracker(tracker),
		WithSummaryLoader(DirSummaryLoader(filepath.Join(dir, "missing"), dir)),
	)
	node, err := nodes.Build("App")
	require.NoError(t, err)
	require.Len(t, node.Creator, 1)
	require.NotNil(t, node.Creator[0].Graph)
	assert.Equal(t, "Core", node.Creator[0].Graph.Container)

	g, err := BuildGraph(&Env{Bundle: b, Resolver: r, Oracle: NewTypeOracle(r), Tracker: tracker}, node)
	require.NoError(t, err)

	db, err := r.Type("*core.DB")
	require.NoError(t, err)
	binding, ok := g.Binding(NewTypeKey(db, ""))
	require.True(t, ok)
	dep, ok := binding.(*GraphDependencyBinding)
	require.True(t, ok)
	assert.Equal(t, "DB", dep.Accessor)

	assert.True(t, slices.Contains(tracker.Consumed("App"), "summary Core"))

	_, err = DirSummaryLoader(t.TempDir())("core.Core")
	assert.ErrorIs(t, err, ErrUnknownContainer)
}
