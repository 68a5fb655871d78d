package musubi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/types"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"
)

// ModuleSource contributes modules to a bundle from another declaration format.
type ModuleSource interface {
	// Modules returns the extra modules and the import aliases they use.
	Modules(ctx context.Context, b *Bundle) ([]*ModuleDecl, map[string]string, error)
}

// PackageLoader loads the type information of the packages a bundle names.
type PackageLoader func(ctx context.Context, dir string, patterns []string) ([]*types.Package, error)

type ProcessorOption func(*Processor)

// WithMetadataDir writes summaries to dir instead of next to the bundle.
func WithMetadataDir(dir string) ProcessorOption {
	return func(p *Processor) {
		p.metadataDir = dir
	}
}

// WithSummaryDirs adds directories searched for the summaries of included containers.
func WithSummaryDirs(dirs ...string) ProcessorOption {
	return func(p *Processor) {
		p.summaryDirs = append(p.summaryDirs, dirs...)
	}
}

func WithModuleSource(src ModuleSource) ProcessorOption {
	return func(p *Processor) {
		p.sources = append(p.sources, src)
	}
}

func WithPackageLoader(load PackageLoader) ProcessorOption {
	return func(p *Processor) {
		p.load = load
	}
}

// Processor handles the overall code generation of fact bundles.
type Processor struct {
	parser      *Parser
	sources     []ModuleSource
	load        PackageLoader
	metadataDir string
	summaryDirs []string
	tracker     *RecordingTracker
}

func NewProcessor(opts ...ProcessorOption) *Processor {
	p := &Processor{
		parser:  NewParser(),
		load:    LoadPackages,
		tracker: NewRecordingTracker(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Tracker returns the declarations consumed by every processed container.
func (p *Processor) Tracker() *RecordingTracker {
	return p.tracker
}

// ProcessFiles processes every bundle. A failing bundle does not stop the others.
func (p *Processor) ProcessFiles(ctx context.Context, files []string) error {
	var errs []error
	for _, filename := range files {
		if err := p.processFile(ctx, filename); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filename, err))
		}
	}

	return errors.Join(errs...)
}

// resolvedBundle is a bundle with the graphs of every container that resolved.
type resolvedBundle struct {
	resolver    *Resolver
	graphs      []*BindingGraph
	errs        []error
	metadataDir string
}

func (p *Processor) resolve(ctx context.Context, filename string) (*resolvedBundle, error) {
	b, err := p.parser.ParseFile(filename)
	if err != nil {
		return nil, err
	}
	if err := p.addSourceModules(ctx, b); err != nil {
		return nil, err
	}

	dir := filepath.Dir(filename)
	patterns := b.Load
	if b.Legacy != nil {
		// wire sets reference real types, so their packages are loaded too
		patterns = append(slices.Clone(patterns), b.Legacy.Wire...)
	}
	var loaded []*types.Package
	if len(patterns) > 0 {
		loaded, err = p.load(ctx, dir, patterns)
		if err != nil {
			return nil, err
		}
	}

	r, err := NewResolver(b, NewRuntimeTypes(), loaded...)
	if err != nil {
		return nil, err
	}

	res := &resolvedBundle{resolver: r, metadataDir: p.metadataDir}
	if res.metadataDir == "" {
		res.metadataDir = dir
	}
	nb := NewNodeBuilder(b, r,
		WithLookupTracker(p.tracker),
		WithSummaryLoader(DirSummaryLoader(append([]string{res.metadataDir}, p.summaryDirs...)...)),
	)

	var nodes []*ContainerNode
	for _, c := range b.Containers {
		if c.Extension {
			continue
		}
		node, err := nb.Build(c.Name)
		if err != nil {
			slog.Warn("Skipping container", "container", c.Name, "error", err)
			res.errs = append(res.errs, err)
			continue
		}
		nodes = append(nodes, node)
	}

	env := &Env{Bundle: b, Resolver: r, Oracle: NewTypeOracle(r), Tracker: p.tracker}
	graphs, graphErrs := buildGraphs(ctx, env, nodes)
	res.graphs = graphs
	res.errs = append(res.errs, graphErrs...)

	return res, nil
}

func (p *Processor) processFile(ctx context.Context, filename string) error {
	slog.Debug("Processing bundle", "file", filename)

	res, err := p.resolve(ctx, filename)
	if err != nil {
		return err
	}
	errs := res.errs
	if len(res.graphs) == 0 {
		return errors.Join(errs...)
	}

	slog.Info("Generating containers", "file", filename, "count", len(res.graphs))

	var buf bytes.Buffer
	if err := NewGenerator(res.resolver).Generate(&buf, res.graphs); err != nil {
		return errors.Join(append(errs, fmt.Errorf("generate: %w", err))...)
	}
	output := outputFileName(filename)
	if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
		return errors.Join(append(errs, fmt.Errorf("write %s: %w", output, err))...)
	}

	for _, g := range res.graphs {
		if err := p.writeSummary(res.metadataDir, g); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Inspect resolves the containers of a bundle without generating code.
// Reports are returned for the containers that resolved, together with the errors of the others.
func (p *Processor) Inspect(ctx context.Context, filename string) ([]*Report, error) {
	res, err := p.resolve(ctx, filename)
	if err != nil {
		return nil, err
	}

	reports := make([]*Report, 0, len(res.graphs))
	for _, g := range res.graphs {
		reports = append(reports, NewReport(g))
	}

	return reports, errors.Join(res.errs...)
}

// buildGraphs resolves every container concurrently. Each goroutine owns its graph.
func buildGraphs(ctx context.Context, env *Env, nodes []*ContainerNode) ([]*BindingGraph, []error) {
	graphs := make([]*BindingGraph, len(nodes))
	errs := make([]error, len(nodes))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, node := range nodes {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			graphs[i], errs[i] = BuildGraph(env, node)
			return nil
		})
	}
	_ = eg.Wait()

	var (
		ok     []*BindingGraph
		failed []error
	)
	for i, g := range graphs {
		if errs[i] != nil {
			slog.Warn("Skipping container", "container", nodes[i].Name, "diagnostics", len(DiagnosticsOf(errs[i])))
			failed = append(failed, errs[i])
			continue
		}
		ok = append(ok, g)
	}

	return ok, failed
}

func (p *Processor) addSourceModules(ctx context.Context, b *Bundle) error {
	for _, src := range p.sources {
		modules, imports, err := src.Modules(ctx, b)
		if err != nil {
			return fmt.Errorf("module source: %w", err)
		}
		if b.Imports == nil {
			b.Imports = make(map[string]string, len(imports))
		}
		for alias, path := range imports {
			if existing, ok := b.Imports[alias]; ok && existing != path {
				return fmt.Errorf("module source: import alias %s is bound to %s and %s", alias, existing, path)
			}
			b.Imports[alias] = path
		}
		b.Modules = append(b.Modules, modules...)
	}

	return checkNames(b)
}

func (p *Processor) writeSummary(dir string, g *BindingGraph) error {
	s, err := NewSummary(g, SelectStrategies(g), p.tracker.Consumed(g.node.Name))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := WriteSummary(&buf, s); err != nil {
		return err
	}

	path := SummaryPath(dir, g.node.Decl.TypeName())
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	slog.Debug("Wrote summary", "container", g.node.Name, "path", path)

	return nil
}

// LoadPackages loads the packages matching patterns with go/packages.
func LoadPackages(ctx context.Context, dir string, patterns []string) ([]*types.Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Mode:    packages.NeedName | packages.NeedImports | packages.NeedDeps | packages.NeedTypes,
		Dir:     dir,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	var errs []error
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			errs = append(errs, e)
		}
	})
	if len(errs) > 0 {
		return nil, fmt.Errorf("load packages: %w", errors.Join(errs...))
	}

	out := make([]*types.Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		out = append(out, pkg.Types)
	}

	return out, nil
}

// outputFileName maps container.yaml and container.musubi.yaml alike to container_musubi.go.
func outputFileName(filename string) string {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	base = strings.TrimSuffix(base, bundleInfix)

	return base + outputSuffix
}
