package musubi

import (
	"fmt"
	"go/types"
	"log/slog"
	"slices"

	"go.trai.ch/zerr"

	"github.com/mazrean/musubi/internal/pkg/collection"
)

// Declared is a declaration in a container's inventory.
type Declared[T any] struct {
	Decl T
	// Owner names the container or module that declared it.
	Owner string
	// Module is the declaring module, nil for container declarations.
	Module  *ModuleDecl
	Level   Level
	Dynamic bool
}

func (d Declared[T]) origin(name string) Origin {
	decl := d.Owner
	if name != "" {
		decl += "." + name
	}

	return Origin{Declaration: decl, Level: d.Level, Dynamic: d.Dynamic}
}

type CreatorParam struct {
	Name  string
	Type  types.Type
	Key   TypeKey
	Kind  CreatorKind
	Graph *IncludedGraph
}

type Accessor struct {
	Name  string
	Type  types.Type
	Key   ContextualKey
	Owner string
}

type Injector struct {
	Name   string
	Target types.Type
	Owner  string
}

// IncludedGraph is another container passed to the creator whose accessors become bindings.
type IncludedGraph struct {
	Param     string
	Container string
	Accessors []*Accessor
}

type AttachedModule struct {
	Decl    *ModuleDecl
	Depth   int
	Dynamic bool
}

// ContainerNode is the unresolved inventory of one container.
type ContainerNode struct {
	Name       string
	Type       types.Type
	Decl       *ContainerDecl
	Scopes     []string
	Creator    []*CreatorParam
	Accessors  []*Accessor
	Injectors  []*Injector
	Provides   []Declared[*ProvideDecl]
	Binds      []Declared[*BindDecl]
	Multibinds []Declared[*MultibindDecl]
	Optionals  []Declared[*OptionalDecl]
	Modules    []*AttachedModule
	Supertypes []*ContainerNode
	Extensions []*ContainerNode
	Parent     *ContainerNode
}

// HasScope reports whether the container declares scope.
func (n *ContainerNode) HasScope(scope string) bool {
	return slices.Contains(n.Scopes, scope)
}

// AncestorWithScope returns the closest parent container declaring scope.
func (n *ContainerNode) AncestorWithScope(scope string) *ContainerNode {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.HasScope(scope) {
			return p
		}
	}

	return nil
}

// Attached reports whether the module is part of the container's closure.
func (n *ContainerNode) Attached(module string) bool {
	for _, m := range n.Modules {
		if m.Decl.Name == module {
			return true
		}
	}

	return false
}

type NodeOption func(*NodeBuilder)

func WithLookupTracker(t LookupTracker) NodeOption {
	return func(nb *NodeBuilder) {
		nb.tracker = t
	}
}

// SummaryLoader returns the metadata summary of a container declared outside the bundle.
type SummaryLoader func(containerType string) (*Summary, error)

func WithSummaryLoader(l SummaryLoader) NodeOption {
	return func(nb *NodeBuilder) {
		nb.summaries = l
	}
}

type closureEntry struct {
	decl  *ModuleDecl
	depth int
}

// NodeBuilder builds and caches the container nodes of a bundle.
type NodeBuilder struct {
	bundle    *Bundle
	resolver  *Resolver
	tracker   LookupTracker
	summaries SummaryLoader

	containers map[string]*ContainerDecl
	byType     map[string]*ContainerDecl
	modules    map[string]*ModuleDecl

	nodes      map[string]*ContainerNode
	closures   map[string][]closureEntry
	inProgress *collection.Stack[string]
}

func NewNodeBuilder(b *Bundle, r *Resolver, opts ...NodeOption) *NodeBuilder {
	nb := &NodeBuilder{
		bundle:     b,
		resolver:   r,
		tracker:    nopTracker{},
		containers: make(map[string]*ContainerDecl, len(b.Containers)),
		byType:     make(map[string]*ContainerDecl, len(b.Containers)),
		modules:    make(map[string]*ModuleDecl, len(b.Modules)),
		nodes:      make(map[string]*ContainerNode),
		closures:   make(map[string][]closureEntry),
		inProgress: collection.NewStack[string](),
	}
	for _, c := range b.Containers {
		nb.containers[c.Name] = c
		if c.Dynamic == nil {
			nb.byType[c.TypeName()] = c
		}
	}
	for _, m := range b.Modules {
		nb.modules[m.Name] = m
	}
	for _, opt := range opts {
		opt(nb)
	}

	return nb
}

// Build returns the node of the named container, building it and everything it
// composes on first use.
func (nb *NodeBuilder) Build(name string) (*ContainerNode, error) {
	if n, ok := nb.nodes[name]; ok {
		return n, nil
	}

	if nb.inProgress.Contains(name) {
		cycle := append(nb.inProgress.From(name), name)
		diags := NewDiagnostics(name)
		diags.Report(ErrCompositionCycle, fmt.Sprintf("container %s composes itself", name), WithTrace(cycle))
		return nil, diags.Err()
	}

	decl, ok := nb.containers[name]
	if !ok {
		return nil, zerr.With(zerr.Wrap(ErrUnknownContainer, "build node"), "container", name)
	}

	nb.inProgress.Push(name)
	defer nb.inProgress.Pop()

	slog.Debug("Building container node", "container", name)

	var (
		node *ContainerNode
		err  error
	)
	if decl.Dynamic != nil {
		node, err = nb.buildDynamic(decl)
	} else {
		node, err = nb.buildStatic(decl)
	}
	if err != nil {
		return nil, err
	}

	nb.nodes[name] = node

	return node, nil
}

func (nb *NodeBuilder) buildStatic(decl *ContainerDecl) (*ContainerNode, error) {
	t, err := nb.resolver.Type(decl.TypeName())
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", decl.Name, err)
	}

	node := &ContainerNode{
		Name:   decl.Name,
		Type:   t,
		Decl:   decl,
		Scopes: slices.Clone(decl.Scopes),
	}

	for _, super := range decl.Extends {
		sn, err := nb.Build(super)
		if err != nil {
			return nil, err
		}
		nb.tracker.Record(decl.Name, "container "+super)
		node.Supertypes = append(node.Supertypes, sn)
		for _, scope := range sn.Scopes {
			if !node.HasScope(scope) {
				node.Scopes = append(node.Scopes, scope)
			}
		}
	}

	own, err := nb.attach(decl.Modules, 0, false)
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", decl.Name, err)
	}
	candidates := own
	for _, sn := range node.Supertypes {
		for _, m := range sn.Modules {
			candidates = append(candidates, &AttachedModule{Decl: m.Decl, Depth: m.Depth + 1, Dynamic: m.Dynamic})
		}
	}
	node.Modules = dedupeModules(candidates)

	owner := "container " + decl.Name
	addContainerDeclarations(node, decl, owner, LevelLocal, false)
	for _, sn := range node.Supertypes {
		inheritContainerDeclarations(node, sn)
	}
	for _, m := range node.Modules {
		nb.tracker.Record(decl.Name, "module "+m.Decl.Name)
		if err := nb.addModuleDeclarations(node, m); err != nil {
			return nil, fmt.Errorf("container %s: %w", decl.Name, err)
		}
	}

	if err := nb.addEntryPoints(node, decl); err != nil {
		return nil, err
	}

	if err := nb.addCreator(node, decl); err != nil {
		return nil, err
	}

	for _, ext := range decl.Extensions {
		child, err := nb.Build(ext)
		if err != nil {
			return nil, err
		}
		if child.Parent != nil && child.Parent.Name != decl.Name {
			return nil, zerr.With(zerr.With(zerr.Wrap(ErrInvalidBundle, "extension has several parents"), "extension", ext), "container", decl.Name)
		}
		child.Parent = node
		nb.tracker.Record(decl.Name, "container "+ext)
		node.Extensions = append(node.Extensions, child)
	}

	return node, nil
}

// buildDynamic instantiates the base container with extra modules whose declarations
// always win conflict resolution.
func (nb *NodeBuilder) buildDynamic(decl *ContainerDecl) (*ContainerNode, error) {
	base, err := nb.Build(decl.Dynamic.Base)
	if err != nil {
		return nil, err
	}
	nb.tracker.Record(decl.Name, "container "+decl.Dynamic.Base)

	dynamic, err := nb.attach(decl.Dynamic.Modules, 0, true)
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", decl.Name, err)
	}

	node := &ContainerNode{
		Name:       decl.Name,
		Type:       base.Type,
		Decl:       base.Decl,
		Scopes:     slices.Clone(base.Scopes),
		Creator:    base.Creator,
		Accessors:  base.Accessors,
		Injectors:  base.Injectors,
		Supertypes: base.Supertypes,
		Extensions: base.Extensions,
		Parent:     base.Parent,
		Modules:    dedupeModules(append(slices.Clone(base.Modules), dynamic...)),
	}

	for _, p := range base.Provides {
		if p.Module == nil {
			node.Provides = append(node.Provides, p)
		}
	}
	for _, b := range base.Binds {
		if b.Module == nil {
			node.Binds = append(node.Binds, b)
		}
	}
	for _, m := range base.Multibinds {
		if m.Module == nil {
			node.Multibinds = append(node.Multibinds, m)
		}
	}
	for _, o := range base.Optionals {
		if o.Module == nil {
			node.Optionals = append(node.Optionals, o)
		}
	}
	for _, m := range node.Modules {
		nb.tracker.Record(decl.Name, "module "+m.Decl.Name)
		if err := nb.addModuleDeclarations(node, m); err != nil {
			return nil, fmt.Errorf("container %s: %w", decl.Name, err)
		}
	}

	return node, nil
}

// attach resolves the transitive closure of the named modules.
func (nb *NodeBuilder) attach(names []string, depth int, dynamic bool) ([]*AttachedModule, error) {
	var out []*AttachedModule
	for _, name := range names {
		closure, err := nb.closure(name)
		if err != nil {
			return nil, err
		}
		for _, e := range closure {
			out = append(out, &AttachedModule{Decl: e.decl, Depth: depth + e.depth, Dynamic: dynamic})
		}
	}

	return out, nil
}

// closure walks the includes of module breadth first. Include cycles are tolerated.
func (nb *NodeBuilder) closure(module string) ([]closureEntry, error) {
	if c, ok := nb.closures[module]; ok {
		return c, nil
	}

	type item struct {
		name  string
		depth int
	}
	visited := map[string]bool{module: true}
	queue := collection.NewQueue(item{name: module})

	var out []closureEntry
	for it := range queue.Drain {
		decl, ok := nb.modules[it.name]
		if !ok {
			return nil, zerr.With(zerr.Wrap(ErrUnknownModule, "module closure"), "module", it.name)
		}
		out = append(out, closureEntry{decl: decl, depth: it.depth})

		for _, inc := range decl.Includes {
			if visited[inc] {
				continue
			}
			visited[inc] = true
			queue.Push(item{name: inc, depth: it.depth + 1})
		}
	}

	nb.closures[module] = out

	return out, nil
}

// dedupeModules keeps one occurrence per module: a dynamic one if any, otherwise the closest.
func dedupeModules(candidates []*AttachedModule) []*AttachedModule {
	best := collection.NewOrderedMap[string, *AttachedModule]()
	for _, c := range candidates {
		cur, ok := best.Get(c.Decl.Name)
		switch {
		case !ok:
			best.Set(c.Decl.Name, c)
		case c.Dynamic && !cur.Dynamic:
			best.Set(c.Decl.Name, c)
		case c.Dynamic == cur.Dynamic && c.Depth < cur.Depth:
			best.Set(c.Decl.Name, c)
		}
	}

	return slices.Collect(best.Values())
}

func addContainerDeclarations(node *ContainerNode, decl *ContainerDecl, owner string, level Level, dynamic bool) {
	for _, p := range decl.Provides {
		node.Provides = append(node.Provides, Declared[*ProvideDecl]{Decl: p, Owner: owner, Level: level, Dynamic: dynamic})
	}
	for _, b := range decl.Binds {
		node.Binds = append(node.Binds, Declared[*BindDecl]{Decl: b, Owner: owner, Level: level, Dynamic: dynamic})
	}
	for _, m := range decl.Multibinds {
		node.Multibinds = append(node.Multibinds, Declared[*MultibindDecl]{Decl: m, Owner: owner, Level: level, Dynamic: dynamic})
	}
	for _, o := range decl.Optionals {
		node.Optionals = append(node.Optionals, Declared[*OptionalDecl]{Decl: o, Owner: owner, Level: level, Dynamic: dynamic})
	}
}

// inheritContainerDeclarations copies the container-level declarations of a supertype.
// Module declarations are inherited through the deduplicated module list instead.
func inheritContainerDeclarations(node *ContainerNode, super *ContainerNode) {
	for _, p := range super.Provides {
		if p.Module == nil {
			p.Level = LevelInherited
			node.Provides = append(node.Provides, p)
		}
	}
	for _, b := range super.Binds {
		if b.Module == nil {
			b.Level = LevelInherited
			node.Binds = append(node.Binds, b)
		}
	}
	for _, m := range super.Multibinds {
		if m.Module == nil {
			m.Level = LevelInherited
			node.Multibinds = append(node.Multibinds, m)
		}
	}
	for _, o := range super.Optionals {
		if o.Module == nil {
			o.Level = LevelInherited
			node.Optionals = append(node.Optionals, o)
		}
	}
}

func (nb *NodeBuilder) addModuleDeclarations(node *ContainerNode, m *AttachedModule) error {
	owner := "module " + m.Decl.Name
	for _, p := range m.Decl.Provides {
		if p.Method != "" && m.Decl.Type == "" {
			return zerr.With(zerr.Wrap(ErrInvalidBundle, "method provider in a module without a type"), "module", m.Decl.Name)
		}
		node.Provides = append(node.Provides, Declared[*ProvideDecl]{Decl: p, Owner: owner, Module: m.Decl, Level: LevelInherited, Dynamic: m.Dynamic})
	}
	for _, b := range m.Decl.Binds {
		node.Binds = append(node.Binds, Declared[*BindDecl]{Decl: b, Owner: owner, Module: m.Decl, Level: LevelInherited, Dynamic: m.Dynamic})
	}
	for _, mb := range m.Decl.Multibinds {
		node.Multibinds = append(node.Multibinds, Declared[*MultibindDecl]{Decl: mb, Owner: owner, Module: m.Decl, Level: LevelInherited, Dynamic: m.Dynamic})
	}
	for _, o := range m.Decl.Optionals {
		node.Optionals = append(node.Optionals, Declared[*OptionalDecl]{Decl: o, Owner: owner, Module: m.Decl, Level: LevelInherited, Dynamic: m.Dynamic})
	}

	return nil
}

func (nb *NodeBuilder) addEntryPoints(node *ContainerNode, decl *ContainerDecl) error {
	owner := "container " + decl.Name
	seen := make(map[string]bool)
	for _, a := range decl.Accessors {
		acc, err := nb.accessor(a.Name, a.Type, a.Qualifier, owner, nil)
		if err != nil {
			return fmt.Errorf("container %s: %w", decl.Name, err)
		}
		seen[a.Name] = true
		node.Accessors = append(node.Accessors, acc)
	}
	for _, sn := range node.Supertypes {
		for _, a := range sn.Accessors {
			if !seen[a.Name] {
				seen[a.Name] = true
				node.Accessors = append(node.Accessors, a)
			}
		}
	}

	seen = make(map[string]bool)
	for _, inj := range decl.Injectors {
		t, err := nb.resolver.Type(inj.Target)
		if err != nil {
			return fmt.Errorf("container %s: injector %s: %w", decl.Name, inj.Name, err)
		}
		seen[inj.Name] = true
		node.Injectors = append(node.Injectors, &Injector{Name: inj.Name, Target: t, Owner: owner})
	}
	for _, sn := range node.Supertypes {
		for _, inj := range sn.Injectors {
			if !seen[inj.Name] {
				seen[inj.Name] = true
				node.Injectors = append(node.Injectors, inj)
			}
		}
	}

	return nil
}

func (nb *NodeBuilder) accessor(name, typ, qualifier, owner string, imports map[string]string) (*Accessor, error) {
	t, err := nb.resolver.TypeWithImports(typ, imports)
	if err != nil {
		return nil, fmt.Errorf("accessor %s: %w", name, err)
	}

	return &Accessor{
		Name:  name,
		Type:  t,
		Key:   ContextualKeyOf(t, qualifier, false),
		Owner: owner,
	}, nil
}

func (nb *NodeBuilder) addCreator(node *ContainerNode, decl *ContainerDecl) error {
	for _, p := range decl.Creator {
		t, err := nb.resolver.Type(p.Type)
		if err != nil {
			return fmt.Errorf("container %s: creator param %s: %w", decl.Name, p.Name, err)
		}

		kind := p.Kind
		if kind == "" {
			kind = CreatorInstance
		}
		param := &CreatorParam{
			Name: p.Name,
			Type: t,
			Key:  NewTypeKey(t, p.Qualifier),
			Kind: kind,
		}

		if kind == CreatorGraph {
			graph, err := nb.includedGraph(decl, p)
			if err != nil {
				return err
			}
			param.Graph = graph
		}

		node.Creator = append(node.Creator, param)
	}

	return nil
}

func (nb *NodeBuilder) includedGraph(decl *ContainerDecl, p *CreatorParamDecl) (*IncludedGraph, error) {
	if included, ok := nb.byType[p.Type]; ok {
		in, err := nb.Build(included.Name)
		if err != nil {
			return nil, err
		}
		nb.tracker.Record(decl.Name, "container "+included.Name)

		return &IncludedGraph{Param: p.Name, Container: in.Name, Accessors: in.Accessors}, nil
	}

	if nb.summaries == nil {
		return nil, zerr.With(zerr.Wrap(ErrUnknownContainer, "included graph"), "type", p.Type)
	}
	summary, err := nb.summaries(p.Type)
	if err != nil {
		return nil, fmt.Errorf("container %s: included graph %s: %w", decl.Name, p.Type, err)
	}
	nb.tracker.Record(decl.Name, "summary "+summary.Container)

	graph := &IncludedGraph{Param: p.Name, Container: summary.Container}
	for _, a := range summary.Accessors {
		acc, err := nb.accessor(a.Name, a.Type, a.Qualifier, "container "+summary.Container, summary.Imports)
		if err != nil {
			return nil, fmt.Errorf("container %s: included graph %s: %w", decl.Name, p.Type, err)
		}
		graph.Accessors = append(graph.Accessors, acc)
	}

	return graph, nil
}
