package musubi

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/token"
	"go/types"
	"iter"
	"log/slog"
	"slices"
	"strconv"

	"github.com/mazrean/musubi/internal/pkg/collection"
	"github.com/mazrean/musubi/internal/pkg/strings"
)

// Env holds the collaborators shared by every graph of a bundle.
type Env struct {
	Bundle   *Bundle
	Resolver *Resolver
	Oracle   TypeOracle
	Tracker  LookupTracker
}

type RootKind int

const (
	RootAccessor RootKind = iota + 1
	RootInjector
	// RootExposed keys are requested by an extension container.
	RootExposed
)

// Root is a request made from outside the graph.
type Root struct {
	Name string
	Kind RootKind
	Key  ContextualKey
	// Type is the declared accessor type or the injector target.
	Type types.Type
}

func (r *Root) id() string {
	return "root:" + strconv.Itoa(int(r.Kind)) + ":" + r.Name
}

// BindingGraph maps the type keys of one container to their bindings.
// It grows while populating and resolving and is read-only once sealed.
type BindingGraph struct {
	env      *Env
	node     *ContainerNode
	parent   *BindingGraph
	children []*BindingGraph

	bindings *collection.OrderedMap[string, Binding]
	roots    []*Root
	exposed  *collection.OrderedMap[string, TypeKey]
	lookup   *BindingLookup
	diags    *Diagnostics

	requested   map[string]bool
	requestedBy map[string]string
	keyLabels   map[string]string
	rootLabels  map[string]string

	sealed *Sealed
}

func NewBindingGraph(env *Env, node *ContainerNode, parent *BindingGraph) *BindingGraph {
	if env.Tracker == nil {
		env.Tracker = nopTracker{}
	}

	g := &BindingGraph{
		env:         env,
		node:        node,
		parent:      parent,
		bindings:    collection.NewOrderedMap[string, Binding](),
		exposed:     collection.NewOrderedMap[string, TypeKey](),
		diags:       NewDiagnostics(node.Name),
		requested:   make(map[string]bool),
		requestedBy: make(map[string]string),
		keyLabels:   make(map[string]string),
		rootLabels:  make(map[string]string),
	}
	g.lookup = newBindingLookup(g)

	return g
}

// BuildGraph builds, resolves and seals the graph of node together with the
// graphs of its extension containers.
func BuildGraph(env *Env, node *ContainerNode) (*BindingGraph, error) {
	g := NewBindingGraph(env, node, nil)
	g.resolveTree()
	g.sealTree()

	return g, g.Err()
}

func (g *BindingGraph) resolveTree() {
	g.Populate()
	g.Resolve()

	for _, ext := range g.node.Extensions {
		child := NewBindingGraph(g.env, ext, g)
		g.children = append(g.children, child)
		child.resolveTree()
	}
}

// sealTree seals extensions first: resolving them may expose more keys of this graph.
func (g *BindingGraph) sealTree() {
	for _, child := range g.children {
		child.sealTree()
	}
	if g.diags.Len() == 0 {
		_, _ = g.Seal()
	}
}

// Err joins the diagnostics of the graph and its extensions.
func (g *BindingGraph) Err() error {
	errs := []error{g.diags.Err()}
	for _, child := range g.children {
		errs = append(errs, child.Err())
	}

	return errors.Join(errs...)
}

func (g *BindingGraph) Node() *ContainerNode {
	return g.node
}

func (g *BindingGraph) Parent() *BindingGraph {
	return g.parent
}

func (g *BindingGraph) Children() []*BindingGraph {
	return g.children
}

func (g *BindingGraph) Roots() []*Root {
	return g.roots
}

func (g *BindingGraph) Sealed() *Sealed {
	return g.sealed
}

func (g *BindingGraph) Diagnostics() *Diagnostics {
	return g.diags
}

func (g *BindingGraph) Bindings() iter.Seq[Binding] {
	return g.bindings.Values()
}

func (g *BindingGraph) IsExposed(key TypeKey) bool {
	return g.exposed.Has(key.ID())
}

func (g *BindingGraph) Exposed() iter.Seq[TypeKey] {
	return g.exposed.Values()
}

func (g *BindingGraph) runtime() *RuntimeTypes {
	return g.env.Resolver.Runtime()
}

func (g *BindingGraph) resolver() *Resolver {
	return g.env.Resolver
}

func (g *BindingGraph) Binding(key TypeKey) (Binding, bool) {
	return g.bindings.Get(key.ID())
}

// Populate registers every declared binding source of the container.
func (g *BindingGraph) Populate() {
	for _, d := range g.node.Provides {
		g.addProvide(d)
	}
	for _, d := range g.node.Binds {
		g.addBind(d)
	}
	for _, d := range g.node.Multibinds {
		g.declareMultibinding(d)
	}
	for _, p := range g.node.Creator {
		if p.Kind == CreatorInstance {
			g.addBoundInstance(p, "creator param "+p.Name)
		}
	}
	for _, p := range g.node.Creator {
		if p.Kind == CreatorModule {
			g.addBoundInstance(p, "module instance "+p.Name)
		}
	}
	for _, p := range g.node.Creator {
		if p.Kind == CreatorGraph {
			g.addIncludedGraph(p)
		}
	}
	for _, ext := range g.node.Extensions {
		g.addExtension(ext)
	}
	for _, d := range g.node.Optionals {
		g.addOptional(d)
	}
	for _, inj := range g.node.Injectors {
		g.addInjector(inj)
	}

	for _, acc := range g.node.Accessors {
		g.addRoot(&Root{Name: acc.Name, Kind: RootAccessor, Key: acc.Key, Type: acc.Type}, fmt.Sprintf("%s.%s()", g.node.Name, acc.Name))
	}
	for _, inj := range g.node.Injectors {
		key := NewTypeKey(g.runtime().MembersInjector(inj.Target), "")
		g.addRoot(&Root{Name: inj.Name, Kind: RootInjector, Key: ContextualKey{Key: key, Shape: Canonical}, Type: inj.Target}, fmt.Sprintf("%s.%s(%s)", g.node.Name, inj.Name, types.TypeString(inj.Target, packageName)))
	}

	slog.Debug("Populated graph", "container", g.node.Name, "bindings", g.bindings.Len(), "roots", len(g.roots))
}

func (g *BindingGraph) addRoot(r *Root, label string) {
	g.roots = append(g.roots, r)
	g.rootLabels[r.id()] = label
}

func (g *BindingGraph) invalid(origin Origin, err error) {
	g.diags.Report(ErrInvalidBundle, err.Error(), WithDeclarations(origin.String()))
}

// put registers b, resolving a conflict with an existing binding of the same key:
// dynamic beats everything, local beats inherited, and equal levels are an error.
func (g *BindingGraph) put(b Binding) {
	id := b.Key().ID()
	existing, ok := g.bindings.Get(id)
	if !ok {
		g.bindings.Set(id, b)
		return
	}

	eo, no := existing.Origin(), b.Origin()
	switch {
	case no.Dynamic:
		slog.Debug("Dynamic binding replaces existing", "key", b.Key().String(), "existing", eo.String(), "new", no.String())
		g.bindings.Set(id, b)
	case eo.Dynamic:
		slog.Debug("Discarding binding overridden dynamically", "key", b.Key().String(), "discarded", no.String())
	case eo.Level == LevelInherited && no.Level == LevelLocal:
		slog.Debug("Local binding supersedes inherited", "key", b.Key().String(), "inherited", eo.String())
		g.bindings.Set(id, b)
	case eo.Level == LevelLocal && no.Level == LevelInherited:
		slog.Debug("Discarding inherited binding", "key", b.Key().String(), "inherited", no.String())
	default:
		g.diags.Report(ErrDuplicateBinding,
			fmt.Sprintf("%s is bound multiple times", b.Key()),
			WithDeclarations(eo.String(), no.String()),
		)
	}
}

func (g *BindingGraph) addProvide(d Declared[*ProvideDecl]) {
	decl := d.Decl
	name := firstNonEmpty(decl.Name, decl.Func, decl.Method, decl.Field, decl.Type)
	origin := d.origin(name)

	t, err := g.resolver().Type(decl.Type)
	if err != nil {
		g.invalid(origin, err)
		return
	}
	key := NewTypeKey(t, decl.Qualifier)

	params, err := resolveParams(g.resolver(), decl.Params)
	if err != nil {
		g.invalid(origin, err)
		return
	}

	var inv Invocation
	switch {
	case decl.Func != "":
		ref, err := g.resolver().Func(decl.Func)
		if err != nil {
			g.invalid(origin, err)
			return
		}
		inv = Invocation{Kind: InvokeFunc, Func: ref}
	case decl.Method != "":
		recv, err := g.resolver().Type(d.Module.Type)
		if err != nil {
			g.invalid(origin, err)
			return
		}
		params = append([]Param{canonicalParam("receiver", NewTypeKey(recv, ""))}, params...)
		inv = Invocation{Kind: InvokeMethod, Method: decl.Method}
	case decl.Value != "":
		value, err := g.resolver().Expr(decl.Value)
		if err != nil {
			g.invalid(origin, err)
			return
		}
		inv = Invocation{Kind: InvokeValue, Value: value}
	case decl.Struct:
		for i := range params {
			if params[i].Field == "" {
				params[i].Field = strings.ToUpperCamel(params[i].Name)
			}
		}
		inv = Invocation{Kind: InvokeStruct}
	case decl.Field != "":
		src, err := g.resolver().Type(decl.Source)
		if err != nil {
			g.invalid(origin, err)
			return
		}
		params = []Param{canonicalParam("source", NewTypeKey(src, decl.SourceQualifier))}
		inv = Invocation{Kind: InvokeField, Field: decl.Field}
	}

	build := func(k TypeKey) Binding {
		return &ProvidedBinding{
			bindingBase: bindingBase{key: k, params: params, scope: decl.Scope, origin: origin},
			Invocation:  inv,
		}
	}

	if decl.Into != "" {
		g.contribute(origin, key, build, decl.Into, decl.Elements, decl.MapKey, decl.MapKeyType)
		return
	}
	g.put(build(key))
}

func (g *BindingGraph) addBind(d Declared[*BindDecl]) {
	decl := d.Decl
	origin := d.origin(firstNonEmpty(decl.Name, "bind "+decl.Type))

	t, err := g.resolver().Type(decl.Type)
	if err != nil {
		g.invalid(origin, err)
		return
	}
	src, err := g.resolver().Type(decl.Source)
	if err != nil {
		g.invalid(origin, err)
		return
	}
	key := NewTypeKey(t, decl.Qualifier)
	target := NewTypeKey(src, decl.SourceQualifier)

	build := func(k TypeKey) Binding {
		return &AliasBinding{
			bindingBase: bindingBase{key: k, params: []Param{canonicalParam("source", target)}, origin: origin},
			Target:      target,
		}
	}

	if decl.Into != "" {
		g.contribute(origin, key, build, decl.Into, decl.Elements, decl.MapKey, decl.MapKeyType)
		return
	}
	g.put(build(key))
}

// contribute stores a contributor under a synthesized key and records it in the
// multibinding its key maps to.
func (g *BindingGraph) contribute(origin Origin, source TypeKey, build func(TypeKey) Binding, into string, elements bool, mapKey, mapKeyType string) {
	var (
		kind    CollectionKind
		collKey TypeKey
		elem    types.Type
		keyType types.Type
		keyExpr ast.Expr
	)

	switch into {
	case "set":
		kind = CollectionSet
		if elements {
			s, ok := source.Type.Underlying().(*types.Slice)
			if !ok {
				g.invalid(origin, fmt.Errorf("set elements contribution %s is not a slice", source))
				return
			}
			collKey, elem = source, s.Elem()
		} else {
			collKey, elem = source.WithType(types.NewSlice(source.Type)), source.Type
		}
	case "map":
		kind = CollectionMap
		if elements {
			m, ok := source.Type.Underlying().(*types.Map)
			if !ok {
				g.invalid(origin, fmt.Errorf("map elements contribution %s is not a map", source))
				return
			}
			collKey, keyType, elem = source, m.Key(), m.Elem()
		} else {
			var err error
			keyExpr, err = g.resolver().Expr(mapKey)
			if err != nil {
				g.invalid(origin, err)
				return
			}
			keyType, err = g.mapKeyType(keyExpr, mapKeyType)
			if err != nil {
				g.invalid(origin, err)
				return
			}
			collKey, elem = source.WithType(types.NewMap(keyType, source.Type)), source.Type
		}
	default:
		g.invalid(origin, fmt.Errorf("unknown multibinding kind %q", into))
		return
	}

	mb := g.multibinding(collKey, kind, elem, keyType, origin)
	if mb == nil {
		return
	}

	if keyExpr != nil {
		rendered := types.ExprString(keyExpr)
		for _, c := range mb.Contributions {
			if c.MapKey != nil && sameMapKey(c.MapKey, keyExpr) {
				g.diags.Report(ErrDuplicateBinding,
					fmt.Sprintf("map key %s of %s is contributed multiple times", rendered, collKey),
					WithDeclarations(c.Declaration, origin.String()),
				)
				return
			}
		}
	}

	synth := TypeKey{
		Type:      source.Type,
		Qualifier: source.Qualifier + contributionMarker + collKey.ID() + contributionMarker + strconv.Itoa(len(mb.Contributions)),
	}
	b := build(synth)
	g.bindings.Set(synth.ID(), b)

	if err := mb.add(Contribution{Key: synth, Source: source, MapKey: keyExpr, Elements: elements, Declaration: origin.String()}); err != nil {
		g.invalid(origin, err)
	}
}

// sameMapKey reports whether two key expressions denote the same key.
// Literal keys are compared by value, so "a" matches `a` and 1 matches 0x1.
func sameMapKey(a, b ast.Expr) bool {
	av, aok := literalValue(a)
	bv, bok := literalValue(b)
	if aok && bok {
		if comparableKinds(av.Kind(), bv.Kind()) {
			return constant.Compare(av, token.EQL, bv)
		}
		return false
	}

	return types.ExprString(a) == types.ExprString(b)
}

func literalValue(e ast.Expr) (constant.Value, bool) {
	switch e := e.(type) {
	case *ast.BasicLit:
		v := constant.MakeFromLiteral(e.Value, e.Kind, 0)
		return v, v.Kind() != constant.Unknown
	case *ast.ParenExpr:
		return literalValue(e.X)
	case *ast.UnaryExpr:
		if e.Op != token.SUB && e.Op != token.ADD {
			return nil, false
		}
		v, ok := literalValue(e.X)
		if !ok || !isNumeric(v.Kind()) {
			return nil, false
		}
		return constant.UnaryOp(e.Op, v, 0), true
	}

	return nil, false
}

func comparableKinds(a, b constant.Kind) bool {
	return a == b || (isNumeric(a) && isNumeric(b))
}

func isNumeric(k constant.Kind) bool {
	return k == constant.Int || k == constant.Float || k == constant.Complex
}

func (g *BindingGraph) mapKeyType(keyExpr ast.Expr, declared string) (types.Type, error) {
	if declared != "" {
		return g.resolver().Type(declared)
	}

	switch e := keyExpr.(type) {
	case *ast.BasicLit:
		switch e.Kind {
		case token.STRING:
			return types.Typ[types.String], nil
		case token.INT:
			return types.Typ[types.Int], nil
		case token.CHAR:
			return types.Typ[types.Rune], nil
		case token.FLOAT:
			return types.Typ[types.Float64], nil
		}
	case *ast.Ident:
		if e.Name == "true" || e.Name == "false" {
			return types.Typ[types.Bool], nil
		}
	}

	return nil, fmt.Errorf("mapKeyType is required for map key %s", types.ExprString(keyExpr))
}

// multibinding fetches or creates the multibinding for key.
func (g *BindingGraph) multibinding(key TypeKey, kind CollectionKind, elem, keyType types.Type, origin Origin) *MultibindingBinding {
	if b, ok := g.bindings.Get(key.ID()); ok {
		if mb, ok := b.(*MultibindingBinding); ok {
			return mb
		}
		g.diags.Report(ErrDuplicateBinding,
			fmt.Sprintf("%s is bound both as a multibinding and directly", key),
			WithDeclarations(b.Origin().String(), origin.String()),
		)
		return nil
	}

	mb := &MultibindingBinding{
		bindingBase: bindingBase{
			key:    key,
			origin: Origin{Declaration: "multibinding " + key.String(), Level: origin.Level, Dynamic: origin.Dynamic},
		},
		Collection: kind,
		Elem:       elem,
		MapKeyType: keyType,
	}
	g.bindings.Set(key.ID(), mb)
	g.inheritContributions(mb)

	return mb
}

// inheritContributions seeds a multibinding of an extension with the contributions
// the closest ancestor holding the same multibinding has. They are read through the parent.
func (g *BindingGraph) inheritContributions(mb *MultibindingBinding) {
	id := mb.Key().ID()
	for p := g.parent; p != nil; p = p.parent {
		b, ok := p.bindings.Get(id)
		if !ok {
			continue
		}
		if dep, ok := b.(*GraphDependencyBinding); ok && dep.Parent {
			continue
		}
		inherited, ok := b.(*MultibindingBinding)
		if !ok {
			return
		}

		for _, c := range inherited.Contributions {
			dep := g.lookup.parentKey(c.Key)
			if dep == nil {
				continue
			}
			g.bindings.Set(c.Key.ID(), dep)
			mb.Contributions = append(mb.Contributions, c)
		}
		mb.AllowEmpty = mb.AllowEmpty || inherited.AllowEmpty
		slog.Debug("Inherited multibinding contributions", "container", g.node.Name, "key", mb.Key().String(), "from", p.node.Name, "count", len(inherited.Contributions))

		return
	}
}

func (g *BindingGraph) declareMultibinding(d Declared[*MultibindDecl]) {
	decl := d.Decl
	origin := d.origin("multibinds " + decl.Type)

	t, err := g.resolver().Type(decl.Type)
	if err != nil {
		g.invalid(origin, err)
		return
	}

	var mb *MultibindingBinding
	key := NewTypeKey(t, decl.Qualifier)
	switch u := t.Underlying().(type) {
	case *types.Slice:
		mb = g.multibinding(key, CollectionSet, u.Elem(), nil, origin)
	case *types.Map:
		mb = g.multibinding(key, CollectionMap, u.Elem(), u.Key(), origin)
	default:
		g.invalid(origin, fmt.Errorf("multibinding %s must be a slice or a map", decl.Type))
		return
	}
	if mb == nil {
		return
	}

	if !mb.Declared {
		mb.origin = origin
	}
	mb.Declared = true
	mb.AllowEmpty = mb.AllowEmpty || decl.AllowEmpty
}

func (g *BindingGraph) addBoundInstance(p *CreatorParam, declaration string) {
	g.put(&BoundInstanceBinding{
		bindingBase: bindingBase{
			key:    p.Key,
			origin: Origin{Declaration: fmt.Sprintf("%s %s", g.node.Name, declaration), Level: LevelLocal},
		},
		Field: p.Name,
	})
}

func (g *BindingGraph) addIncludedGraph(p *CreatorParam) {
	g.addBoundInstance(p, "included graph "+p.Name)

	for _, acc := range p.Graph.Accessors {
		g.put(&GraphDependencyBinding{
			bindingBase: bindingBase{
				key:    acc.Key.Key,
				origin: Origin{Declaration: fmt.Sprintf("%s.%s()", p.Graph.Container, acc.Name), Level: LevelInherited},
			},
			Graph:         p.Name,
			Accessor:      acc.Name,
			AccessorShape: acc.Key.Shape,
		})
	}
}

func (g *BindingGraph) addExtension(ext *ContainerNode) {
	args := make([]ExtensionArg, 0, len(ext.Creator))
	vars := make([]*types.Var, 0, len(ext.Creator))
	for _, p := range ext.Creator {
		args = append(args, ExtensionArg{Name: p.Name, Type: p.Type})
		vars = append(vars, types.NewParam(token.NoPos, nil, p.Name, p.Type))
	}

	keyType := ext.Type
	if len(args) > 0 {
		keyType = types.NewSignatureType(nil, nil, nil, types.NewTuple(vars...), types.NewTuple(types.NewParam(token.NoPos, nil, "", ext.Type)), false)
	}

	g.put(&GraphExtensionBinding{
		bindingBase: bindingBase{
			key:    NewTypeKey(keyType, ""),
			origin: Origin{Declaration: fmt.Sprintf("%s extension %s", g.node.Name, ext.Name), Level: LevelLocal},
		},
		Child:     ext.Name,
		ChildType: ext.Type,
		Args:      args,
	})
}

func (g *BindingGraph) addOptional(d Declared[*OptionalDecl]) {
	decl := d.Decl
	origin := d.origin("optional " + decl.Type)

	t, err := g.resolver().Type(decl.Type)
	if err != nil {
		g.invalid(origin, err)
		return
	}
	inner := NewTypeKey(t, decl.Qualifier)

	g.put(&OptionalBinding{
		bindingBase: bindingBase{
			key:    NewTypeKey(g.runtime().Optional(t), decl.Qualifier),
			params: []Param{{Name: "value", Key: ContextualKey{Key: inner, Shape: Canonical, HasDefault: true}}},
			origin: origin,
		},
		Inner: inner,
	})
}

func (g *BindingGraph) addInjector(inj *Injector) {
	key := NewTypeKey(g.runtime().MembersInjector(inj.Target), "")
	b, err := g.lookup.membersInjector(key, inj.Target)
	if err != nil || b == nil {
		return
	}
	b.origin = Origin{Declaration: fmt.Sprintf("%s.%s", g.node.Name, inj.Name), Level: LevelLocal}
	g.put(b)
}

// Resolve follows the dependencies of every root, adding bindings found by lookup.
func (g *BindingGraph) Resolve() {
	queue := collection.NewQueue[string]()
	for _, r := range g.roots {
		g.request(r.Key, r.id(), queue)
	}
	g.drain(queue)
}

func (g *BindingGraph) drain(queue *collection.Queue[string]) {
	for id := range queue.Drain {
		b, ok := g.bindings.Get(id)
		if !ok {
			continue
		}
		for _, dep := range b.Dependencies() {
			g.request(dep, id, queue)
		}
	}
}

func (g *BindingGraph) request(ck ContextualKey, from string, queue *collection.Queue[string]) {
	id := ck.Key.ID()
	if g.requested[id] {
		if b, ok := g.bindings.Get(id); ok && b.Kind() == KindAbsent && !ck.HasDefault {
			g.reportMissing(ck, from)
		}
		return
	}
	g.requested[id] = true
	g.requestedBy[id] = from
	g.keyLabels[id] = ck.Key.String()

	if _, ok := g.bindings.Get(id); ok {
		queue.Push(id)
		return
	}

	b, err := g.lookup.Find(ck)
	if err != nil {
		return
	}
	if b != nil {
		g.bindings.Set(id, b)
		queue.Push(id)
		return
	}

	if ck.HasDefault {
		g.bindings.Set(id, &AbsentBinding{bindingBase: bindingBase{
			key:    ck.Key,
			origin: Origin{Declaration: "absent " + ck.Key.String(), Synthetic: true},
		}})
		return
	}

	g.reportMissing(ck, from)
}

func (g *BindingGraph) reportMissing(ck ContextualKey, from string) {
	trace := append(g.trace(from), ck.Key.String())
	g.diags.Report(ErrMissingBinding,
		fmt.Sprintf("%s is requested but not bound", ck.Key),
		WithTrace(trace),
		WithHints(g.missingHints(ck.Key)...),
	)
}

// trace renders the request path from a root to id.
func (g *BindingGraph) trace(id string) []string {
	var path []string
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; cur = g.requestedBy[cur] {
		seen[cur] = true
		if label, ok := g.rootLabels[cur]; ok {
			path = append(path, label)
			break
		}
		path = append(path, g.keyLabels[cur])
	}
	slices.Reverse(path)

	return path
}

// expose resolves key on behalf of an extension container and keeps it as a root.
func (g *BindingGraph) expose(key TypeKey) (Binding, bool) {
	id := key.ID()
	if b, ok := g.bindings.Get(id); ok && b.Kind() != KindAbsent {
		if !g.exposed.Has(id) {
			g.exposeRoot(key)
		}
		return b, true
	}

	b, err := g.lookup.Find(ContextualKey{Key: key, Shape: Canonical})
	if err != nil || b == nil {
		return nil, false
	}
	g.bindings.Set(id, b)
	g.exposeRoot(key)

	return b, true
}

func (g *BindingGraph) exposeRoot(key TypeKey) {
	g.exposed.Set(key.ID(), key)
	r := &Root{Name: key.ID(), Kind: RootExposed, Key: ContextualKey{Key: key, Shape: Canonical}, Type: key.Type}
	g.addRoot(r, "extension of "+g.node.Name)

	queue := collection.NewQueue[string]()
	g.request(r.Key, r.id(), queue)
	g.drain(queue)
}

func resolveParams(r *Resolver, decls []*ParamDecl) ([]Param, error) {
	params := make([]Param, 0, len(decls))
	for i, d := range decls {
		t, err := r.Type(d.Type)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}

		p := Param{
			Name:     firstNonEmpty(d.Name, d.Field, "arg"+strconv.Itoa(i)),
			Key:      ContextualKeyOf(t, d.Qualifier, d.Default != ""),
			Field:    d.Field,
			Assisted: d.Assisted,
		}
		if d.Default != "" {
			p.Default, err = r.Expr(d.Default)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", p.Name, err)
			}
		}
		params = append(params, p)
	}

	return params, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

func packageName(p *types.Package) string {
	return p.Name()
}
