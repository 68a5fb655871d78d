package musubi

import (
	"errors"
	"fmt"
	"go/types"
	"log/slog"
	"strings"
)

// errReported marks a lookup failure that has already been recorded as a diagnostic.
var errReported = errors.New("reported")

// BindingLookup finds bindings for keys nobody declared: injectable constructors,
// assisted factories, members injectors and keys held by the parent container.
type BindingLookup struct {
	graph *BindingGraph
	cache map[string]Binding
	// parentKeys are evaluated at most once, when the child first asks for the key.
	parentKeys map[string]func() Binding
}

func newBindingLookup(g *BindingGraph) *BindingLookup {
	l := &BindingLookup{
		graph:      g,
		cache:      make(map[string]Binding),
		parentKeys: make(map[string]func() Binding),
	}
	if g.parent != nil {
		for b := range g.parent.bindings.Values() {
			if b.Kind() == KindAbsent || strings.Contains(b.Key().Qualifier, contributionMarker) {
				continue
			}
			l.parentKeys[b.Key().ID()] = l.parentThunk(b.Key())
		}
	}

	return l
}

// Find returns the binding for ck, or nil if there is none. A non-nil error
// means a diagnostic was reported.
func (l *BindingLookup) Find(ck ContextualKey) (Binding, error) {
	id := ck.Key.ID()
	if b, ok := l.cache[id]; ok {
		return b, nil
	}

	b, err := l.find(ck.Key)
	if err != nil || b == nil {
		return nil, err
	}
	l.cache[id] = b

	return b, nil
}

func (l *BindingLookup) find(key TypeKey) (Binding, error) {
	if b, err := l.constructorInjection(key); err != nil || b != nil {
		return b, err
	}

	if key.Qualifier == "" {
		if _, ok := l.graph.resolver().AssistedTarget(key.Type); ok {
			return l.assistedFactory(key)
		}
		if target, ok := runtimeGeneric(key.Type, "MembersInjector"); ok {
			b, err := l.membersInjector(key, target)
			if err != nil || b == nil {
				return nil, err
			}
			return b, nil
		}
	}

	if b := l.parentKey(key); b != nil {
		return b, nil
	}

	return nil, nil
}

// injectable returns the facts of key's type, looking through one pointer.
func (l *BindingLookup) injectable(t types.Type) (*TypeDecl, types.Type) {
	if facts := l.graph.resolver().Facts(t); facts != nil {
		return facts, t
	}
	if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
		if facts := l.graph.resolver().Facts(ptr.Elem()); facts != nil {
			return facts, ptr.Elem()
		}
	}

	return nil, nil
}

// constructedType is the type an injected constructor of named returns.
func (l *BindingLookup) constructedType(named types.Type, facts *TypeDecl, ctor *ConstructorDecl) (types.Type, error) {
	if ctor.Returns != "" {
		return l.graph.resolver().Type(ctor.Returns)
	}
	if facts.Kind == "" || facts.Kind == "struct" {
		return types.NewPointer(named), nil
	}

	return named, nil
}

func (l *BindingLookup) constructorInjection(key TypeKey) (Binding, error) {
	if key.Qualifier != "" {
		return nil, nil
	}
	facts, named := l.injectable(key.Type)
	if facts == nil || len(facts.Inject) == 0 {
		return nil, nil
	}

	g := l.graph
	var (
		ctors []*ConstructorDecl
		names []string
	)
	for _, ctor := range facts.Inject {
		t, err := l.constructedType(named, facts, ctor)
		if err != nil {
			g.invalid(Origin{Declaration: "type " + facts.Name}, err)
			return nil, errReported
		}
		names = append(names, ctor.Func)
		if types.Identical(t, key.Type) {
			ctors = append(ctors, ctor)
		}
	}
	switch {
	case len(facts.Inject) > 1:
		g.diags.Report(ErrMultipleInjectedConstructors,
			fmt.Sprintf("%s has more than one injected constructor", facts.Name),
			WithDeclarations(names...),
		)
		return nil, errReported
	case len(ctors) == 0:
		return nil, nil
	}
	ctor := ctors[0]

	if facts.Scope != "" && !g.node.HasScope(facts.Scope) && g.node.AncestorWithScope(facts.Scope) != nil {
		slog.Debug("Routing scoped type to ancestor", "container", g.node.Name, "key", key.String(), "scope", facts.Scope)
		return l.parentKey(key), nil
	}

	origin := Origin{Declaration: "constructor " + ctor.Func, Level: LevelLocal, Synthetic: true}
	ref, err := g.resolver().Func(ctor.Func)
	if err != nil {
		g.invalid(origin, err)
		return nil, errReported
	}
	params, err := resolveParams(g.resolver(), ctor.Params)
	if err != nil {
		g.invalid(origin, err)
		return nil, errReported
	}
	members, err := l.members(named)
	if err != nil {
		g.invalid(origin, err)
		return nil, errReported
	}

	var factory types.Type
	if facts.Assisted != nil {
		factory, err = g.resolver().Type(facts.Assisted.Factory)
		if err != nil {
			g.invalid(origin, err)
			return nil, errReported
		}
	}

	g.env.Tracker.Record(g.node.Name, "type "+facts.Name)

	return &ConstructorBinding{
		bindingBase: bindingBase{
			key:    key,
			params: append(params, members...),
			scope:  facts.Scope,
			origin: origin,
		},
		Func:    ref,
		Factory: factory,
	}, nil
}

// members collects the injectable members of t, embedded types first.
func (l *BindingLookup) members(t types.Type) ([]Param, error) {
	facts, _ := l.injectable(t)
	if facts == nil {
		return nil, nil
	}

	var out []Param
	for _, name := range facts.Embeds {
		base, err := l.graph.resolver().Type(name)
		if err != nil {
			return nil, err
		}
		inherited, err := l.members(base)
		if err != nil {
			return nil, err
		}
		out = append(out, inherited...)
	}

	own, err := resolveParams(l.graph.resolver(), facts.Members)
	if err != nil {
		return nil, err
	}
	for i := range own {
		if own[i].Field == "" {
			own[i].Field = own[i].Name
		}
	}

	return append(out, own...), nil
}

func (l *BindingLookup) membersInjector(key TypeKey, target types.Type) (*MembersInjectedBinding, error) {
	members, err := l.members(target)
	if err != nil {
		l.graph.invalid(Origin{Declaration: "members injector " + key.String()}, err)
		return nil, errReported
	}

	return &MembersInjectedBinding{
		bindingBase: bindingBase{
			key:    key,
			params: members,
			origin: Origin{Declaration: "members injector " + key.String(), Level: LevelLocal, Synthetic: true},
		},
		Target: target,
	}, nil
}

func (l *BindingLookup) assistedFactory(key TypeKey) (Binding, error) {
	g := l.graph
	origin := Origin{Declaration: "assisted factory " + key.String(), Level: LevelLocal, Synthetic: true}

	named, _ := g.resolver().AssistedTarget(key.Type)
	sig, ok := key.Type.Underlying().(*types.Signature)
	if !ok {
		g.invalid(origin, fmt.Errorf("assisted factory %s is not a func type", key))
		return nil, errReported
	}
	facts := g.resolver().Facts(named)
	if facts == nil || len(facts.Inject) == 0 {
		g.diags.Report(ErrAssistedMisuse,
			fmt.Sprintf("assisted type %s has no injected constructor", types.TypeString(named, packageName)),
			WithDeclarations(origin.String()),
		)
		return nil, errReported
	}

	built, err := l.constructedType(named, facts, facts.Inject[0])
	if err != nil {
		g.invalid(origin, err)
		return nil, errReported
	}
	target := NewTypeKey(built, "")

	return &AssistedFactoryBinding{
		bindingBase: bindingBase{
			key:    key,
			params: []Param{canonicalParam("target", target)},
			origin: origin,
		},
		Target:    target,
		Signature: sig,
	}, nil
}

func (l *BindingLookup) parentKey(key TypeKey) Binding {
	if l.graph.parent == nil {
		return nil
	}

	id := key.ID()
	thunk, ok := l.parentKeys[id]
	if !ok {
		thunk = l.parentThunk(key)
		l.parentKeys[id] = thunk
	}

	return thunk()
}

func (l *BindingLookup) parentThunk(key TypeKey) func() Binding {
	var (
		done   bool
		result Binding
	)

	return func() Binding {
		if done {
			return result
		}
		done = true

		parent := l.graph.parent
		if _, ok := parent.expose(key); !ok {
			return nil
		}
		l.graph.env.Tracker.Record(l.graph.node.Name, "container "+parent.node.Name)

		result = &GraphDependencyBinding{
			bindingBase: bindingBase{
				key:    key,
				origin: Origin{Declaration: "parent " + parent.node.Name, Level: LevelInherited, Synthetic: true},
			},
			Parent: true,
		}

		return result
	}
}
