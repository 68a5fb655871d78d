package musubi

import (
	"log/slog"
)

// Storage is how a binding is materialized in the generated container.
type Storage int

const (
	// StorageInline constructs the value at every use site.
	StorageInline Storage = iota + 1
	// StorageGetter constructs the value in a dedicated method.
	StorageGetter
	// StorageField keeps a provider in a field of the container.
	StorageField
	// StorageInstance reads a creator param stored on the container.
	StorageInstance
)

func (s Storage) String() string {
	switch s {
	case StorageInline:
		return "inline"
	case StorageGetter:
		return "getter"
	case StorageField:
		return "field"
	case StorageInstance:
		return "instance"
	}

	return "unknown"
}

// Plan is the materialization decision for every reachable binding of a graph.
// It is computed from a sealed graph and not stored on the bindings.
type Plan struct {
	storage map[string]Storage
	refs    map[string]int
	shapes  map[string][]Shape
}

func (p *Plan) Storage(key TypeKey) Storage {
	return p.storage[key.ID()]
}

func (p *Plan) Refs(key TypeKey) int {
	return p.refs[key.ID()]
}

// Shapes lists the distinct shapes key is requested in, in first request order.
func (p *Plan) Shapes(key TypeKey) []Shape {
	return p.shapes[key.ID()]
}

// Counts returns the number of bindings per storage kind.
func (p *Plan) Counts() map[string]int {
	counts := make(map[string]int, 4)
	for _, s := range p.storage {
		counts[s.String()]++
	}

	return counts
}

// SelectStrategies counts the references of every binding in a sealed graph and
// assigns its storage.
func SelectStrategies(g *BindingGraph) *Plan {
	s := g.sealed
	p := &Plan{
		storage: make(map[string]Storage, len(s.Order)),
		refs:    make(map[string]int, len(s.Order)),
		shapes:  make(map[string][]Shape),
	}

	for _, r := range g.roots {
		p.addShape(r.Key)
	}
	for _, b := range s.Order {
		for _, dep := range b.Dependencies() {
			p.addShape(dep)
		}
	}

	// Consumers come after their dependencies in Order, so walking it backwards
	// sees every consumer's count first. Inline aliases forward their uses.
	for i := len(s.Order) - 1; i >= 0; i-- {
		b := s.Order[i]
		id := b.Key().ID()
		for _, c := range s.Consumers[id] {
			cb, ok := g.bindings.Get(c)
			if ok && cb.Kind() == KindAlias {
				p.refs[id] += max(p.refs[c], 1)
				continue
			}
			p.refs[id]++
		}
	}

	for _, b := range s.Order {
		p.storage[b.Key().ID()] = p.choose(g, b)
	}

	slog.Debug("Selected materialization", "container", g.node.Name, "counts", p.Counts())

	return p
}

func (p *Plan) addShape(ck ContextualKey) {
	id := ck.Key.ID()
	for _, s := range p.shapes[id] {
		if s.Equal(ck.Shape) {
			return
		}
	}
	p.shapes[id] = append(p.shapes[id], ck.Shape)
}

func (p *Plan) choose(g *BindingGraph, b Binding) Storage {
	id := b.Key().ID()
	s := g.sealed

	switch {
	case b.Kind() == KindBoundInstance:
		return StorageInstance
	case s.Deferred[id], g.IsExposed(b.Key()):
		return StorageField
	}

	switch b.Kind() {
	case KindAlias, KindAbsent, KindMembersInjected, KindGraphExtension:
		return StorageInline
	}
	if b.Scope() != "" {
		return StorageField
	}

	switch b := b.(type) {
	case *GraphDependencyBinding, *AssistedFactoryBinding:
		return StorageField
	case *ConstructorBinding:
		if b.IsAssisted() {
			return StorageInline
		}
	case *MultibindingBinding, *OptionalBinding:
		return StorageGetter
	}

	refs := p.refs[id]
	switch {
	case refs >= 2:
		return StorageField
	case refs == 1 && len(b.Dependencies()) > 0 && p.feedsMultibinding(g, id):
		return StorageGetter
	}

	return StorageInline
}

func (p *Plan) feedsMultibinding(g *BindingGraph, id string) bool {
	consumers := g.sealed.Consumers[id]
	if len(consumers) != 1 {
		return false
	}
	c, ok := g.bindings.Get(consumers[0])

	return ok && c.Kind() == KindMultibinding
}
