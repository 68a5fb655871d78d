package musubi

import (
	"fmt"
	"go/types"
	"log/slog"
	"slices"
)

// Sealed is the frozen result of a resolved graph.
type Sealed struct {
	// Order lists the reachable bindings, dependencies before their consumers.
	// Members of a deferred cycle follow the order of their canonical edges.
	Order     []Binding
	Reachable map[string]bool
	// Deferred bindings are referenced through a delegate before they are constructed.
	Deferred map[string]bool
	// Consumers maps a key to the bindings and roots requesting it.
	Consumers map[string][]string
}

// IsRoot reports whether a consumer id names a root.
func IsRoot(consumer string) bool {
	return len(consumer) > 5 && consumer[:5] == "root:"
}

// Seal computes the build order, validates the reachable bindings and freezes the graph.
func (g *BindingGraph) Seal() (*Sealed, error) {
	if g.sealed != nil {
		return g.sealed, nil
	}
	before := g.diags.Len()

	s := &Sealed{
		Reachable: make(map[string]bool),
		Deferred:  make(map[string]bool),
		Consumers: make(map[string][]string),
	}
	g.reach(s)
	g.order(s)
	g.validate(s)

	for b := range g.bindings.Values() {
		if mb, ok := b.(*MultibindingBinding); ok {
			mb.frozen = true
		}
	}
	g.sealed = s

	slog.Debug("Sealed graph", "container", g.node.Name, "reachable", len(s.Order), "deferred", len(s.Deferred))

	if g.diags.Len() > before {
		return s, g.diags.Err()
	}

	return s, nil
}

func (g *BindingGraph) reach(s *Sealed) {
	var stack []string
	for _, r := range g.roots {
		id := r.Key.Key.ID()
		s.Consumers[id] = append(s.Consumers[id], r.id())
		stack = append(stack, id)
	}

	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if s.Reachable[id] {
			continue
		}
		b, ok := g.bindings.Get(id)
		if !ok {
			continue
		}
		s.Reachable[id] = true

		for _, dep := range b.Dependencies() {
			depID := dep.Key.ID()
			if !slices.Contains(s.Consumers[depID], id) {
				s.Consumers[depID] = append(s.Consumers[depID], id)
			}
			stack = append(stack, depID)
		}
	}
}

// order runs Tarjan's algorithm over the reachable bindings in declaration order,
// which emits every strongly connected component after the ones it depends on.
func (g *BindingGraph) order(s *Sealed) {
	var (
		index   = make(map[string]int)
		low     = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []string
		next    int
	)

	var connect func(id string)
	connect = func(id string) {
		index[id] = next
		low[id] = next
		next++
		stack = append(stack, id)
		onStack[id] = true

		b, _ := g.bindings.Get(id)
		for _, dep := range b.Dependencies() {
			depID := dep.Key.ID()
			if !s.Reachable[depID] {
				continue
			}
			if _, seen := index[depID]; !seen {
				connect(depID)
				low[id] = min(low[id], low[depID])
			} else if onStack[depID] {
				low[id] = min(low[id], index[depID])
			}
		}

		if low[id] != index[id] {
			return
		}
		var component []string
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			component = append(component, top)
			if top == id {
				break
			}
		}
		g.emit(s, component)
	}

	for _, id := range g.bindings.Keys() {
		if _, seen := index[id]; !seen && s.Reachable[id] {
			connect(id)
		}
	}
}

// emit appends a strongly connected component to the build order.
// A cycle is legal only when every loop crosses a Provider or Lazy request.
func (g *BindingGraph) emit(s *Sealed, component []string) {
	if len(component) == 1 {
		b, _ := g.bindings.Get(component[0])
		if !selfDependent(b) {
			s.Order = append(s.Order, b)
			return
		}
	}

	members := make(map[string]bool, len(component))
	for _, id := range component {
		members[id] = true
	}
	// Component members in declaration order keep the output deterministic.
	var ordered []string
	for _, id := range g.bindings.Keys() {
		if members[id] {
			ordered = append(ordered, id)
		}
	}

	indegree := make(map[string]int, len(ordered))
	dependents := make(map[string][]string, len(ordered))
	for _, id := range ordered {
		b, _ := g.bindings.Get(id)
		for _, dep := range b.Dependencies() {
			depID := dep.Key.ID()
			if !members[depID] {
				continue
			}
			if dep.Shape.Deferrable() {
				s.Deferred[depID] = true
				continue
			}
			indegree[id]++
			dependents[depID] = append(dependents[depID], id)
		}
	}

	var sorted []string
	ready := slices.DeleteFunc(slices.Clone(ordered), func(id string) bool { return indegree[id] > 0 })
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		sorted = append(sorted, id)
		for _, dependent := range dependents[id] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(sorted) < len(ordered) {
		var cycle, decls []string
		for _, id := range ordered {
			if indegree[id] > 0 {
				b, _ := g.bindings.Get(id)
				cycle = append(cycle, b.Key().String())
				decls = append(decls, b.Origin().String())
			}
		}
		cycle = append(cycle, cycle[0])
		g.diags.Report(ErrValueCycle,
			"dependency cycle without a Provider or Lazy request",
			WithTrace(cycle),
			WithDeclarations(decls...),
			WithHints("request one of the keys in the cycle as musubi.Provider[T] or musubi.Lazy[T]"),
		)
		return
	}

	for _, id := range sorted {
		b, _ := g.bindings.Get(id)
		if cb, ok := b.(*ConstructorBinding); ok && cb.IsAssisted() && s.Deferred[id] {
			g.diags.Report(ErrValueCycle,
				fmt.Sprintf("assisted type %s cannot be deferred", b.Key()),
				WithDeclarations(b.Origin().String()),
			)
			return
		}
		s.Order = append(s.Order, b)
	}
}

func selfDependent(b Binding) bool {
	for _, dep := range b.Dependencies() {
		if dep.Key.Equal(b.Key()) {
			return true
		}
	}

	return false
}

func (g *BindingGraph) validate(s *Sealed) {
	for _, b := range s.Order {
		id := b.Key().ID()

		if scope := b.Scope(); scope != "" && !g.node.HasScope(scope) {
			g.diags.Report(ErrScopeMismatch,
				fmt.Sprintf("%s is scoped to %s but %s does not declare that scope", b.Key(), scope, g.node.Name),
				WithDeclarations(b.Origin().String()),
				WithTrace(g.trace(id)),
			)
		}

		switch b := b.(type) {
		case *ConstructorBinding:
			if b.IsAssisted() {
				g.validateAssisted(s, b)
			}
		case *MultibindingBinding:
			if len(b.Contributions) == 0 && !b.AllowEmpty {
				g.diags.Report(ErrEmptyMultibinding,
					fmt.Sprintf("%s %s has no contributions", b.Collection, b.Key()),
					WithDeclarations(b.Origin().String()),
					WithHints("declare it with allowEmpty to accept an empty "+b.Collection.String()),
				)
			}
		}
	}
}

// validateAssisted rejects every request of an assisted type that does not come from its factory.
func (g *BindingGraph) validateAssisted(s *Sealed, b *ConstructorBinding) {
	id := b.Key().ID()
	for _, consumer := range s.Consumers[id] {
		if !IsRoot(consumer) {
			if c, ok := g.bindings.Get(consumer); ok {
				if f, ok := c.(*AssistedFactoryBinding); ok && f.Target.Equal(b.Key()) {
					continue
				}
			}
		}

		trace := g.trace(consumer)
		if IsRoot(consumer) {
			trace = []string{g.rootLabels[consumer]}
		}
		g.diags.Report(ErrAssistedMisuse,
			fmt.Sprintf("assisted type %s is requested directly", b.Key()),
			WithDeclarations(b.Origin().String()),
			WithTrace(append(trace, b.Key().String())),
			WithHints("request "+types.TypeString(b.Factory, packageName)+" instead"),
		)
	}
}
