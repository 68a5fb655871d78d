package musubi

import (
	"fmt"
	"go/types"
	"slices"
	"strings"

	"golang.org/x/tools/go/types/typeutil"
)

// missingHints suggests bindings close to a key that has none.
func (g *BindingGraph) missingHints(key TypeKey) []string {
	var (
		hints    []string
		elements typeutil.Map
	)
	add := func(format string, args ...any) {
		hint := fmt.Sprintf(format, args...)
		if !slices.Contains(hints, hint) {
			hints = append(hints, hint)
		}
	}

	for b := range g.bindings.Values() {
		other := b.Key()
		if b.Kind() == KindAbsent || strings.Contains(other.Qualifier, contributionMarker) {
			continue
		}
		if mb, ok := b.(*MultibindingBinding); ok {
			elements.Set(mb.Elem, append(asKeys(elements.At(mb.Elem)), other))
		}

		switch {
		case types.Identical(other.Type, key.Type) && other.Qualifier != key.Qualifier:
			if other.Qualifier == "" {
				add("%s is bound without a qualifier", other)
			} else {
				add("%s is bound with qualifier %q", types.TypeString(other.Type, packageName), other.Qualifier)
			}
		case other.Qualifier != key.Qualifier:
		case pointerCounterpart(other.Type, key.Type):
			add("%s is bound; check the pointer indirection", other)
		case g.env.Oracle != nil && g.env.Oracle.AssignableTo(other.Type, key.Type):
			add("%s is bound and implements %s; declare a bind from it", other, key)
		case g.env.Oracle != nil && g.env.Oracle.AssignableTo(key.Type, other.Type):
			add("%s is bound but is a supertype of %s", other, key)
		}
	}

	for _, mb := range asKeys(elements.At(key.Type)) {
		add("%s is contributed into %s; request the collection instead", key, mb)
	}

	if key.Qualifier != "" {
		if facts, _ := g.lookup.injectable(key.Type); facts != nil && len(facts.Inject) > 0 {
			add("%s has an injected constructor but constructor injection only serves unqualified keys", types.TypeString(key.Type, packageName))
		}
	}

	for _, m := range g.env.Bundle.Modules {
		if g.node.Attached(m.Name) || !g.moduleProvides(m, key) {
			continue
		}
		add("module %s binds %s but is not installed in %s", m.Name, key, g.node.Name)
	}

	return hints
}

func asKeys(v any) []TypeKey {
	keys, _ := v.([]TypeKey)
	return keys
}

func pointerCounterpart(a, b types.Type) bool {
	if p, ok := types.Unalias(a).(*types.Pointer); ok && types.Identical(p.Elem(), b) {
		return true
	}
	if p, ok := types.Unalias(b).(*types.Pointer); ok && types.Identical(p.Elem(), a) {
		return true
	}

	return false
}

func (g *BindingGraph) moduleProvides(m *ModuleDecl, key TypeKey) bool {
	matches := func(typ, qualifier string) bool {
		if qualifier != key.Qualifier {
			return false
		}
		t, err := g.resolver().Type(typ)
		return err == nil && types.Identical(t, key.Type)
	}

	for _, p := range m.Provides {
		if p.Into == "" && matches(p.Type, p.Qualifier) {
			return true
		}
	}
	for _, b := range m.Binds {
		if b.Into == "" && matches(b.Type, b.Qualifier) {
			return true
		}
	}

	return false
}
