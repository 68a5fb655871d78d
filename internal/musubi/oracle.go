package musubi

import (
	"go/types"
	"sync"

	"golang.org/x/tools/go/types/typeutil"
)

// TypeOracle answers the type relations the graph needs.
type TypeOracle interface {
	Identical(a, b types.Type) bool
	// AssignableTo reports whether a value of type v can satisfy a request for t.
	AssignableTo(v, t types.Type) bool
}

// factOracle combines go/types with the implements and embeds facts of the bundle.
// Declared types have no method sets, so their relations come from facts only.
type factOracle struct {
	resolver *Resolver

	mu         sync.Mutex
	supertypes typeutil.Map
}

func NewTypeOracle(r *Resolver) TypeOracle {
	return &factOracle{resolver: r}
}

func (o *factOracle) Identical(a, b types.Type) bool {
	return types.Identical(a, b)
}

func (o *factOracle) AssignableTo(v, t types.Type) bool {
	if types.Identical(v, t) {
		return true
	}
	for _, s := range o.supertypesOf(v) {
		if types.Identical(s, t) {
			return true
		}
	}
	if o.resolver.IsDeclared(v) || o.resolver.IsDeclared(t) {
		return false
	}
	if iface, ok := t.Underlying().(*types.Interface); ok && iface.Empty() {
		return false
	}

	return types.AssignableTo(v, t)
}

func (o *factOracle) supertypesOf(t types.Type) []types.Type {
	o.mu.Lock()
	if cached, ok := o.supertypes.At(t).([]types.Type); ok {
		o.mu.Unlock()
		return cached
	}
	o.mu.Unlock()

	var out []types.Type
	seen := make(map[string]bool)
	var walk func(types.Type)
	walk = func(t types.Type) {
		facts := o.resolver.Facts(t)
		if facts == nil {
			if ptr, ok := t.(*types.Pointer); ok {
				facts = o.resolver.Facts(ptr.Elem())
			}
		}
		if facts == nil {
			return
		}
		for _, name := range append(append([]string(nil), facts.Implements...), facts.Embeds...) {
			s, err := o.resolver.Type(name)
			if err != nil || seen[typeID(s)] {
				continue
			}
			seen[typeID(s)] = true
			out = append(out, s)
			walk(s)
		}
	}
	walk(t)

	o.mu.Lock()
	o.supertypes.Set(t, out)
	o.mu.Unlock()

	return out
}
