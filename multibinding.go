package musubi

import "fmt"

// SetBuilder assembles a set multibinding from individual and collection contributors.
type SetBuilder[T any] struct {
	values []T
}

// NewSetBuilder returns a builder with room for size elements.
func NewSetBuilder[T any](size int) *SetBuilder[T] {
	return &SetBuilder[T]{values: make([]T, 0, size)}
}

// Add appends one contribution.
func (b *SetBuilder[T]) Add(v T) *SetBuilder[T] {
	b.values = append(b.values, v)
	return b
}

// AddAll appends a collection contribution.
func (b *SetBuilder[T]) AddAll(vs []T) *SetBuilder[T] {
	b.values = append(b.values, vs...)
	return b
}

// Build returns the assembled set.
func (b *SetBuilder[T]) Build() []T {
	return b.values
}

// SetFactory builds a provider of a set multibinding from contributor providers.
// The contributors are resolved each time the provider is invoked.
type SetFactory[T any] struct {
	individual []Provider[T]
	collection []Provider[[]T]
	order      []bool
}

// NewSetFactory returns an empty SetFactory.
func NewSetFactory[T any]() *SetFactory[T] {
	return &SetFactory[T]{}
}

// AddProvider registers a single element contributor.
func (f *SetFactory[T]) AddProvider(p Provider[T]) *SetFactory[T] {
	f.individual = append(f.individual, p)
	f.order = append(f.order, false)
	return f
}

// AddCollectionProvider registers a contributor returning several elements.
func (f *SetFactory[T]) AddCollectionProvider(p Provider[[]T]) *SetFactory[T] {
	f.collection = append(f.collection, p)
	f.order = append(f.order, true)
	return f
}

// Build returns the set provider.
func (f *SetFactory[T]) Build() Provider[[]T] {
	individual, collection, order := f.individual, f.collection, f.order

	return ProviderFunc[[]T](func() []T {
		b := NewSetBuilder[T](len(individual))
		i, c := 0, 0
		for _, isCollection := range order {
			if isCollection {
				b.AddAll(collection[c].Get())
				c++
				continue
			}
			b.Add(individual[i].Get())
			i++
		}

		return b.Build()
	})
}

type mapEntry[K comparable, V any] struct {
	key      K
	provider Provider[V]
}

// MapProviderFactory builds a provider of a map whose values are providers.
type MapProviderFactory[K comparable, V any] struct {
	entries    []mapEntry[K, V]
	collection []Provider[map[K]V]
}

// NewMapProviderFactory returns an empty MapProviderFactory.
func NewMapProviderFactory[K comparable, V any]() *MapProviderFactory[K, V] {
	return &MapProviderFactory[K, V]{}
}

// Put registers a keyed contributor.
func (f *MapProviderFactory[K, V]) Put(key K, p Provider[V]) *MapProviderFactory[K, V] {
	f.entries = append(f.entries, mapEntry[K, V]{key: key, provider: p})
	return f
}

// PutAll registers a contributor returning several entries.
func (f *MapProviderFactory[K, V]) PutAll(p Provider[map[K]V]) *MapProviderFactory[K, V] {
	f.collection = append(f.collection, p)
	return f
}

// Build returns the map provider.
// The returned provider panics when two contributors share a key.
func (f *MapProviderFactory[K, V]) Build() Provider[map[K]Provider[V]] {
	entries, collection := f.entries, f.collection

	return ProviderFunc[map[K]Provider[V]](func() map[K]Provider[V] {
		m := make(map[K]Provider[V], len(entries))
		for _, e := range entries {
			putUnique(m, e.key, e.provider)
		}
		for _, p := range collection {
			for k, v := range p.Get() {
				putUnique(m, k, InstanceProvider(v))
			}
		}

		return m
	})
}

// MapFactory builds a provider of a map multibinding.
type MapFactory[K comparable, V any] struct {
	providers *MapProviderFactory[K, V]
}

// NewMapFactory returns an empty MapFactory.
func NewMapFactory[K comparable, V any]() *MapFactory[K, V] {
	return &MapFactory[K, V]{providers: NewMapProviderFactory[K, V]()}
}

// Put registers a keyed contributor.
func (f *MapFactory[K, V]) Put(key K, p Provider[V]) *MapFactory[K, V] {
	f.providers.Put(key, p)
	return f
}

// PutAll registers a contributor returning several entries.
func (f *MapFactory[K, V]) PutAll(p Provider[map[K]V]) *MapFactory[K, V] {
	f.providers.PutAll(p)
	return f
}

// Build returns the map provider.
// The returned provider panics when two contributors share a key.
func (f *MapFactory[K, V]) Build() Provider[map[K]V] {
	providers := f.providers.Build()

	return ProviderFunc[map[K]V](func() map[K]V {
		ps := providers.Get()
		m := make(map[K]V, len(ps))
		for k, p := range ps {
			m[k] = p.Get()
		}

		return m
	})
}

func putUnique[K comparable, V any](m map[K]V, key K, v V) {
	if _, ok := m[key]; ok {
		panic(fmt.Sprintf("musubi: duplicate map key %v", key))
	}
	m[key] = v
}

// ProviderMap wraps every value of m in a provider.
func ProviderMap[K comparable, V any](m map[K]V) map[K]Provider[V] {
	out := make(map[K]Provider[V], len(m))
	for k, v := range m {
		out[k] = InstanceProvider(v)
	}

	return out
}

// LazyMap wraps every provider of m in a Lazy.
func LazyMap[K comparable, V any](m map[K]Provider[V]) map[K]Lazy[V] {
	out := make(map[K]Lazy[V], len(m))
	for k, p := range m {
		out[k] = NewLazy(p)
	}

	return out
}

// Values resolves every provider of m.
func Values[K comparable, V any](m map[K]Provider[V]) map[K]V {
	out := make(map[K]V, len(m))
	for k, p := range m {
		out[k] = p.Get()
	}

	return out
}
