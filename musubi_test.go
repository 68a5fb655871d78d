package musubi_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mazrean/musubi"
)

type counter struct {
	n int
}

func countingProvider() (musubi.Provider[*counter], *int) {
	calls := 0
	return musubi.ProviderFunc[*counter](func() *counter {
		calls++
		return &counter{n: calls}
	}), &calls
}

// ExampleDoubleCheck shows how scoped bindings are cached by generated containers.
func ExampleDoubleCheck() {
	p := musubi.DoubleCheck[string](musubi.ProviderFunc[string](func() string {
		fmt.Println("constructing")
		return "singleton"
	}))

	fmt.Println(p.Get())
	fmt.Println(p.Get())
	// Output:
	// constructing
	// singleton
	// singleton
}

// ExampleSetDelegate shows how a dependency cycle is broken with a forward declared provider.
func ExampleSetDelegate() {
	type node struct {
		name string
		next musubi.Provider[string]
	}

	nameProvider := musubi.Provider[string](musubi.NewDelegate[string]())
	n := node{name: "a", next: nameProvider}
	musubi.SetDelegate(nameProvider, musubi.InstanceProvider("b"))

	fmt.Println(n.name, n.next.Get())
	// Output: a b
}

func TestDoubleCheck(t *testing.T) {
	t.Parallel()

	p, calls := countingProvider()
	scoped := musubi.DoubleCheck(p)

	var wg sync.WaitGroup
	results := make([]*counter, 16)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = scoped.Get()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, *calls)
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
	assert.Same(t, scoped, musubi.DoubleCheck(scoped), "wrapping twice must be a no-op")
}

func TestDoubleCheck_PanicIsNotCached(t *testing.T) {
	t.Parallel()

	calls := 0
	scoped := musubi.DoubleCheck(musubi.ProviderFunc[*counter](func() *counter {
		calls++
		if calls == 1 {
			panic("first construction fails")
		}
		return &counter{n: calls}
	}))

	assert.PanicsWithValue(t, "first construction fails", func() { scoped.Get() })

	first := scoped.Get()
	assert.Equal(t, 2, first.n)
	assert.Same(t, first, scoped.Get())
	assert.Equal(t, 2, calls)
}

func TestLazy(t *testing.T) {
	t.Parallel()

	p, calls := countingProvider()
	l := musubi.NewLazy(p)
	assert.Equal(t, 0, *calls)
	assert.Same(t, l.Get(), l.Get())
	assert.Equal(t, 1, *calls)

	pl := musubi.ProviderOfLazy(p)
	a, b := pl.Get(), pl.Get()
	assert.NotSame(t, a.Get(), b.Get())
	assert.Equal(t, 3, *calls)
}

func TestDelegate(t *testing.T) {
	t.Parallel()

	t.Run("mutual references", func(t *testing.T) {
		t.Parallel()

		type ping struct{ pong func() string }
		type pong struct{ ping *ping }

		pingProvider := musubi.Provider[*ping](musubi.NewDelegate[*ping]())
		pongProvider := musubi.DoubleCheck[*pong](musubi.ProviderFunc[*pong](func() *pong {
			return &pong{ping: pingProvider.Get()}
		}))
		musubi.SetDelegate(pingProvider, musubi.DoubleCheck[*ping](musubi.ProviderFunc[*ping](func() *ping {
			return &ping{pong: func() string {
				if pongProvider.Get().ping == pingProvider.Get() {
					return "pong"
				}
				return "mismatch"
			}}
		})))

		assert.Equal(t, "pong", pingProvider.Get().pong())
	})

	t.Run("use before set panics", func(t *testing.T) {
		t.Parallel()

		d := musubi.NewDelegate[int]()
		assert.Panics(t, func() { d.Get() })
	})

	t.Run("set twice panics", func(t *testing.T) {
		t.Parallel()

		d := musubi.NewDelegate[int]()
		musubi.SetDelegate[int](d, musubi.InstanceProvider(1))
		assert.Panics(t, func() { musubi.SetDelegate[int](d, musubi.InstanceProvider(2)) })
	})

	t.Run("non delegate panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { musubi.SetDelegate(musubi.InstanceProvider(1), musubi.InstanceProvider(2)) })
	})
}

func TestOptional(t *testing.T) {
	t.Parallel()

	v, ok := musubi.Some("x").Get()
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = musubi.None[string]().Get()
	assert.False(t, ok)
	assert.Equal(t, "fallback", musubi.None[string]().OrElse("fallback"))
}

func TestMembersInjectorFunc(t *testing.T) {
	t.Parallel()

	type target struct{ name string }
	var injector musubi.MembersInjector[*target] = musubi.MembersInjectorFunc[*target](func(t *target) {
		t.name = "injected"
	})

	tgt := &target{}
	injector.InjectMembers(tgt)
	assert.Equal(t, "injected", tgt.name)
}

func TestSetFactory(t *testing.T) {
	t.Parallel()

	set := musubi.NewSetFactory[string]().
		AddProvider(musubi.InstanceProvider("a")).
		AddCollectionProvider(musubi.InstanceProvider([]string{"b", "c"})).
		AddProvider(musubi.InstanceProvider("d")).
		Build()

	assert.Equal(t, []string{"a", "b", "c", "d"}, set.Get())
	assert.Equal(t, set.Get(), set.Get())

	built := musubi.NewSetBuilder[int](2).Add(1).AddAll([]int{2, 3}).Build()
	assert.Equal(t, []int{1, 2, 3}, built)
}

func TestMapFactory(t *testing.T) {
	t.Parallel()

	t.Run("union of contributors", func(t *testing.T) {
		t.Parallel()

		m := musubi.NewMapFactory[string, int]().
			Put("one", musubi.InstanceProvider(1)).
			PutAll(musubi.InstanceProvider(map[string]int{"two": 2})).
			Build()

		assert.Equal(t, map[string]int{"one": 1, "two": 2}, m.Get())
	})

	t.Run("providers are not invoked eagerly", func(t *testing.T) {
		t.Parallel()

		p, calls := countingProvider()
		m := musubi.NewMapProviderFactory[string, *counter]().Put("c", p).Build()

		providers := m.Get()
		require.Contains(t, providers, "c")
		assert.Equal(t, 0, *calls)
		providers["c"].Get()
		assert.Equal(t, 1, *calls)
	})

	t.Run("duplicate keys panic", func(t *testing.T) {
		t.Parallel()

		m := musubi.NewMapFactory[string, int]().
			Put("k", musubi.InstanceProvider(1)).
			PutAll(musubi.InstanceProvider(map[string]int{"k": 2})).
			Build()

		assert.Panics(t, func() { m.Get() })
	})
}
