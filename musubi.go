// Package musubi provides the runtime support used by code generated by the musubi
// dependency injection compiler.
//
// Generated containers store their bindings as providers and wire them together with
// the adapters in this package. Nothing here performs reflection: every call site is
// emitted at generation time.
package musubi

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Provider supplies instances of T.
// Each call to Get may construct a new instance unless the provider is scoped.
type Provider[T any] interface {
	Get() T
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc[T any] func() T

// Get calls f.
func (f ProviderFunc[T]) Get() T {
	return f()
}

type instanceProvider[T any] struct {
	v T
}

func (p instanceProvider[T]) Get() T {
	return p.v
}

// InstanceProvider returns a provider that always returns v.
// It is used for bound instances and included container references.
func InstanceProvider[T any](v T) Provider[T] {
	return instanceProvider[T]{v: v}
}

// Lazy computes its value on the first call to Get and returns the same value afterwards.
type Lazy[T any] interface {
	Get() T
}

type lazy[T any] struct {
	once     sync.Once
	provider Provider[T]
	value    T
}

func (l *lazy[T]) Get() T {
	l.once.Do(func() {
		l.value = l.provider.Get()
		l.provider = nil
	})

	return l.value
}

// NewLazy wraps provider so that it is invoked at most once.
func NewLazy[T any](provider Provider[T]) Lazy[T] {
	if l, ok := provider.(*lazy[T]); ok {
		return l
	}

	return &lazy[T]{provider: provider}
}

// ProviderOfLazy returns a provider that hands out a fresh Lazy on every call.
//
// Example:
//
//	p := musubi.ProviderOfLazy[*Config](g.configProvider)
//	a, b := p.Get(), p.Get() // a and b compute independently
func ProviderOfLazy[T any](provider Provider[T]) Provider[Lazy[T]] {
	return ProviderFunc[Lazy[T]](func() Lazy[T] {
		return &lazy[T]{provider: provider}
	})
}

type doubleCheck[T any] struct {
	done     atomic.Bool
	mu       sync.Mutex
	provider Provider[T]
	value    T
}

func (d *doubleCheck[T]) Get() T {
	if d.done.Load() {
		return d.value
	}

	return d.getSlow()
}

func (d *doubleCheck[T]) getSlow() T {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.done.Load() {
		d.value = d.provider.Get()
		d.provider = nil
		d.done.Store(true)
	}

	return d.value
}

// DoubleCheck caches the first instance produced by provider.
// Scoped bindings are stored behind DoubleCheck so that the container hands out one instance.
// Once an instance exists Get does not lock. If provider panics nothing is cached and the
// next Get constructs again. As with sync.Once, calling Get from within provider deadlocks;
// cycles through scoped bindings must be broken with a Provider or Lazy that is not called
// during construction.
func DoubleCheck[T any](provider Provider[T]) Provider[T] {
	if d, ok := provider.(*doubleCheck[T]); ok {
		return d
	}

	return &doubleCheck[T]{provider: provider}
}

// Delegate is a forward declared provider used to break dependency cycles.
// It is allocated before the bindings of a cycle are constructed and completed with SetDelegate.
type Delegate[T any] struct {
	delegate Provider[T]
}

// NewDelegate allocates an empty Delegate.
func NewDelegate[T any]() *Delegate[T] {
	return &Delegate[T]{}
}

// Get forwards to the completed provider.
// It panics when called before SetDelegate.
func (d *Delegate[T]) Get() T {
	if d.delegate == nil {
		panic(fmt.Sprintf("musubi: delegate for %T used before initialization", *new(T)))
	}

	return d.delegate.Get()
}

// SetDelegate completes a Delegate previously allocated with NewDelegate.
// It panics if delegate is not a *Delegate or was already completed.
func SetDelegate[T any](delegate Provider[T], provider Provider[T]) {
	d, ok := delegate.(*Delegate[T])
	if !ok {
		panic(fmt.Sprintf("musubi: %T is not a delegate", delegate))
	}
	if d.delegate != nil {
		panic("musubi: delegate already set")
	}

	d.delegate = provider
}

// Optional holds a value that may be absent from the container.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns a present Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// OrElse returns the value if present, otherwise v.
func (o Optional[T]) OrElse(v T) T {
	if o.ok {
		return o.value
	}

	return v
}

// MembersInjector assigns the injectable fields of an existing value.
type MembersInjector[T any] interface {
	InjectMembers(target T)
}

// MembersInjectorFunc adapts a function to the MembersInjector interface.
type MembersInjectorFunc[T any] func(target T)

// InjectMembers calls f.
func (f MembersInjectorFunc[T]) InjectMembers(target T) {
	f(target)
}
