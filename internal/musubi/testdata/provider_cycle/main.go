//go:generate go tool musubi container.yaml
package main

import (
	"fmt"

	"github.com/mazrean/musubi"
)

type App interface {
	A() *A
}

type A struct{ B *B }

func NewA(b *B) *A { return &A{B: b} }

type B struct{ A musubi.Provider[*A] }

func NewB(a musubi.Provider[*A]) *B { return &B{A: a} }

func main() {
	a := NewApp().A()
	other := a.B.A.Get()
	fmt.Println(other != a, other.B != nil, other.B.A != nil)
}
