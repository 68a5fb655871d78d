//go:generate go tool musubi container.yaml
package main

import (
	"fmt"

	"github.com/mazrean/musubi"
)

type App interface {
	A() *A
	B() *B
}

type A struct{ B *B }

func NewA(b *B) *A { return &A{B: b} }

type B struct{ A musubi.Lazy[*A] }

func NewB(a musubi.Lazy[*A]) *B { return &B{A: a} }

func main() {
	app := NewApp()
	a := app.A()
	fmt.Println(a == app.A(), a.B.A.Get() == a, app.B().A.Get() == a)
}
