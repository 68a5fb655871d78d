//go:generate go tool musubi container.yaml
package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/mazrean/musubi"
)

type App interface {
	Plugins() map[string]musubi.Provider[Plugin]
	Named() map[string]Plugin
}

type Plugin interface {
	Name() string
}

type P1 struct{}

func NewP1() *P1 { return &P1{} }

func (*P1) Name() string { return "p1" }

type P2 struct{}

func NewP2() *P2 { return &P2{} }

func (*P2) Name() string { return "p2" }

func main() {
	app := NewApp()

	providers := app.Plugins()
	for _, key := range slices.Sorted(maps.Keys(providers)) {
		fmt.Printf("%s=%s\n", key, providers[key].Get().Name())
	}

	named := app.Named()
	fmt.Println(len(named), named["two"].Name())
}
