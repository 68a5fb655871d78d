//go:generate go tool musubi container.yaml
package main

import (
	"fmt"
	"strings"
)

type App interface {
	Request() Request
	Counter() *Counter
}

type Request interface {
	Handler() *Handler
	Plugins() []Plugin
}

type Counter struct{ n int }

func NewCounter() *Counter { return &Counter{} }

func (c *Counter) Next() int {
	c.n++
	return c.n
}

type Handler struct {
	Name    string
	Counter *Counter
}

type Plugin interface {
	Name() string
}

type namedPlugin string

func (p namedPlugin) Name() string { return string(p) }

func NewAudit() Plugin { return namedPlugin("audit") }

func NewTrace() Plugin { return namedPlugin("trace") }

func main() {
	app := NewApp()

	first := app.Request().Handler()
	second := app.Request().Handler()
	fmt.Println(first.Name, first.Counter.Next(), second.Counter.Next(), app.Counter().Next())

	var names []string
	for _, p := range app.Request().Plugins() {
		names = append(names, p.Name())
	}
	fmt.Println(strings.Join(names, " "))
}
