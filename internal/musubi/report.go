package musubi

import (
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Report describes how a resolved container will be generated.
type Report struct {
	Container string         `yaml:"container"`
	Bindings  []ReportEntry  `yaml:"bindings"`
	Counts    map[string]int `yaml:"counts"`
	Children  []*Report      `yaml:"children,omitempty"`
}

// ReportEntry is one reachable binding, in build order.
type ReportEntry struct {
	Key      string `yaml:"key"`
	Kind     string `yaml:"kind"`
	Storage  string `yaml:"storage"`
	Refs     int    `yaml:"refs"`
	Scope    string `yaml:"scope,omitempty"`
	Deferred bool   `yaml:"deferred,omitempty"`
	Origin   string `yaml:"origin"`
}

// NewReport builds the report of a sealed graph and its children.
func NewReport(g *BindingGraph) *Report {
	plan := SelectStrategies(g)
	s := g.Sealed()

	r := &Report{
		Container: g.Node().Name,
		Bindings:  make([]ReportEntry, 0, len(s.Order)),
		Counts:    plan.Counts(),
	}
	for _, b := range s.Order {
		r.Bindings = append(r.Bindings, ReportEntry{
			Key:      b.Key().String(),
			Kind:     b.Kind().String(),
			Storage:  plan.Storage(b.Key()).String(),
			Refs:     plan.Refs(b.Key()),
			Scope:    b.Scope(),
			Deferred: s.Deferred[b.Key().ID()],
			Origin:   b.Origin().String(),
		})
	}
	for _, child := range g.Children() {
		r.Children = append(r.Children, NewReport(child))
	}

	return r
}

// WriteReportsYAML encodes reports as a YAML document.
func WriteReportsYAML(w io.Writer, reports []*Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("encode reports: %w", err)
	}

	return enc.Close()
}

// WriteReportsText prints one aligned table per container.
func WriteReportsText(w io.Writer, reports []*Report) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	var walk func(r *Report, prefix string)
	walk = func(r *Report, prefix string) {
		fmt.Fprintf(tw, "%s%s\n", prefix, r.Container)
		fmt.Fprintln(tw, "KEY\tKIND\tSTORAGE\tREFS\tORIGIN")
		for _, e := range r.Bindings {
			kind := e.Kind
			if e.Deferred {
				kind += " (deferred)"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", e.Key, kind, e.Storage, e.Refs, e.Origin)
		}
		fmt.Fprintln(tw)
		for _, child := range r.Children {
			walk(child, r.Container+" > ")
		}
	}
	for _, r := range reports {
		walk(r, "")
	}

	return tw.Flush()
}
