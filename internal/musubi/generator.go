package musubi

import (
	"bytes"
	"fmt"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	mstrings "github.com/mazrean/musubi/internal/pkg/strings"
)

// Generator emits the implementation of sealed container graphs.
type Generator struct {
	resolver *Resolver
}

func NewGenerator(r *Resolver) *Generator {
	return &Generator{resolver: r}
}

type fileGen struct {
	self    string
	pkgName string
	rt      string
	im      *ImportSet
	top     *VarPool
	buf     bytes.Buffer
	err     error
}

func (f *fileGen) fail(err error) {
	if f.err == nil {
		f.err = err
	}
}

// containerGen generates one container implementation.
type containerGen struct {
	file     *fileGen
	graph    *BindingGraph
	plan     *Plan
	parent   *containerGen
	children map[string]*containerGen

	impl string
	ctor string
	pool *VarPool
	// names maps a key to its field, getter or creator param.
	names           map[string]string
	providerGetters map[string]string
}

func (c *containerGen) rt() string {
	return c.file.rt
}

func (c *containerGen) typ(t types.Type) string {
	s, err := c.file.im.TypeString(t)
	if err != nil {
		c.file.fail(fmt.Errorf("container %s: %w", c.graph.node.Name, err))
		return "any"
	}

	return s
}

// Generate writes a single Go file implementing graphs and their extensions.
func (gen *Generator) Generate(w io.Writer, graphs []*BindingGraph) error {
	pkg := gen.resolver.Package()
	f := &fileGen{
		self:    pkg.Path(),
		pkgName: pkg.Name(),
		im:      NewImportSet(pkg.Path(), gen.resolver.Imports()),
		top:     NewVarPool(),
	}
	f.rt = f.im.Name(gen.resolver.Runtime().Package())

	gens := make([]*containerGen, 0, len(graphs))
	for _, g := range graphs {
		gens = append(gens, f.prepare(g, nil))
	}
	for _, c := range gens {
		c.emitTree()
	}
	if f.err != nil {
		return f.err
	}

	return f.write(w)
}

func (f *fileGen) prepare(g *BindingGraph, parent *containerGen) *containerGen {
	c := &containerGen{
		file:            f,
		graph:           g,
		parent:          parent,
		children:        make(map[string]*containerGen),
		pool:            NewVarPool(),
		names:           make(map[string]string),
		providerGetters: make(map[string]string),
	}
	if g.sealed == nil {
		f.fail(fmt.Errorf("container %s is not sealed", g.node.Name))
		return c
	}
	c.plan = SelectStrategies(g)

	base := mstrings.Ident(g.node.Name)
	c.impl = f.top.GetName(mstrings.ToLowerCamel(base) + "Impl")
	if parent == nil {
		c.ctor = f.top.GetName("New" + mstrings.ToUpperCamel(base))
	} else {
		c.ctor = f.top.GetName("new" + mstrings.ToUpperCamel(base))
	}

	for _, name := range []string{receiverName, parentField, "initialize"} {
		c.pool.Register(name)
	}
	for _, p := range g.node.Creator {
		if p.Name == receiverName || p.Name == parentField {
			f.fail(fmt.Errorf("container %s: creator param name %q is reserved", g.node.Name, p.Name))
		}
		c.pool.Register(p.Name)
	}
	for _, acc := range g.node.Accessors {
		c.pool.Register(acc.Name)
	}
	for _, inj := range g.node.Injectors {
		c.pool.Register(inj.Name)
	}

	for _, b := range g.sealed.Order {
		id, key := b.Key().ID(), b.Key()
		switch c.plan.Storage(key) {
		case StorageInstance:
			c.names[id] = b.(*BoundInstanceBinding).Field
		case StorageField:
			c.names[id] = c.pool.Get(key, "Provider")
		case StorageGetter:
			c.names[id] = c.pool.Get(key, "")
			if mb, ok := b.(*MultibindingBinding); ok && mb.Collection == CollectionMap && c.requestsProviderMap(key) {
				c.providerGetters[id] = c.pool.Get(key, "Providers")
			}
		}
	}

	for _, child := range g.children {
		c.children[child.node.Name] = f.prepare(child, c)
	}

	return c
}

func (c *containerGen) requestsProviderMap(key TypeKey) bool {
	for _, s := range c.plan.Shapes(key) {
		if s.Kind == ShapeMap {
			return true
		}
	}

	return false
}

func (c *containerGen) fields() []Binding {
	var out []Binding
	for _, b := range c.graph.sealed.Order {
		if c.plan.Storage(b.Key()) == StorageField {
			out = append(out, b)
		}
	}

	return out
}

func (c *containerGen) emitTree() {
	if c.plan == nil {
		return
	}

	slog.Debug("Generating container", "container", c.graph.node.Name, "impl", c.impl)

	c.emitStruct()
	c.emitCreator()
	c.emitInitialize()
	c.emitEntryPoints()
	c.emitGetters()

	for _, child := range c.graph.children {
		c.children[child.node.Name].emitTree()
	}
}

func (c *containerGen) emitStruct() {
	buf := &c.file.buf
	fmt.Fprintf(buf, "type %s struct {\n", c.impl)
	if c.parent != nil {
		fmt.Fprintf(buf, "%s *%s\n", parentField, c.parent.impl)
	}
	for _, p := range c.graph.node.Creator {
		fmt.Fprintf(buf, "%s %s\n", p.Name, c.typ(p.Type))
	}
	for _, b := range c.fields() {
		fmt.Fprintf(buf, "%s %s.Provider[%s]\n", c.names[b.Key().ID()], c.rt(), c.typ(b.Key().Type))
	}
	buf.WriteString("}\n\n")
}

func (c *containerGen) emitCreator() {
	buf := &c.file.buf
	node := c.graph.node

	var params, inits []string
	if c.parent != nil {
		params = append(params, parentField+" *"+c.parent.impl)
		inits = append(inits, parentField+": "+parentField)
	}
	for _, p := range node.Creator {
		params = append(params, p.Name+" "+c.typ(p.Type))
		inits = append(inits, p.Name+": "+p.Name)
	}

	if c.parent == nil {
		fmt.Fprintf(buf, "// %s creates the %s container.\n", c.ctor, node.Name)
	}
	fmt.Fprintf(buf, "func %s(%s) %s {\n", c.ctor, strings.Join(params, ", "), c.typ(node.Type))
	fmt.Fprintf(buf, "%s := &%s{%s}\n", receiverName, c.impl, strings.Join(inits, ", "))
	fmt.Fprintf(buf, "%s.initialize()\n", receiverName)
	fmt.Fprintf(buf, "return %s\n}\n\n", receiverName)
}

// emitInitialize creates the delegates of deferred bindings before any provider
// that may capture them.
func (c *containerGen) emitInitialize() {
	buf := &c.file.buf
	deferred := c.graph.sealed.Deferred
	fields := c.fields()

	fmt.Fprintf(buf, "func (%s *%s) initialize() {\n", receiverName, c.impl)
	for _, b := range fields {
		if deferred[b.Key().ID()] {
			fmt.Fprintf(buf, "%s.%s = %s.NewDelegate[%s]()\n", receiverName, c.names[b.Key().ID()], c.rt(), c.typ(b.Key().Type))
		}
	}
	for _, b := range fields {
		id := b.Key().ID()
		if deferred[id] {
			fmt.Fprintf(buf, "%s.SetDelegate[%s](%s.%s, %s)\n", c.rt(), c.typ(b.Key().Type), receiverName, c.names[id], c.fieldInit(b))
			continue
		}
		fmt.Fprintf(buf, "%s.%s = %s\n", receiverName, c.names[id], c.fieldInit(b))
	}
	buf.WriteString("}\n\n")
}

func (c *containerGen) emitEntryPoints() {
	buf := &c.file.buf
	node := c.graph.node

	for _, acc := range node.Accessors {
		fmt.Fprintf(buf, "func (%s *%s) %s() %s {\nreturn %s\n}\n\n", receiverName, c.impl, acc.Name, c.typ(acc.Type), c.expr(acc.Key, receiverName))
	}

	for _, inj := range node.Injectors {
		key := NewTypeKey(c.graph.runtime().MembersInjector(inj.Target), "")
		b, ok := c.binding(key).(*MembersInjectedBinding)
		if !ok {
			c.file.fail(fmt.Errorf("container %s: injector %s has no members binding", node.Name, inj.Name))
			continue
		}
		fmt.Fprintf(buf, "func (%s *%s) %s(target %s) {\n%s}\n\n", receiverName, c.impl, inj.Name, c.typ(inj.Target), c.assignMembers(b.Params(), "target", receiverName))
	}
}

func (c *containerGen) emitGetters() {
	buf := &c.file.buf
	for _, b := range c.graph.sealed.Order {
		key := b.Key()
		if c.plan.Storage(key) != StorageGetter {
			continue
		}

		fmt.Fprintf(buf, "func (%s *%s) %s() %s {\nreturn %s\n}\n\n", receiverName, c.impl, c.names[key.ID()], c.typ(key.Type), c.construct(b, receiverName))

		if name, ok := c.providerGetters[key.ID()]; ok {
			mb := b.(*MultibindingBinding)
			fmt.Fprintf(buf, "func (%s *%s) %s() map[%s]%s.Provider[%s] {\nreturn %s\n}\n\n", receiverName, c.impl, name, c.typ(mb.MapKeyType), c.rt(), c.typ(mb.Elem), c.providersMap(mb, receiverName))
		}
	}
}

// write assembles the file, drops unused imports and formats it.
func (f *fileGen) write(w io.Writer) error {
	var src bytes.Buffer
	fmt.Fprintf(&src, "// Code generated by musubi. DO NOT EDIT.\n\npackage %s\n\n", f.pkgName)

	specs := f.im.Specs()
	if len(specs) > 0 {
		src.WriteString("import (\n")
		for _, spec := range specs {
			if spec.Name != nil {
				fmt.Fprintf(&src, "%s %s\n", spec.Name.Name, spec.Path.Value)
			} else {
				fmt.Fprintf(&src, "%s\n", spec.Path.Value)
			}
		}
		src.WriteString(")\n\n")
	}
	src.Write(f.buf.Bytes())

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", src.Bytes(), parser.ParseComments)
	if err != nil {
		return fmt.Errorf("parse generated code: %w", err)
	}

	for _, spec := range specs {
		importPath, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return fmt.Errorf("import path %s: %w", spec.Path.Value, err)
		}
		if astutil.UsesImport(file, importPath) {
			continue
		}
		name := ""
		if spec.Name != nil {
			name = spec.Name.Name
		}
		astutil.DeleteNamedImport(fset, file, name, importPath)
	}

	if err := format.Node(w, fset, file); err != nil {
		return fmt.Errorf("format generated code: %w", err)
	}

	return nil
}
