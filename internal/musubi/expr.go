package musubi

import (
	"fmt"
	"go/types"
	"strings"
)

// binding returns the binding of key in the graph being generated.
func (c *containerGen) binding(key TypeKey) Binding {
	b, ok := c.graph.Binding(key)
	if !ok {
		c.file.fail(fmt.Errorf("container %s: no binding for %s", c.graph.node.Name, key))
		return &AbsentBinding{bindingBase: bindingBase{key: key}}
	}

	return b
}

// expr renders ck in its requested shape as seen from recv.
func (c *containerGen) expr(ck ContextualKey, recv string) string {
	key := ck.Key
	switch ck.Shape.Kind {
	case ShapeCanonical:
		return c.instance(key, recv)
	case ShapeProvider:
		if ck.Shape.Inner != nil && ck.Shape.Inner.Kind == ShapeLazy {
			return fmt.Sprintf("%s.ProviderOfLazy[%s](%s)", c.rt(), c.typ(key.Type), c.provider(key, recv))
		}
		return c.provider(key, recv)
	case ShapeLazy:
		return fmt.Sprintf("%s.NewLazy[%s](%s)", c.rt(), c.typ(key.Type), c.provider(key, recv))
	case ShapeMap:
		return c.mapExpr(ck, recv)
	}

	c.file.fail(fmt.Errorf("unsupported shape %s of %s", ck.Shape, key))

	return "nil"
}

// instance renders a plain value of key.
func (c *containerGen) instance(key TypeKey, recv string) string {
	id := key.ID()
	switch c.plan.Storage(key) {
	case StorageInstance:
		return recv + "." + c.names[id]
	case StorageField:
		return recv + "." + c.names[id] + ".Get()"
	case StorageGetter:
		return recv + "." + c.names[id] + "()"
	}

	return c.construct(c.binding(key), recv)
}

// provider renders a musubi.Provider of key.
func (c *containerGen) provider(key TypeKey, recv string) string {
	id, t := key.ID(), c.typ(key.Type)
	switch c.plan.Storage(key) {
	case StorageInstance:
		return fmt.Sprintf("%s.InstanceProvider[%s](%s.%s)", c.rt(), t, recv, c.names[id])
	case StorageField:
		return recv + "." + c.names[id]
	case StorageGetter:
		return fmt.Sprintf("%s.ProviderFunc[%s](%s.%s)", c.rt(), t, recv, c.names[id])
	}

	return c.providerFunc(key.Type, c.construct(c.binding(key), recv))
}

func (c *containerGen) providerFunc(typ types.Type, body string) string {
	t := c.typ(typ)
	return fmt.Sprintf("%s.ProviderFunc[%s](func() %s {\nreturn %s\n})", c.rt(), t, t, body)
}

// mapExpr renders a map whose values are wrapped in providers or lazies.
func (c *containerGen) mapExpr(ck ContextualKey, recv string) string {
	var providers string
	if mb, ok := c.binding(ck.Key).(*MultibindingBinding); ok {
		if name, ok := c.providerGetters[ck.Key.ID()]; ok {
			providers = recv + "." + name + "()"
		} else {
			providers = c.providersMap(mb, recv)
		}
	} else {
		providers = fmt.Sprintf("%s.ProviderMap(%s)", c.rt(), c.instance(ck.Key, recv))
	}

	if ck.Shape.Inner != nil && ck.Shape.Inner.Kind == ShapeLazy {
		return fmt.Sprintf("%s.LazyMap(%s)", c.rt(), providers)
	}

	return providers
}

// arg renders the value passed for a dependency, falling back to its default.
func (c *containerGen) arg(p Param, recv string) string {
	if c.binding(p.Key.Key).Kind() == KindAbsent {
		if p.Default == nil {
			c.file.fail(fmt.Errorf("container %s: %s is absent and %s has no default", c.graph.node.Name, p.Key.Key, p.Name))
			return "nil"
		}
		return types.ExprString(p.Default)
	}

	return c.expr(p.Key, recv)
}

// construct renders the expression building b from its dependencies.
func (c *containerGen) construct(b Binding, recv string) string {
	switch b := b.(type) {
	case *ConstructorBinding:
		return c.constructorCall(b, recv, nil)
	case *ProvidedBinding:
		return c.invoke(b, recv)
	case *AliasBinding:
		if b.Target.Equal(b.Key()) {
			c.file.fail(fmt.Errorf("alias %s resolves to itself", b.Key()))
			return "nil"
		}
		return c.instance(b.Target, recv)
	case *BoundInstanceBinding:
		return recv + "." + b.Field
	case *MultibindingBinding:
		return c.collection(b, recv)
	case *MembersInjectedBinding:
		t := c.typ(b.Target)
		return fmt.Sprintf("%s.MembersInjectorFunc[%s](func(target %s) {\n%s})", c.rt(), t, t, c.assignMembers(b.Params(), "target", recv))
	case *OptionalBinding:
		t := c.typ(b.Inner.Type)
		if c.binding(b.Inner).Kind() == KindAbsent {
			return fmt.Sprintf("%s.None[%s]()", c.rt(), t)
		}
		return fmt.Sprintf("%s.Some[%s](%s)", c.rt(), t, c.instance(b.Inner, recv))
	case *GraphDependencyBinding:
		if b.Parent {
			return c.parent.instance(b.Key(), recv+"."+parentField)
		}
		call := fmt.Sprintf("%s.%s.%s()", recv, b.Graph, b.Accessor)
		switch b.AccessorShape.Kind {
		case ShapeProvider, ShapeLazy:
			return call + ".Get()"
		case ShapeMap:
			return fmt.Sprintf("%s.Values(%s)", c.rt(), call)
		}
		return call
	case *GraphExtensionBinding:
		return c.extension(b, recv)
	case *AssistedFactoryBinding:
		return c.assistedFactory(b, recv)
	case *AbsentBinding:
		c.file.fail(fmt.Errorf("container %s: absent %s has no value", c.graph.node.Name, b.Key()))
		return "nil"
	}

	c.file.fail(fmt.Errorf("unsupported binding %T", b))

	return "nil"
}

// fieldInit renders the provider stored in the field of b.
func (c *containerGen) fieldInit(b Binding) string {
	recv := receiverName
	switch b := b.(type) {
	case *GraphDependencyBinding:
		if b.Parent {
			return c.parent.provider(b.Key(), recv+"."+parentField)
		}

		t := c.typ(b.Key().Type)
		call := fmt.Sprintf("%s.%s.%s", recv, b.Graph, b.Accessor)
		switch b.AccessorShape.Kind {
		case ShapeProvider:
			return call + "()"
		case ShapeLazy:
			return fmt.Sprintf("%s.ProviderFunc[%s](%s().Get)", c.rt(), t, call)
		case ShapeMap:
			if b.AccessorShape.Inner != nil && b.AccessorShape.Inner.Kind == ShapeProvider {
				return c.providerFunc(b.Key().Type, fmt.Sprintf("%s.Values(%s())", c.rt(), call))
			}
			c.file.fail(fmt.Errorf("accessor %s of %s: a map of lazies cannot be unwrapped", b.Accessor, b.Graph))
			return "nil"
		}
		return fmt.Sprintf("%s.ProviderFunc[%s](%s)", c.rt(), t, call)
	case *AssistedFactoryBinding:
		return fmt.Sprintf("%s.InstanceProvider[%s](%s)", c.rt(), c.typ(b.Key().Type), c.assistedFactory(b, recv))
	}

	p := c.providerFunc(b.Key().Type, c.construct(b, recv))
	if b.Scope() != "" {
		return fmt.Sprintf("%s.DoubleCheck[%s](%s)", c.rt(), c.typ(b.Key().Type), p)
	}

	return p
}

// constructorCall invokes an injected constructor and assigns its members.
// assisted holds the caller supplied arguments in declaration order.
func (c *containerGen) constructorCall(b *ConstructorBinding, recv string, assisted []string) string {
	args := make([]string, 0, len(b.Arguments()))
	for _, p := range b.Arguments() {
		if p.Assisted {
			if len(assisted) == 0 {
				c.file.fail(fmt.Errorf("assisted param %s of %s has no factory argument", p.Name, b.Key()))
				return "nil"
			}
			args = append(args, assisted[0])
			assisted = assisted[1:]
			continue
		}
		args = append(args, c.arg(p, recv))
	}
	call := fmt.Sprintf("%s(%s)", c.funcRef(b.Func), strings.Join(args, ", "))

	members := b.Members()
	if len(members) == 0 {
		return call
	}

	t := c.typ(b.Key().Type)
	return fmt.Sprintf("func() %s {\nv := %s\n%sreturn v\n}()", t, call, c.assignMembers(members, "v", recv))
}

func (c *containerGen) assignMembers(params []Param, target, recv string) string {
	var sb strings.Builder
	for _, p := range params {
		fmt.Fprintf(&sb, "%s.%s = %s\n", target, p.Field, c.arg(p, recv))
	}

	return sb.String()
}

func (c *containerGen) invoke(b *ProvidedBinding, recv string) string {
	params := b.Params()
	args := make([]string, 0, len(params))
	for _, p := range params {
		args = append(args, c.arg(p, recv))
	}

	inv := b.Invocation
	switch inv.Kind {
	case InvokeFunc:
		return fmt.Sprintf("%s(%s)", c.funcRef(inv.Func), strings.Join(args, ", "))
	case InvokeMethod:
		return fmt.Sprintf("%s.%s(%s)", args[0], inv.Method, strings.Join(args[1:], ", "))
	case InvokeValue:
		return types.ExprString(inv.Value)
	case InvokeStruct:
		t := b.Key().Type
		prefix := ""
		if ptr, ok := types.Unalias(t).(*types.Pointer); ok {
			t, prefix = ptr.Elem(), "&"
		}
		fields := make([]string, 0, len(params))
		for i, p := range params {
			fields = append(fields, p.Field+": "+args[i])
		}
		return fmt.Sprintf("%s%s{%s}", prefix, c.typ(t), strings.Join(fields, ", "))
	case InvokeField:
		return fmt.Sprintf("%s.%s", args[0], inv.Field)
	}

	c.file.fail(fmt.Errorf("unsupported invocation of %s", b.Key()))

	return "nil"
}

func (c *containerGen) funcRef(ref Ref) string {
	if ref.Path == "" || ref.Path == c.file.self {
		return ref.Name
	}

	return c.file.im.ByPath(ref.Path) + "." + ref.Name
}

// collection renders the value of a multibinding.
// Contributors of several elements need the factory builders.
func (c *containerGen) collection(b *MultibindingBinding, recv string) string {
	rt := c.rt()
	elem := c.typ(b.Elem)

	var sb strings.Builder
	switch b.Collection {
	case CollectionSet:
		if !b.HasCollectionContributors() {
			fmt.Fprintf(&sb, "%s.NewSetBuilder[%s](%d)", rt, elem, len(b.Contributions))
			for _, ct := range b.Contributions {
				fmt.Fprintf(&sb, ".Add(%s)", c.instance(ct.Key, recv))
			}
			sb.WriteString(".Build()")
			return sb.String()
		}

		fmt.Fprintf(&sb, "%s.NewSetFactory[%s]()", rt, elem)
		for _, ct := range b.Contributions {
			if ct.Elements {
				fmt.Fprintf(&sb, ".AddCollectionProvider(%s)", c.provider(ct.Key, recv))
			} else {
				fmt.Fprintf(&sb, ".AddProvider(%s)", c.provider(ct.Key, recv))
			}
		}
		sb.WriteString(".Build().Get()")
	case CollectionMap:
		key := c.typ(b.MapKeyType)
		if !b.HasCollectionContributors() {
			fmt.Fprintf(&sb, "map[%s]%s{", key, elem)
			for _, ct := range b.Contributions {
				fmt.Fprintf(&sb, "\n%s: %s,", types.ExprString(ct.MapKey), c.instance(ct.Key, recv))
			}
			if len(b.Contributions) > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString("}")
			return sb.String()
		}

		fmt.Fprintf(&sb, "%s.NewMapFactory[%s, %s]()", rt, key, elem)
		c.putEntries(&sb, b, recv)
		sb.WriteString(".Build().Get()")
	}

	return sb.String()
}

// providersMap renders a map multibinding as a map of providers.
func (c *containerGen) providersMap(b *MultibindingBinding, recv string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s.NewMapProviderFactory[%s, %s]()", c.rt(), c.typ(b.MapKeyType), c.typ(b.Elem))
	c.putEntries(&sb, b, recv)
	sb.WriteString(".Build().Get()")

	return sb.String()
}

func (c *containerGen) putEntries(sb *strings.Builder, b *MultibindingBinding, recv string) {
	for _, ct := range b.Contributions {
		if ct.Elements {
			fmt.Fprintf(sb, ".PutAll(%s)", c.provider(ct.Key, recv))
			continue
		}
		fmt.Fprintf(sb, ".Put(%s, %s)", types.ExprString(ct.MapKey), c.provider(ct.Key, recv))
	}
}

func (c *containerGen) extension(b *GraphExtensionBinding, recv string) string {
	child, ok := c.children[b.Child]
	if !ok {
		c.file.fail(fmt.Errorf("container %s: extension %s was not generated", c.graph.node.Name, b.Child))
		return "nil"
	}
	if len(b.Args) == 0 {
		return fmt.Sprintf("%s(%s)", child.ctor, recv)
	}

	params := make([]string, 0, len(b.Args))
	names := make([]string, 0, len(b.Args)+1)
	names = append(names, recv)
	for _, a := range b.Args {
		params = append(params, a.Name+" "+c.typ(a.Type))
		names = append(names, a.Name)
	}

	return fmt.Sprintf("func(%s) %s {\nreturn %s(%s)\n}", strings.Join(params, ", "), c.typ(b.ChildType), child.ctor, strings.Join(names, ", "))
}

// assistedFactory renders a func literal that completes the assisted constructor
// with the factory's arguments.
func (c *containerGen) assistedFactory(b *AssistedFactoryBinding, recv string) string {
	target, ok := c.binding(b.Target).(*ConstructorBinding)
	if !ok {
		c.file.fail(fmt.Errorf("assisted factory %s: %s is not an injected constructor", b.Key(), b.Target))
		return "nil"
	}

	sig := b.Signature
	params := make([]string, 0, sig.Params().Len())
	args := make([]string, 0, sig.Params().Len())
	for i := range sig.Params().Len() {
		name := fmt.Sprintf("p%d", i)
		params = append(params, name+" "+c.typ(sig.Params().At(i).Type()))
		args = append(args, name)
	}
	results := make([]string, 0, sig.Results().Len())
	for i := range sig.Results().Len() {
		results = append(results, c.typ(sig.Results().At(i).Type()))
	}

	result := strings.Join(results, ", ")
	if len(results) > 1 {
		result = "(" + result + ")"
	}
	lit := fmt.Sprintf("func(%s) %s {\nreturn %s\n}", strings.Join(params, ", "), result, c.constructorCall(target, recv, args))
	if _, named := types.Unalias(b.Key().Type).(*types.Named); named {
		return fmt.Sprintf("%s(%s)", c.typ(b.Key().Type), lit)
	}

	return lit
}
