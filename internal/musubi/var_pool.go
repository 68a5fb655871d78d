package musubi

import (
	"fmt"
	"go/types"

	"github.com/mazrean/musubi/internal/pkg/strings"
)

// VarPool hands out unique identifiers for the members of a generated container.
type VarPool struct {
	vars map[string]int
}

func NewVarPool() *VarPool {
	return &VarPool{
		vars: make(map[string]int),
	}
}

// Register reserves an existing name so that it is only handed out with a suffix.
func (p *VarPool) Register(name string) {
	if name == "" || name == "_" {
		return
	}
	if count, ok := p.vars[name]; !ok || count == 0 {
		p.vars[name] = 1
	}
}

// Get returns a fresh name derived from the type of key followed by suffix.
func (p *VarPool) Get(key TypeKey, suffix string) string {
	name := p.getBaseName(key.Type)
	if key.Qualifier != "" {
		name = strings.ToLowerCamel(strings.Ident(key.Qualifier)) + strings.ToUpperCamel(name)
	}

	return p.GetName(name + suffix)
}

// GetName returns name, or name with a numeric suffix if it was handed out before.
func (p *VarPool) GetName(name string) string {
	if goReservedKeywords[name] {
		name += "Value"
	}

	count := p.vars[name]
	p.vars[name] = count + 1

	if count == 0 {
		return name
	}

	return fmt.Sprintf("%s%d", name, count-1)
}

// getBaseName derives a base identifier from a type.
func (p *VarPool) getBaseName(t types.Type) string {
	for ptr, ok := t.(*types.Pointer); ok; ptr, ok = t.(*types.Pointer) {
		t = ptr.Elem()
	}

	var baseName string
	switch t := t.(type) {
	case *types.Named:
		if obj := t.Obj(); obj != nil && obj.Pkg() != nil {
			if obj.Pkg().Path() == "context" && obj.Name() == "Context" {
				return "ctx"
			}
			if obj.Pkg().Path() == RuntimePackagePath && t.TypeArgs().Len() == 1 {
				return p.getBaseName(t.TypeArgs().At(0)) + obj.Name()
			}
		}

		baseName = strings.ToLowerCamel(t.Obj().Name())
	case *types.Alias:
		baseName = strings.ToLowerCamel(t.Obj().Name())
	case *types.Basic:
		switch t.Kind() {
		case types.Int, types.Int8, types.Int16, types.Int32, types.Int64,
			types.Uint, types.Uint8, types.Uint16, types.Uint32, types.Uint64,
			types.Float32, types.Float64,
			types.UntypedInt, types.UntypedFloat, types.UntypedRune:
			return "num"
		case types.String, types.UntypedString:
			return "str"
		case types.Bool, types.UntypedBool:
			return "flag"
		case types.Complex64, types.Complex128, types.UntypedComplex:
			return "complex"
		case types.Uintptr, types.UnsafePointer:
			return "ptr"
		default:
			baseName = strings.ToLowerCamel(t.Name())
		}
	case *types.Slice:
		return p.getBaseName(t.Elem()) + "Set"
	case *types.Map:
		return p.getBaseName(t.Elem()) + "Map"
	case *types.Signature:
		if t.Results().Len() == 1 {
			return p.getBaseName(t.Results().At(0).Type()) + "Factory"
		}
		baseName = "fn"
	default:
		baseName = "val"
	}

	if goReservedKeywords[baseName] {
		return baseName + "Value"
	}

	return baseName
}
