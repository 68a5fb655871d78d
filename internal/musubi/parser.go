package musubi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// Bundle is the normalized description of the declarations of one package.
type Bundle struct {
	Version    int               `yaml:"version" validate:"required,eq=1"`
	Package    PackageDecl       `yaml:"package"`
	Imports    map[string]string `yaml:"imports,omitempty" validate:"dive,keys,required,endkeys,required"`
	Load       []string          `yaml:"load,omitempty"`
	Legacy     *LegacyDecl       `yaml:"legacy,omitempty"`
	Types      []*TypeDecl       `yaml:"types,omitempty" validate:"dive"`
	Modules    []*ModuleDecl     `yaml:"modules,omitempty" validate:"dive"`
	Containers []*ContainerDecl  `yaml:"containers,omitempty" validate:"dive"`

	// Path is the file the bundle was read from.
	Path string `yaml:"-"`
}

type PackageDecl struct {
	Path string `yaml:"path" validate:"required"`
	Name string `yaml:"name" validate:"required"`
}

type LegacyDecl struct {
	Wire []string `yaml:"wire,omitempty"`
}

// TypeDecl carries the facts about an injectable or referenced type.
// Unqualified names declare a type in the bundle package when it is not loaded.
type TypeDecl struct {
	Name       string             `yaml:"name" validate:"required"`
	Kind       string             `yaml:"kind,omitempty" validate:"omitempty,oneof=struct interface func basic"`
	Underlying string             `yaml:"underlying,omitempty"`
	Implements []string           `yaml:"implements,omitempty"`
	Embeds     []string           `yaml:"embeds,omitempty"`
	Scope      string             `yaml:"scope,omitempty"`
	Inject     []*ConstructorDecl `yaml:"inject,omitempty" validate:"dive"`
	Members    []*ParamDecl       `yaml:"members,omitempty" validate:"dive"`
	Assisted   *AssistedDecl      `yaml:"assisted,omitempty"`
}

type ConstructorDecl struct {
	Func    string       `yaml:"func" validate:"required"`
	Returns string       `yaml:"returns,omitempty"`
	Params  []*ParamDecl `yaml:"params,omitempty" validate:"dive"`
}

type ParamDecl struct {
	Name      string `yaml:"name,omitempty"`
	Type      string `yaml:"type" validate:"required"`
	Qualifier string `yaml:"qualifier,omitempty"`
	Default   string `yaml:"default,omitempty"`
	Assisted  bool   `yaml:"assisted,omitempty"`
	Field     string `yaml:"field,omitempty"`
}

type AssistedDecl struct {
	Factory string `yaml:"factory" validate:"required"`
}

// ModuleDecl is a binding-provider module.
type ModuleDecl struct {
	Name string `yaml:"name" validate:"required"`
	// Type is the receiver type of method providers.
	Type       string           `yaml:"type,omitempty"`
	Includes   []string         `yaml:"includes,omitempty"`
	Provides   []*ProvideDecl   `yaml:"provides,omitempty" validate:"dive"`
	Binds      []*BindDecl      `yaml:"binds,omitempty" validate:"dive"`
	Multibinds []*MultibindDecl `yaml:"multibinds,omitempty" validate:"dive"`
	Optionals  []*OptionalDecl  `yaml:"optionals,omitempty" validate:"dive"`
}

type ProvideDecl struct {
	Name            string       `yaml:"name,omitempty"`
	Type            string       `yaml:"type" validate:"required"`
	Qualifier       string       `yaml:"qualifier,omitempty"`
	Scope           string       `yaml:"scope,omitempty"`
	Func            string       `yaml:"func,omitempty"`
	Method          string       `yaml:"method,omitempty"`
	Value           string       `yaml:"value,omitempty"`
	Struct          bool         `yaml:"struct,omitempty"`
	Field           string       `yaml:"field,omitempty"`
	Source          string       `yaml:"source,omitempty" validate:"required_with=Field"`
	SourceQualifier string       `yaml:"sourceQualifier,omitempty"`
	Params          []*ParamDecl `yaml:"params,omitempty" validate:"dive"`
	Into            string       `yaml:"into,omitempty" validate:"omitempty,oneof=set map"`
	Elements        bool         `yaml:"elements,omitempty"`
	MapKey          string       `yaml:"mapKey,omitempty"`
	MapKeyType      string       `yaml:"mapKeyType,omitempty"`
}

type BindDecl struct {
	Name            string `yaml:"name,omitempty"`
	Type            string `yaml:"type" validate:"required"`
	Qualifier       string `yaml:"qualifier,omitempty"`
	Source          string `yaml:"source" validate:"required"`
	SourceQualifier string `yaml:"sourceQualifier,omitempty"`
	Into            string `yaml:"into,omitempty" validate:"omitempty,oneof=set map"`
	Elements        bool   `yaml:"elements,omitempty"`
	MapKey          string `yaml:"mapKey,omitempty"`
	MapKeyType      string `yaml:"mapKeyType,omitempty"`
}

type MultibindDecl struct {
	Type       string `yaml:"type" validate:"required"`
	Qualifier  string `yaml:"qualifier,omitempty"`
	AllowEmpty bool   `yaml:"allowEmpty,omitempty"`
}

type OptionalDecl struct {
	Type      string `yaml:"type" validate:"required"`
	Qualifier string `yaml:"qualifier,omitempty"`
}

// ContainerDecl is a container ("graph") exposing accessors and injectors.
type ContainerDecl struct {
	Name string `yaml:"name" validate:"required"`
	// Type is the container interface. It defaults to Name.
	Type       string              `yaml:"type,omitempty"`
	Scopes     []string            `yaml:"scopes,omitempty"`
	Extends    []string            `yaml:"extends,omitempty"`
	Modules    []string            `yaml:"modules,omitempty"`
	Creator    []*CreatorParamDecl `yaml:"creator,omitempty" validate:"dive"`
	Provides   []*ProvideDecl      `yaml:"provides,omitempty" validate:"dive"`
	Binds      []*BindDecl         `yaml:"binds,omitempty" validate:"dive"`
	Multibinds []*MultibindDecl    `yaml:"multibinds,omitempty" validate:"dive"`
	Optionals  []*OptionalDecl     `yaml:"optionals,omitempty" validate:"dive"`
	Accessors  []*AccessorDecl     `yaml:"accessors,omitempty" validate:"dive"`
	Injectors  []*InjectorDecl     `yaml:"injectors,omitempty" validate:"dive"`
	Extensions []string            `yaml:"extensions,omitempty"`
	Extension  bool                `yaml:"extension,omitempty"`
	Dynamic    *DynamicDecl        `yaml:"dynamic,omitempty"`
}

type CreatorKind string

const (
	CreatorInstance CreatorKind = "instance"
	CreatorGraph    CreatorKind = "graph"
	CreatorModule   CreatorKind = "module"
)

type CreatorParamDecl struct {
	Name      string      `yaml:"name" validate:"required"`
	Type      string      `yaml:"type" validate:"required"`
	Qualifier string      `yaml:"qualifier,omitempty"`
	Kind      CreatorKind `yaml:"kind,omitempty" validate:"omitempty,oneof=instance graph module"`
}

type AccessorDecl struct {
	Name      string `yaml:"name" validate:"required"`
	Type      string `yaml:"type" validate:"required"`
	Qualifier string `yaml:"qualifier,omitempty"`
}

type InjectorDecl struct {
	Name   string `yaml:"name" validate:"required"`
	Target string `yaml:"target" validate:"required"`
}

// DynamicDecl instantiates Base with extra modules whose bindings always win.
type DynamicDecl struct {
	Base    string   `yaml:"base" validate:"required"`
	Modules []string `yaml:"modules" validate:"min=1"`
}

func (c *ContainerDecl) TypeName() string {
	if c.Type != "" {
		return c.Type
	}

	return c.Name
}

// Parser reads and validates fact bundles.
type Parser struct {
	validate *validator.Validate
}

func NewParser() *Parser {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateProvideDecl, ProvideDecl{})
	v.RegisterStructValidation(validateContributionDecl, BindDecl{})

	return &Parser{validate: v}
}

// ParseFile reads the bundle at filename.
func (p *Parser) ParseFile(filename string) (*Bundle, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read bundle %s: %w", filename, err)
	}

	b, err := p.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, zerr.With(err, "file", filename)
	}
	b.Path = filename

	return b, nil
}

// Parse decodes and validates a bundle.
func (p *Parser) Parse(r io.Reader) (*Bundle, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var b Bundle
	if err := dec.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, zerr.Wrap(ErrInvalidBundle, "empty bundle")
		}
		return nil, zerr.Wrap(ErrInvalidBundle, err.Error())
	}

	if err := p.validate.Struct(&b); err != nil {
		return nil, zerr.Wrap(ErrInvalidBundle, formatValidationError(err))
	}

	if err := checkNames(&b); err != nil {
		return nil, err
	}

	slog.Debug("Parsed bundle", "package", b.Package.Path, "modules", len(b.Modules), "containers", len(b.Containers))

	return &b, nil
}

func validateProvideDecl(sl validator.StructLevel) {
	decl := sl.Current().Interface().(ProvideDecl)

	invocations := 0
	for _, set := range []bool{decl.Func != "", decl.Method != "", decl.Value != "", decl.Struct, decl.Field != ""} {
		if set {
			invocations++
		}
	}
	if invocations != 1 {
		sl.ReportError(decl.Func, "func", "Func", "invocation", "")
	}
	if decl.Into == "map" && decl.MapKey == "" && !decl.Elements {
		sl.ReportError(decl.MapKey, "mapKey", "MapKey", "required_with_map", "")
	}
}

func validateContributionDecl(sl validator.StructLevel) {
	decl := sl.Current().Interface().(BindDecl)
	if decl.Into == "map" && decl.MapKey == "" && !decl.Elements {
		sl.ReportError(decl.MapKey, "mapKey", "MapKey", "required_with_map", "")
	}
}

func formatValidationError(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}

	return strings.Join(msgs, "; ")
}

func formatFieldError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required", "required_with":
		return fmt.Sprintf("%s is required", field)
	case "eq":
		return fmt.Sprintf("%s must be %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, e.Param())
	case "invocation":
		return fmt.Sprintf("%s must set exactly one of func, method, value, struct or field", strings.TrimSuffix(e.StructNamespace(), ".Func"))
	case "required_with_map":
		return fmt.Sprintf("%s is required for map contributions", field)
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, e.Tag())
	}
}

func checkNames(b *Bundle) error {
	modules := make(map[string]bool, len(b.Modules))
	for _, m := range b.Modules {
		if modules[m.Name] {
			return zerr.With(zerr.Wrap(ErrInvalidBundle, "duplicate module name"), "module", m.Name)
		}
		modules[m.Name] = true
	}

	containers := make(map[string]bool, len(b.Containers))
	for _, c := range b.Containers {
		if containers[c.Name] {
			return zerr.With(zerr.Wrap(ErrInvalidBundle, "duplicate container name"), "container", c.Name)
		}
		containers[c.Name] = true
	}

	return nil
}
