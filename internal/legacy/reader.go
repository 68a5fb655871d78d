package legacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
	"golang.org/x/tools/go/packages"

	"github.com/mazrean/musubi/internal/musubi"
)

var (
	ErrLoad       = zerr.New("load wire packages")
	ErrNoPackages = zerr.New("no packages matched")
)

// LoadFunc loads type checked packages with syntax.
type LoadFunc func(ctx context.Context, dir string, patterns []string) ([]*Package, error)

type Option func(*Reader)

func WithLoader(load LoadFunc) Option {
	return func(r *Reader) {
		r.load = load
	}
}

// Reader imports the google/wire provider sets named by a bundle.
type Reader struct {
	converter *Converter
	load      LoadFunc
}

func NewReader(opts ...Option) *Reader {
	r := &Reader{
		converter: NewConverter(),
		load:      LoadPackages,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Modules converts the sets of the bundle's legacy wire packages.
func (r *Reader) Modules(ctx context.Context, b *musubi.Bundle) ([]*musubi.ModuleDecl, map[string]string, error) {
	if b.Legacy == nil || len(b.Legacy.Wire) == 0 {
		return nil, nil, nil
	}

	pkgs, err := r.load(ctx, filepath.Dir(b.Path), b.Legacy.Wire)
	if err != nil {
		return nil, nil, err
	}

	res := r.converter.Convert(b, pkgs)
	logWarnings(res.Warnings)
	slog.Debug("Imported wire sets", "bundle", b.Path, "modules", len(res.Modules))

	return res.Modules, res.Imports, nil
}

// Import builds a bundle for the first matched package declaring its wire sets as modules.
func (r *Reader) Import(ctx context.Context, dir string, patterns []string) (*musubi.Bundle, []Warning, error) {
	pkgs, err := r.load(ctx, dir, patterns)
	if err != nil {
		return nil, nil, err
	}
	if len(pkgs) == 0 {
		return nil, nil, zerr.With(zerr.Wrap(ErrNoPackages, "import wire sets"), "patterns", strings.Join(patterns, " "))
	}

	// The sets are written out as modules, so the packages are only loaded for their types.
	b := &musubi.Bundle{
		Version: musubi.BundleVersion,
		Package: musubi.PackageDecl{Path: pkgs[0].Types.Path(), Name: pkgs[0].Types.Name()},
		Load:    patterns,
	}
	res := r.converter.Convert(b, pkgs)
	b.Modules = res.Modules
	if len(res.Imports) > 0 {
		b.Imports = res.Imports
	}

	return b, res.Warnings, nil
}

func logWarnings(warnings []Warning) {
	for _, w := range warnings {
		slog.Warn(w.Message, "code", w.Code.String(), "pos", w.Pos)
	}
}

// LoadPackages loads packages with go/packages and reports their errors.
func LoadPackages(ctx context.Context, dir string, patterns []string) ([]*Package, error) {
	cfg := &packages.Config{
		Context: ctx,
		Dir:     dir,
		Mode: packages.NeedTypes | packages.NeedSyntax | packages.NeedTypesInfo |
			packages.NeedName | packages.NeedFiles | packages.NeedImports,
	}

	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load packages: %w", err)
	}

	out := make([]*Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		if len(pkg.Errors) > 0 {
			return nil, convertPackageError(pkg.Errors)
		}
		out = append(out, &Package{
			Types: pkg.Types,
			Info:  pkg.TypesInfo,
			Fset:  pkg.Fset,
			Files: pkg.Syntax,
		})
	}

	return out, nil
}

func convertPackageError(pkgErrs []packages.Error) error {
	errs := make([]error, 0, len(pkgErrs))
	for _, pkgErr := range pkgErrs {
		err := zerr.With(zerr.Wrap(ErrLoad, pkgErr.Msg), "kind", loadErrorKind(pkgErr.Kind))
		if pkgErr.Pos != "" {
			err = zerr.With(err, "pos", pkgErr.Pos)
		}
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func loadErrorKind(kind packages.ErrorKind) string {
	switch kind {
	case packages.ListError:
		return "list"
	case packages.ParseError:
		return "syntax"
	case packages.TypeError:
		return "type"
	default:
		return "unknown"
	}
}
