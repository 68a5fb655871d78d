package musubi

import (
	"errors"
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

var (
	ErrDuplicateBinding             = zerr.New("duplicate binding")
	ErrMissingBinding               = zerr.New("missing binding")
	ErrCompositionCycle             = zerr.New("container composition cycle")
	ErrValueCycle                   = zerr.New("value cycle")
	ErrScopeMismatch                = zerr.New("scope mismatch")
	ErrAssistedMisuse               = zerr.New("assisted injection misuse")
	ErrEmptyMultibinding            = zerr.New("empty multibinding")
	ErrMultipleInjectedConstructors = zerr.New("multiple injected constructors")

	ErrInvalidBundle       = zerr.New("invalid fact bundle")
	ErrUnknownType         = zerr.New("unknown type")
	ErrUnknownModule       = zerr.New("unknown module")
	ErrUnknownContainer    = zerr.New("unknown container")
	ErrUnsupportedMetadata = zerr.New("unsupported metadata version")
)

// Diagnostic is a graph error reported against a declaration.
type Diagnostic struct {
	// Kind is one of the Err* sentinels above.
	Kind         error
	Container    string
	Message      string
	Declarations []string
	// Trace is the dependency path from the requesting root to the failing key.
	Trace []string
	Hints []string
}

func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s: %s", d.Container, d.Kind, d.Message)
	for _, decl := range d.Declarations {
		fmt.Fprintf(&b, "\n\tdeclared by %s", decl)
	}
	if len(d.Trace) > 0 {
		fmt.Fprintf(&b, "\n\ttrace: %s", strings.Join(d.Trace, " -> "))
	}
	for _, hint := range d.Hints {
		fmt.Fprintf(&b, "\n\thint: %s", hint)
	}

	return b.String()
}

func (d *Diagnostic) Unwrap() error {
	return d.Kind
}

// Diagnostics accumulates the diagnostics of one container.
type Diagnostics struct {
	container string
	list      []*Diagnostic
}

func NewDiagnostics(container string) *Diagnostics {
	return &Diagnostics{container: container}
}

func (d *Diagnostics) Report(kind error, message string, opts ...DiagnosticOption) *Diagnostic {
	diag := &Diagnostic{
		Kind:      kind,
		Container: d.container,
		Message:   message,
	}
	for _, opt := range opts {
		opt(diag)
	}
	d.list = append(d.list, diag)

	return diag
}

func (d *Diagnostics) Len() int {
	return len(d.list)
}

func (d *Diagnostics) List() []*Diagnostic {
	return d.list
}

// Err joins the recorded diagnostics, or returns nil when there are none.
func (d *Diagnostics) Err() error {
	if len(d.list) == 0 {
		return nil
	}

	errs := make([]error, 0, len(d.list))
	for _, diag := range d.list {
		errs = append(errs, diag)
	}

	return errors.Join(errs...)
}

type DiagnosticOption func(*Diagnostic)

func WithDeclarations(decls ...string) DiagnosticOption {
	return func(d *Diagnostic) {
		d.Declarations = append(d.Declarations, decls...)
	}
}

func WithTrace(trace []string) DiagnosticOption {
	return func(d *Diagnostic) {
		d.Trace = trace
	}
}

func WithHints(hints ...string) DiagnosticOption {
	return func(d *Diagnostic) {
		d.Hints = append(d.Hints, hints...)
	}
}

// DiagnosticsOf extracts every Diagnostic from a possibly joined or wrapped error.
func DiagnosticsOf(err error) []*Diagnostic {
	switch e := err.(type) {
	case nil:
		return nil
	case *Diagnostic:
		return []*Diagnostic{e}
	case interface{ Unwrap() []error }:
		var out []*Diagnostic
		for _, inner := range e.Unwrap() {
			out = append(out, DiagnosticsOf(inner)...)
		}
		return out
	case interface{ Unwrap() error }:
		return DiagnosticsOf(e.Unwrap())
	}

	return nil
}
