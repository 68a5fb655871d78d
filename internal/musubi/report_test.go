package musubi

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestNewReport(t *testing.T) {
	t.Parallel()

	_, g := mustGraph(t, cycleBody("musubi.Lazy[*A]"), "App")
	r := NewReport(g)

	if r.Container != "App" {
		t.Errorf("expected container App, got %s", r.Container)
	}
	if len(r.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(r.Bindings))
	}

	b, a := r.Bindings[0], r.Bindings[1]
	if b.Key != "*app.B" || a.Key != "*app.A" {
		t.Errorf("expected build order [*app.B *app.A], got [%s %s]", b.Key, a.Key)
	}
	if a.Kind != "constructor" || !a.Deferred {
		t.Errorf("expected a deferred constructor, got %+v", a)
	}
	if a.Storage != StorageField.String() {
		t.Errorf("expected the deferred binding in a field, got %s", a.Storage)
	}
	if b.Deferred {
		t.Error("expected *app.B not to be deferred")
	}

	total := 0
	for _, n := range r.Counts {
		total += n
	}
	if total != 2 {
		t.Errorf("expected counts over 2 bindings, got %v", r.Counts)
	}
}

func TestWriteReports(t *testing.T) {
	t.Parallel()

	_, g := mustGraph(t, cycleBody("musubi.Lazy[*A]"), "App")
	reports := []*Report{NewReport(g)}

	t.Run("text", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := WriteReportsText(&buf, reports); err != nil {
			t.Fatalf("WriteReportsText() error = %v", err)
		}

		out := buf.String()
		for _, want := range []string{"App\n", "KEY", "*app.A", "constructor (deferred)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected output to contain %q:\n%s", want, out)
			}
		}
	})

	t.Run("yaml", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := WriteReportsYAML(&buf, reports); err != nil {
			t.Fatalf("WriteReportsYAML() error = %v", err)
		}

		var decoded []*Report
		if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("Unmarshal() error = %v", err)
		}
		if len(decoded) != 1 || decoded[0].Container != "App" || len(decoded[0].Bindings) != 2 {
			t.Errorf("unexpected decoded reports %+v", decoded)
		}
	})
}
