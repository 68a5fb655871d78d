package legacy

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mazrean/musubi/internal/musubi"
)

const bundleHeader = "# Imported from google/wire provider sets by musubi import-wire.\n"

// Writer writes imported bundles.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) Encode(out io.Writer, b *musubi.Bundle) error {
	if _, err := io.WriteString(out, bundleHeader); err != nil {
		return err
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(b); err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	return enc.Close()
}

// Write writes b to path.
func (w *Writer) Write(b *musubi.Bundle, path string) error {
	var buf bytes.Buffer
	if err := w.Encode(&buf, b); err != nil {
		return err
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}
