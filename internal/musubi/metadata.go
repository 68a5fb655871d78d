package musubi

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// SummaryAccessor is an accessor of a summarized container.
type SummaryAccessor struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Qualifier string `yaml:"qualifier,omitempty"`
}

// Summary is the resolved shape of a generated container, read by the node
// builders of containers that include it from another package.
type Summary struct {
	Version   int    `yaml:"version"`
	Container string `yaml:"container"`
	Type      string `yaml:"type"`
	Package   string `yaml:"package"`
	// Imports maps the package names used in Type and Accessors to import paths.
	Imports   map[string]string `yaml:"imports,omitempty"`
	Scopes    []string          `yaml:"scopes,omitempty"`
	Accessors []SummaryAccessor `yaml:"accessors,omitempty"`
	Exposed   []string          `yaml:"exposed,omitempty"`
	// Bindings counts the reachable bindings per storage kind.
	Bindings map[string]int `yaml:"bindings,omitempty"`
	// Consumed lists the declarations the container depends on.
	Consumed    []string `yaml:"consumed,omitempty"`
	Fingerprint string   `yaml:"fingerprint"`
}

// NewSummary summarizes a sealed graph.
func NewSummary(g *BindingGraph, plan *Plan, consumed []string) (*Summary, error) {
	node := g.node
	im := NewImportSet("", g.resolver().Imports())

	typ, err := im.TypeString(node.Type)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", node.Name, err)
	}

	s := &Summary{
		Version:   metadataVersion,
		Container: node.Name,
		Type:      typ,
		Package:   g.resolver().Package().Path(),
		Scopes:    slices.Clone(node.Scopes),
		Bindings:  plan.Counts(),
		Consumed:  slices.Clone(consumed),
	}
	for _, acc := range node.Accessors {
		t, err := im.TypeString(acc.Type)
		if err != nil {
			return nil, fmt.Errorf("summarize %s accessor %s: %w", node.Name, acc.Name, err)
		}
		s.Accessors = append(s.Accessors, SummaryAccessor{Name: acc.Name, Type: t, Qualifier: acc.Key.Key.Qualifier})
	}
	// Accessor keys first, then the keys extensions read from this container.
	seen := make(map[string]bool)
	expose := func(key TypeKey) error {
		if seen[key.ID()] {
			return nil
		}
		seen[key.ID()] = true
		t, err := im.TypeString(key.Type)
		if err != nil {
			return fmt.Errorf("summarize %s exposed %s: %w", node.Name, key, err)
		}
		if key.Qualifier != "" {
			t = "@" + key.Qualifier + " " + t
		}
		s.Exposed = append(s.Exposed, t)
		return nil
	}
	for _, acc := range node.Accessors {
		if err := expose(acc.Key.Key); err != nil {
			return nil, err
		}
	}
	for key := range g.Exposed() {
		if strings.Contains(key.Qualifier, contributionMarker) {
			continue
		}
		if err := expose(key); err != nil {
			return nil, err
		}
	}

	s.Imports = make(map[string]string)
	for name, p := range im.Aliases() {
		if usesName(s, name) {
			s.Imports[name] = p
		}
	}
	s.Fingerprint = s.fingerprint()

	return s, nil
}

func usesName(s *Summary, name string) bool {
	prefix := name + "."
	if strings.Contains(s.Type, prefix) {
		return true
	}
	for _, a := range s.Accessors {
		if strings.Contains(a.Type, prefix) {
			return true
		}
	}
	for _, e := range s.Exposed {
		if strings.Contains(e, prefix) {
			return true
		}
	}

	return false
}

// fingerprint hashes the parts of the summary dependents compile against.
func (s *Summary) fingerprint() string {
	h := xxhash.New()
	write := func(parts ...string) {
		for _, p := range parts {
			_, _ = h.WriteString(p)
			_, _ = h.WriteString("\x00")
		}
	}

	write(s.Container, s.Type, s.Package)
	for _, name := range slices.Sorted(maps.Keys(s.Imports)) {
		write(name, s.Imports[name])
	}
	write(s.Scopes...)
	for _, a := range s.Accessors {
		write(a.Name, a.Type, a.Qualifier)
	}
	write(s.Exposed...)

	return strconv.FormatUint(h.Sum64(), 16)
}

// Verify checks the version and fingerprint of a summary read from disk.
func (s *Summary) Verify() error {
	if s.Version != metadataVersion {
		return zerr.With(zerr.With(zerr.Wrap(ErrUnsupportedMetadata, "verify summary"), "container", s.Container), "version", s.Version)
	}
	if s.Fingerprint != s.fingerprint() {
		return zerr.With(zerr.Wrap(ErrUnsupportedMetadata, "summary fingerprint mismatch"), "container", s.Container)
	}

	return nil
}

func WriteSummary(w io.Writer, s *Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}

	return enc.Close()
}

func ReadSummary(r io.Reader) (*Summary, error) {
	var s Summary
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}

	return &s, nil
}

// SummaryPath is the file a container's summary is stored in.
func SummaryPath(dir, containerType string) string {
	name := containerType
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimPrefix(name, "*")

	return filepath.Join(dir, name+metadataSuffix)
}

// DirSummaryLoader loads summaries from the first directory holding one.
func DirSummaryLoader(dirs ...string) SummaryLoader {
	return func(containerType string) (*Summary, error) {
		for _, dir := range dirs {
			f, err := os.Open(SummaryPath(dir, containerType))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("open summary: %w", err)
			}

			s, err := ReadSummary(f)
			_ = f.Close()
			if err != nil {
				return nil, fmt.Errorf("read summary of %s: %w", containerType, err)
			}
			return s, nil
		}

		return nil, zerr.With(zerr.Wrap(ErrUnknownContainer, "no summary"), "type", containerType)
	}
}
