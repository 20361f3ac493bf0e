package spec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultRoot is the directory searched for benchmark specs.
	DefaultRoot = "benchmarks"

	// DefaultExtension is the file extension of benchmark specs.
	DefaultExtension = "yml"

	matchAll = "*"
)

// Loader discovers and parses benchmark specs below a root directory.
type Loader struct {
	log       logrus.FieldLogger
	root      string
	extension string
}

// NewLoader creates a loader. Empty root or extension fall back to the defaults.
func NewLoader(log logrus.FieldLogger, root, extension string) *Loader {
	if root == "" {
		root = DefaultRoot
	}

	if extension == "" {
		extension = DefaultExtension
	}

	return &Loader{
		log:       log.WithField("component", "spec-loader"),
		root:      root,
		extension: strings.TrimPrefix(extension, "."),
	}
}

// Find returns the spec files matching any of the patterns, in discovery order.
// An empty pattern set matches every spec. Each file is returned once.
func (l *Loader) Find(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{matchAll}
	}

	l.log.WithField("patterns", patterns).Debug("Searching benchmark specs")

	if _, err := os.Stat(l.root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: root %q does not exist", ErrNoSpecs, l.root)
		}

		return nil, fmt.Errorf("checking benchmarks root: %w", err)
	}

	seen := make(map[string]struct{}, 16)
	files := make([]string, 0, 16)

	for _, pattern := range patterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid benchmark pattern %q: %w", pattern, err)
		}

		matches, err := l.match(pattern)
		if err != nil {
			return nil, err
		}

		for _, path := range matches {
			if _, ok := seen[path]; ok {
				continue
			}

			seen[path] = struct{}{}
			files = append(files, path)
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: patterns %v below %q", ErrNoSpecs, patterns, l.root)
	}

	return files, nil
}

// match walks the root and returns files whose trailing path components
// match "<pattern>.<extension>".
func (l *Loader) match(pattern string) ([]string, error) {
	want := filepath.ToSlash(pattern) + "." + l.extension
	depth := strings.Count(want, "/") + 1

	var matches []string

	err := filepath.WalkDir(l.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}

		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < depth {
			return nil
		}

		ok, _ := filepath.Match(want, strings.Join(parts[len(parts)-depth:], "/"))
		if ok {
			matches = append(matches, path)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking benchmarks root %q: %w", l.root, err)
	}

	return matches, nil
}

// Load finds and parses all specs matching the patterns, preserving file order.
// No matching file yields an empty list and a warning.
func (l *Loader) Load(patterns []string) ([]*Spec, error) {
	files, err := l.Find(patterns)
	if err != nil {
		if errors.Is(err, ErrNoSpecs) {
			l.log.WithError(err).Warn("No benchmark specs matched")

			return []*Spec{}, nil
		}

		return nil, err
	}

	specs := make([]*Spec, 0, len(files))

	for _, file := range files {
		s, err := Parse(file)
		if err != nil {
			return nil, err
		}

		l.log.WithFields(logrus.Fields{
			"spec": s.Name,
			"file": file,
		}).Debug("Loaded benchmark spec")

		specs = append(specs, s)
	}

	return specs, nil
}

// Parse reads and parses a single spec file.
func Parse(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Reason: "reading file", Err: err}
	}

	return ParseBytes(data, path)
}

// ParseBytes parses spec content. source is used in errors and stored on the Spec.
func ParseBytes(data []byte, source string) (*Spec, error) {
	var s Spec
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Path: source, Reason: "file is empty"}
		}

		return nil, &ParseError{Path: source, Reason: "invalid YAML", Err: err}
	}

	s.Source = source

	if err := validate(&s); err != nil {
		return nil, err
	}

	return &s, nil
}

func validate(s *Spec) error {
	if s.Name == "" {
		return &ParseError{Path: s.Source, Reason: "name is required"}
	}

	phases := []struct {
		key   string
		phase *Phase
	}{
		{"generate-data", s.GenerateData},
		{"prepare-benchmark", s.Prepare},
		{"benchmark", s.Benchmark},
	}

	for _, p := range phases {
		if p.phase == nil {
			continue
		}

		for i, step := range p.phase.Steps {
			if step.Run == "" {
				return &ParseError{
					Path:   s.Source,
					Reason: fmt.Sprintf("%s step %d (%q) has no run statement", p.key, i, step.Name),
				}
			}
		}
	}

	if s.Benchmark != nil && s.Benchmark.Executions != nil && *s.Benchmark.Executions < 1 {
		return &ParseError{
			Path:   s.Source,
			Reason: fmt.Sprintf("benchmark.executions must be >= 1, got %d", *s.Benchmark.Executions),
		}
	}

	return nil
}
