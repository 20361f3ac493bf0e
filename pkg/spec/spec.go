package spec

import "strings"

const (
	// WorkDirPlaceholder is replaced with the run's scratch directory in step SQL.
	WorkDirPlaceholder = "%%WORK_DIR%%"

	// DefaultExecutions is the benchmark repeat count used when a spec omits it.
	DefaultExecutions = 5
)

// Spec is a named benchmark definition loaded from a single file.
// Specs are read-only after loading and are shared across all targets.
type Spec struct {
	Name         string `yaml:"name"`
	GenerateData *Phase `yaml:"generate-data"`
	Prepare      *Phase `yaml:"prepare-benchmark"`
	Benchmark    *Phase `yaml:"benchmark"`

	// Source is the file the spec was parsed from.
	Source string `yaml:"-"`
}

// Phase is an ordered list of steps. Executions is only meaningful for the
// benchmark phase.
type Phase struct {
	Steps      []Step `yaml:"steps"`
	Executions *int   `yaml:"executions"`
}

// Step is a single named SQL snippet.
type Step struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// Executions returns how often the load generator repeats the benchmark script.
func (s *Spec) Executions() int {
	if s.Benchmark == nil || s.Benchmark.Executions == nil {
		return DefaultExecutions
	}

	return *s.Benchmark.Executions
}

// Runnable reports whether the spec has benchmark steps to measure.
func (s *Spec) Runnable() bool {
	return s.Benchmark != nil && len(s.Benchmark.Steps) > 0
}

// HasSteps reports whether the phase is present and has at least one step.
func (p *Phase) HasSteps() bool {
	return p != nil && len(p.Steps) > 0
}

// Substitute replaces every WorkDirPlaceholder in query with workDir.
func Substitute(query, workDir string) string {
	if !strings.Contains(query, WorkDirPlaceholder) {
		return query
	}

	return strings.ReplaceAll(query, WorkDirPlaceholder, workDir)
}

// Script concatenates the substituted SQL of all steps in order. Each step
// ends on its own line so adjacent statements never merge.
func Script(steps []Step, workDir string) string {
	var b strings.Builder

	for _, step := range steps {
		query := Substitute(step.Run, workDir)

		b.WriteString(query)

		if !strings.HasSuffix(query, "\n") {
			b.WriteByte('\n')
		}
	}

	return b.String()
}
