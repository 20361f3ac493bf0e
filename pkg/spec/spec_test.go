package spec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		workDir  string
		expected string
	}{
		{
			name:     "no placeholder",
			query:    "SELECT 1;",
			workDir:  "/tmp/run",
			expected: "SELECT 1;",
		},
		{
			name:     "single placeholder",
			query:    "COPY t FROM '%%WORK_DIR%%/data.csv';",
			workDir:  "/tmp/run",
			expected: "COPY t FROM '/tmp/run/data.csv';",
		},
		{
			name:     "multiple placeholders",
			query:    "%%WORK_DIR%%/a %%WORK_DIR%%/b",
			workDir:  "/w",
			expected: "/w/a /w/b",
		},
		{
			name:     "empty query",
			query:    "",
			workDir:  "/w",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			once := Substitute(tt.query, tt.workDir)
			assert.Equal(t, tt.expected, once)
			assert.Equal(t, once, Substitute(once, tt.workDir), "substitution must be idempotent")
		})
	}
}

func TestSubstitute_DoesNotMutateSpec(t *testing.T) {
	s := &Spec{
		Name: "s1",
		Benchmark: &Phase{Steps: []Step{
			{Name: "copy", Run: "COPY t TO '%%WORK_DIR%%/out';"},
		}},
	}

	_ = Script(s.Benchmark.Steps, "/first")
	second := Script(s.Benchmark.Steps, "/second")

	assert.Equal(t, "COPY t TO '%%WORK_DIR%%/out';", s.Benchmark.Steps[0].Run)
	assert.Equal(t, "COPY t TO '/second/out';\n", second)
}

func TestScript_PreservesOrder(t *testing.T) {
	steps := []Step{
		{Name: "a", Run: "SELECT 1;\n"},
		{Name: "b", Run: "SELECT 2;"},
		{Name: "c", Run: "SELECT '%%WORK_DIR%%';\n"},
	}

	assert.Equal(t, "SELECT 1;\nSELECT 2;\nSELECT '/w';\n", Script(steps, "/w"))
}

func TestSpec_Executions(t *testing.T) {
	three := 3

	tests := []struct {
		name     string
		spec     Spec
		expected int
	}{
		{name: "no benchmark phase", spec: Spec{}, expected: DefaultExecutions},
		{name: "absent executions", spec: Spec{Benchmark: &Phase{}}, expected: DefaultExecutions},
		{name: "explicit executions", spec: Spec{Benchmark: &Phase{Executions: &three}}, expected: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.spec.Executions())
		})
	}
}

func TestSpec_Runnable(t *testing.T) {
	assert.False(t, (&Spec{}).Runnable())
	assert.False(t, (&Spec{Benchmark: &Phase{}}).Runnable())
	assert.True(t, (&Spec{Benchmark: &Phase{Steps: []Step{{Name: "q", Run: "SELECT 1;"}}}}).Runnable())
}
