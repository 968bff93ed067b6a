package scenario

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/tracker"
)

func TestScripts(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) == 0 {
		t.Fatal("no scripts in testdata")
	}

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			report := Run(tracker.NewWithDefaults(), s)
			if !report.OK() {
				t.Fatalf("script failed:\n%s", report)
			}
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown op", "steps:\n  - {op: explode}\n"},
		{"unknown field", "steps:\n  - {op: module, colour: red}\n"},
		{"negative repeat", "steps:\n  - {op: module, repeat: -1}\n"},
		{"not yaml", "steps: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !stderrors.Is(err, errors.InvalidInput(errors.PhaseScenario, "")) {
				t.Errorf("expected invalid_input, got %v", err)
			}
		})
	}
}

func TestParse_DefaultName(t *testing.T) {
	s, err := Parse([]byte("steps:\n  - {op: module}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "unnamed" {
		t.Errorf("Name = %q", s.Name)
	}
}

func TestRun_Mismatch(t *testing.T) {
	s, err := Parse([]byte(`
name: wrong
steps:
  - {op: module, as: M}
  - {op: instance, module: M, as: I}
  - {op: resource, instance: I, as: R}
  - {op: resource_count, handle: R, expect: 2}
  - {op: module}
`))
	if err != nil {
		t.Fatal(err)
	}

	report := Run(tracker.NewWithDefaults(), s)
	if report.OK() {
		t.Fatal("expected a failure")
	}
	if !stderrors.Is(report.Failure, &errors.Error{Phase: errors.PhaseScenario, Kind: errors.KindMismatch}) {
		t.Errorf("expected mismatch, got %v", report.Failure)
	}
	if len(report.Outcomes) != 4 {
		t.Errorf("run should stop at the failing step, ran %d", len(report.Outcomes))
	}
	if report.Outcomes[3].Result != 1 {
		t.Errorf("result = %v, want 1", report.Outcomes[3].Result)
	}
	if report.Stats.Resources != 1 {
		t.Errorf("Stats.Resources = %d", report.Stats.Resources)
	}
	if !strings.Contains(report.String(), "FAIL") {
		t.Errorf("report should mention the failure:\n%s", report)
	}
}

func TestRun_UnboundName(t *testing.T) {
	s, err := Parse([]byte("steps:\n  - {op: get_resource, handle: R9}\n"))
	if err != nil {
		t.Fatal(err)
	}
	report := Run(tracker.NewWithDefaults(), s)
	if !stderrors.Is(report.Failure, errors.InvalidInput(errors.PhaseScenario, "")) {
		t.Errorf("expected invalid_input, got %v", report.Failure)
	}
}

func TestRun_LiteralHandles(t *testing.T) {
	s, err := Parse([]byte(`
steps:
  - {op: module, as: M}
  - {op: instance, module: M, as: I}
  - {op: resource, instance: I}
  - {op: get_resource, handle: "#1", expect: true}
  - {op: unref_resource, handle: "#1", expect: true}
  - {op: unref_resource, handle: "#1", expect: false}
`))
	if err != nil {
		t.Fatal(err)
	}
	if report := Run(tracker.NewWithDefaults(), s); !report.OK() {
		t.Fatalf("script failed:\n%s", report)
	}
}

func TestRun_Repeat(t *testing.T) {
	s, err := Parse([]byte(`
steps:
  - {op: module, as: M}
  - {op: instance, module: M, as: I}
  - {op: var, instance: I, as: V, repeat: 4}
  - {op: var_count, handle: V4, expect: 1}
  - {op: live_objects, instance: I, expect: 4}
`))
	if err != nil {
		t.Fatal(err)
	}
	report := Run(tracker.NewWithDefaults(), s)
	if !report.OK() {
		t.Fatalf("script failed:\n%s", report)
	}
	if len(report.Outcomes) != 8 {
		t.Errorf("expected 8 outcomes, got %d", len(report.Outcomes))
	}
	if report.Outcomes[5].As != "V4" {
		t.Errorf("outcome 5 bound %q", report.Outcomes[5].As)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !stderrors.Is(err, errors.InvalidInput(errors.PhaseScenario, "")) {
		t.Errorf("expected invalid_input, got %v", err)
	}
	if !stderrors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped not-exist error, got %v", err)
	}
}
