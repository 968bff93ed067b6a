package scenario

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/wippyai/plugin-tracker/errors"
)

// Script is a named sequence of tracker operations.
type Script struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// Step is one operation. Which of Module, Instance, Handle and Object are
// read depends on Op. Names refer to handles bound by earlier steps via As.
type Step struct {
	// Expect is compared with the step result: a bool for checks and
	// mutations, a number for counts.
	Expect   any    `json:"expect,omitempty"`
	Op       string `json:"op"`
	As       string `json:"as,omitempty"`
	Module   string `json:"module,omitempty"`
	Instance string `json:"instance,omitempty"`
	Handle   string `json:"handle,omitempty"`
	Object   string `json:"object,omitempty"`
	// Repeat runs the step this many times. Bindings get a numeric suffix.
	Repeat int `json:"repeat,omitempty"`
}

// Parse decodes a YAML script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.UnmarshalStrict(data, &s); err != nil {
		return nil, errors.Wrap(errors.PhaseScenario, errors.KindInvalidInput, err, "decode script")
	}
	for i, step := range s.Steps {
		if _, ok := ops[step.Op]; !ok {
			return nil, errors.New(errors.PhaseScenario, errors.KindInvalidInput).
				Value(step.Op).
				Detail("step %d: unknown op %q", i+1, step.Op).
				Build()
		}
		if step.Repeat < 0 {
			return nil, errors.InvalidInput(errors.PhaseScenario, fmt.Sprintf("step %d: negative repeat", i+1))
		}
	}
	if s.Name == "" {
		s.Name = "unnamed"
	}
	return &s, nil
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScenario, errors.KindInvalidInput, err, "read script")
	}
	return Parse(data)
}
