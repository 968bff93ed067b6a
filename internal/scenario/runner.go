package scenario

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/plugin-tracker/errors"
	"github.com/wippyai/plugin-tracker/tracker"
)

// Outcome is the result of one executed step.
type Outcome struct {
	Result any
	Op     string
	As     string
	Index  int
}

// Report describes a script run. Failure is the first mismatch or
// invalid step; the run stops there.
type Report struct {
	Failure  *errors.Error
	Name     string
	Outcomes []Outcome
	Stats    tracker.Stats
}

// OK reports whether every step met its expectation.
func (r *Report) OK() bool {
	return r.Failure == nil
}

// String renders the report one step per line.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", r.Name)
	for _, o := range r.Outcomes {
		fmt.Fprintf(&b, "  %3d %-16s", o.Index, o.Op)
		if o.As != "" {
			fmt.Fprintf(&b, " %-8s", o.As)
		} else {
			b.WriteString("         ")
		}
		fmt.Fprintf(&b, " => %v\n", o.Result)
	}
	if r.Failure != nil {
		fmt.Fprintf(&b, "FAIL: %v\n", r.Failure)
	} else {
		b.WriteString("PASS\n")
	}
	fmt.Fprintf(&b, "resources=%d vars=%d bridges=%d instances=%d modules=%d\n",
		r.Stats.Resources, r.Stats.Vars, r.Stats.Bridges, r.Stats.Instances, r.Stats.Modules)
	return b.String()
}

type runner struct {
	tracker  *tracker.Tracker
	bindings map[string]uint32
}

// Run executes s against t. t must not be used concurrently.
func Run(t *tracker.Tracker, s *Script) *Report {
	r := &runner{tracker: t, bindings: make(map[string]uint32)}
	report := &Report{Name: s.Name}

	index := 0
	for i, step := range s.Steps {
		n := max(step.Repeat, 1)
		for k := 0; k < n; k++ {
			index++
			bind := step.As
			if bind != "" && step.Repeat > 0 {
				bind = fmt.Sprintf("%s%d", step.As, k+1)
			}

			result, err := ops[step.Op](r, step, bind)
			if err == nil {
				err = check(i+1, step, result)
			}
			report.Outcomes = append(report.Outcomes, Outcome{Index: index, Op: step.Op, As: bind, Result: result})
			if err != nil {
				report.Failure = err
				Logger().Warn("scenario step failed",
					zap.String("scenario", s.Name),
					zap.Int("step", i+1),
					zap.Error(err))
				report.Stats = t.Stats()
				return report
			}
		}
	}

	report.Stats = t.Stats()
	Logger().Debug("scenario passed", zap.String("scenario", s.Name), zap.Int("steps", index))
	return report
}

func (r *runner) bind(name string, h uint32) {
	if name != "" {
		r.bindings[name] = h
	}
}

// lookup resolves a bound name. Unbound names are a script error, except
// for names starting with '#', which are taken as literal handle numbers.
func (r *runner) lookup(name string) (uint32, *errors.Error) {
	if h, ok := r.bindings[name]; ok {
		return h, nil
	}
	var h uint32
	if _, err := fmt.Sscanf(name, "#%d", &h); err == nil {
		return h, nil
	}
	return 0, errors.New(errors.PhaseScenario, errors.KindInvalidInput).
		Value(name).
		Detail("unbound name %q", name).
		Build()
}

func check(step int, s Step, result any) *errors.Error {
	if s.Expect == nil {
		return nil
	}
	if equal(s.Expect, result) {
		return nil
	}
	return errors.New(errors.PhaseScenario, errors.KindMismatch).
		Value(result).
		Detail("step %d (%s): got %v, want %v", step, s.Op, result, s.Expect).
		Build()
}

// equal compares a decoded expectation with a result. JSON numbers decode
// as float64.
func equal(expect, result any) bool {
	switch e := expect.(type) {
	case bool:
		b, ok := result.(bool)
		return ok && b == e
	case float64:
		n, ok := result.(int)
		return ok && float64(n) == e
	}
	return false
}
