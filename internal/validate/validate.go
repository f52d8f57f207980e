// Package validate implements the structural checks a Hexmake spec must
// pass before planning begins: every rule has at least one output, every
// declared output is actually an output path, and no environ entry is
// empty. These checks existed
// only as an unimplemented placeholder in the distilled core; this package
// fills that placeholder in, per the recommendation that a production
// reimplementation should run them before planning.
package validate

import (
	"fmt"

	"github.com/lexspoon/hexmake/internal/hexfile"
	"github.com/lexspoon/hexmake/internal/hexpath"
)

// Error reports a single structural violation found in a Hexmake spec.
// It names the offending rule by its index in spec.Rules so the user can
// locate it without a rule name field (the data model has none). A
// violation that belongs to no rule (an empty environ entry) has
// RuleIndex -1.
type Error struct {
	RuleIndex int
	Output    string
	Reason    string
}

func (e *Error) Error() string {
	if e.RuleIndex < 0 {
		return e.Reason
	}
	if e.Output != "" {
		return fmt.Sprintf("rule %d: output %q: %s", e.RuleIndex, e.Output, e.Reason)
	}
	return fmt.Sprintf("rule %d: %s", e.RuleIndex, e.Reason)
}

// Spec runs every structural check against spec and returns the first
// violation found, or nil if the spec is well-formed. Checks run in rule
// order, then within a rule in declared-output order, so results are
// deterministic.
func Spec(spec *hexfile.Spec) error {
	for i, rule := range spec.Rules {
		if len(rule.Outputs) == 0 {
			return &Error{RuleIndex: i, Reason: "has no outputs"}
		}
		for _, out := range rule.Outputs {
			if !hexpath.IsOutput(out) {
				return &Error{RuleIndex: i, Output: out, Reason: `output is not in "out/"`}
			}
		}
	}

	for _, env := range spec.Environ {
		if env == "" {
			return &Error{RuleIndex: -1, Reason: "environ contains an empty variable name"}
		}
	}

	return nil
}
