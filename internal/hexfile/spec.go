// Package hexfile parses the declarative "Hexmake" JSON spec file. This is
// an external collaborator to the planner/conductor core: it knows nothing
// about graphs or sandboxes, only about turning JSON bytes into the Spec
// value model.
package hexfile

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileName is the literal name of the spec file Hexmake looks for in the
// current working directory.
const FileName = "Hexmake"

// Rule is a declarative mapping from inputs and commands to outputs.
// Outputs and commands are order-significant; an empty Outputs list is
// rejected by validate.Spec, not by the parser itself.
type Rule struct {
	Outputs  []string `json:"outputs"`
	Inputs   []string `json:"inputs"`
	Commands []string `json:"commands"`
}

// Spec is the top-level parsed form of a Hexmake file.
type Spec struct {
	Environ []string `json:"environ"`
	Rules   []Rule   `json:"rules"`
}

// ParseError wraps a failure to decode a Hexmake spec file, always
// surfaced as an invocation/spec-loading failure (exit code 2) by the CLI.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads and decodes the Hexmake spec file at path. It is the sole
// entry point external callers need; the planner never touches the
// filesystem or JSON directly.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	return &spec, nil
}
