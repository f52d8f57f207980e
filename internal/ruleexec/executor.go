// Package ruleexec implements the RuleExecutor: the single-rule operation
// the conductor's worker pool invokes once a TaskNode becomes ready. It
// stages inputs into a fresh sandbox, runs the rule's commands through a
// real system shell, and publishes the declared outputs back into the
// real out/ tree.
package ruleexec

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/otiai10/copy"

	"github.com/lexspoon/hexmake/internal/hexfile"
	"github.com/lexspoon/hexmake/internal/hexlog"
	"github.com/lexspoon/hexmake/internal/sandbox"
)

// Shell is the Bourne-compatible shell used to run each declared command.
// Overridable in tests that need a hermetic interpreter; production code
// never needs to change it.
var Shell = "sh"

// MissingInputError is raised when a declared input does not exist under
// the workspace root.
type MissingInputError struct {
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input: %q does not exist", e.Input)
}

// CommandFailedError is raised when a rule's command exits non-zero.
type CommandFailedError struct {
	Command  string
	Sandbox  string
	ExitCode int
}

func (e *CommandFailedError) Error() string {
	return fmt.Sprintf("command failed (exit %d) in sandbox %s: %s", e.ExitCode, e.Sandbox, e.Command)
}

// MissingDeclaredOutputError is raised when a rule's commands finished
// successfully but did not actually produce a declared output inside the
// sandbox.
type MissingDeclaredOutputError struct {
	Output string
}

func (e *MissingDeclaredOutputError) Error() string {
	return fmt.Sprintf("missing declared output: %q was not produced in the sandbox", e.Output)
}

// Executor runs rules inside sandboxes allocated by a sandbox.Manager and
// publishes their outputs into the real out/ tree rooted at workspaceRoot.
type Executor struct {
	workspaceRoot string
	sandboxes     *sandbox.Manager
}

// New creates an Executor rooted at workspaceRoot, allocating sandboxes
// from sandboxes.
func New(workspaceRoot string, sandboxes *sandbox.Manager) *Executor {
	return &Executor{workspaceRoot: workspaceRoot, sandboxes: sandboxes}
}

// Run executes rule end to end: allocate sandbox, stage inputs, prepare
// output parents, run commands, publish outputs. The sandbox directory it
// used is returned regardless of outcome, since a failing sandbox is
// deliberately preserved for debugging rather than cleaned up.
func (e *Executor) Run(ctx context.Context, rule hexfile.Rule) (sandboxDir string, err error) {
	logger := hexlog.FromContext(ctx)

	sandboxDir, err = e.sandboxes.MakeBuildDir()
	if err != nil {
		return "", err
	}
	logger.Debug("allocated sandbox", "sandbox", sandboxDir, "outputs", rule.Outputs)

	if err := e.stageInputs(rule, sandboxDir); err != nil {
		return sandboxDir, err
	}
	if err := e.prepareOutputParents(rule, sandboxDir); err != nil {
		return sandboxDir, err
	}
	if err := e.runCommands(ctx, rule, sandboxDir); err != nil {
		return sandboxDir, err
	}
	if err := e.publishOutputs(rule, sandboxDir); err != nil {
		return sandboxDir, err
	}

	return sandboxDir, nil
}

// stageInputs copies every declared input, resolved against the real
// workspace root, into the sandbox, mirroring its relative path. Files are
// copied directly; directories are copied recursively, mirroring every
// descendant the same way.
func (e *Executor) stageInputs(rule hexfile.Rule, sandboxDir string) error {
	for _, input := range rule.Inputs {
		src := filepath.Join(e.workspaceRoot, input)
		info, err := os.Stat(src)
		if err != nil {
			return &MissingInputError{Input: input}
		}

		dst := filepath.Join(sandboxDir, input)
		if info.IsDir() {
			if err := copy.Copy(src, dst); err != nil {
				return fmt.Errorf("staging input directory %q: %w", input, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("staging input %q: %w", input, err)
		}
		if err := copy.Copy(src, dst); err != nil {
			return fmt.Errorf("staging input %q: %w", input, err)
		}
	}
	return nil
}

// prepareOutputParents creates, under the sandbox, the parent directory
// of every declared output, so a rule's commands can write straight to
// their declared output path without mkdir-ing it themselves.
func (e *Executor) prepareOutputParents(rule hexfile.Rule, sandboxDir string) error {
	for _, out := range rule.Outputs {
		parent := filepath.Join(sandboxDir, filepath.Dir(out))
		if err := os.MkdirAll(parent, 0o755); err != nil {
			return fmt.Errorf("preparing output parent for %q: %w", out, err)
		}
	}
	return nil
}

// runCommands runs each declared command, in order, through a real
// subshell rooted at the sandbox. Output is inherited by the parent
// process; each command is echoed before it runs.
func (e *Executor) runCommands(ctx context.Context, rule hexfile.Rule, sandboxDir string) error {
	for _, command := range rule.Commands {
		fmt.Fprintln(os.Stdout, command)

		cmd := exec.CommandContext(ctx, Shell, "-c", command)
		cmd.Dir = sandboxDir
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			exitCode := -1
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
			}
			fmt.Fprintf(os.Stderr, "command failed (exit %d) in sandbox %s: %s\n", exitCode, sandboxDir, command)
			return &CommandFailedError{Command: command, Sandbox: sandboxDir, ExitCode: exitCode}
		}
	}
	return nil
}

// publishOutputs copies each declared output from the sandbox to its real
// destination under the workspace's out/ tree, deleting any existing
// artifact there first. Outputs are always single files.
func (e *Executor) publishOutputs(rule hexfile.Rule, sandboxDir string) error {
	for _, out := range rule.Outputs {
		src := filepath.Join(sandboxDir, out)
		if _, err := os.Stat(src); err != nil {
			return &MissingDeclaredOutputError{Output: out}
		}

		dst := filepath.Join(e.workspaceRoot, out)
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("publishing %q: removing existing artifact: %w", out, err)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("publishing %q: %w", out, err)
		}
		if err := copy.Copy(src, dst, copy.Options{PreserveTimes: true, PreserveOwner: true}); err != nil {
			return fmt.Errorf("publishing %q: %w", out, err)
		}
	}
	return nil
}
