// Package app wires the external collaborators (hexfile parsing,
// validation) to the core (planner, sandbox, executor, conductor) and
// exposes the single Run entry point the CLI glue calls.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/lexspoon/hexmake/internal/conductor"
	"github.com/lexspoon/hexmake/internal/hexfile"
	"github.com/lexspoon/hexmake/internal/hexlog"
	"github.com/lexspoon/hexmake/internal/planner"
	"github.com/lexspoon/hexmake/internal/ruleexec"
	"github.com/lexspoon/hexmake/internal/sandbox"
	"github.com/lexspoon/hexmake/internal/validate"
)

// NoTargetsError is raised when the CLI is invoked with no targets and
// --list-targets was not requested either.
var NoTargetsError = errors.New("no targets supplied")

// Config holds everything App.Run needs for one invocation.
type Config struct {
	// WorkspaceRoot is the real workspace root; the Hexmake spec file is
	// read from WorkspaceRoot/Hexmake, and all outputs are published under
	// WorkspaceRoot/out.
	WorkspaceRoot string
	// Targets is the list of requested output paths, in CLI order.
	Targets []string
	// WorkerCount bounds the conductor's concurrency.
	WorkerCount int
	// ListTargets, if true, prints every buildable output and returns
	// without planning or building.
	ListTargets bool
}

// App is the orchestration layer: load spec, validate, plan, conduct.
type App struct {
	config Config
}

// New creates an App for the given configuration.
func New(config Config) *App {
	return &App{config: config}
}

// Run executes one full invocation: load the spec, validate it, either
// list targets or plan and build the requested ones. outW receives
// --list-targets output; regular build diagnostics go through the
// context's logger.
//
// The returned error is one of: an invocation/spec-loading error
// (*hexfile.ParseError, *validate.Error, a *planner.*Error, or
// NoTargetsError) — which the CLI glue maps to exit code 2 — or a plain
// build failure from the conductor, mapped to exit code 1.
func (a *App) Run(ctx context.Context, outW io.Writer) error {
	logger := hexlog.FromContext(ctx)

	specPath := filepath.Join(a.config.WorkspaceRoot, hexfile.FileName)
	spec, err := hexfile.Load(specPath)
	if err != nil {
		return err
	}
	logger.Debug("spec loaded", "path", specPath, "rules", len(spec.Rules))

	if err := validate.Spec(spec); err != nil {
		return err
	}

	p, err := planner.New(spec)
	if err != nil {
		return err
	}

	if a.config.ListTargets {
		outputs := p.Outputs()
		sort.Strings(outputs)
		for _, out := range outputs {
			fmt.Fprintln(outW, out)
		}
		return nil
	}

	if len(a.config.Targets) == 0 {
		return NoTargetsError
	}

	nodes, err := p.Plan(a.config.Targets)
	if err != nil {
		return err
	}
	logger.Info("planned build", "tasks", len(nodes), "targets", a.config.Targets)

	sandboxes := sandbox.New(a.config.WorkspaceRoot)
	if err := sandboxes.Clean(); err != nil {
		return err
	}

	executor := ruleexec.New(a.config.WorkspaceRoot, sandboxes)
	cond := conductor.New(a.config.WorkerCount, executor)

	if err := cond.Run(ctx, nodes); err != nil {
		return err
	}

	logger.Info("build finished")
	return nil
}
