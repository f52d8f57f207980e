package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/lexspoon/hexmake/internal/app"
	"github.com/lexspoon/hexmake/internal/hexfile"
	"github.com/lexspoon/hexmake/internal/hexlog"
	"github.com/lexspoon/hexmake/internal/planner"
	"github.com/lexspoon/hexmake/internal/validate"
)

// ExitError is a custom error type that includes a specific process exit
// code. main uses it to decide how the process ultimately terminates.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// NewRootCommand builds the hexmake root command. stdout receives
// --list-targets output; stderr receives log output.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var (
		workers     int
		logLevel    string
		logFormat   string
		listTargets bool
	)

	cmd := &cobra.Command{
		Use:   "hexmake [targets...]",
		Short: "Hexmake builds declared artifacts from a JSON rule file",
		Long: `Hexmake reads a Hexmake rule file from the current directory, plans a
minimal build for the requested output targets, and executes each rule in
an isolated sandbox before publishing its outputs into out/.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if listTargets {
				return nil
			}
			if len(args) == 0 {
				return &ExitError{Code: 2, Message: "no targets supplied: pass at least one out/ path, or use --list-targets"}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := hexlog.New(stderr, logLevel, logFormat == "json")
			ctx := hexlog.WithLogger(cmd.Context(), logger)

			root, err := os.Getwd()
			if err != nil {
				return &ExitError{Code: 2, Message: fmt.Sprintf("determining workspace root: %v", err)}
			}

			a := app.New(app.Config{
				WorkspaceRoot: root,
				Targets:       args,
				WorkerCount:   workers,
				ListTargets:   listTargets,
			})

			if err := a.Run(ctx, stdout); err != nil {
				return classify(err)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "j", runtime.NumCPU(), "maximum number of rules to run concurrently")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log output format: text or json")
	cmd.Flags().BoolVarP(&listTargets, "list-targets", "l", false, "list every buildable output and exit")

	return cmd
}

// classify maps an error returned from app.Run to the invocation-vs-build
// exit code contract: invocation and spec-loading failures exit 2, a build
// failure that occurred after a valid plan was produced exits 1.
func classify(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	var parseErr *hexfile.ParseError
	var validateErr *validate.Error
	var dupErr *planner.DuplicateOutputError
	var unknownErr *planner.UnknownOutputError
	var cycleErr *planner.CycleDetectedError

	switch {
	case errors.As(err, &parseErr),
		errors.As(err, &validateErr),
		errors.As(err, &dupErr),
		errors.As(err, &unknownErr),
		errors.As(err, &cycleErr),
		errors.Is(err, app.NoTargetsError):
		return &ExitError{Code: 2, Message: err.Error()}
	default:
		return &ExitError{Code: 1, Message: err.Error()}
	}
}

// Execute is a convenience wrapper main uses to run the command against a
// background context.
func Execute(stdout, stderr io.Writer) error {
	cmd := NewRootCommand(stdout, stderr)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.ExecuteContext(context.Background())
}
