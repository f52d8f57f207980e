package ruleexec

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexspoon/hexmake/internal/hexfile"
	"github.com/lexspoon/hexmake/internal/hexlog"
	"github.com/lexspoon/hexmake/internal/sandbox"
)

func testContext() context.Context {
	logger := log.New(io.Discard)
	return hexlog.WithLogger(context.Background(), logger)
}

func newExecutor(t *testing.T) (*Executor, string) {
	root := t.TempDir()
	sb := sandbox.New(root)
	require.NoError(t, sb.Clean())
	return New(root, sb), root
}

func TestRunPublishesOutput(t *testing.T) {
	exec, root := newExecutor(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.c"), []byte("int main(){}"), 0o644))

	rule := hexfile.Rule{
		Outputs:  []string{"out/foo.o"},
		Inputs:   []string{"foo.c"},
		Commands: []string{"cp foo.c out/foo.o"},
	}

	sandboxDir, err := exec.Run(testContext(), rule)
	require.NoError(t, err)
	assert.DirExists(t, sandboxDir)

	data, err := os.ReadFile(filepath.Join(root, "out/foo.o"))
	require.NoError(t, err)
	assert.Equal(t, "int main(){}", string(data))
}

func TestRunFailsOnMissingInput(t *testing.T) {
	exec, _ := newExecutor(t)

	rule := hexfile.Rule{
		Outputs:  []string{"out/foo.o"},
		Inputs:   []string{"missing.c"},
		Commands: []string{"true"},
	}

	_, err := exec.Run(testContext(), rule)
	require.Error(t, err)
	var missing *MissingInputError
	assert.ErrorAs(t, err, &missing)
}

func TestRunFailsAndPreservesSandboxOnCommandFailure(t *testing.T) {
	exec, root := newExecutor(t)

	rule := hexfile.Rule{
		Outputs:  []string{"out/foo"},
		Commands: []string{"exit 1"},
	}

	sandboxDir, err := exec.Run(testContext(), rule)
	require.Error(t, err)
	var cmdErr *CommandFailedError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 1, cmdErr.ExitCode)

	assert.DirExists(t, sandboxDir)
	assert.NoFileExists(t, filepath.Join(root, "out/foo"))
}

func TestRunFailsOnMissingDeclaredOutput(t *testing.T) {
	exec, _ := newExecutor(t)

	rule := hexfile.Rule{
		Outputs:  []string{"out/foo"},
		Commands: []string{"true"}, // never creates out/foo
	}

	_, err := exec.Run(testContext(), rule)
	require.Error(t, err)
	var missing *MissingDeclaredOutputError
	assert.ErrorAs(t, err, &missing)
}

func TestRunDeletesExistingOutputBeforePublishing(t *testing.T) {
	exec, root := newExecutor(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "out"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "out/foo"), []byte("stale"), 0o644))

	rule := hexfile.Rule{
		Outputs:  []string{"out/foo"},
		Commands: []string{"printf fresh > out/foo"},
	}

	_, err := exec.Run(testContext(), rule)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "out/foo"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestRunStagesDirectoryInputRecursively(t *testing.T) {
	exec, root := newExecutor(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "srctree", "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "srctree", "nested", "leaf.txt"), []byte("leaf"), 0o644))

	rule := hexfile.Rule{
		Outputs:  []string{"out/bundle.txt"},
		Inputs:   []string{"srctree"},
		Commands: []string{"cat srctree/nested/leaf.txt > out/bundle.txt"},
	}

	_, err := exec.Run(testContext(), rule)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "out/bundle.txt"))
	require.NoError(t, err)
	assert.Equal(t, "leaf", string(data))
}
