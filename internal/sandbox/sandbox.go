// Package sandbox manages the scratch area under out/.hex, handing the
// RuleExecutor a fresh, uniquely numbered build directory per task.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
)

// Root is the fixed parent directory for all sandboxes, relative to the
// workspace root.
const Root = "out/.hex"

// Manager allocates per-task build directories under Root. Safe for
// concurrent use: MakeBuildDir is the conductor's worker pool's only
// shared mutable access point into the sandbox filesystem region, and it
// is backed by a single atomic counter.
type Manager struct {
	workspaceRoot string
	nextID        atomic.Int64
}

// New creates a Manager rooted at workspaceRoot, the directory Hexmake was
// invoked from.
func New(workspaceRoot string) *Manager {
	return &Manager{workspaceRoot: workspaceRoot}
}

// RootPath returns the absolute path of the scratch root.
func (m *Manager) RootPath() string {
	return filepath.Join(m.workspaceRoot, Root)
}

// Clean recursively deletes the scratch root, then recreates it empty.
// Invoked exactly once, before a run begins; never call this concurrently
// with MakeBuildDir.
func (m *Manager) Clean() error {
	root := m.RootPath()
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("sandbox: cleaning %s: %w", root, err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("sandbox: recreating %s: %w", root, err)
	}
	return nil
}

// MakeBuildDir atomically fetches and increments the build-directory
// counter, creates the resulting out/.hex/build<N> directory, and returns
// its absolute path. Two concurrent calls always yield two distinct
// directories.
func (m *Manager) MakeBuildDir() (string, error) {
	n := m.nextID.Add(1) - 1
	dir := filepath.Join(m.RootPath(), fmt.Sprintf("build%d", n))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("sandbox: creating build directory: %w", err)
	}
	return dir, nil
}
