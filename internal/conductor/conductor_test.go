package conductor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexspoon/hexmake/internal/graph"
	"github.com/lexspoon/hexmake/internal/hexfile"
	"github.com/lexspoon/hexmake/internal/hexlog"
)

func testContext() context.Context {
	return hexlog.WithLogger(context.Background(), log.New(io.Discard))
}

// recordingExecutor is a fake Rule that records every invocation and can be
// configured to fail for specific node IDs, keyed by the rule's first
// output.
type recordingExecutor struct {
	mu        sync.Mutex
	started   []string
	failNodes map[string]bool
}

func (r *recordingExecutor) Run(ctx context.Context, rule hexfile.Rule) (string, error) {
	id := rule.Outputs[0]
	r.mu.Lock()
	r.started = append(r.started, id)
	shouldFail := r.failNodes[id]
	r.mu.Unlock()

	if shouldFail {
		return "", fmt.Errorf("simulated failure for %s", id)
	}
	return "", nil
}

func (r *recordingExecutor) startedNodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.started))
	copy(out, r.started)
	return out
}

func chainGraph() (*Node, *Node, *Node) {
	a := graph.New("a", hexfile.Rule{Outputs: []string{"a"}})
	b := graph.New("b", hexfile.Rule{Outputs: []string{"b"}})
	c := graph.New("c", hexfile.Rule{Outputs: []string{"c"}})
	b.AddDependency(a)
	c.AddDependency(b)
	return a, b, c
}

func TestRunExecutesEveryNodeExactlyOnceOnSuccess(t *testing.T) {
	a, b, c := chainGraph()
	exec := &recordingExecutor{failNodes: map[string]bool{}}
	cond := New(4, exec)

	err := cond.Run(testContext(), []*Node{a, b, c})
	require.NoError(t, err)

	started := exec.startedNodes()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, started)
	assert.Equal(t, graph.Done, a.State())
	assert.Equal(t, graph.Done, b.State())
	assert.Equal(t, graph.Done, c.State())
}

func TestRunRespectsDependencyOrder(t *testing.T) {
	a, b, c := chainGraph()
	var order []string
	var mu sync.Mutex
	exec := &executorFunc{fn: func(rule hexfile.Rule) error {
		mu.Lock()
		order = append(order, rule.Outputs[0])
		mu.Unlock()
		return nil
	}}
	cond := New(1, exec)

	require.NoError(t, cond.Run(testContext(), []*Node{a, b, c}))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// executorFunc adapts a plain function to the Rule interface.
type executorFunc struct {
	fn func(hexfile.Rule) error
}

func (e *executorFunc) Run(ctx context.Context, rule hexfile.Rule) (string, error) {
	return "", e.fn(rule)
}

func TestRunAbortsAndSkipsDependentsOnFailure(t *testing.T) {
	a, b, c := chainGraph()
	exec := &recordingExecutor{failNodes: map[string]bool{"a": true}}
	cond := New(4, exec)

	err := cond.Run(testContext(), []*Node{a, b, c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a")

	assert.Equal(t, graph.Failed, a.State())
	assert.Equal(t, graph.Failed, b.State())
	assert.Equal(t, graph.Failed, c.State())

	started := exec.startedNodes()
	assert.NotContains(t, started, "b")
	assert.NotContains(t, started, "c")
}

func TestRunDoesNotDispatchUnrelatedTasksAfterFailure(t *testing.T) {
	// Two independent tasks and a single worker: failA is dequeued first
	// and fails, so okB, still waiting in the ready queue at that point,
	// must never be dispatched.
	failA := graph.New("failA", hexfile.Rule{Outputs: []string{"failA"}})
	okB := graph.New("okB", hexfile.Rule{Outputs: []string{"okB"}})

	exec := &recordingExecutor{failNodes: map[string]bool{"failA": true}}
	cond := New(1, exec)

	err := cond.Run(testContext(), []*Node{failA, okB})
	require.Error(t, err)

	assert.Equal(t, graph.Failed, failA.State())
	assert.NotContains(t, exec.startedNodes(), "okB")
}

func TestRunReturnsNilForEmptyGraph(t *testing.T) {
	exec := &recordingExecutor{failNodes: map[string]bool{}}
	cond := New(4, exec)
	assert.NoError(t, cond.Run(testContext(), nil))
}

func TestRunSafetyNeverRunsBeforeDependencies(t *testing.T) {
	a, b, c := chainGraph()
	var aDone, bDone atomic.Bool
	violated := errors.New("dispatched before dependency finished")

	exec := &executorFunc{fn: func(rule hexfile.Rule) error {
		switch rule.Outputs[0] {
		case "a":
			aDone.Store(true)
		case "b":
			if !aDone.Load() {
				return violated
			}
			bDone.Store(true)
		case "c":
			if !bDone.Load() {
				return violated
			}
		}
		return nil
	}}
	cond := New(8, exec)

	require.NoError(t, cond.Run(testContext(), []*Node{a, b, c}))
}
