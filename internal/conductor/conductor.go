// Package conductor runs a set of TaskNodes with bounded concurrency,
// respecting dependencies, aborting promptly on the first task failure.
// It is the worker-pool heart of Hexmake: a blocking ready queue, a
// SHUTDOWN sentinel workers re-enqueue on receipt so it propagates through
// the whole pool, and a counting completion signal the main goroutine
// drains once per task.
package conductor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lexspoon/hexmake/internal/graph"
	"github.com/lexspoon/hexmake/internal/hexfile"
	"github.com/lexspoon/hexmake/internal/hexlog"
	"github.com/lexspoon/hexmake/internal/planner"
)

// Node is the TaskNode type the conductor runs.
type Node = planner.Node

// Rule executes a single rule in a fresh sandbox and reports the sandbox
// path it used regardless of outcome. *ruleexec.Executor satisfies this.
type Rule interface {
	Run(ctx context.Context, rule hexfile.Rule) (sandboxDir string, err error)
}

// shutdown is the SHUTDOWN sentinel: a distinguished *Node value that
// never appears in a real graph, used only for its pointer identity.
var shutdown = &Node{}

// Conductor runs TaskNode graphs against a Rule executor with up to
// Concurrency workers in flight at once.
type Conductor struct {
	Concurrency int
	Executor    Rule
}

// New creates a Conductor with the given worker count and executor.
// Concurrency below 1 is treated as 1.
func New(concurrency int, executor Rule) *Conductor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Conductor{Concurrency: concurrency, Executor: executor}
}

// Run executes every node in nodes, respecting dependency order, and
// returns the first real failure encountered (nil on success). A node is
// never dispatched before every node in its Dependencies has completed
// successfully. After any task fails, no further tasks are dispatched,
// though tasks already in flight are allowed to finish naturally.
func (c *Conductor) Run(ctx context.Context, nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	logger := hexlog.FromContext(ctx)

	readyQueue := make(chan *Node, len(nodes)+1)
	completion := make(chan struct{}, len(nodes))
	var anyFailed atomic.Bool
	var shutdownOnce sync.Once
	var firstErrOnce sync.Once
	var firstErr error

	// triggerShutdown places the SHUTDOWN sentinel on the queue exactly
	// once. Each worker that subsequently dequeues it re-enqueues it before
	// exiting (see the worker loop below), so it reaches every worker still
	// running; the last worker to exit leaves it in the queue.
	triggerShutdown := func() {
		shutdownOnce.Do(func() {
			readyQueue <- shutdown
		})
	}

	recordFailure := func(err error) {
		anyFailed.Store(true)
		firstErrOnce.Do(func() { firstErr = err })
	}

	seeded := 0
	for _, n := range nodes {
		if n.PendingCount() == 0 {
			readyQueue <- n
			seeded++
		}
	}
	logger.Debug("seeded ready queue", "root_count", seeded, "total", len(nodes))

	var skipDependents func(n *Node) int
	skipDependents = func(n *Node) int {
		skipped := 0
		for _, dependent := range n.ReverseDependencies {
			if dependent.Skip(fmt.Errorf("skipped due to upstream failure of %q", n.ID)) {
				logger.Warn("skipping dependent node due to upstream failure", "node", dependent.ID, "dependency", n.ID)
				skipped += 1 + skipDependents(dependent)
			}
		}
		return skipped
	}

	worker := func(workerID int) {
		for n := range readyQueue {
			if n == shutdown {
				readyQueue <- shutdown
				return
			}

			workerLogger := logger.With("worker", workerID, "node", n.ID)

			// Once any task has failed, no further tasks are dispatched;
			// a task already in flight when that happens is left to
			// finish naturally (its goroutine is past this check).
			if anyFailed.Load() || ctx.Err() != nil {
				cause := ctx.Err()
				if cause == nil {
					cause = fmt.Errorf("not dispatched: run aborted after an earlier task failure")
				}
				if n.Skip(cause) {
					completion <- struct{}{}
				}
				continue
			}

			workerLogger.Debug("dispatching node")
			n.SetState(graph.Running)
			_, err := c.Executor.Run(ctx, n.Payload)

			if err != nil {
				workerLogger.Error("node failed", "error", err)
				n.Skip(err)
				recordFailure(fmt.Errorf("building %q: %w", n.ID, err))
				triggerShutdown()
				// Every transitive dependent is marked skipped before any
				// completion is signalled, so Run never returns while the
				// cascade is still in progress.
				skipped := skipDependents(n)
				for i := 0; i <= skipped; i++ {
					completion <- struct{}{}
				}
				return
			}

			workerLogger.Debug("node finished")
			n.SetState(graph.Done)
			completion <- struct{}{}

			for _, dependent := range n.ReverseDependencies {
				if dependent.DependencyFinished() == 0 {
					workerLogger.Debug("unlocking dependent", "dependent", dependent.ID)
					readyQueue <- dependent
				}
			}
		}
	}

	for i := 0; i < c.Concurrency; i++ {
		go worker(i)
	}

	for i := 0; i < len(nodes); i++ {
		<-completion
		if anyFailed.Load() {
			logger.Info("aborting after task failure", "completed_or_skipped", i+1, "total", len(nodes))
			return firstErr
		}
	}

	triggerShutdown()
	return nil
}
