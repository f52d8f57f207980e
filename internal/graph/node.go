// Package graph implements TaskNode, the vertex type the planner builds
// and the conductor executes. A Node[T] carries a payload of type T (in
// Hexmake, always a hexfile.Rule) plus the edge sets and atomic readiness
// counter the conductor's worker pool depends on.
package graph

import (
	"sync"
	"sync/atomic"
)

// State is the execution state of a Node as tracked by the conductor.
type State int32

const (
	// Pending indicates the node is waiting for its dependencies to finish.
	Pending State = iota
	// Running indicates a worker is currently executing the node.
	Running
	// Done indicates the node finished successfully.
	Done
	// Failed indicates the node failed, or was skipped due to an upstream
	// failure.
	Failed
)

// Node is a vertex wrapping one payload of type T. Dependency and
// reverse-dependency edges are added only during single-threaded graph
// construction; after construction the graph is handed to the conductor,
// which touches only the atomic pendingCount and state fields, the Error
// field (set at most once, by Skip), and the read-only edge slices.
type Node[T any] struct {
	// ID is a stable, human-readable identifier for the node, used in
	// diagnostics and test assertions. For Hexmake this is the first
	// declared output path of the wrapped rule.
	ID string

	// Payload is the value this node wraps — one Rule.
	Payload T

	// Dependencies holds, in insertion order, the nodes this node must wait
	// for before it becomes ready.
	Dependencies []*Node[T]

	// ReverseDependencies holds, in insertion order, the nodes that depend
	// on this node. It is the exact inverse of Dependencies across the
	// whole graph (invariant G1).
	ReverseDependencies []*Node[T]

	// Error holds the failure, if any, recorded for this node during
	// execution. Nil on success or before execution.
	Error error

	pendingCount atomic.Int32
	state        atomic.Int32
	seen         map[*Node[T]]bool // guards against duplicate AddDependency
	skipOnce     sync.Once
}

// New creates a Node wrapping the given payload, with zero dependencies.
func New[T any](id string, payload T) *Node[T] {
	return &Node[T]{
		ID:      id,
		Payload: payload,
		seen:    make(map[*Node[T]]bool),
	}
}

// AddDependency records that n must wait for other to finish before it can
// run. It is idempotent: adding the same dependency twice has no further
// effect after the first call. Must only be called during single-threaded
// graph construction.
func (n *Node[T]) AddDependency(other *Node[T]) {
	if n.seen[other] {
		return
	}
	n.seen[other] = true
	n.Dependencies = append(n.Dependencies, other)
	other.ReverseDependencies = append(other.ReverseDependencies, n)
	n.pendingCount.Add(1)
}

// PendingCount atomically returns the number of dependencies not yet
// finished.
func (n *Node[T]) PendingCount() int32 {
	return n.pendingCount.Load()
}

// DependencyFinished atomically decrements the pending count and returns
// the new value. Called by the conductor's worker loop from any worker
// goroutine, so it must remain lock-free and safe for concurrent callers
// across distinct nodes.
func (n *Node[T]) DependencyFinished() int32 {
	return n.pendingCount.Add(-1)
}

// State atomically returns the node's current execution state.
func (n *Node[T]) State() State {
	return State(n.state.Load())
}

// SetState atomically sets the node's execution state.
func (n *Node[T]) SetState(s State) {
	n.state.Store(int32(s))
}

// Skip marks the node Failed with err exactly once, even under concurrent
// callers, and reports whether this call was the one that performed the
// transition.
func (n *Node[T]) Skip(err error) (didSkip bool) {
	n.skipOnce.Do(func() {
		n.SetState(Failed)
		n.Error = err
		didSkip = true
	})
	return didSkip
}
