// Package scheduler implements the ready-set policies of the node: FIFO,
// round robin, priority with optional preemption, a multi-level feedback
// queue and a predictive policy driven by learned category statistics.
//
// A Strategy only decides; it never changes record state.  The caller holds
// the scheduling lock, applies every Assignment and reports completions
// through Requeue or the strategy Recorder.
package scheduler
