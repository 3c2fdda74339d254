// Package orchestrator couples the process lifecycle, the scheduling
// strategy, the memory manager and the core workers.  It owns the
// scheduling lock, the tick loop and the completion drainer.
//
// Lock order is scheduling lock first, memory manager second.
package orchestrator
