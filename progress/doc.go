// Package progress keeps aggregated lifecycle counters of the node.  The
// tracker travels in a context so that workers and the orchestrator update
// the same counters without a global registry.
package progress
