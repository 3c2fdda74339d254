// Package processor hosts one worker per simulated core.  A worker consumes
// the slices dispatched to its core, touches the process memory, burns the
// slice budget and reports a Completion.  Running slices are interrupted
// through context cancel causes.
package processor
