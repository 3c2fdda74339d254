// Package policy decides what happens to a process whose memory access
// faulted: wait for memory to be released and retry, or terminate.  A policy
// can be configured globally or attached to a single submission via context.
package policy
