// Package process defines the process control block, its lifecycle state
// machine and workload categories.
package process
