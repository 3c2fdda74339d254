// Package memory implements the paged virtual memory of a node: typed
// frame pools with quotas and tiers, per-process page tables, a global
// least-recently-used eviction order, a swap area and defragmentation.
package memory
