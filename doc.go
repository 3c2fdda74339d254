// Package nodeos simulates one compute node: a pluggable process scheduler
// multiplexing categorised workloads over a fixed set of cores, and a paged
// memory manager with per-category pools, LRU swapping and defragmentation.
//
// Typical use:
//
//	srv, err := nodeos.New(nodeos.WithConfig(config))
//	runtime := srv.Runtime()
//	err = runtime.Start(ctx)
//	id, err := runtime.Submit(ctx, &orchestrator.Request{Category: process.CategoryCompute, Memory: 1 << 20})
//	snapshot := runtime.Snapshot(ctx)
//	err = runtime.Shutdown(ctx)
package nodeos
