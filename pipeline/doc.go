// Package pipeline provides a validated DAG execution core for
// sensor-metadata registration pipelines.
//
// A pipeline is an explicit graph of stages connected by typed edges. All
// structural checks (duplicate names, dangling edges, input/output type
// compatibility, cycles) happen once at Build time; stage code is never
// invoked during validation. The Engine then walks the cached topological
// order, running independent stages concurrently while preserving
// per-stage dependency ordering, and persists successful outputs to an
// optional store.Store for incremental re-execution.
//
// Stage implementations stay external. The core only sees their declared
// type signatures and their success/failure outcome:
//
//	harvest := pipeline.FromFunc("harvest", pipeline.RoleSource, harvestFn)
//	group := pipeline.FromFunc("group", pipeline.RoleGrouper, groupFn)
//	g, err := pipeline.Build("sensors", []pipeline.Stage{harvest, group},
//	    []pipeline.Edge{{From: "harvest", To: "group"}})
//	if err != nil {
//	    // *GraphError names the violated invariant
//	}
//	rec, err := (&pipeline.Engine{}).Run(ctx, g)
package pipeline
