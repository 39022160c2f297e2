// Package store persists the last successful output of each pipeline stage,
// keyed by (pipeline identity, stage identity), so stages can compute deltas
// between scheduled runs and skip redundant work.
//
// The execution engine only ever calls Put after a stage succeeds; it never
// inspects stored values. Stages own the diffing logic and read their own
// prior state through Get, typically via Decode:
//
//	st, ok, err := s.Get(ctx, "sensors", "harvest")
//	if err == nil && ok {
//	    prev, _ := store.Decode[[]Device](st)
//	    // emit only new/changed devices
//	}
//
// Backends: Memory (process-local), File (JSON on disk), Redis, and
// Postgres. Every backend serializes concurrent writes to the same key;
// stored state is never deleted automatically.
package store
