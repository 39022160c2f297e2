// Package scheduler drives repeated runs of one pipeline, either at a fixed
// interval or per a cron expression.
//
// Each Job owns a single background timer loop. Fire events that arrive
// while a run is still executing are queued, never started concurrently: at
// most one run of a given job is in flight, and queued fires drain strictly
// in order once the active run completes. By default the pending queue holds
// a single fire, so redundant catch-up fires collapse to the most recent
// one; raise QueueSize to execute missed fires instead.
//
//	rule, err := scheduler.NewRule(scheduler.RuleConfig{Interval: time.Hour})
//	job, err := scheduler.NewJob("sensors", rule, scheduler.Bind(engine, graph, nil),
//	    scheduler.WithRecordCallback(record))
//	job.Start()
//	defer job.Shutdown(context.Background())
//
// Shutdown stops the timer, lets the active run finish, and returns only
// after that run has reached a terminal state; it never abandons a run
// mid-flight.
package scheduler
