package scheduler

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WatchSignals shuts the job down when the process receives an interrupt or
// termination signal (or the listed signals, when given). It returns a
// channel that closes once shutdown has completed, so main can block on it:
//
//	done := scheduler.WatchSignals(job)
//	<-done
func WatchSignals(j *Job, signals ...os.Signal) <-chan struct{} {
	if len(signals) == 0 {
		signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, signals...)

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigChan
		signal.Stop(sigChan)
		if j.log != nil {
			j.log.Info("termination signal received, shutting down")
		}
		_ = j.Shutdown(context.Background())
	}()
	return done
}
