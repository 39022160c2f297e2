// Package logger provides structured logging for pipekit built on zerolog.
//
// A Logger is cheap to copy and safe for concurrent use. Components obtain
// child loggers via WithComponent so every line carries its origin:
//
//	log := logger.NewDefault("pipekit")
//	engineLog := log.WithComponent("engine")
//	engineLog.Info("run completed", map[string]interface{}{
//	    logger.FieldRunID: rec.RunID,
//	})
package logger
