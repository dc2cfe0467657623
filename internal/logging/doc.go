// Package logging provides structured logging for claudelink.
//
// Logs are JSON lines produced by log/slog and written to {logDir}/debug.log
// through a size-rotating writer. Child loggers carry persistent context:
//
//	logger, err := logging.NewLogger(dir, "DEBUG", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLog := logger.WithComponent("supervisor").WithSession(id).WithRun(runID)
//	runLog.Info("process started", "pid", pid)
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"process started","component":"supervisor","session_id":"...","run_id":1000000,"pid":4242}
//
// ReadDebugLog and Filter read the file back for the "logs --debug" command.
// All types are safe for concurrent use.
package logging
