/*
Package log provides structured logging for Beacon using zerolog.

The package wraps a global zerolog.Logger with configurable level and output
format, plus child loggers carrying Beacon's common context fields.

# Usage

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	logger := log.WithComponent("manager")
	logger.Info().Str("alert_key", key).Msg("alert created")

	subLog := log.WithSubscriber(addr.String())
	subLog.Debug().Msg("subscription removed")

Console output (the default) is meant for humans; JSON output is meant for
log shippers.
*/
package log
