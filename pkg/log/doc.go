/*
Package log provides structured logging for the storage engine using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, and helper functions
for the fields the storage engine logs most often: block number, table name,
and chain ID. All logs include timestamps and support filtering by severity
level.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})
	logger := log.WithTable("headers")
	logger.Info().Uint64("block_number", 42).Msg("appended header")
*/
package log
