/*
Package log provides structured logging for burrow using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs
include timestamps and support filtering by severity level.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Thread-safe concurrent writes

Context Loggers:
  - WithComponent: add component name ("manager", "partition", "transport")
  - WithChannel: add pub/sub channel name
  - WithPartition: add partition slot upper bound
  - WithConnID: add connection identity

# Usage

Initializing the Logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Structured Logging:

	log.Logger.Debug().
		Int("slot", slot).
		Str("key", key).
		Msg("resolved slot")

	mgrLog := log.WithComponent("manager")
	mgrLog.Info().Str("channel", name).Msg("resubscribed listeners")

# Integration Points

This package integrates with:

  - pkg/manager: subscription, failover, and shutdown events
  - pkg/partition: replica up/down and master changes
  - pkg/transport: connection dial and close events
*/
package log
