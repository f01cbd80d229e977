/*
Package log provides structured logging for conclave using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific child loggers, configurable levels, and a small set of
package-level helpers for the common cases. All logs carry timestamps and
support filtering by severity.

# Usage

Initializing the logger:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers:

	schedLog := log.WithComponent("scheduler")
	schedLog.Info().Str("task_id", taskID).Msg("task ready")

	agentLog := log.WithAgentID(agent.ID).With().Str("component", "runtime").Logger()
	agentLog.Error().Err(err).Msg("handler failed")

# Conventions

  - Use WithComponent for a subsystem-scoped logger (supervisor, scheduler,
    registry, httpapi, ...).
  - Use WithAgentID / WithTaskID / WithVoteID when a single entity's
    lifecycle is being traced across several log lines.
  - Never log full message payloads; log their kind, from, to and id.
*/
package log
