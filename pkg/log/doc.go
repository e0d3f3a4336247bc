/*
Package log provides structured logging for burrow using zerolog.

A single global Logger is configured once with Init, normally from the
daemon configuration, and child loggers add context fields:

  - WithComponent("broker-adapter") adds component
  - WithWorkspaceID("ws1") adds workspace_id
  - WithRuntime(...) adds workspace_id, owner_id, env_name and namespace

Levels are debug, info, warn and error. Unknown level strings fall back to
info. Output is human-readable console text unless JSONOutput is set:

	log.Init(log.Config{
		Level:      log.ParseLevel(cfg.Log.Level),
		JSONOutput: cfg.Log.JSON,
	})

	logger := log.WithWorkspaceID(runtimeID.WorkspaceID)
	logger.Info().Int("plugins", len(plugins)).Msg("Plugin brokering completed")

Until Init is called the Logger is zero-valued and discards everything,
which keeps tests and short-lived commands quiet.
*/
package log
