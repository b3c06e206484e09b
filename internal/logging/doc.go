// Package logging provides structured logging with per-module log level configuration.
//
// Logs go to stdout when a terminal, pipe or file is attached and to the
// systemd journal when journald is reachable. Both are used when both are
// available.
//
// Initialize once at startup, then ask for a module logger:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"pipeline": "debug",
//			"http":     "warn",
//		},
//	})
//
//	logger := logging.GetLogger("pipeline")
//	logger.Info("Pipeline started", "edge_detection", true)
//
// Journal entries carry SYSLOG_IDENTIFIER=edgeviewer and upper-cased attribute
// fields:
//
//	journalctl -t edgeviewer MODULE=capture -f
//
// Levels can be changed at runtime with SetLevel, which the config watcher
// uses when the [logging] table of the config file changes.
package logging
