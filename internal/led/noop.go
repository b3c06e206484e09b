package led

import "log/slog"

// noop is used on machines without usable LEDs.
type noop struct {
	logger *slog.Logger
}

func newNoop(logger *slog.Logger) *noop {
	return &noop{logger: logger}
}

func (n *noop) Set(role string, on bool, pattern string) error {
	n.logger.Debug("LED control not available", "role", role, "on", on, "pattern", pattern)
	return nil
}

func (n *noop) Roles() []string {
	return []string{}
}
