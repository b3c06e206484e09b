package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/edgeviewer/internal/logging"
)

// Runtime holds the settings that may change while the process runs.
// The config watcher reloads it on every edit of the config file.
type Runtime struct {
	// EdgeDetection is nil when the file does not set pipeline.edge_detection.
	EdgeDetection *bool
	Logging       logging.Config
}

type runtimeFile struct {
	Pipeline struct {
		EdgeDetection *bool `toml:"edge_detection"`
	} `toml:"pipeline"`
	Logging map[string]any `toml:"logging"`
}

// LoadRuntime reads the reloadable part of the config file at path.
func LoadRuntime(path string) (Runtime, error) {
	rt := Runtime{Logging: DefaultLogging()}

	data, err := os.ReadFile(path)
	if err != nil {
		return rt, err
	}

	var raw runtimeFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return rt, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	rt.EdgeDetection = raw.Pipeline.EdgeDetection
	applyLogging(&rt.Logging, raw.Logging)
	return rt, nil
}

// DefaultLogging returns the logging config used when the file sets nothing.
func DefaultLogging() logging.Config {
	return logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
}

// applyLogging copies a [logging] table into cfg. Keys other than level
// and format are module names.
func applyLogging(cfg *logging.Config, table map[string]any) {
	for key, value := range table {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = s
		case "format":
			cfg.Format = s
		default:
			cfg.Modules[key] = s
		}
	}
}
