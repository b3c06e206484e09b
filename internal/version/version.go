// Package version carries build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/smazurov/edgeviewer/internal/version.Version=v0.3.0 \
//		-X github.com/smazurov/edgeviewer/internal/version.GitCommit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is reported by /api/version and the build_info metric.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Detector  string `json:"detector"`
}

// Get returns version and build information. detector names the edge
// detector compiled in.
func Get(detector string) Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
		Detector:  detector,
	}
}

// String returns the version, with the commit when one was injected.
func String() string {
	if GitCommit == "unknown" || GitCommit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, GitCommit)
}
