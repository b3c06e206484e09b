// Package devices enumerates V4L2 capture devices and resolves the stable
// IDs found under /dev/v4l/by-id to device nodes.
package devices

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Resolve when no device has the requested ID.
var ErrNotFound = errors.New("capture device not found")

// Format is one pixel format a device can produce.
type Format struct {
	FourCC      string
	Description string
	Sizes       []string
}

// Device describes a video capture node.
type Device struct {
	ID      string
	Path    string
	Name    string
	Index   int
	Formats []Format
}

// Lister reads sysfs and /dev to find capture devices.
type Lister struct {
	sysRoot string
	devRoot string
	probe   func(path string) ([]Format, error)
	logger  *slog.Logger
}

// NewLister returns a lister over the live system.
func NewLister(logger *slog.Logger) *Lister {
	return &Lister{
		sysRoot: "/sys/class/video4linux",
		devRoot: "/dev",
		probe:   probeFormats,
		logger:  logger,
	}
}

// List returns every node that opens as a streaming capture device, sorted
// by path. Metadata and output nodes are skipped.
func (l *Lister) List() ([]Device, error) {
	entries, err := os.ReadDir(l.sysRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return []Device{}, nil
		}
		return nil, fmt.Errorf("failed to read video4linux directory: %w", err)
	}

	byID := l.stableIDs()
	devices := make([]Device, 0, len(entries))
	for _, entry := range entries {
		node := entry.Name()
		path := filepath.Join(l.devRoot, node)

		formats, err := l.probe(path)
		if err != nil {
			l.logger.Debug("Skipping video node", "path", path, "error", err)
			continue
		}

		index := readSysfsInt(filepath.Join(l.sysRoot, node, "index"))
		id, ok := byID[node]
		if !ok {
			id = fmt.Sprintf("%s-video-index%d", node, index)
		}
		devices = append(devices, Device{
			ID:      id,
			Path:    path,
			Name:    readSysfsString(filepath.Join(l.sysRoot, node, "name")),
			Index:   index,
			Formats: formats,
		})
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Path < devices[j].Path })
	return devices, nil
}

// Resolve maps a device setting to a node path. Absolute paths are returned
// unchanged; anything else is looked up as a stable ID.
func (l *Lister) Resolve(device string) (string, error) {
	if device == "" || filepath.IsAbs(device) {
		return device, nil
	}
	devices, err := l.List()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if d.ID == device {
			return d.Path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, device)
}

// stableIDs maps node names such as video0 to their /dev/v4l/by-id link.
func (l *Lister) stableIDs() map[string]string {
	ids := make(map[string]string)
	dir := filepath.Join(l.devRoot, "v4l", "by-id")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ids
	}
	for _, entry := range entries {
		target, err := os.Readlink(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		ids[filepath.Base(target)] = entry.Name()
	}
	return ids
}

func readSysfsString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readSysfsInt(path string) int {
	n, err := strconv.Atoi(readSysfsString(path))
	if err != nil {
		return 0
	}
	return n
}

func fourCC(code uint32) string {
	return string([]byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)})
}
