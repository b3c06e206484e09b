// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/edgeviewer/internal/capture"
	"github.com/smazurov/edgeviewer/internal/display"
	"github.com/smazurov/edgeviewer/internal/gate"
	"github.com/smazurov/edgeviewer/internal/pipeline"
	"github.com/smazurov/edgeviewer/internal/relay"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"Pipeline running" doc:"Status message"`
	Frames  uint64 `json:"frames" example:"1024" doc:"Frames completed since start"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
	Detector  string `json:"detector" example:"canny" doc:"Edge detector compiled in: canny or opencv"`
}

type VersionResponse struct {
	Body VersionData
}

// Edge detection models
type EdgeDetectionData struct {
	Enabled bool `json:"enabled" example:"true" doc:"Whether edge detection is applied to new frames"`
}

type EdgeDetectionResponse struct {
	Body EdgeDetectionData
}

type EdgeDetectionRequest struct {
	Body EdgeDetectionData
}

type EdgeDetectionChangeData struct {
	Enabled  bool `json:"enabled" example:"false" doc:"New toggle value"`
	Previous bool `json:"previous" example:"true" doc:"Toggle value before the request"`
}

type EdgeDetectionChangeResponse struct {
	Body EdgeDetectionChangeData
}

// Frame models
type FrameRequest struct {
	IfNoneMatch string `header:"If-None-Match" doc:"ETag of a frame the client already has"`
}

type FrameResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	ETag         string `header:"ETag"`
	Seq          string `header:"X-Frame-Seq" doc:"Network relay sequence number"`
	Size         string `header:"X-Frame-Size" doc:"Frame dimensions as WIDTHxHEIGHT"`
	Body         []byte
}

// Stats models
type StatsData struct {
	Pipeline     pipeline.Stats `json:"pipeline" doc:"Pipeline counters"`
	Gate         gate.Stats     `json:"gate" doc:"Edge detection gate counters"`
	Capture      *capture.Stats `json:"capture,omitempty" doc:"Capture handoff counters"`
	Display      *display.Stats `json:"display,omitempty" doc:"Display sink counters"`
	DisplayRelay *relay.Stats   `json:"display_relay,omitempty" doc:"Display relay counters"`
	NetworkRelay *relay.Stats   `json:"network_relay,omitempty" doc:"Network relay counters"`
}

type StatsResponse struct {
	Body StatsData
}

// Device models
type DeviceFormat struct {
	FourCC      string   `json:"fourcc" example:"YU12" doc:"V4L2 pixel format code"`
	Description string   `json:"description" example:"Planar YUV 4:2:0" doc:"Driver description"`
	Sizes       []string `json:"sizes" example:"[\"640x480\"]" doc:"Supported frame sizes"`
}

type DeviceInfo struct {
	ID      string         `json:"id" example:"usb-Acme_USB_Camera-video-index0" doc:"Stable device identifier, usable as capture device"`
	Path    string         `json:"path" example:"/dev/video0" doc:"Device node"`
	Name    string         `json:"name" example:"USB Camera" doc:"Driver reported name"`
	Formats []DeviceFormat `json:"formats" doc:"Capture formats"`
}

type DevicesData struct {
	Devices []DeviceInfo `json:"devices" doc:"V4L2 capture devices"`
	Count   int          `json:"count" example:"1" doc:"Number of devices"`
}

type DevicesResponse struct {
	Body DevicesData
}
