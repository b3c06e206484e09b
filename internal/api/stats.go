package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/edgeviewer/internal/api/models"
)

func (s *Server) registerStatsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-stats",
		Method:      http.MethodGet,
		Path:        "/api/stats",
		Summary:     "Pipeline Stats",
		Description: "Counters for capture, pipeline, gate, relays and display",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.StatsResponse, error) {
		return &models.StatsResponse{Body: s.collectStats()}, nil
	})
}

func (s *Server) collectStats() models.StatsData {
	o := s.options
	data := models.StatsData{
		Pipeline: o.Pipeline.Stats(),
		Gate:     o.Gate.Stats(),
	}
	if o.Capture != nil {
		st := o.Capture.Stats()
		data.Capture = &st
	}
	if o.Display != nil {
		st := o.Display.Stats()
		data.Display = &st
	}
	if o.DisplayRelay != nil {
		st := o.DisplayRelay.Stats()
		data.DisplayRelay = &st
	}
	if o.NetworkRelay != nil {
		st := o.NetworkRelay.Stats()
		data.NetworkRelay = &st
	}
	return data
}
