package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/edgeviewer/internal/api/models"
)

// sourceAPI tags toggle changes made over HTTP.
const sourceAPI = "api"

func (s *Server) registerEdgeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-edge-detection",
		Method:      http.MethodGet,
		Path:        "/api/edge-detection",
		Summary:     "Get Edge Detection",
		Description: "Report whether edge detection is applied to new frames",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EdgeDetectionResponse, error) {
		return &models.EdgeDetectionResponse{
			Body: models.EdgeDetectionData{Enabled: s.options.Pipeline.EdgeDetection()},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "set-edge-detection",
		Method:      http.MethodPut,
		Path:        "/api/edge-detection",
		Summary:     "Set Edge Detection",
		Description: "Enable or disable edge detection. Takes effect from the next frame.",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{400, 401, 422},
	}, func(_ context.Context, input *models.EdgeDetectionRequest) (*models.EdgeDetectionChangeResponse, error) {
		prev := s.options.Pipeline.SetEdgeDetection(input.Body.Enabled, sourceAPI)
		return &models.EdgeDetectionChangeResponse{
			Body: models.EdgeDetectionChangeData{Enabled: input.Body.Enabled, Previous: prev},
		}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "toggle-edge-detection",
		Method:      http.MethodPost,
		Path:        "/api/edge-detection/toggle",
		Summary:     "Toggle Edge Detection",
		Description: "Flip the edge detection toggle and return the new value",
		Tags:        []string{"pipeline"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.EdgeDetectionChangeResponse, error) {
		enabled := s.options.Pipeline.ToggleEdgeDetection(sourceAPI)
		return &models.EdgeDetectionChangeResponse{
			Body: models.EdgeDetectionChangeData{Enabled: enabled, Previous: !enabled},
		}, nil
	})
}
