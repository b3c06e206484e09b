package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/edgeviewer/internal/api/models"
	"github.com/smazurov/edgeviewer/internal/devices"
)

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	List() ([]devices.Device, error)
}

func (s *Server) registerDeviceRoutes() {
	if s.options.Devices == nil {
		return
	}

	huma.Register(s.api, huma.Operation{
		OperationID: "list-devices",
		Method:      http.MethodGet,
		Path:        "/api/devices",
		Summary:     "List Devices",
		Description: "List V4L2 capture devices with their formats. The id of a device is accepted as capture device.",
		Tags:        []string{"devices"},
		Security:    withAuth(),
		Errors:      []int{401, 500},
	}, func(_ context.Context, _ *struct{}) (*models.DevicesResponse, error) {
		found, err := s.options.Devices.List()
		if err != nil {
			s.logger.Error("Failed to list devices", "error", err)
			return nil, huma.Error500InternalServerError("Failed to list devices", err)
		}

		data := models.DevicesData{Devices: make([]models.DeviceInfo, 0, len(found))}
		for _, d := range found {
			info := models.DeviceInfo{
				ID:      d.ID,
				Path:    d.Path,
				Name:    d.Name,
				Formats: make([]models.DeviceFormat, 0, len(d.Formats)),
			}
			for _, f := range d.Formats {
				info.Formats = append(info.Formats, models.DeviceFormat{
					FourCC:      f.FourCC,
					Description: f.Description,
					Sizes:       f.Sizes,
				})
			}
			data.Devices = append(data.Devices, info)
		}
		data.Count = len(data.Devices)
		return &models.DevicesResponse{Body: data}, nil
	})
}
