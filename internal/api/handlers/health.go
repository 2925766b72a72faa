package handlers

import (
	"context"
	"time"

	"github.com/RMahshie/sedconv/pkg/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// Health reports that the service is up
func Health(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
	resp := &models.HealthResponse{}
	resp.Body.Status = "healthy"
	resp.Body.Version = Version
	resp.Body.Time = time.Now()
	return resp, nil
}
