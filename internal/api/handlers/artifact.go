package handlers

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/sedconv/internal/storage"
	"github.com/RMahshie/sedconv/pkg/models"
)

// ArtifactHandler serves pipeline output artifacts from the artifact store
type ArtifactHandler struct {
	store storage.ArtifactStore
}

// NewArtifactHandler creates a new artifact handler
func NewArtifactHandler(store storage.ArtifactStore) *ArtifactHandler {
	return &ArtifactHandler{store: store}
}

// GetArtifact returns the raw content of one artifact
func (h *ArtifactHandler) GetArtifact(ctx context.Context, req *models.GetArtifactRequest) (*models.GetArtifactResponse, error) {
	if req.Key == "" {
		return nil, huma.Error400BadRequest("Artifact key is required")
	}

	data, err := h.store.Get(ctx, req.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, huma.Error404NotFound("Artifact not found", err)
	}
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to read artifact", err)
	}

	return &models.GetArtifactResponse{
		ContentType: storage.ContentTypeFor(req.Key),
		Body:        data,
	}, nil
}
