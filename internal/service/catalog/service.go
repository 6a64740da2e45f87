package catalog

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
)

// Service handles the tools catalog. Payload shape is not validated; whatever
// the client sends is stored.
type Service struct {
	tools  repository.ToolRepository
	logger *slog.Logger
}

// New constructs a Service.
func New(tools repository.ToolRepository, logger *slog.Logger) Service {
	return Service{tools: tools, logger: logger}
}

// List returns all catalog entries.
func (s Service) List(ctx context.Context) ([]domain.Document, error) {
	return s.tools.ListTools(ctx)
}

// Get fetches one entry by identifier.
func (s Service) Get(ctx context.Context, id string) (*domain.Document, error) {
	return s.tools.GetToolByID(ctx, id)
}

// Create stores a new entry under a generated identifier and returns it.
func (s Service) Create(ctx context.Context, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.tools.InsertTool(ctx, id, fields); err != nil {
		return "", err
	}
	s.logger.Info("tool created", "tool_id", id)
	return id, nil
}

// Update merges fields into the entry for id, inserting when absent.
func (s Service) Update(ctx context.Context, id string, fields map[string]any) (domain.WriteResult, error) {
	return s.tools.MergeTool(ctx, id, fields)
}

// Delete removes an entry. Deleting an unknown identifier succeeds with a
// zero deleted count.
func (s Service) Delete(ctx context.Context, id string) (int64, error) {
	return s.tools.DeleteTool(ctx, id)
}
