package grants

import (
	"context"
	"fmt"
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Service exposes grant reads to the HTTP layer.
type Service interface {
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*GrantListDTO, error)
}

type listRepository interface {
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Grant, string, error)
}

type service struct {
	repo listRepository
}

// NewService builds the grant listing service.
func NewService(repo listRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("grants repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*GrantListDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	grants, nextCursor, err := s.repo.ListForUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list grants")
	}

	now := time.Now().UTC()
	items := make([]GrantDTO, 0, len(grants))
	for _, grant := range grants {
		items = append(items, FromModel(grant, now))
	}
	return &GrantListDTO{Items: items, NextCursor: nextCursor}, nil
}
