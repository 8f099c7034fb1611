package requests

import (
	"context"
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes request persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a requests repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new request row.
func (r *Repository) Create(ctx context.Context, request *models.Request) error {
	return r.db.WithContext(ctx).Create(request).Error
}

// FindByID loads a request.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var request models.Request
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// Update applies the given column updates to a request.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// CountOpenChildren counts undecided renewals hanging off the origin request.
func (r *Repository) CountOpenChildren(ctx context.Context, parentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("parent_id = ?", parentID).
		Where("status IN ?", []enums.RequestStatus{enums.RequestStatusPending, enums.RequestStatusQuestion}).
		Count(&count).Error
	return count, err
}

// FindApprovedForPartner returns the partner's approved, not yet dispatched
// requests.
func (r *Repository) FindApprovedForPartner(ctx context.Context, partnerID uuid.UUID) ([]models.Request, error) {
	var requests []models.Request
	err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Where("status = ?", enums.RequestStatusApproved).
		Order("date_created ASC").
		Find(&requests).Error
	return requests, err
}

// ListFilters narrows request listings.
type ListFilters struct {
	Status        *enums.RequestStatus
	PartnerID     *uuid.UUID
	RequesterID   *uuid.UUID
	IncludeHidden bool
}

// List returns requests newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, params pagination.Params, filters ListFilters) ([]models.Request, string, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).Model(&models.Request{})
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.PartnerID != nil {
		query = query.Where("partner_id = ?", *filters.PartnerID)
	}
	if filters.RequesterID != nil {
		query = query.Where("requester_id = ?", *filters.RequesterID)
	}
	if !filters.IncludeHidden {
		query = query.Where("hidden = ?", false)
	}
	if decodedCursor != nil {
		query = query.Where(
			"(date_created < ?) OR (date_created = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID,
		)
	}

	var requests []models.Request
	if err := query.
		Order("date_created DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&requests).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(requests) > normalizedLimit {
		requests = requests[:normalizedLimit]
		last := requests[len(requests)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.DateCreated,
			ID:        last.ID,
		})
	}
	return requests, nextCursor, nil
}

// closeUpdates stamps the closing metadata for a first transition into a
// final status.
func closeUpdates(request *models.Request, now time.Time) map[string]any {
	if request.DateClosed != nil {
		return map[string]any{}
	}
	daysOpen := int(now.Sub(request.DateCreated).Hours() / 24)
	return map[string]any{
		"date_closed": now,
		"days_open":   daysOpen,
	}
}
