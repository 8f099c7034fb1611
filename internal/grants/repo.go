package grants

import (
	"context"
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes grant reads for controllers and the proxy issuer.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a grants repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// ListForUser returns the user's grants newest first with cursor pagination.
func (r *Repository) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Grant, string, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).
		Preload("Partners").
		Where("user_id = ?", userID)

	if decodedCursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID,
		)
	}

	var grants []models.Grant
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&grants).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(grants) > normalizedLimit {
		grants = grants[:normalizedLimit]
		last := grants[len(grants)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return grants, nextCursor, nil
}

// FindForScope returns the user's grant for one (partner, collection) scope.
func (r *Repository) FindForScope(ctx context.Context, userID, partnerID uuid.UUID, collectionID *uuid.UUID) (*models.Grant, error) {
	query := r.db.WithContext(ctx).
		Joins("JOIN grant_partners gp ON gp.grant_id = grants.id").
		Where("gp.partner_id = ?", partnerID).
		Where("grants.user_id = ?", userID)
	if collectionID != nil {
		query = query.Where("grants.collection_id = ?", *collectionID)
	} else {
		query = query.Where("grants.collection_id IS NULL")
	}

	var grant models.Grant
	if err := query.First(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

// FindValidForUser loads the user's currently valid grants with their partner
// sets attached. The proxy issuer derives group memberships from this.
func (r *Repository) FindValidForUser(ctx context.Context, userID uuid.UUID, now time.Time) ([]models.Grant, error) {
	today := now.Truncate(24 * time.Hour)

	var grants []models.Grant
	err := r.db.WithContext(ctx).
		Preload("Partners").
		Where("user_id = ?", userID).
		Where("authorizer_id IS NOT NULL").
		Where("date_authorized IS NOT NULL").
		Where("date_authorized <= ?", now).
		Where("date_expires IS NULL OR date_expires >= ?", today).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// FindExpiringBetween returns valid grants whose expiry falls inside the
// window and that have not yet been reminded.
func (r *Repository) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]models.Grant, error) {
	var grants []models.Grant
	err := r.db.WithContext(ctx).
		Preload("Partners").
		Where("user_id IS NOT NULL").
		Where("authorizer_id IS NOT NULL").
		Where("date_authorized IS NOT NULL").
		Where("reminder_email_sent = ?", false).
		Where("date_expires IS NOT NULL").
		Where("date_expires >= ? AND date_expires <= ?", from, to).
		Find(&grants).Error
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// MarkReminderSent flags the grant so the expiry reminder fires once.
func (r *Repository) MarkReminderSent(ctx context.Context, grantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Grant{}).
		Where("id = ?", grantID).
		UpdateColumn("reminder_email_sent", true).Error
}
