package partners

import (
	"context"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes partner and collection persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a partners repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx rebinds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a partner.
func (r *Repository) Create(ctx context.Context, partner *models.Partner) error {
	return r.db.WithContext(ctx).Create(partner).Error
}

// FindByID loads a partner.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Partner, error) {
	var partner models.Partner
	if err := r.db.WithContext(ctx).First(&partner, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

// Update applies the given column updates to a partner.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Partner{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// List returns partners newest first with cursor pagination.
func (r *Repository) List(ctx context.Context, params pagination.Params) ([]models.Partner, string, error) {
	normalizedLimit := pagination.NormalizeLimit(params.Limit)
	decodedCursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	query := r.db.WithContext(ctx).Model(&models.Partner{})
	if decodedCursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			decodedCursor.CreatedAt, decodedCursor.CreatedAt, decodedCursor.ID,
		)
	}

	var partners []models.Partner
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&partners).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(partners) > normalizedLimit {
		partners = partners[:normalizedLimit]
		last := partners[len(partners)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return partners, nextCursor, nil
}

// FindCollections loads a partner's collections.
func (r *Repository) FindCollections(ctx context.Context, partnerID uuid.UUID) ([]models.Collection, error) {
	var collections []models.Collection
	err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at ASC").
		Find(&collections).Error
	return collections, err
}

// CountCollections counts a partner's collections.
func (r *Repository) CountCollections(ctx context.Context, partnerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Collection{}).
		Where("partner_id = ?", partnerID).
		Count(&count).Error
	return count, err
}

// CreateCollection inserts a collection.
func (r *Repository) CreateCollection(ctx context.Context, collection *models.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

// FindCollection loads one collection.
func (r *Repository) FindCollection(ctx context.Context, id uuid.UUID) (*models.Collection, error) {
	var collection models.Collection
	if err := r.db.WithContext(ctx).First(&collection, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &collection, nil
}

// DeleteCollection removes a collection.
func (r *Repository) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Collection{}, "id = ?", id).Error
}

// InsertAccessCodes adds codes to the partner's pool, skipping duplicates.
func (r *Repository) InsertAccessCodes(ctx context.Context, partnerID uuid.UUID, codes []string) (int, error) {
	added := 0
	for _, code := range codes {
		result := r.db.WithContext(ctx).Exec(
			`INSERT INTO access_codes (id, partner_id, code, created_at, updated_at)
			 VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			 ON CONFLICT (partner_id, code) DO NOTHING`,
			uuid.New(), partnerID, code,
		)
		if result.Error != nil {
			return added, result.Error
		}
		added += int(result.RowsAffected)
	}
	return added, nil
}
