package grants

import (
	"context"
	"errors"
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// IssueInput carries everything the engine needs to issue or refresh a grant
// inside the caller's admission transaction.
type IssueInput struct {
	UserID          uuid.UUID
	AuthorizerID    uuid.UUID
	Partner         *models.Partner
	Collection      *models.Collection
	RequestedMonths *enums.AccessDuration
	Renewal         bool
}

// Engine issues grants and recomputes expiry. One user holds at most one
// grant per (partner, collection) scope; renewals refresh that grant instead
// of duplicating it.
type Engine struct{}

// NewEngine builds a grant engine.
func NewEngine() *Engine {
	return &Engine{}
}

// IssueOrUpdate finds the user's grant for the partner scope and refreshes
// it, or creates one. Bundle partners share a single grant spanning the whole
// bundle set.
func (e *Engine) IssueOrUpdate(ctx context.Context, tx *gorm.DB, input IssueInput) (*models.Grant, error) {
	if input.Partner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "partner required")
	}
	if input.UserID == uuid.Nil || input.AuthorizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user and authorizer required")
	}

	now := time.Now().UTC()
	expires := ComputeExpiry(input.Partner, input.Collection, input.RequestedMonths, now)

	partnerSet := []models.Partner{*input.Partner}
	if input.Partner.AuthMethod == enums.AuthMethodBundle {
		set, err := e.bundlePartners(ctx, tx)
		if err != nil {
			return nil, err
		}
		partnerSet = set
	}

	existing, err := e.findGrant(ctx, tx, input.UserID, input.Partner.ID, collectionID(input.Collection))
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find grant")
	}

	if existing != nil {
		updates := map[string]any{
			"authorizer_id":       input.AuthorizerID,
			"date_authorized":     now,
			"date_expires":        expires,
			"reminder_email_sent": false,
		}
		if err := tx.WithContext(ctx).Model(&models.Grant{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh grant")
		}
		if input.Partner.AuthMethod == enums.AuthMethodBundle {
			if err := tx.WithContext(ctx).Model(existing).
				Association("Partners").Replace(partnerSet); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh bundle partners")
			}
		}
		existing.AuthorizerID = &input.AuthorizerID
		existing.DateAuthorized = &now
		existing.DateExpires = expires
		existing.ReminderEmailSent = false
		existing.Partners = partnerSet
		return existing, nil
	}

	grant := &models.Grant{
		UserID:         &input.UserID,
		AuthorizerID:   &input.AuthorizerID,
		CollectionID:   collectionID(input.Collection),
		DateAuthorized: &now,
		DateExpires:    expires,
		Partners:       partnerSet,
	}
	if err := tx.WithContext(ctx).Create(grant).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create grant")
	}

	// A concurrent writer may have slipped a duplicate past the lookup.
	count, err := e.countGrants(ctx, tx, input.UserID, input.Partner.ID, collectionID(input.Collection))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify grant uniqueness")
	}
	if count > 1 {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "grant already exists for this scope")
	}
	return grant, nil
}

// Backfill stamps an expiry on the partner's valid never-expiring grants
// using the current partner configuration. Grants that already carry an
// expiry are untouched, so the operation is idempotent.
func (e *Engine) Backfill(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) (int, error) {
	var partner models.Partner
	if err := tx.WithContext(ctx).First(&partner, "id = ?", partnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "partner not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}

	now := time.Now().UTC()
	var grants []models.Grant
	if err := tx.WithContext(ctx).
		Joins("JOIN grant_partners gp ON gp.grant_id = grants.id").
		Where("gp.partner_id = ?", partnerID).
		Where("grants.date_expires IS NULL").
		Where("grants.user_id IS NOT NULL").
		Where("grants.authorizer_id IS NOT NULL").
		Where("grants.date_authorized IS NOT NULL").
		Find(&grants).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load grants")
	}

	updated := 0
	for i := range grants {
		grant := &grants[i]
		collection, err := e.loadCollection(ctx, tx, grant.CollectionID)
		if err != nil {
			return updated, err
		}
		expires := ComputeExpiry(&partner, collection, nil, now)
		if expires == nil {
			continue
		}
		if err := tx.WithContext(ctx).Model(&models.Grant{}).
			Where("id = ?", grant.ID).
			UpdateColumn("date_expires", expires).Error; err != nil {
			return updated, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp expiry")
		}
		updated++
	}
	return updated, nil
}

func (e *Engine) findGrant(ctx context.Context, tx *gorm.DB, userID, partnerID uuid.UUID, collID *uuid.UUID) (*models.Grant, error) {
	var grant models.Grant
	if err := e.scopeQuery(ctx, tx, userID, partnerID, collID).First(&grant).Error; err != nil {
		return nil, err
	}
	return &grant, nil
}

func (e *Engine) countGrants(ctx context.Context, tx *gorm.DB, userID, partnerID uuid.UUID, collID *uuid.UUID) (int64, error) {
	var count int64
	err := e.scopeQuery(ctx, tx, userID, partnerID, collID).Count(&count).Error
	return count, err
}

func (e *Engine) scopeQuery(ctx context.Context, tx *gorm.DB, userID, partnerID uuid.UUID, collID *uuid.UUID) *gorm.DB {
	query := tx.WithContext(ctx).
		Model(&models.Grant{}).
		Joins("JOIN grant_partners gp ON gp.grant_id = grants.id").
		Where("gp.partner_id = ?", partnerID).
		Where("grants.user_id = ?", userID)
	if collID != nil {
		return query.Where("grants.collection_id = ?", *collID)
	}
	return query.Where("grants.collection_id IS NULL")
}

func (e *Engine) bundlePartners(ctx context.Context, tx *gorm.DB) ([]models.Partner, error) {
	var partners []models.Partner
	if err := tx.WithContext(ctx).
		Where("auth_method = ?", enums.AuthMethodBundle).
		Find(&partners).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bundle partners")
	}
	if len(partners) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "no bundle partners configured")
	}
	return partners, nil
}

func (e *Engine) loadCollection(ctx context.Context, tx *gorm.DB, id *uuid.UUID) (*models.Collection, error) {
	if id == nil {
		return nil, nil
	}
	var collection models.Collection
	if err := tx.WithContext(ctx).First(&collection, "id = ?", *id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load collection")
	}
	return &collection, nil
}

func collectionID(collection *models.Collection) *uuid.UUID {
	if collection == nil {
		return nil
	}
	id := collection.ID
	return &id
}
