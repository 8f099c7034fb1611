package capacity

import (
	"context"
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Remaining is the accountant's answer for one partner or collection scope.
type Remaining struct {
	Unlimited bool `json:"unlimited"`
	Count     int  `json:"count"`
}

// CanAdmit reports whether at least one account slot is free.
func (r Remaining) CanAdmit() bool {
	return r.Unlimited || r.Count > 0
}

// IsFinalSlot reports whether admitting exactly one more request exhausts
// the scope.
func (r Remaining) IsFinalSlot() bool {
	return !r.Unlimited && r.Count == 1
}

// Accountant computes free account slots as capacity minus currently valid
// grants. It always runs inside the caller's transaction so admission
// decisions and grant writes see the same snapshot.
type Accountant struct{}

// NewAccountant builds a capacity accountant.
func NewAccountant() *Accountant {
	return &Accountant{}
}

// Remaining resolves the capacity for the partner, applying the collection
// override when a collection scope is given. A negative balance means grants
// outnumber configured capacity; that is surfaced as an error, never clamped.
func (a *Accountant) Remaining(ctx context.Context, tx *gorm.DB, partner *models.Partner, collection *models.Collection, now time.Time) (Remaining, error) {
	if partner == nil {
		return Remaining{}, pkgerrors.New(pkgerrors.CodeValidation, "partner required")
	}

	capLimit := partner.AccountsAvailable
	var collectionID *uuid.UUID
	if collection != nil {
		collectionID = &collection.ID
		if collection.AccountsAvailable != nil {
			capLimit = collection.AccountsAvailable
		}
	}
	if capLimit == nil {
		return Remaining{Unlimited: true}, nil
	}

	used, err := a.countValidGrants(ctx, tx, partner.ID, collectionID, now)
	if err != nil {
		return Remaining{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count valid grants")
	}

	remaining := *capLimit - int(used)
	if remaining < 0 {
		return Remaining{Count: remaining}, pkgerrors.New(
			pkgerrors.CodeInternal,
			"grant count exceeds configured capacity",
		).WithDetails(map[string]any{
			"partner_id": partner.ID.String(),
			"capacity":   *capLimit,
			"granted":    used,
		})
	}
	return Remaining{Count: remaining}, nil
}

func (a *Accountant) countValidGrants(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, collectionID *uuid.UUID, now time.Time) (int64, error) {
	today := now.Truncate(24 * time.Hour)

	query := tx.WithContext(ctx).
		Model(&models.Grant{}).
		Joins("JOIN grant_partners gp ON gp.grant_id = grants.id").
		Where("gp.partner_id = ?", partnerID).
		Where("grants.user_id IS NOT NULL").
		Where("grants.authorizer_id IS NOT NULL").
		Where("grants.date_authorized IS NOT NULL").
		Where("grants.date_authorized <= ?", now).
		Where("grants.date_expires IS NULL OR grants.date_expires >= ?", today)

	if collectionID != nil {
		query = query.Where("grants.collection_id = ?", *collectionID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
