package grants

import (
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
)

const proxyDefaultDays = 365

// ComputeExpiry applies the expiry precedence rules at issuance time.
// Proxied access with a requester-chosen duration gets that many months;
// proxied access otherwise gets the default year; partners with a fixed
// account length get that many days; everything else never expires.
func ComputeExpiry(partner *models.Partner, collection *models.Collection, months *enums.AccessDuration, now time.Time) *time.Time {
	method := partner.AuthMethod
	if collection != nil {
		method = collection.AuthMethod
	}

	switch {
	case method.IsProxied() && partner.RequestedDuration && months != nil && months.IsValid():
		expires := now.AddDate(0, months.Months(), 0)
		return &expires
	case method.IsProxied():
		expires := now.AddDate(0, 0, proxyDefaultDays)
		return &expires
	case partner.AccountLengthDays != nil:
		expires := now.AddDate(0, 0, *partner.AccountLengthDays)
		return &expires
	}
	return nil
}
