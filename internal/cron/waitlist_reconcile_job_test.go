package cron

import (
	"context"
	"testing"
	"time"

	dbpkg "github.com/accesshub/accesshub-backend/pkg/db"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func seedWaitlistPartner(t *testing.T, db *gorm.DB, accounts *int) *models.Partner {
	t.Helper()
	partner := &models.Partner{
		ID:                uuid.New(),
		Name:              "waitlist-" + uuid.NewString()[:8],
		Status:            enums.PartnerStatusWaitlist,
		AuthMethod:        enums.AuthMethodEmail,
		AccountsAvailable: accounts,
	}
	if err := db.Create(partner).Error; err != nil {
		t.Fatalf("seed partner: %v", err)
	}
	return partner
}

func seedOccupyingGrant(t *testing.T, db *gorm.DB, partner *models.Partner, expires *time.Time) {
	t.Helper()
	userID := uuid.New()
	authorizerID := uuid.New()
	authorized := time.Now().Add(-24 * time.Hour)
	grant := &models.Grant{
		ID:             uuid.New(),
		UserID:         &userID,
		AuthorizerID:   &authorizerID,
		DateAuthorized: &authorized,
		DateExpires:    expires,
		Partners:       []models.Partner{*partner},
	}
	if err := db.Create(grant).Error; err != nil {
		t.Fatalf("seed grant: %v", err)
	}
}

func TestWaitlistReconcileRestoresFreedPartners(t *testing.T) {
	conn := newJobTestDB(t, "partners", "collections", "grants", "grant_partners")
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	one := 1
	freed := seedWaitlistPartner(t, conn, &one)
	expired := time.Now().Add(-48 * time.Hour)
	seedOccupyingGrant(t, conn, freed, &expired)

	full := seedWaitlistPartner(t, conn, &one)
	seedOccupyingGrant(t, conn, full, nil)

	manual := seedWaitlistPartner(t, conn, nil)

	job, err := NewWaitlistReconcileJob(WaitlistReconcileJobParams{
		Logger: logg,
		DB:     dbpkg.NewWithConn(conn),
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	assertStatus := func(id uuid.UUID, want enums.PartnerStatus) {
		t.Helper()
		var partner models.Partner
		if err := conn.First(&partner, "id = ?", id).Error; err != nil {
			t.Fatalf("reload: %v", err)
		}
		if partner.Status != want {
			t.Fatalf("partner %s: expected %s, got %s", id, want, partner.Status)
		}
	}

	assertStatus(freed.ID, enums.PartnerStatusAvailable)
	assertStatus(full.ID, enums.PartnerStatusWaitlist)
	assertStatus(manual.ID, enums.PartnerStatusWaitlist)
}
