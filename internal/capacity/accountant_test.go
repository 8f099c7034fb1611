package capacity

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	pkgerrors "github.com/accesshub/accesshub-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Schema written by hand: the models carry postgres column types the sqlite
// driver cannot migrate.
var testSchema = []string{
	`CREATE TABLE partners (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(6)))),
  name TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'not_available',
  auth_method TEXT NOT NULL DEFAULT 'email',
  coordinator_id TEXT,
  accounts_available INTEGER,
  account_length_days INTEGER,
  requested_access_duration INTEGER NOT NULL DEFAULT 0,
  specific_collection INTEGER NOT NULL DEFAULT 0,
  renewals_available INTEGER NOT NULL DEFAULT 1,
  target_url TEXT,
  languages TEXT,
  tags TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE collections (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(6)))),
  partner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  auth_method TEXT NOT NULL DEFAULT 'email',
  accounts_available INTEGER,
  target_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE grants (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(6)))),
  user_id TEXT,
  authorizer_id TEXT,
  collection_id TEXT,
  date_authorized DATETIME,
  date_expires DATETIME,
  reminder_email_sent INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
)`,
	`CREATE TABLE grant_partners (
  grant_id TEXT NOT NULL,
  partner_id TEXT NOT NULL,
  PRIMARY KEY (grant_id, partner_id)
)`,
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, ddl := range testSchema {
		if err := conn.Exec(ddl).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func intPtr(v int) *int { return &v }

func seedPartner(t *testing.T, db *gorm.DB, accounts *int) *models.Partner {
	t.Helper()
	partner := &models.Partner{
		ID:                uuid.New(),
		Name:              fmt.Sprintf("partner-%s", uuid.NewString()[:8]),
		AccountsAvailable: accounts,
	}
	if err := db.Create(partner).Error; err != nil {
		t.Fatalf("seed partner: %v", err)
	}
	return partner
}

func seedValidGrant(t *testing.T, db *gorm.DB, partner *models.Partner, collectionID *uuid.UUID, expires *time.Time) *models.Grant {
	t.Helper()
	userID := uuid.New()
	authorizerID := uuid.New()
	authorized := time.Now().Add(-24 * time.Hour)
	grant := &models.Grant{
		ID:             uuid.New(),
		UserID:         &userID,
		AuthorizerID:   &authorizerID,
		CollectionID:   collectionID,
		DateAuthorized: &authorized,
		DateExpires:    expires,
		Partners:       []models.Partner{*partner},
	}
	if err := db.Create(grant).Error; err != nil {
		t.Fatalf("seed grant: %v", err)
	}
	return grant
}

func TestRemainingUnlimitedWhenCapacityNull(t *testing.T) {
	db := newTestDB(t)
	partner := seedPartner(t, db, nil)
	seedValidGrant(t, db, partner, nil, nil)

	remaining, err := NewAccountant().Remaining(context.Background(), db, partner, nil, time.Now())
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if !remaining.Unlimited {
		t.Fatalf("expected unlimited capacity, got %+v", remaining)
	}
	if remaining.IsFinalSlot() {
		t.Fatalf("unlimited scope must never report a final slot")
	}
}

func TestRemainingSubtractsOnlyValidGrants(t *testing.T) {
	db := newTestDB(t)
	partner := seedPartner(t, db, intPtr(3))

	seedValidGrant(t, db, partner, nil, nil)

	// Expired yesterday, should not count.
	expired := time.Now().Add(-48 * time.Hour)
	seedValidGrant(t, db, partner, nil, &expired)

	// Hollowed out by user deletion, should not count.
	authorizerID := uuid.New()
	authorized := time.Now().Add(-24 * time.Hour)
	hollow := &models.Grant{
		ID:             uuid.New(),
		AuthorizerID:   &authorizerID,
		DateAuthorized: &authorized,
		Partners:       []models.Partner{*partner},
	}
	if err := db.Create(hollow).Error; err != nil {
		t.Fatalf("seed hollow grant: %v", err)
	}

	remaining, err := NewAccountant().Remaining(context.Background(), db, partner, nil, time.Now())
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Unlimited || remaining.Count != 2 {
		t.Fatalf("expected 2 remaining, got %+v", remaining)
	}
}

func TestRemainingCollectionOverride(t *testing.T) {
	db := newTestDB(t)
	partner := seedPartner(t, db, intPtr(10))
	collection := &models.Collection{
		ID:                uuid.New(),
		PartnerID:         partner.ID,
		Name:              "special",
		AccountsAvailable: intPtr(1),
	}
	if err := db.Create(collection).Error; err != nil {
		t.Fatalf("seed collection: %v", err)
	}

	// One grant in the collection, one outside it.
	seedValidGrant(t, db, partner, &collection.ID, nil)
	seedValidGrant(t, db, partner, nil, nil)

	remaining, err := NewAccountant().Remaining(context.Background(), db, partner, collection, time.Now())
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if remaining.Unlimited || remaining.Count != 0 {
		t.Fatalf("expected collection scope to be full, got %+v", remaining)
	}
	if remaining.CanAdmit() {
		t.Fatalf("full collection must refuse admission")
	}
}

func TestRemainingNegativeIsReported(t *testing.T) {
	db := newTestDB(t)
	partner := seedPartner(t, db, intPtr(1))
	seedValidGrant(t, db, partner, nil, nil)
	seedValidGrant(t, db, partner, nil, nil)

	remaining, err := NewAccountant().Remaining(context.Background(), db, partner, nil, time.Now())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInternal {
		t.Fatalf("expected internal consistency error, got %v", err)
	}
	if remaining.Count != -1 {
		t.Fatalf("expected unclamped count -1, got %d", remaining.Count)
	}
}

func TestRemainingFinalSlot(t *testing.T) {
	db := newTestDB(t)
	partner := seedPartner(t, db, intPtr(2))
	seedValidGrant(t, db, partner, nil, nil)

	remaining, err := NewAccountant().Remaining(context.Background(), db, partner, nil, time.Now())
	if err != nil {
		t.Fatalf("remaining: %v", err)
	}
	if !remaining.IsFinalSlot() {
		t.Fatalf("expected final slot, got %+v", remaining)
	}
}
