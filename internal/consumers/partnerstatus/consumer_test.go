package partnerstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/outbox"
	"github.com/accesshub/accesshub-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeIdempotency struct {
	processed map[uuid.UUID]bool
	deleted   []uuid.UUID
}

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{processed: map[uuid.UUID]bool{}}
}

func (f *fakeIdempotency) CheckAndMarkProcessed(_ context.Context, _ string, eventID uuid.UUID) (bool, error) {
	if f.processed[eventID] {
		return true, nil
	}
	f.processed[eventID] = true
	return false, nil
}

func (f *fakeIdempotency) Delete(_ context.Context, _ string, eventID uuid.UUID) error {
	delete(f.processed, eventID)
	f.deleted = append(f.deleted, eventID)
	return nil
}

// Schema written by hand: the model carries postgres column types the sqlite
// driver cannot migrate.
const partnersSchema = `CREATE TABLE partners (
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
)`

func newTestConsumer(t *testing.T) (*Consumer, *gorm.DB, *fakeIdempotency) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.Exec(partnersSchema).Error; err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	manager := newFakeIdempotency()
	consumer, err := NewConsumer(conn, manager, logger.New(logger.Options{ServiceName: "consumer-test"}))
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return consumer, conn, manager
}

func seedPartner(t *testing.T, db *gorm.DB, status enums.PartnerStatus) *models.Partner {
	t.Helper()
	partner := &models.Partner{
		ID:         uuid.New(),
		Name:       "partner-" + uuid.NewString()[:8],
		Status:     status,
		AuthMethod: enums.AuthMethodEmail,
	}
	if err := db.Create(partner).Error; err != nil {
		t.Fatalf("seed partner: %v", err)
	}
	return partner
}

func exhaustedEnvelope(t *testing.T, partnerID uuid.UUID, collectionID *uuid.UUID) outbox.PayloadEnvelope {
	t.Helper()
	data, err := json.Marshal(payloads.CapacityExhaustedEvent{
		PartnerID:    partnerID,
		CollectionID: collectionID,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       data,
	}
}

func TestProcessMovesPartnerToWaitlist(t *testing.T) {
	consumer, db, _ := newTestConsumer(t)
	partner := seedPartner(t, db, enums.PartnerStatusAvailable)

	envelope := exhaustedEnvelope(t, partner.ID, nil)
	if err := consumer.Process(context.Background(), enums.EventCapacityExhausted, envelope); err != nil {
		t.Fatalf("process: %v", err)
	}

	var reloaded models.Partner
	if err := db.First(&reloaded, "id = ?", partner.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.PartnerStatusWaitlist {
		t.Fatalf("expected waitlist, got %s", reloaded.Status)
	}
}

func TestProcessIsIdempotent(t *testing.T) {
	consumer, db, manager := newTestConsumer(t)
	partner := seedPartner(t, db, enums.PartnerStatusAvailable)

	envelope := exhaustedEnvelope(t, partner.ID, nil)
	if err := consumer.Process(context.Background(), enums.EventCapacityExhausted, envelope); err != nil {
		t.Fatalf("first process: %v", err)
	}

	// Operator intervention between deliveries must not be undone by a redelivery.
	if err := db.Model(&models.Partner{}).Where("id = ?", partner.ID).
		UpdateColumn("status", enums.PartnerStatusAvailable).Error; err != nil {
		t.Fatalf("reset status: %v", err)
	}
	if err := consumer.Process(context.Background(), enums.EventCapacityExhausted, envelope); err != nil {
		t.Fatalf("second process: %v", err)
	}

	var reloaded models.Partner
	if err := db.First(&reloaded, "id = ?", partner.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.PartnerStatusAvailable {
		t.Fatalf("redelivery must be a no-op, got %s", reloaded.Status)
	}
	if len(manager.deleted) != 0 {
		t.Fatalf("no idempotency rollback expected, got %v", manager.deleted)
	}
}

func TestProcessIgnoresOtherEventsAndCollectionScope(t *testing.T) {
	consumer, db, _ := newTestConsumer(t)
	partner := seedPartner(t, db, enums.PartnerStatusAvailable)

	if err := consumer.Process(context.Background(), enums.EventGrantIssued, exhaustedEnvelope(t, partner.ID, nil)); err != nil {
		t.Fatalf("unrelated event: %v", err)
	}

	collectionID := uuid.New()
	if err := consumer.Process(context.Background(), enums.EventCapacityExhausted, exhaustedEnvelope(t, partner.ID, &collectionID)); err != nil {
		t.Fatalf("collection-scoped event: %v", err)
	}

	var reloaded models.Partner
	if err := db.First(&reloaded, "id = ?", partner.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.PartnerStatusAvailable {
		t.Fatalf("partner must stay available, got %s", reloaded.Status)
	}
}
