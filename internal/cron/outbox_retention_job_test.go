package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	dbpkg "github.com/accesshub/accesshub-backend/pkg/db"
	"github.com/accesshub/accesshub-backend/pkg/db/models"
	"github.com/accesshub/accesshub-backend/pkg/enums"
	"github.com/accesshub/accesshub-backend/pkg/logger"
	"github.com/accesshub/accesshub-backend/pkg/outbox"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Schema written by hand: the models carry postgres column types the sqlite
// driver cannot migrate. Each job test picks the tables it touches.
var jobSchemas = map[string]string{
	"partners": `CREATE TABLE partners (
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
	"collections": `CREATE TABLE collections (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(6)))),
  partner_id TEXT NOT NULL,
  name TEXT NOT NULL,
  auth_method TEXT NOT NULL DEFAULT 'email',
  accounts_available INTEGER,
  target_url TEXT,
  created_at DATETIME,
  updated_at DATETIME
)`,
	"grants": `CREATE TABLE grants (
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
	"grant_partners": `CREATE TABLE grant_partners (
  grant_id TEXT NOT NULL,
  partner_id TEXT NOT NULL,
  PRIMARY KEY (grant_id, partner_id)
)`,
	"outbox_events": `CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY DEFAULT (lower(hex(randomblob(4))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(2))||'-'||hex(randomblob(6)))),
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
)`,
}

func newJobTestDB(t *testing.T, tables ...string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, table := range tables {
		ddl, ok := jobSchemas[table]
		if !ok {
			t.Fatalf("no schema for table %q", table)
		}
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

func seedOutboxEvent(t *testing.T, db *gorm.DB, publishedAt *time.Time) uuid.UUID {
	t.Helper()
	event := &models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventGrantIssued,
		AggregateType: enums.AggregateGrant,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		PublishedAt:   publishedAt,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("seed outbox event: %v", err)
	}
	return event.ID
}

func TestOutboxRetentionDeletesOnlyOldPublishedRows(t *testing.T) {
	conn := newJobTestDB(t, "outbox_events")
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	old := time.Now().Add(-31 * 24 * time.Hour)
	recent := time.Now().Add(-time.Hour)
	oldID := seedOutboxEvent(t, conn, &old)
	recentID := seedOutboxEvent(t, conn, &recent)
	unpublishedID := seedOutboxEvent(t, conn, nil)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbpkg.NewWithConn(conn),
		Repository: outbox.NewRepository(conn),
		Retention:  720 * time.Hour,
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	var remaining []models.OutboxEvent
	if err := conn.Find(&remaining).Error; err != nil {
		t.Fatalf("load remaining: %v", err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 surviving rows, got %d", len(remaining))
	}
	for _, row := range remaining {
		if row.ID == oldID {
			t.Fatalf("old published row should have been pruned")
		}
		if row.ID != recentID && row.ID != unpublishedID {
			t.Fatalf("unexpected surviving row %s", row.ID)
		}
	}
}
