package database

import (
	"fmt"
	"testing"
	"time"

	"kestrel/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(defaultMigrations()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	DB = db
	t.Cleanup(func() {
		DB = nil
	})

	return db
}

func seedAggregate(t *testing.T, db *gorm.DB, ip string, eventType domain.EventType, count uint32, lastSeen time.Time) {
	t.Helper()

	row := domain.IncidentAggregate{
		IP:            ip,
		Type:          eventType,
		CountAttempts: count,
		FirstSeen:     lastSeen.Add(-time.Hour),
		LastSeen:      lastSeen,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}
}

func seedBlockRecord(t *testing.T, db *gorm.DB, ip, status string) {
	t.Helper()

	now := time.Now()
	record := domain.BlockRecord{
		IP:        ip,
		Status:    status,
		Reason:    "seeded",
		BlockedAt: &now,
	}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("seed block record: %v", err)
	}
}
