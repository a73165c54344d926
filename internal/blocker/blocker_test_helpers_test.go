package blocker

import (
	"fmt"
	"testing"

	"kestrel/internal/database"
	"kestrel/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBlockerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(&domain.BlockRecord{}, &domain.AuditEntry{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	database.DB = db
	t.Cleanup(func() {
		database.DB = nil
	})

	return db
}

func loadRecord(t *testing.T, db *gorm.DB, ip string) domain.BlockRecord {
	t.Helper()

	var record domain.BlockRecord
	if err := db.Where("ip = ?", ip).First(&record).Error; err != nil {
		t.Fatalf("load block record for %s: %v", ip, err)
	}
	return record
}

func auditEntries(t *testing.T, db *gorm.DB, ip string) []domain.AuditEntry {
	t.Helper()

	var entries []domain.AuditEntry
	if err := db.Where("ip = ?", ip).Order("id").Find(&entries).Error; err != nil {
		t.Fatalf("load audit entries for %s: %v", ip, err)
	}
	return entries
}
