package detection

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"kestrel/internal/database"
	"kestrel/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDetectionTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(&domain.SuspiciousEvent{}, &domain.IncidentAggregate{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	database.DB = db
	t.Cleanup(func() {
		database.DB = nil
	})

	return db
}

type autoBlockCall struct {
	IP        string
	EventType domain.EventType
	Severity  domain.Severity
	Count     uint32
}

// fakeBlocker records auto-block triggers instead of touching block state.
type fakeBlocker struct {
	mu    sync.Mutex
	calls []autoBlockCall
}

func (f *fakeBlocker) AutoBlock(_ context.Context, ip string, eventType domain.EventType, severity domain.Severity, count uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, autoBlockCall{IP: ip, EventType: eventType, Severity: severity, Count: count})
	return nil
}

func (f *fakeBlocker) Calls() []autoBlockCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]autoBlockCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func newTestEngine(t *testing.T, blocker AutoBlocker) *Engine {
	t.Helper()

	cfg := testPolicyConfig()
	engine := NewEngine(cfg, mustPolicy(t, cfg), blocker, nil)
	engine.Start()
	return engine
}
