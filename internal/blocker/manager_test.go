package blocker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"kestrel/internal/domain"
)

func adminActor() domain.Actor {
	return domain.UserActor(7, "admin@example.com", domain.RoleAdmin)
}

func superadminActor() domain.Actor {
	return domain.UserActor(1, "root@example.com", domain.RoleSuperadmin)
}

func TestManualBlockAppliesRecord(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	record, err := m.Block(context.Background(), "203.0.113.7", "repeated credential stuffing", adminActor())
	if err != nil {
		t.Fatalf("Block: %v", err)
	}

	if record.Status != domain.StatusBlocked {
		t.Fatalf("status = %s, want %s", record.Status, domain.StatusBlocked)
	}
	if record.Automatic {
		t.Fatal("manual block marked automatic")
	}
	if record.BlockedBy == nil || *record.BlockedBy != 7 {
		t.Fatalf("blocked_by = %v, want 7", record.BlockedBy)
	}
	if record.BlockedAt == nil {
		t.Fatal("blocked_at not set")
	}
	if !m.IsBlocked("203.0.113.7") {
		t.Fatal("cache does not report IP as blocked")
	}

	entries := auditEntries(t, db, "203.0.113.7")
	if len(entries) != 1 || entries[0].Outcome != domain.AuditOutcomeApplied {
		t.Fatalf("audit entries = %+v, want one applied entry", entries)
	}
}

func TestBlockRequiresReason(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	_, err := m.Block(context.Background(), "203.0.113.7", "   ", superadminActor())
	if !errors.Is(err, ErrMissingReason) {
		t.Fatalf("err = %v, want ErrMissingReason", err)
	}

	var count int64
	db.Model(&domain.BlockRecord{}).Count(&count)
	if count != 0 {
		t.Fatalf("block records created = %d, want 0", count)
	}

	entries := auditEntries(t, db, "203.0.113.7")
	if len(entries) != 1 || entries[0].Outcome != domain.AuditOutcomeRejected {
		t.Fatalf("audit entries = %+v, want one rejected entry", entries)
	}
}

func TestBlockRequiresAdminRole(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	_, err := m.Block(context.Background(), "203.0.113.7", "looks bad", domain.UserActor(3, "user@example.com", domain.RoleUser))
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestBlockRejectsInvalidIP(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	_, err := m.Block(context.Background(), "not-an-ip", "reason", adminActor())
	if !errors.Is(err, ErrInvalidIP) {
		t.Fatalf("err = %v, want ErrInvalidIP", err)
	}
}

func TestDoubleBlockIsConflict(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	if _, err := m.Block(context.Background(), "203.0.113.7", "first", adminActor()); err != nil {
		t.Fatalf("first Block: %v", err)
	}

	_, err := m.Block(context.Background(), "203.0.113.7", "second", adminActor())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}

	record := loadRecord(t, db, "203.0.113.7")
	if record.Reason != "first" {
		t.Fatalf("reason = %q, want original reason kept", record.Reason)
	}
}

func TestUnblockRestrictedToSuperadmin(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	if _, err := m.Block(context.Background(), "203.0.113.7", "bad traffic", adminActor()); err != nil {
		t.Fatalf("Block: %v", err)
	}

	_, err := m.Unblock(context.Background(), "203.0.113.7", "seems fine", adminActor())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("admin unblock err = %v, want ErrForbidden", err)
	}

	record := loadRecord(t, db, "203.0.113.7")
	if record.Status != domain.StatusBlocked {
		t.Fatalf("status after rejected unblock = %s, want blocked", record.Status)
	}
	if !m.IsBlocked("203.0.113.7") {
		t.Fatal("rejected unblock removed IP from cache")
	}
}

func TestUnblockRejectsSystemActor(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	if _, err := m.Block(context.Background(), "203.0.113.7", "bad traffic", adminActor()); err != nil {
		t.Fatalf("Block: %v", err)
	}

	_, err := m.Unblock(context.Background(), "203.0.113.7", "auto", domain.SystemActor())
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("system unblock err = %v, want ErrForbidden", err)
	}
}

func TestUnblockKeepsBlockProvenance(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	if _, err := m.Block(context.Background(), "203.0.113.7", "bad traffic", adminActor()); err != nil {
		t.Fatalf("Block: %v", err)
	}

	record, err := m.Unblock(context.Background(), "203.0.113.7", "false positive", superadminActor())
	if err != nil {
		t.Fatalf("Unblock: %v", err)
	}

	if record.Status != domain.StatusUnblocked {
		t.Fatalf("status = %s, want unblocked", record.Status)
	}
	if record.Reason != "bad traffic" || record.BlockedAt == nil {
		t.Fatal("unblock dropped the block-cycle fields")
	}
	if record.UnblockedReason != "false positive" || record.UnblockedAt == nil {
		t.Fatal("unblock fields not set")
	}
	if m.IsBlocked("203.0.113.7") {
		t.Fatal("unblocked IP still in cache")
	}
}

func TestUnblockWithoutBlockIsConflict(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	_, err := m.Unblock(context.Background(), "203.0.113.7", "cleanup", superadminActor())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestReblockStartsFreshCycle(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	m.now = func() time.Time { return clock }

	if _, err := m.Block(context.Background(), "203.0.113.7", "first wave", adminActor()); err != nil {
		t.Fatalf("Block: %v", err)
	}

	clock = base.Add(time.Hour)
	if _, err := m.Unblock(context.Background(), "203.0.113.7", "reviewed", superadminActor()); err != nil {
		t.Fatalf("Unblock: %v", err)
	}

	clock = base.Add(2 * time.Hour)
	record, err := m.Block(context.Background(), "203.0.113.7", "second wave", adminActor())
	if err != nil {
		t.Fatalf("re-Block: %v", err)
	}

	if record.Status != domain.StatusBlocked {
		t.Fatalf("status = %s, want blocked", record.Status)
	}
	if record.Reason != "second wave" {
		t.Fatalf("reason = %q, want second wave", record.Reason)
	}
	if record.UnblockedAt != nil || record.UnblockedBy != nil || record.UnblockedReason != "" {
		t.Fatal("re-block kept stale unblock fields")
	}
	if record.BlockedAt == nil || !record.BlockedAt.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("blocked_at = %v, want %v", record.BlockedAt, base.Add(2*time.Hour))
	}
}

func TestAutoBlockSynthesizesReason(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	if err := m.AutoBlock(context.Background(), "203.0.113.7", domain.EventBruteForce, domain.SeverityHigh, 9); err != nil {
		t.Fatalf("AutoBlock: %v", err)
	}

	record := loadRecord(t, db, "203.0.113.7")
	if !record.Automatic {
		t.Fatal("auto block not marked automatic")
	}
	if record.BlockedBy != nil {
		t.Fatalf("blocked_by = %v, want nil for system actor", record.BlockedBy)
	}
	if !strings.Contains(record.Reason, "brute_force") || !strings.Contains(record.Reason, "9") {
		t.Fatalf("reason = %q, want event type and count mentioned", record.Reason)
	}
}

func TestAutoBlockIdempotentWhileBlocked(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	if err := m.AutoBlock(context.Background(), "203.0.113.7", domain.EventBruteForce, domain.SeverityHigh, 9); err != nil {
		t.Fatalf("first AutoBlock: %v", err)
	}
	if err := m.AutoBlock(context.Background(), "203.0.113.7", domain.EventBruteForce, domain.SeverityHigh, 10); err != nil {
		t.Fatalf("second AutoBlock: %v", err)
	}

	record := loadRecord(t, db, "203.0.113.7")
	if !strings.Contains(record.Reason, "9 brute_force") {
		t.Fatalf("reason = %q, want first trigger kept", record.Reason)
	}

	var count int64
	db.Model(&domain.BlockRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("block records = %d, want 1", count)
	}
}

func TestConcurrentAutoBlockSingleRecord(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	const triggers = 16
	var wg sync.WaitGroup
	errs := make(chan error, triggers)

	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func(n uint32) {
			defer wg.Done()
			errs <- m.AutoBlock(context.Background(), "203.0.113.7", domain.EventBruteForce, domain.SeverityHigh, 9+n)
		}(uint32(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("AutoBlock: %v", err)
		}
	}

	var count int64
	db.Model(&domain.BlockRecord{}).Count(&count)
	if count != 1 {
		t.Fatalf("block records = %d, want 1", count)
	}
	if !m.IsBlocked("203.0.113.7") {
		t.Fatal("cache does not report IP as blocked")
	}
}

func TestResolveToggle(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	if _, err := m.Block(context.Background(), "203.0.113.7", "bad traffic", adminActor()); err != nil {
		t.Fatalf("Block: %v", err)
	}

	record, err := m.Resolve(context.Background(), "203.0.113.7", true, adminActor())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !record.Resolved || record.ResolvedAt == nil {
		t.Fatal("resolve did not set flag and timestamp")
	}

	record, err = m.Resolve(context.Background(), "203.0.113.7", false, adminActor())
	if err != nil {
		t.Fatalf("un-Resolve: %v", err)
	}
	if record.Resolved || record.ResolvedAt != nil {
		t.Fatal("clearing resolve did not reset flag and timestamp")
	}
}

func TestResolveWithoutRecordIsConflict(t *testing.T) {
	setupBlockerTestDB(t)
	m := NewManager()

	_, err := m.Resolve(context.Background(), "203.0.113.7", true, adminActor())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestNormalizeIPAcceptsIPv6(t *testing.T) {
	db := setupBlockerTestDB(t)
	m := NewManager()

	record, err := m.Block(context.Background(), " 2001:DB8::1 ", "ipv6 abuse", adminActor())
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if record.IP != "2001:db8::1" {
		t.Fatalf("normalized IP = %q, want 2001:db8::1", record.IP)
	}

	loaded := loadRecord(t, db, "2001:db8::1")
	if loaded.Status != domain.StatusBlocked {
		t.Fatalf("status = %s, want blocked", loaded.Status)
	}
}

func TestLoadCacheHydratesFromDatabase(t *testing.T) {
	db := setupBlockerTestDB(t)

	now := time.Now()
	seed := []domain.BlockRecord{
		{IP: "203.0.113.7", Status: domain.StatusBlocked, Reason: "seeded", BlockedAt: &now},
		{IP: "203.0.113.8", Status: domain.StatusUnblocked, Reason: "seeded", BlockedAt: &now},
	}
	for i := range seed {
		if err := db.Create(&seed[i]).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
	}

	m := NewManager()
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	if !m.IsBlocked("203.0.113.7") {
		t.Fatal("blocked IP missing from cache")
	}
	if m.IsBlocked("203.0.113.8") {
		t.Fatal("unblocked IP present in cache")
	}
}
