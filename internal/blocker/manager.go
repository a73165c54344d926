package blocker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"kestrel/internal/database"
	"kestrel/internal/domain"
)

// Transition errors. Handlers map these onto HTTP statuses; the state
// machine itself is transport-agnostic.
var (
	ErrInvalidIP         = errors.New("invalid ip address")
	ErrInvalidTransition = errors.New("invalid block state transition")
	ErrForbidden         = errors.New("forbidden")
	ErrMissingReason     = errors.New("missing reason")
	ErrUnavailable       = errors.New("block store unavailable")
)

const lockStripes = 128

// PublicManager is the process-wide block state machine, wired at bootstrap.
var PublicManager *Manager

type atomicSet struct {
	val atomic.Value
}

func (a *atomicSet) Load() map[string]struct{} {
	raw, ok := a.val.Load().(map[string]struct{})
	if !ok || raw == nil {
		empty := make(map[string]struct{})
		a.val.Store(empty)
		return empty
	}
	return raw
}

func (a *atomicSet) Store(m map[string]struct{}) {
	a.val.Store(m)
}

// Manager owns every BlockRecord transition. Transitions for one IP are
// serialized by a striped in-process mutex in front of a row-locked database
// write, so concurrent triggers cannot interleave on the same record.
type Manager struct {
	locks       [lockStripes]sync.Mutex
	cache       atomicSet
	reloadGroup singleflight.Group
	peerSync    redisSync

	now func() time.Time
}

func NewManager() *Manager {
	m := &Manager{now: time.Now}
	m.cache.Store(make(map[string]struct{}))
	return m
}

// Initialize hydrates the in-memory blocked-IP cache from the database.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.LoadCache(ctx)
}

// LoadCache refreshes the blocked-IP set. Concurrent callers share one
// reload.
func (m *Manager) LoadCache(ctx context.Context) error {
	_, err, _ := m.reloadGroup.Do("reload", func() (interface{}, error) {
		ips, err := database.ListBlockedIPs()
		if err != nil {
			return nil, err
		}
		set := make(map[string]struct{}, len(ips))
		for _, ip := range ips {
			set[ip] = struct{}{}
		}
		m.cache.Store(set)
		return nil, nil
	})
	return err
}

// IsBlocked answers from the in-memory cache. This is the fast path the
// enforcement middleware polls on every request; it never touches the
// database.
func (m *Manager) IsBlocked(ip string) bool {
	_, found := m.cache.Load()[ip]
	return found
}

func (m *Manager) lockFor(ip string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(ip))
	return &m.locks[h.Sum32()%lockStripes]
}

// AutoBlock applies a policy-triggered block with a synthesized reason. A
// second trigger while the IP is already blocked is a no-op on state; the
// contributing events keep accumulating in the audit substrate regardless.
func (m *Manager) AutoBlock(ctx context.Context, ip string, eventType domain.EventType, severity domain.Severity, count uint32) error {
	reason := fmt.Sprintf("automatic block: %d %s events within window (severity %s)", count, eventType, severity)
	_, err := m.block(ctx, ip, reason, domain.SystemActor())
	if errors.Is(err, ErrInvalidTransition) {
		log.Debug("auto-block no-op, already blocked", "ip", ip, "type", eventType)
		return nil
	}
	return err
}

// Block applies a manual block. Requires admin tier and a non-blank reason;
// blocking an already-blocked IP is rejected.
func (m *Manager) Block(ctx context.Context, ip, reason string, actor domain.Actor) (*domain.BlockRecord, error) {
	return m.block(ctx, ip, reason, actor)
}

func (m *Manager) block(ctx context.Context, ip, reason string, actor domain.Actor) (*domain.BlockRecord, error) {
	normalized, err := normalizeIP(ip)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		m.audit(normalized, domain.AuditActionBlock, actor, reason, domain.AuditOutcomeRejected, "missing reason")
		return nil, ErrMissingReason
	}

	if !actor.IsSystem() && !domain.CanBlock(actor.Role()) {
		m.audit(normalized, domain.AuditActionBlock, actor, reason, domain.AuditOutcomeRejected, "insufficient role")
		return nil, ErrForbidden
	}

	lock := m.lockFor(normalized)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	var record domain.BlockRecord

	err = m.transaction(ctx, func(tx *gorm.DB) error {
		loadErr := lockRow(tx).Where("ip = ?", normalized).First(&record).Error
		switch {
		case errors.Is(loadErr, gorm.ErrRecordNotFound):
			record = domain.BlockRecord{IP: normalized, Status: domain.StatusNotBlocked}
		case loadErr != nil:
			return loadErr
		}

		if record.Status == domain.StatusBlocked {
			return ErrInvalidTransition
		}

		// Fresh cycle: the previous unblock fields are cleared so the
		// record always describes its most recent transition.
		record.Status = domain.StatusBlocked
		record.Automatic = actor.IsSystem()
		record.Reason = reason
		record.BlockedBy = actor.UserID()
		record.BlockedAt = &now
		record.UnblockedBy = nil
		record.UnblockedReason = ""
		record.UnblockedAt = nil
		record.Resolved = false
		record.ResolvedAt = nil

		return tx.Save(&record).Error
	})

	if errors.Is(err, ErrInvalidTransition) {
		if !actor.IsSystem() {
			m.audit(normalized, domain.AuditActionBlock, actor, reason, domain.AuditOutcomeRejected, "already blocked")
		}
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.cacheAdd(normalized)
	m.broadcast(normalized, domain.StatusBlocked)
	m.audit(normalized, domain.AuditActionBlock, actor, reason, domain.AuditOutcomeApplied, "")

	log.Info("IP blocked", "ip", normalized, "automatic", record.Automatic, "actor", actor.String())
	return &record, nil
}

// Unblock reverses a block. Manual only, restricted to the top tier, and
// requires a non-blank reason. The blocked-cycle fields stay in place so the
// record keeps the provenance of its most recent block.
func (m *Manager) Unblock(ctx context.Context, ip, reason string, actor domain.Actor) (*domain.BlockRecord, error) {
	normalized, err := normalizeIP(ip)
	if err != nil {
		return nil, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		m.audit(normalized, domain.AuditActionUnblock, actor, reason, domain.AuditOutcomeRejected, "missing reason")
		return nil, ErrMissingReason
	}

	if actor.IsSystem() || !domain.CanUnblock(actor.Role()) {
		m.audit(normalized, domain.AuditActionUnblock, actor, reason, domain.AuditOutcomeRejected, "insufficient role")
		return nil, ErrForbidden
	}

	lock := m.lockFor(normalized)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	var record domain.BlockRecord

	err = m.transaction(ctx, func(tx *gorm.DB) error {
		loadErr := lockRow(tx).Where("ip = ?", normalized).First(&record).Error
		if errors.Is(loadErr, gorm.ErrRecordNotFound) {
			return ErrInvalidTransition
		}
		if loadErr != nil {
			return loadErr
		}

		if record.Status != domain.StatusBlocked {
			return ErrInvalidTransition
		}

		record.Status = domain.StatusUnblocked
		record.UnblockedBy = actor.UserID()
		record.UnblockedReason = reason
		record.UnblockedAt = &now

		return tx.Save(&record).Error
	})

	if errors.Is(err, ErrInvalidTransition) {
		m.audit(normalized, domain.AuditActionUnblock, actor, reason, domain.AuditOutcomeRejected, "not currently blocked")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.cacheRemove(normalized)
	m.broadcast(normalized, domain.StatusUnblocked)
	m.audit(normalized, domain.AuditActionUnblock, actor, reason, domain.AuditOutcomeApplied, "")

	log.Info("IP unblocked", "ip", normalized, "actor", actor.String())
	return &record, nil
}

// Resolve toggles the manual triage flag on an existing record.
func (m *Manager) Resolve(ctx context.Context, ip string, resolved bool, actor domain.Actor) (*domain.BlockRecord, error) {
	normalized, err := normalizeIP(ip)
	if err != nil {
		return nil, err
	}

	if actor.IsSystem() || !domain.CanBlock(actor.Role()) {
		m.audit(normalized, domain.AuditActionResolve, actor, "", domain.AuditOutcomeRejected, "insufficient role")
		return nil, ErrForbidden
	}

	lock := m.lockFor(normalized)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	var record domain.BlockRecord

	err = m.transaction(ctx, func(tx *gorm.DB) error {
		loadErr := lockRow(tx).Where("ip = ?", normalized).First(&record).Error
		if errors.Is(loadErr, gorm.ErrRecordNotFound) {
			return ErrInvalidTransition
		}
		if loadErr != nil {
			return loadErr
		}

		record.Resolved = resolved
		if resolved {
			record.ResolvedAt = &now
		} else {
			record.ResolvedAt = nil
		}

		return tx.Save(&record).Error
	})

	if errors.Is(err, ErrInvalidTransition) {
		m.audit(normalized, domain.AuditActionResolve, actor, "", domain.AuditOutcomeRejected, "no block record")
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	m.audit(normalized, domain.AuditActionResolve, actor, "", domain.AuditOutcomeApplied, "")
	return &record, nil
}

func (m *Manager) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if database.DB == nil {
		return fmt.Errorf("database not initialised")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return database.DB.WithContext(ctx).Transaction(fn)
}

func (m *Manager) cacheAdd(ip string) {
	current := m.cache.Load()
	next := make(map[string]struct{}, len(current)+1)
	for k := range current {
		next[k] = struct{}{}
	}
	next[ip] = struct{}{}
	m.cache.Store(next)
}

func (m *Manager) cacheRemove(ip string) {
	current := m.cache.Load()
	next := make(map[string]struct{}, len(current))
	for k := range current {
		if k != ip {
			next[k] = struct{}{}
		}
	}
	m.cache.Store(next)
}

func (m *Manager) applyRemote(ip, status string) {
	if status == domain.StatusBlocked {
		m.cacheAdd(ip)
	} else {
		m.cacheRemove(ip)
	}
}

func (m *Manager) audit(ip, action string, actor domain.Actor, reason, outcome, detail string) {
	entry := domain.AuditEntry{
		IP:      ip,
		Action:  action,
		Actor:   actor.String(),
		Reason:  reason,
		Outcome: outcome,
		Detail:  detail,
	}
	if err := database.AppendAuditEntry(entry); err != nil {
		log.Error("append audit entry", "ip", ip, "action", action, "error", err)
	}
}

func normalizeIP(raw string) (string, error) {
	parsed := net.ParseIP(strings.TrimSpace(raw))
	if parsed == nil {
		return "", ErrInvalidIP
	}
	return parsed.String(), nil
}

func lockRow(tx *gorm.DB) *gorm.DB {
	if isPostgresDialect(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

func isPostgresDialect(tx *gorm.DB) bool {
	if tx == nil || tx.Dialector == nil {
		return false
	}
	name := strings.ToLower(tx.Dialector.Name())
	return name == "postgres" || name == "postgresql"
}
