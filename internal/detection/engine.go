package detection

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"kestrel/internal/config"
	"kestrel/internal/detection/window"
	"kestrel/internal/domain"

	"github.com/charmbracelet/log"
)

// Ingestion errors. Both are rejected locally at the recording boundary and
// never bubble into the application that produced the event.
var (
	ErrInvalidEventType = errors.New("invalid event type")
	ErrInvalidIP        = errors.New("invalid ip address")
)

// AutoBlocker applies a policy-triggered block. Implemented by the blocker
// manager; declared here so the engine does not depend on it.
type AutoBlocker interface {
	AutoBlock(ctx context.Context, ip string, eventType domain.EventType, severity domain.Severity, count uint32) error
}

// GeoResolver annotates events with origin data, best effort.
type GeoResolver interface {
	Lookup(ip string) (country, asnOrg string)
}

// PublicEngine is the process-wide engine instance, wired at bootstrap.
var PublicEngine *Engine

// Engine is the ingestion pipeline: validate, count in window, evaluate
// policy, hand off persistence, trigger auto-blocks.
type Engine struct {
	windows *window.Aggregator
	writer  *eventWriter
	policy  atomic.Pointer[Policy]
	blocker AutoBlocker
	geo     GeoResolver

	seq atomic.Uint64
	now func() time.Time
}

func NewEngine(cfg config.Config, policy *Policy, blocker AutoBlocker, geo GeoResolver) *Engine {
	e := &Engine{
		windows: window.NewAggregator(),
		writer: newEventWriter(
			int(cfg.Ingest.QueueSize),
			int(cfg.Ingest.BatchMaxItems),
			time.Duration(cfg.Ingest.BatchWindowMs)*time.Millisecond,
		),
		blocker: blocker,
		geo:     geo,
		now:     time.Now,
	}
	e.policy.Store(policy)
	return e
}

func (e *Engine) Start() {
	e.writer.start()
}

// Close flushes pending events. Call on shutdown.
func (e *Engine) Close() {
	e.writer.close()
}

// ReloadPolicy swaps the threshold table; in-flight evaluations finish on
// the table they started with.
func (e *Engine) ReloadPolicy(policy *Policy) {
	e.policy.Store(policy)
	log.Info("Detection policy reloaded", "version", policy.Version())
}

func (e *Engine) Policy() *Policy {
	return e.policy.Load()
}

// Record ingests one suspicious event. It validates the input, bumps the
// window counter, queues the durable append, and applies the policy
// decision. The returned value is the in-process ingest sequence, an
// acknowledgment that the event was accepted.
//
// Events for already-blocked IPs are recorded like any other; blocked IPs
// keep accumulating history for review.
func (e *Engine) Record(ctx context.Context, ip string, eventType domain.EventType, metadata map[string]string) (uint64, error) {
	if !eventType.Valid() {
		return 0, ErrInvalidEventType
	}

	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return 0, ErrInvalidIP
	}
	normalized := parsed.String()

	policy := e.policy.Load()
	rule, ok := policy.Rule(eventType)
	if !ok {
		return 0, ErrInvalidEventType
	}

	occurredAt := e.now()
	count := e.windows.Observe(normalized, eventType, occurredAt, rule.Window)

	event := domain.SuspiciousEvent{
		IP:         normalized,
		Type:       eventType,
		Severity:   rule.Severity,
		OccurredAt: occurredAt,
		Metadata:   encodeMetadata(metadata),
	}
	if e.geo != nil {
		event.Country, event.ASNOrg = e.geo.Lookup(normalized)
	}

	e.writer.enqueue(pendingEvent{event: event, count: count})

	if policy.Evaluate(eventType, count) == DecisionAutoBlock && e.blocker != nil {
		if err := e.blocker.AutoBlock(ctx, normalized, eventType, rule.Severity, count); err != nil {
			log.Error("auto-block failed", "ip", normalized, "type", eventType, "error", err)
		}
	}

	return e.seq.Add(1), nil
}

// CountInWindow reports the live window count for (ip, type) using the
// window length the current policy assigns to the type.
func (e *Engine) CountInWindow(ip string, eventType domain.EventType) uint32 {
	rule, ok := e.policy.Load().Rule(eventType)
	if !ok {
		return 0
	}
	return e.windows.CountInWindow(ip, eventType, rule.Window)
}

func encodeMetadata(metadata map[string]string) string {
	if len(metadata) == 0 {
		return ""
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return ""
	}
	return string(payload)
}
