package detection

import (
	"fmt"
	"time"

	"kestrel/internal/config"
	"kestrel/internal/domain"
)

// Decision is the outcome of evaluating a window count against policy.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionFlag
	DecisionAutoBlock
)

func (d Decision) String() string {
	switch d {
	case DecisionFlag:
		return "flag"
	case DecisionAutoBlock:
		return "auto_block"
	default:
		return "none"
	}
}

// PolicyRule is one compiled row of the threshold table.
type PolicyRule struct {
	Threshold uint32
	Window    time.Duration
	Severity  domain.Severity
	AutoBlock bool
}

// Policy is the compiled threshold table. It holds no mutable state and
// performs no I/O; Evaluate is a pure function of (type, count).
type Policy struct {
	version string
	rules   map[domain.EventType]PolicyRule
}

// PolicyFromConfig compiles the configured rule table, rejecting unknown
// event types and severities so a bad config update cannot silently disable
// detection.
func PolicyFromConfig(cfg config.Config) (*Policy, error) {
	rules := make(map[domain.EventType]PolicyRule, len(cfg.Rules))

	for name, raw := range cfg.Rules {
		eventType := domain.EventType(name)
		if !eventType.Valid() {
			return nil, fmt.Errorf("policy: unknown event type %q", name)
		}

		severity := domain.Severity(raw.Severity)
		if !severity.Valid() {
			return nil, fmt.Errorf("policy: rule %q has unknown severity %q", name, raw.Severity)
		}

		rules[eventType] = PolicyRule{
			Threshold: raw.Threshold,
			Window:    time.Duration(raw.WindowSeconds) * time.Second,
			Severity:  severity,
			AutoBlock: raw.AutoBlock,
		}
	}

	for _, eventType := range domain.EventTypes() {
		if _, ok := rules[eventType]; !ok {
			return nil, fmt.Errorf("policy: no rule for event type %q", eventType)
		}
	}

	return &Policy{version: cfg.PolicyVersion, rules: rules}, nil
}

func (p *Policy) Version() string {
	return p.version
}

// Rule returns the policy row for the given type.
func (p *Policy) Rule(eventType domain.EventType) (PolicyRule, bool) {
	rule, ok := p.rules[eventType]
	return rule, ok
}

// Severity reports the severity policy assigns to the event type.
func (p *Policy) Severity(eventType domain.EventType) domain.Severity {
	return p.rules[eventType].Severity
}

// TypesForSeverity returns the event types policy maps to the given
// severity, in enum order. Used to translate severity filters into type
// filters.
func (p *Policy) TypesForSeverity(severity domain.Severity) []domain.EventType {
	var types []domain.EventType
	for _, eventType := range domain.EventTypes() {
		if p.rules[eventType].Severity == severity {
			types = append(types, eventType)
		}
	}
	return types
}

// Evaluate applies the threshold table to a window count. Identical inputs
// always produce the identical decision.
func (p *Policy) Evaluate(eventType domain.EventType, count uint32) Decision {
	rule, ok := p.rules[eventType]
	if !ok {
		return DecisionNone
	}
	if count < rule.Threshold {
		return DecisionNone
	}
	if rule.AutoBlock {
		return DecisionAutoBlock
	}
	return DecisionFlag
}
