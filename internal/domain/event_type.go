package domain

// EventType identifies the class of suspicious behaviour an event reports.
// The set is closed; ingestion rejects anything else.
type EventType string

const (
	EventBruteForce       EventType = "brute_force"
	EventScan404          EventType = "scan_404"
	EventSensitivePath    EventType = "sensitive_path"
	EventPayloadInjection EventType = "payload_injection"
	EventBurst            EventType = "burst"
	EventUserAgentAnomaly EventType = "user_agent_anomaly"
)

// Severity is a property of the event type, assigned by policy.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var eventTypes = map[EventType]struct{}{
	EventBruteForce:       {},
	EventScan404:          {},
	EventSensitivePath:    {},
	EventPayloadInjection: {},
	EventBurst:            {},
	EventUserAgentAnomaly: {},
}

var severities = map[Severity]struct{}{
	SeverityLow:      {},
	SeverityMedium:   {},
	SeverityHigh:     {},
	SeverityCritical: {},
}

func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

func (s Severity) Valid() bool {
	_, ok := severities[s]
	return ok
}

// EventTypes returns the closed set of event types in a stable order.
func EventTypes() []EventType {
	return []EventType{
		EventBruteForce,
		EventScan404,
		EventSensitivePath,
		EventPayloadInjection,
		EventBurst,
		EventUserAgentAnomaly,
	}
}
