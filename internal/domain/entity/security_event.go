// Package entity contains the core business objects of the project.
package entity

// Severity ranks a security event. Ordering matters: incident severity only
// escalates, never downgrades.
type Severity string

const (
	// SeverityLow marks routine events such as session creation.
	SeverityLow Severity = "LOW"
	// SeverityMedium marks suspicious events such as login failures.
	SeverityMedium Severity = "MEDIUM"
	// SeverityHigh marks events indicating active abuse.
	SeverityHigh Severity = "HIGH"
)

// rank maps a severity to its ordinal for escalation comparison.
func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Escalate returns the more severe of the two severities.
func (s Severity) Escalate(other Severity) Severity {
	if other.rank() > s.rank() {
		return other
	}

	return s
}

// Event types emitted by the security event pipeline.
const (
	EventLoginSuccess   = "LOGIN_SUCCESS"
	EventLoginFailure   = "LOGIN_FAILURE"
	EventBruteForce     = "BRUTE_FORCE_ATTEMPT"
	EventSessionCreated = "SESSION_CREATED"
	EventSessionRevoked = "SESSION_REVOKED"
	EventAccessDenied   = "ACCESS_DENIED"
)

// EventActor identifies who an event is attributed to. Either field may be
// empty depending on the source log.
type EventActor struct {
	UserID string `json:"userId,omitempty"`
	Email  string `json:"email,omitempty"`
}

// EventNetwork carries the network metadata of an event.
type EventNetwork struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// SecurityEvent is the normalized form every source log row is mapped into
// before sorting, correlation, and export.
type SecurityEvent struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	Severity      Severity     `json:"severity"`
	Timestamp     string       `json:"timestamp"`
	Actor         EventActor   `json:"actor"`
	Network       EventNetwork `json:"network"`
	SessionID     string       `json:"sessionId,omitempty"`
	Source        string       `json:"source"`
	Description   string       `json:"description"`
	CorrelationID string       `json:"correlationId,omitempty"`
}

// SecurityIncident groups correlated events sharing an actor, IP, and time
// bucket. Severity is the escalated maximum over member events; Actors and
// Sources are the de-duplicated identity and source-table sets of the
// members, and Events carries the members themselves.
type SecurityIncident struct {
	ID         string          `json:"id"`
	Severity   Severity        `json:"severity"`
	Actor      EventActor      `json:"actor"`
	Actors     []string        `json:"actors"`
	Sources    []string        `json:"sources"`
	IPAddress  string          `json:"ipAddress,omitempty"`
	FirstSeen  string          `json:"firstSeen"`
	LastSeen   string          `json:"lastSeen"`
	EventCount int             `json:"eventCount"`
	EventTypes []string        `json:"eventTypes"`
	Events     []SecurityEvent `json:"events"`
	Confidence float64         `json:"confidence"`
}

// EventSummary is the aggregate block of a JSON export.
type EventSummary struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"bySeverity"`
	ByType     map[string]int `json:"byType"`
	Incidents  int            `json:"incidents"`
}

// EventRange echoes the queried time range in an export.
type EventRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SecurityReport is the full JSON export payload.
type SecurityReport struct {
	Range     EventRange         `json:"range"`
	Summary   EventSummary       `json:"summary"`
	Events    []SecurityEvent    `json:"events"`
	Incidents []SecurityIncident `json:"incidents"`
}
