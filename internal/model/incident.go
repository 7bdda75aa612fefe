package model

import (
	"strings"
	"time"
)

// IncidentStatus is the incident lifecycle tag set.
type IncidentStatus string

const (
	IncidentActive IncidentStatus = "Active"
	IncidentClosed IncidentStatus = "Closed"
)

// ParseIncidentStatus normalizes a status string. "open" is a legacy
// alias for Active and is never emitted.
func ParseIncidentStatus(raw string) IncidentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "closed":
		return IncidentClosed
	default:
		return IncidentActive
	}
}

// ResponseActionStatus tracks whether a response action took effect.
const (
	ActionEnabled = "enabled"
	ActionPending = "pending"
)

// ResponseAction is one step of an incident response plan.
type ResponseAction struct {
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Duration  string    `json:"duration,omitempty"`
	Severity  string    `json:"severity,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Incident tracks the automated response to one High or Critical
// threat. Created Active with a response plan; closed only by explicit
// operator action through the API.
type Incident struct {
	ID        string           `json:"id"`
	ThreatID  string           `json:"threat_id"`
	Status    IncidentStatus   `json:"status"`
	Response  []ResponseAction `json:"response,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
