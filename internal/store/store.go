package store

import (
	"context"
	"errors"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ThreatFilter narrows ListThreats results.
type ThreatFilter struct {
	Severity model.Severity
	Type     model.ThreatType
	Limit    int
}

// ThreatStore persists classified threats. SaveThreats assigns
// identities; records are read-only afterwards.
type ThreatStore interface {
	SaveThreats(ctx context.Context, threats []model.ClassifiedThreat) ([]model.ClassifiedThreat, error)
	GetThreat(ctx context.Context, id string) (*model.ClassifiedThreat, error)
	ListThreats(ctx context.Context, filter ThreatFilter) ([]model.ClassifiedThreat, error)
}

// IncidentStore persists incident records and their response plans.
type IncidentStore interface {
	CreateIncident(ctx context.Context, incident *model.Incident) error
	AttachResponse(ctx context.Context, id string, actions []model.ResponseAction) error
	GetIncident(ctx context.Context, id string) (*model.Incident, error)
	ListIncidents(ctx context.Context, limit int) ([]model.Incident, error)
	CloseIncident(ctx context.Context, id string) error

	// ActiveIncidentForThreat reports a known active incident for a
	// threat, if any, so overlapping runs do not open duplicates.
	ActiveIncidentForThreat(ctx context.Context, threatID string) (string, bool)
}
