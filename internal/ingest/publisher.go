package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Subjects on the enriched side of the boundary.
const (
	SubjectEnriched  = "threats.enriched"
	SubjectIncidents = "incidents.created"
	SubjectAlerts    = "alerts.threat"
)

// Publisher pushes enriched threats, incidents, and alerts onto NATS
// for downstream consumers (dashboard, API, responders).
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewPublisher creates a NATS-backed publisher.
func NewPublisher(nc *nats.Conn, logger *slog.Logger) *Publisher {
	return &Publisher{nc: nc, logger: logger}
}

// PublishThreat publishes one enriched threat record.
func (p *Publisher) PublishThreat(_ context.Context, threat model.ClassifiedThreat) error {
	return p.publish(SubjectEnriched, threat)
}

// PublishIncident announces a newly created incident.
func (p *Publisher) PublishIncident(_ context.Context, incidentID string, threat model.ClassifiedThreat) error {
	return p.publish(SubjectIncidents, map[string]interface{}{
		"incident_id": incidentID,
		"threat_id":   threat.ID,
		"threat_type": threat.Threat.Type,
		"severity":    threat.Threat.Severity.String(),
		"timestamp":   time.Now().UTC(),
	})
}

// PublishAlert publishes an alert for a threat that passed the
// severity gates.
func (p *Publisher) PublishAlert(_ context.Context, threat model.ClassifiedThreat) error {
	return p.publish(SubjectAlerts, map[string]interface{}{
		"threat_id":      threat.ID,
		"threat_type":    threat.Threat.Type,
		"severity":       threat.Threat.Severity.String(),
		"description":    threat.Threat.Description,
		"recommendation": threat.Classification.Recommendation,
		"timestamp":      time.Now().UTC(),
	})
}

func (p *Publisher) publish(subject string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s: %w", subject, err)
	}
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	p.logger.Debug("Published message", "subject", subject, "bytes", len(data))
	return nil
}
