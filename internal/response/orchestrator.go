package response

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saksham1508/CyberSentinelAI/internal/metrics"
	"github.com/saksham1508/CyberSentinelAI/internal/model"
	"github.com/saksham1508/CyberSentinelAI/internal/store"
)

// Result is the outcome of orchestrating one threat.
type Result struct {
	IncidentID string                 `json:"incident_id"`
	Responses  []model.ResponseAction `json:"responses"`
	Status     string                 `json:"status"` // created, existing
}

// Orchestrator maps threat types onto canned response plans and tracks
// the resulting incidents.
type Orchestrator struct {
	incidents store.IncidentStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewOrchestrator creates an orchestrator over the given incident store.
func NewOrchestrator(incidents store.IncidentStore, logger *slog.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		incidents: incidents,
		logger:    logger,
		metrics:   m,
		now:       time.Now,
	}
}

// OrchestrateResponse creates an Active incident for the threat and
// attaches its response plan. Incident creation and response
// attachment are independent steps; a failed attachment leaves an
// incident without a plan rather than failing the call.
func (o *Orchestrator) OrchestrateResponse(ctx context.Context, threat model.ClassifiedThreat) (*Result, error) {
	if existingID, ok := o.incidents.ActiveIncidentForThreat(ctx, threat.ID); ok {
		o.logger.Debug("Active incident already exists for threat",
			"threat_id", threat.ID, "incident_id", existingID)
		existing, err := o.incidents.GetIncident(ctx, existingID)
		if err != nil {
			return &Result{IncidentID: existingID, Status: "existing"}, nil
		}
		return &Result{IncidentID: existing.ID, Responses: existing.Response, Status: "existing"}, nil
	}

	plan := o.planFor(threat)

	incident := &model.Incident{
		ThreatID: threat.ID,
		Status:   model.IncidentActive,
	}
	if err := o.incidents.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("incident creation failed for threat %s: %w", threat.ID, err)
	}
	if o.metrics != nil {
		o.metrics.IncidentsCreatedTotal.Inc()
	}

	if err := o.incidents.AttachResponse(ctx, incident.ID, plan); err != nil {
		o.logger.Error("Failed to attach response plan, incident left without plan",
			"incident_id", incident.ID, "error", err)
		return &Result{IncidentID: incident.ID, Status: "created"}, nil
	}

	o.logger.Info("Incident response orchestrated",
		"incident_id", incident.ID,
		"threat_id", threat.ID,
		"threat_type", threat.Threat.Type,
		"actions", len(plan))

	return &Result{IncidentID: incident.ID, Responses: plan, Status: "created"}, nil
}

// FallbackMinimalIncident inserts a bare incident record after a failed
// orchestration, so the threat is at least tracked. Failure here is
// returned for logging only; callers must not propagate it.
func (o *Orchestrator) FallbackMinimalIncident(ctx context.Context, threat model.ClassifiedThreat) (string, error) {
	if o.metrics != nil {
		o.metrics.OrchestrationFallbacks.Inc()
	}
	incident := &model.Incident{
		ThreatID: threat.ID,
		Status:   model.IncidentActive,
		Response: []model.ResponseAction{{
			Action:    "log_event",
			Target:    threat.ID,
			Status:    model.ActionEnabled,
			Timestamp: o.now().UTC(),
		}},
	}
	if err := o.incidents.CreateIncident(ctx, incident); err != nil {
		return "", fmt.Errorf("minimal incident insert failed for threat %s: %w", threat.ID, err)
	}
	return incident.ID, nil
}

// planFor maps a threat type onto its strategy's ordered action list.
// Unknown types get the default two-action plan.
func (o *Orchestrator) planFor(threat model.ClassifiedThreat) []model.ResponseAction {
	now := o.now().UTC()
	source := threat.Threat.SourceIP
	if source == "" {
		source = "unknown"
	}

	switch threat.Threat.Type {
	case model.TypeDDoS:
		return []model.ResponseAction{
			{Action: "rate_limiting", Target: source, Duration: "1h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "ip_blocking", Target: source, Duration: "24h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "traffic_filtering", Target: "edge", Duration: "1h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "alert_notification", Target: "security-ops", Status: model.ActionPending, Timestamp: now},
		}
	case model.TypeIntrusion:
		return []model.ResponseAction{
			{Action: "isolate_host", Target: threat.Threat.DestIP, Duration: "2h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "block_ip", Target: source, Duration: "24h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "forensic_capture", Target: threat.Threat.DestIP, Status: model.ActionPending, Timestamp: now},
			{Action: "alert_notification", Target: "security-ops", Status: model.ActionPending, Timestamp: now},
		}
	case model.TypeMalware:
		return []model.ResponseAction{
			{Action: "quarantine_host", Target: threat.Threat.DestIP, Duration: "4h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "signature_update", Target: "endpoint-fleet", Status: model.ActionPending, Timestamp: now},
			{Action: "block_ip", Target: source, Duration: "24h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "alert_notification", Target: "security-ops", Status: model.ActionPending, Timestamp: now},
		}
	case model.TypeCredentialCompromise:
		return []model.ResponseAction{
			{Action: "force_password_reset", Target: "affected-accounts", Status: model.ActionEnabled, Timestamp: now},
			{Action: "revoke_sessions", Target: "affected-accounts", Status: model.ActionEnabled, Timestamp: now},
			{Action: "block_ip", Target: source, Duration: "24h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "alert_notification", Target: "identity-team", Status: model.ActionPending, Timestamp: now},
		}
	case model.TypeSuspiciousConnection:
		return []model.ResponseAction{
			{Action: "connection_monitoring", Target: source, Duration: "24h", Status: model.ActionEnabled, Timestamp: now},
			{Action: "ip_reputation_check", Target: source, Status: model.ActionPending, Timestamp: now},
			{Action: "alert_notification", Target: "security-ops", Status: model.ActionPending, Timestamp: now},
		}
	default:
		return []model.ResponseAction{
			{Action: "log_event", Target: threat.ID, Status: model.ActionEnabled, Timestamp: now},
			{Action: "create_alert", Target: "security-ops", Severity: threat.Threat.Severity.String(), Status: model.ActionPending, Timestamp: now},
		}
	}
}
