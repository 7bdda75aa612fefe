package assets

import (
	"log/slog"
	"sync"
	"time"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Risk score weights.
const (
	portMatchWeight = 0.5
	portMissWeight  = 0.2
	typeMatchWeight = 0.3
	recordThreshold = 0.5
	immediateTier   = 0.8
)

// RiskAssessment is the result of scoring one threat against one asset.
type RiskAssessment struct {
	AssetID           string   `json:"asset_id"`
	AssetName         string   `json:"asset_name"`
	RiskScore         float64  `json:"risk_score"`
	IsDirectThreat    bool     `json:"is_direct_threat"`
	IsTypicalThreat   bool     `json:"is_typical_threat"`
	RecommendedAction string   `json:"recommended_action"`
	Responses         []string `json:"responses"`
}

// AssetStatus is one asset's entry in the infrastructure status report.
type AssetStatus struct {
	Asset          Asset   `json:"asset"`
	Status         string  `json:"status"`
	UptimeEstimate float64 `json:"uptime_estimate"`
	RecentThreats  int     `json:"recent_threats"`
	AtRisk         bool    `json:"at_risk"`
}

// InfrastructureStatus aggregates per-asset health for reporting.
type InfrastructureStatus struct {
	Assets      []AssetStatus `json:"assets"`
	AtRiskCount int           `json:"at_risk_count"`
	GeneratedAt time.Time     `json:"generated_at"`
}

// Assessor scores threats against the static asset registry and tracks
// per-asset health.
type Assessor struct {
	mu       sync.Mutex
	registry []Asset
	health   map[string]*Health
	logger   *slog.Logger
}

// NewAssessor creates an assessor over the given registry. A nil
// registry uses the default one.
func NewAssessor(registry []Asset, logger *slog.Logger) *Assessor {
	if registry == nil {
		registry = DefaultRegistry()
	}
	health := make(map[string]*Health, len(registry))
	for _, asset := range registry {
		health[asset.ID] = newHealth()
	}
	return &Assessor{registry: registry, health: health, logger: logger}
}

// Assess scores one threat against one asset. The returned risk score
// is always within [0,1].
func (a *Assessor) Assess(threat model.Threat, severity model.Severity, asset Asset) RiskAssessment {
	portMatch := false
	for _, port := range asset.Ports {
		if threat.Port == port {
			portMatch = true
			break
		}
	}

	typeMatch := typicalThreat(asset.Category, threat.Type)

	score := portMissWeight
	if portMatch {
		score = portMatchWeight
	}
	if typeMatch {
		score += typeMatchWeight
	}
	score += severity.Score()
	if score > 1.0 {
		score = 1.0
	}

	action, responses := recommendation(score)

	return RiskAssessment{
		AssetID:           asset.ID,
		AssetName:         asset.Name,
		RiskScore:         score,
		IsDirectThreat:    portMatch,
		IsTypicalThreat:   typeMatch,
		RecommendedAction: action,
		Responses:         responses,
	}
}

// recommendation maps a risk score onto a mitigation tier.
func recommendation(score float64) (string, []string) {
	switch {
	case score > immediateTier:
		return "immediate", []string{"isolate affected asset", "initiate failover", "escalate to response team"}
	case score > recordThreshold:
		return "high", []string{"increase monitoring", "alert security team"}
	default:
		return "medium", []string{"log for review", "continue standard monitoring"}
	}
}

// ProtectCriticalAssets assesses every (candidate, asset) pair,
// attaches qualifying hits (risk score above 0.5) to the candidate's
// classification, and records them into the asset's health ring.
func (a *Assessor) ProtectCriticalAssets(candidates []*model.Candidate) []RiskAssessment {
	a.mu.Lock()
	defer a.mu.Unlock()

	var qualifying []RiskAssessment
	for _, candidate := range candidates {
		for _, asset := range a.registry {
			assessment := a.Assess(candidate.Threat, candidate.Severity, asset)
			if assessment.RiskScore <= recordThreshold {
				continue
			}
			qualifying = append(qualifying, assessment)
			candidate.Classification.AssetRisks = append(candidate.Classification.AssetRisks, model.AssetRisk{
				AssetID:           assessment.AssetID,
				AssetName:         assessment.AssetName,
				RiskScore:         assessment.RiskScore,
				IsDirectThreat:    assessment.IsDirectThreat,
				IsTypicalThreat:   assessment.IsTypicalThreat,
				RecommendedAction: assessment.RecommendedAction,
				Responses:         assessment.Responses,
			})
			a.health[asset.ID].record(RiskEntry{
				ThreatType: candidate.Threat.Type,
				SourceIP:   candidate.Threat.SourceIP,
				RiskScore:  assessment.RiskScore,
				RecordedAt: time.Now().UTC(),
			})
			a.logger.Debug("Asset risk recorded",
				"asset_id", asset.ID,
				"risk_score", assessment.RiskScore,
				"direct", assessment.IsDirectThreat)
		}
	}
	return qualifying
}

// Status reports per-asset health and the aggregate at-risk count.
func (a *Assessor) Status() InfrastructureStatus {
	a.mu.Lock()
	defer a.mu.Unlock()

	status := InfrastructureStatus{GeneratedAt: time.Now().UTC()}
	for _, asset := range a.registry {
		health := a.health[asset.ID]
		atRisk := health.Status == "at_risk"
		if atRisk {
			status.AtRiskCount++
		}
		status.Assets = append(status.Assets, AssetStatus{
			Asset:          asset,
			Status:         health.Status,
			UptimeEstimate: health.UptimeEstimate,
			RecentThreats:  health.retained,
			AtRisk:         atRisk,
		})
	}
	return status
}
