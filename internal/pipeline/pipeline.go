package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saksham1508/CyberSentinelAI/internal/assets"
	"github.com/saksham1508/CyberSentinelAI/internal/config"
	"github.com/saksham1508/CyberSentinelAI/internal/explain"
	"github.com/saksham1508/CyberSentinelAI/internal/metrics"
	"github.com/saksham1508/CyberSentinelAI/internal/model"
	"github.com/saksham1508/CyberSentinelAI/internal/profiler"
	"github.com/saksham1508/CyberSentinelAI/internal/response"
	"github.com/saksham1508/CyberSentinelAI/internal/rules"
	"github.com/saksham1508/CyberSentinelAI/internal/scoring"
	"github.com/saksham1508/CyberSentinelAI/internal/store"
)

// Recommendation labels by final severity.
const (
	RecommendCritical = "Immediate action required"
	RecommendHigh     = "Investigate within 1 hour"
	RecommendMedium   = "Review within 24 hours"
	RecommendLow      = "Log for reference"
)

// Publisher pushes classified threats and incident notifications to
// downstream consumers. All methods are best-effort at the pipeline
// level.
type Publisher interface {
	PublishThreat(ctx context.Context, threat model.ClassifiedThreat) error
	PublishIncident(ctx context.Context, incidentID string, threat model.ClassifiedThreat) error
	PublishAlert(ctx context.Context, threat model.ClassifiedThreat) error
}

// Result reports one pipeline run, including the partial-failure
// accounting surfaced to callers.
type Result struct {
	Threats     []model.ClassifiedThreat `json:"threats"`
	IncidentIDs []string                 `json:"incident_ids,omitempty"`
	Alerts      int                      `json:"alerts"`
	StageErrors map[string]int           `json:"stage_errors,omitempty"`
	Degraded    []string                 `json:"degraded_stages,omitempty"`
	Duration    time.Duration            `json:"duration"`
}

func (r *Result) recordStageError(stage string) {
	if r.StageErrors == nil {
		r.StageErrors = make(map[string]int)
	}
	r.StageErrors[stage]++
}

func (r *Result) markDegraded(stage string) {
	for _, s := range r.Degraded {
		if s == stage {
			return
		}
	}
	r.Degraded = append(r.Degraded, stage)
}

// Pipeline sequences the classification stages over a batch of raw
// threat candidates. Any stage's failure degrades to passing through
// the pre-stage data; it never aborts the batch.
type Pipeline struct {
	scorer       *scoring.AnomalyScorer
	profiler     *profiler.BehavioralProfiler
	engine       *rules.Engine
	assessor     *assets.Assessor
	auditor      *explain.Auditor
	orchestrator *response.Orchestrator
	threats      store.ThreatStore
	config       *config.Manager
	publisher    Publisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// New wires a pipeline. publisher may be nil.
func New(
	scorer *scoring.AnomalyScorer,
	behavioral *profiler.BehavioralProfiler,
	engine *rules.Engine,
	assessor *assets.Assessor,
	auditor *explain.Auditor,
	orchestrator *response.Orchestrator,
	threats store.ThreatStore,
	configManager *config.Manager,
	publisher Publisher,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Pipeline {
	return &Pipeline{
		scorer:       scorer,
		profiler:     behavioral,
		engine:       engine,
		assessor:     assessor,
		auditor:      auditor,
		orchestrator: orchestrator,
		threats:      threats,
		config:       configManager,
		publisher:    publisher,
		logger:       logger,
		metrics:      m,
	}
}

func (p *Pipeline) snapshot() config.Snapshot {
	if p.config != nil {
		if current := p.config.Current(); current != nil {
			return *current
		}
	}
	return config.Snapshot{AIEnabled: true, AlertOnHighSeverity: true}
}

// Run classifies a batch of raw candidates end to end.
func (p *Pipeline) Run(ctx context.Context, raw []model.Threat) (*Result, error) {
	start := time.Now()
	result := &Result{}
	cfg := p.snapshot()

	candidates := make([]*model.Candidate, 0, len(raw))
	for _, threat := range raw {
		candidates = append(candidates, model.NewCandidate(threat))
	}

	if cfg.AIEnabled {
		p.stageAnomaly(candidates, result)
		p.stageBehavioral(candidates, result)
	} else {
		p.logger.Debug("AI scoring disabled by configuration, skipping scorer stages")
	}
	p.stageRules(candidates, result)
	p.stageEscalation(candidates)
	p.stageRecommendation(candidates)
	p.stageExplain(candidates, result)
	p.stageAssets(candidates, result)

	saved := p.stagePersist(ctx, candidates, result)
	reread := p.stageReread(ctx, saved, result)
	p.stageOrchestrate(ctx, reread, cfg, result)

	result.Threats = reread
	result.Duration = time.Since(start)
	if p.metrics != nil {
		p.metrics.PipelineDuration.Observe(result.Duration.Seconds())
	}

	p.logger.Info("Pipeline run complete",
		"candidates", len(raw),
		"persisted", len(reread),
		"incidents", len(result.IncidentIDs),
		"degraded_stages", result.Degraded,
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

func (p *Pipeline) stageError(stage string, result *Result, err error) {
	p.logger.Error("Pipeline stage error", "stage", stage, "error", err)
	result.recordStageError(stage)
	result.markDegraded(stage)
	if p.metrics != nil {
		p.metrics.StageErrorsTotal.WithLabelValues(stage).Inc()
	}
}

func (p *Pipeline) stageAnomaly(candidates []*model.Candidate, result *Result) {
	for _, candidate := range candidates {
		score, err := p.scorer.Score(candidate.Threat)
		if err != nil {
			p.stageError("anomaly_scoring", result, err)
			continue
		}
		candidate.Classification.AnomalyScore = score
		candidate.Classification.Anomaly = p.scorer.IsAnomaly(score)
	}
}

func (p *Pipeline) stageBehavioral(candidates []*model.Candidate, result *Result) {
	for _, candidate := range candidates {
		features, err := p.profiler.Observe(candidate.Threat)
		if err != nil {
			p.stageError("behavioral_profiling", result, err)
			continue
		}
		candidate.Classification.Features = features
		score, err := p.profiler.Score(features)
		if err != nil {
			p.stageError("behavioral_scoring", result, err)
			continue
		}
		candidate.Classification.BehavioralScore = score
		candidate.Classification.BehavioralAnomaly = p.profiler.IsAnomalous(score)
	}
	if p.metrics != nil {
		p.metrics.ProfilesTracked.Set(float64(p.profiler.ProfileCount()))
	}
}

func (p *Pipeline) stageRules(candidates []*model.Candidate, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.stageError("rules", result, fmt.Errorf("rules stage panic: %v", r))
		}
	}()
	p.engine.Apply(candidates)
}

// stageEscalation applies the severity escalation policy: each anomaly
// flag promotes one level, capped at High. A rule-set Critical is never
// overridden, and nothing is ever demoted.
func (p *Pipeline) stageEscalation(candidates []*model.Candidate) {
	for _, candidate := range candidates {
		c := &candidate.Classification
		if candidate.RuleCritical {
			c.Prediction = predictionLabel(c)
			c.Confidence = confidence(c)
			continue
		}
		promoted := candidate.Severity
		if c.Anomaly && promoted < model.SeverityHigh {
			promoted++
		}
		if c.BehavioralAnomaly && promoted < model.SeverityHigh {
			promoted++
		}
		candidate.Severity = candidate.Severity.Escalate(promoted)
		c.Prediction = predictionLabel(c)
		c.Confidence = confidence(c)
	}
}

func predictionLabel(c *model.Classification) string {
	if c.Anomaly || c.BehavioralAnomaly {
		return "Anomalous"
	}
	return "Normal"
}

func confidence(c *model.Classification) float64 {
	if c.BehavioralScore > c.AnomalyScore {
		return c.BehavioralScore
	}
	return c.AnomalyScore
}

func (p *Pipeline) stageRecommendation(candidates []*model.Candidate) {
	for _, candidate := range candidates {
		switch candidate.Severity {
		case model.SeverityCritical:
			candidate.Classification.Recommendation = RecommendCritical
		case model.SeverityHigh:
			candidate.Classification.Recommendation = RecommendHigh
		case model.SeverityMedium:
			candidate.Classification.Recommendation = RecommendMedium
		default:
			candidate.Classification.Recommendation = RecommendLow
		}
	}
}

func (p *Pipeline) stageExplain(candidates []*model.Candidate, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.stageError("explainability", result, fmt.Errorf("explain stage panic: %v", r))
		}
	}()
	for _, candidate := range candidates {
		explanation := p.auditor.Explain(
			candidate.Threat,
			candidate.Severity,
			candidate.Classification.Confidence,
			candidate.Classification.Features,
		)
		candidate.Classification.Explanation = &explanation
	}
}

func (p *Pipeline) stageAssets(candidates []*model.Candidate, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			p.stageError("asset_risk", result, fmt.Errorf("asset stage panic: %v", r))
		}
	}()
	p.assessor.ProtectCriticalAssets(candidates)
}

func (p *Pipeline) stagePersist(ctx context.Context, candidates []*model.Candidate, result *Result) []model.ClassifiedThreat {
	merged := make([]model.ClassifiedThreat, 0, len(candidates))
	for _, candidate := range candidates {
		merged = append(merged, candidate.Merge())
	}

	saved, err := p.threats.SaveThreats(ctx, merged)
	if err != nil {
		p.stageError("persistence", result, err)
		return merged
	}
	if p.metrics != nil {
		for _, threat := range saved {
			p.metrics.ThreatsClassified.WithLabelValues(threat.Threat.Severity.String()).Inc()
		}
	}
	return saved
}

// stageReread loads the just-persisted records back so downstream
// stages work with store-assigned identities. A failed read falls back
// to the in-memory copy.
func (p *Pipeline) stageReread(ctx context.Context, saved []model.ClassifiedThreat, result *Result) []model.ClassifiedThreat {
	out := make([]model.ClassifiedThreat, 0, len(saved))
	for _, threat := range saved {
		if threat.ID == "" {
			out = append(out, threat)
			continue
		}
		stored, err := p.threats.GetThreat(ctx, threat.ID)
		if err != nil {
			p.stageError("reread", result, err)
			out = append(out, threat)
			continue
		}
		out = append(out, *stored)
	}
	return out
}

func (p *Pipeline) stageOrchestrate(ctx context.Context, threats []model.ClassifiedThreat, cfg config.Snapshot, result *Result) {
	for _, threat := range threats {
		p.publish(ctx, threat)

		severity := threat.Threat.Severity
		if p.alertGated(severity, cfg) {
			if p.publisher != nil {
				if err := p.publisher.PublishAlert(ctx, threat); err != nil {
					p.logger.Error("Alert publish failed", "threat_id", threat.ID, "error", err)
				}
			}
			result.Alerts++
		}

		if severity < model.SeverityHigh {
			continue
		}

		orchestration, err := p.orchestrator.OrchestrateResponse(ctx, threat)
		if err != nil {
			p.stageError("orchestration", result, err)
			incidentID, fallbackErr := p.orchestrator.FallbackMinimalIncident(ctx, threat)
			if fallbackErr != nil {
				p.logger.Error("Threat left without incident",
					"threat_id", threat.ID, "error", fallbackErr)
				continue
			}
			result.IncidentIDs = append(result.IncidentIDs, incidentID)
			continue
		}
		result.IncidentIDs = append(result.IncidentIDs, orchestration.IncidentID)
		if p.publisher != nil && orchestration.Status == "created" {
			if err := p.publisher.PublishIncident(ctx, orchestration.IncidentID, threat); err != nil {
				p.logger.Error("Incident publish failed", "incident_id", orchestration.IncidentID, "error", err)
			}
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, threat model.ClassifiedThreat) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishThreat(ctx, threat); err != nil {
		p.logger.Error("Threat publish failed", "threat_id", threat.ID, "error", err)
	}
}

func (p *Pipeline) alertGated(severity model.Severity, cfg config.Snapshot) bool {
	switch {
	case severity >= model.SeverityHigh:
		return cfg.AlertOnHighSeverity
	case severity == model.SeverityMedium:
		return cfg.AlertOnMediumSeverity
	default:
		return false
	}
}
