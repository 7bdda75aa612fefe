package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all the Prometheus metrics for the classifier service.
type Metrics struct {
	CandidatesTotal        prometheus.Counter
	CandidatesInvalidTotal prometheus.Counter
	ThreatsClassified      *prometheus.CounterVec
	RuleMatchesTotal       *prometheus.CounterVec
	RuleErrorsTotal        prometheus.Counter
	IncidentsCreatedTotal  prometheus.Counter
	OrchestrationFallbacks prometheus.Counter
	StageErrorsTotal       *prometheus.CounterVec
	ScanOverlapsSkipped    *prometheus.CounterVec
	RulesLoaded            prometheus.Gauge
	ProfilesTracked        prometheus.Gauge
	PipelineDuration       prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	return &Metrics{
		CandidatesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classifier_candidates_total",
			Help: "Total number of raw threat candidates received",
		}),
		CandidatesInvalidTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classifier_candidates_invalid_total",
			Help: "Total number of candidates rejected at the ingest boundary",
		}),
		ThreatsClassified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_threats_classified_total",
			Help: "Total number of threats classified, by final severity",
		}, []string{"severity"}),
		RuleMatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_rule_matches_total",
			Help: "Total number of rule matches, by rule ID",
		}, []string{"rule_id"}),
		RuleErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classifier_rule_errors_total",
			Help: "Total number of rules skipped due to evaluation errors",
		}),
		IncidentsCreatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classifier_incidents_created_total",
			Help: "Total number of incidents created by the orchestrator",
		}),
		OrchestrationFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "classifier_orchestration_fallbacks_total",
			Help: "Total number of minimal incident inserts after orchestration failure",
		}),
		StageErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_stage_errors_total",
			Help: "Total number of pipeline stage failures, by stage",
		}, []string{"stage"}),
		ScanOverlapsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "classifier_scan_overlaps_skipped_total",
			Help: "Total number of scheduled runs skipped because the previous run was still in flight",
		}, []string{"scan_type"}),
		RulesLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "classifier_rules_loaded",
			Help: "Number of rules currently registered",
		}),
		ProfilesTracked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "classifier_behavioral_profiles",
			Help: "Number of behavioral profiles currently tracked",
		}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "classifier_pipeline_duration_seconds",
			Help:    "Duration of one classification pipeline run",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
