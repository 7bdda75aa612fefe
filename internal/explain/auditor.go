package explain

import (
	"container/ring"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
	"github.com/saksham1508/CyberSentinelAI/internal/profiler"
)

// HistorySize bounds the retained explanation history.
const HistorySize = 1000

// Contribution impact thresholds.
const (
	highImpactThreshold   = 0.7
	mediumImpactThreshold = 0.4
	maxContributions      = 5
)

// Bias indicator thresholds and scores. An indicator is biased once its
// counter exceeds the threshold.
const (
	sourceOctetThreshold = 50
	portThreshold        = 100
	threatTypeThreshold  = 80

	sourceOctetBiasScore = 0.3
	portBiasScore        = 0.25
	threatTypeBiasScore  = 0.2
	unbiasedBaseline     = 0.05

	biasFlagThreshold = 0.15
)

// criticalServicePorts is the curated port list treated as a risk
// factor when targeted.
var criticalServicePorts = map[int]bool{
	22: true, 80: true, 443: true, 3306: true,
	3389: true, 5432: true, 5900: true, 27017: true,
}

// TransparencyReport aggregates the retained explanation history.
type TransparencyReport struct {
	TotalExplanations    int            `json:"total_explanations"`
	AverageConfidence    float64        `json:"average_confidence"`
	ConfidenceTiers      map[string]int `json:"confidence_tiers"`
	BiasFlaggedCount     int            `json:"bias_flagged_count"`
	ActiveBiasIndicators []string       `json:"active_bias_indicators,omitempty"`
	Recommendations      []string       `json:"recommendations,omitempty"`
	GeneratedAt          time.Time      `json:"generated_at"`
}

// Auditor produces per-threat rationale and tracks statistical bias in
// the overall decision stream.
type Auditor struct {
	mu           sync.Mutex
	sourceOctets map[string]int64
	ports        map[int]int64
	threatTypes  map[model.ThreatType]int64
	history      *ring.Ring
	retained     int
	logger       *slog.Logger
}

// NewAuditor creates an auditor with empty counters.
func NewAuditor(logger *slog.Logger) *Auditor {
	return &Auditor{
		sourceOctets: make(map[string]int64),
		ports:        make(map[int]int64),
		threatTypes:  make(map[model.ThreatType]int64),
		history:      ring.New(HistorySize),
		logger:       logger,
	}
}

// Explain builds the rationale for one classification and appends it to
// the bounded history.
func (a *Auditor) Explain(threat model.Threat, severity model.Severity, confidence float64, features []float64) model.Explanation {
	a.mu.Lock()
	defer a.mu.Unlock()

	contributions := featureContributions(features)
	explanation := model.Explanation{
		Summary:           summarize(threat, severity, contributions),
		Contributions:     contributions,
		RiskFactors:       riskFactors(threat, severity, features),
		MitigatingFactors: mitigatingFactors(threat, severity),
		Bias:              a.assessBiasLocked(threat),
		Confidence:        confidence,
		Timestamp:         time.Now().UTC(),
	}

	a.history.Value = explanation
	a.history = a.history.Next()
	if a.retained < HistorySize {
		a.retained++
	}

	return explanation
}

func featureContributions(features []float64) []model.FeatureContribution {
	var contributions []model.FeatureContribution
	for i, value := range features {
		name := fmt.Sprintf("feature_%d", i)
		if i < len(profiler.FeatureNames) {
			name = profiler.FeatureNames[i]
		}
		switch {
		case value > highImpactThreshold:
			contributions = append(contributions, model.FeatureContribution{Feature: name, Value: value, Impact: "high"})
		case value > mediumImpactThreshold:
			contributions = append(contributions, model.FeatureContribution{Feature: name, Value: value, Impact: "medium"})
		}
	}
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].Value > contributions[j].Value
	})
	if len(contributions) > maxContributions {
		contributions = contributions[:maxContributions]
	}
	return contributions
}

func summarize(threat model.Threat, severity model.Severity, contributions []model.FeatureContribution) string {
	if len(contributions) == 0 {
		return fmt.Sprintf("%s classified %s with no dominant feature signal", threat.Type, severity)
	}
	top := contributions[0]
	return fmt.Sprintf("%s classified %s, driven primarily by %s (%.2f)",
		threat.Type, severity, top.Feature, top.Value)
}

func riskFactors(threat model.Threat, severity model.Severity, features []float64) []string {
	var factors []string
	if severity >= model.SeverityHigh {
		factors = append(factors, "high or critical severity")
	}
	for i, value := range features {
		if value > 0.8 {
			name := fmt.Sprintf("feature_%d", i)
			if i < len(profiler.FeatureNames) {
				name = profiler.FeatureNames[i]
			}
			factors = append(factors, "strong anomaly signal: "+name)
		}
	}
	if threat.Type != model.TypeUnknown && threat.Type != model.TypeBenign {
		factors = append(factors, "known threat type: "+string(threat.Type))
	}
	if criticalServicePorts[threat.Port] {
		factors = append(factors, fmt.Sprintf("targets critical service port %d", threat.Port))
	}
	return factors
}

func mitigatingFactors(threat model.Threat, severity model.Severity) []string {
	var factors []string
	if severity == model.SeverityLow {
		factors = append(factors, "low severity")
	}
	if len(threat.Description) < 50 {
		factors = append(factors, "short description, limited indicator detail")
	}
	return factors
}

// assessBiasLocked increments the frequency counters for the threat and
// scores the over-representation indicators.
func (a *Auditor) assessBiasLocked(threat model.Threat) model.BiasAssessment {
	type indicator struct {
		name   string
		biased bool
		score  float64
	}
	var indicators []indicator

	if octet := firstOctet(threat.SourceIP); octet != "" {
		a.sourceOctets[octet]++
		biased := a.sourceOctets[octet] > sourceOctetThreshold
		score := unbiasedBaseline
		if biased {
			score = sourceOctetBiasScore
		}
		indicators = append(indicators, indicator{name: "source_octet:" + octet, biased: biased, score: score})
	}
	if threat.Port > 0 {
		a.ports[threat.Port]++
		biased := a.ports[threat.Port] > portThreshold
		score := unbiasedBaseline
		if biased {
			score = portBiasScore
		}
		indicators = append(indicators, indicator{name: fmt.Sprintf("port:%d", threat.Port), biased: biased, score: score})
	}
	a.threatTypes[threat.Type]++
	{
		biased := a.threatTypes[threat.Type] > threatTypeThreshold
		score := unbiasedBaseline
		if biased {
			score = threatTypeBiasScore
		}
		indicators = append(indicators, indicator{name: "threat_type:" + string(threat.Type), biased: biased, score: score})
	}

	assessment := model.BiasAssessment{}
	if len(indicators) == 0 {
		return assessment
	}
	sum := 0.0
	for _, ind := range indicators {
		sum += ind.score
		if ind.biased {
			assessment.Indicators = append(assessment.Indicators, ind.name)
		}
	}
	assessment.Score = sum / float64(len(indicators))
	assessment.Flagged = assessment.Score > biasFlagThreshold
	return assessment
}

func firstOctet(addr string) string {
	if addr == "" {
		return ""
	}
	parts := strings.SplitN(addr, ".", 2)
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

// RecentExplanations returns up to n retained explanations, newest
// first.
func (a *Auditor) RecentExplanations(n int) []model.Explanation {
	a.mu.Lock()
	defer a.mu.Unlock()

	if n <= 0 || n > a.retained {
		n = a.retained
	}
	out := make([]model.Explanation, 0, n)
	r := a.history
	for i := 0; i < n; i++ {
		r = r.Prev()
		explanation, ok := r.Value.(model.Explanation)
		if !ok {
			break
		}
		out = append(out, explanation)
	}
	return out
}

// Report aggregates the retained history for the transparency surface.
func (a *Auditor) Report() TransparencyReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	report := TransparencyReport{
		ConfidenceTiers: map[string]int{"high": 0, "medium": 0, "low": 0},
		GeneratedAt:     time.Now().UTC(),
	}

	sum := 0.0
	biasedSeen := make(map[string]bool)
	a.history.Do(func(v interface{}) {
		explanation, ok := v.(model.Explanation)
		if !ok {
			return
		}
		report.TotalExplanations++
		sum += explanation.Confidence
		switch {
		case explanation.Confidence > 0.8:
			report.ConfidenceTiers["high"]++
		case explanation.Confidence >= 0.5:
			report.ConfidenceTiers["medium"]++
		default:
			report.ConfidenceTiers["low"]++
		}
		if explanation.Bias.Flagged {
			report.BiasFlaggedCount++
		}
		for _, name := range explanation.Bias.Indicators {
			biasedSeen[name] = true
		}
	})

	if report.TotalExplanations > 0 {
		report.AverageConfidence = sum / float64(report.TotalExplanations)
	}
	for name := range biasedSeen {
		report.ActiveBiasIndicators = append(report.ActiveBiasIndicators, name)
	}
	sort.Strings(report.ActiveBiasIndicators)

	if report.BiasFlaggedCount > 0 {
		report.Recommendations = append(report.Recommendations,
			"Review detection coverage: some sources, ports, or threat types are over-represented")
	}
	if report.TotalExplanations > 0 && report.AverageConfidence < 0.5 {
		report.Recommendations = append(report.Recommendations,
			"Average prediction confidence is low; consider retraining or re-tuning the classifier")
	}
	return report
}
