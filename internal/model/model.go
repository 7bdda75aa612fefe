package model

import (
	"strings"
	"time"
)

// Severity is the ordered severity tag set for threats.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "Low",
	SeverityMedium:   "Medium",
	SeverityHigh:     "High",
	SeverityCritical: "Critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return "Low"
}

// Score maps a severity onto the [0,1] scale used by the scorers and
// the asset risk assessment.
func (s Severity) Score() float64 {
	switch s {
	case SeverityCritical:
		return 1.0
	case SeverityHigh:
		return 0.75
	case SeverityMedium:
		return 0.5
	default:
		return 0.25
	}
}

// Escalate returns the higher of the two severities. Severity is
// monotonic through the pipeline: nothing ever downgrades it.
func (s Severity) Escalate(to Severity) Severity {
	if to > s {
		return to
	}
	return s
}

// ParseSeverity normalizes a collector-supplied severity string.
// Unknown values default to Low.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	*s = ParseSeverity(strings.Trim(string(data), `"`))
	return nil
}

// ThreatType is the closed threat category tag set.
type ThreatType string

const (
	TypeDDoS                 ThreatType = "DDoS"
	TypeIntrusion            ThreatType = "Intrusion"
	TypeMalware              ThreatType = "Malware"
	TypeCredentialCompromise ThreatType = "Credential Compromise"
	TypeSuspiciousConnection ThreatType = "Suspicious Connection"
	TypePortScan             ThreatType = "Port Scan"
	TypeDataExfiltration     ThreatType = "Data Exfiltration"
	TypeBenign               ThreatType = "Benign"
	TypeUnknown              ThreatType = "Unknown"
)

// ParseThreatType maps a collector-supplied type string onto the closed
// tag set. Matching is by substring so that variants like
// "ddos attack" or "suspicious connection attempt" still land on the
// right tag. Unrecognized strings map to Unknown, not an error:
// collectors are external and must not be able to break ingestion.
func ParseThreatType(raw string) ThreatType {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case lower == "":
		return TypeUnknown
	case strings.Contains(lower, "ddos"):
		return TypeDDoS
	case strings.Contains(lower, "intrusion"):
		return TypeIntrusion
	case strings.Contains(lower, "malware"):
		return TypeMalware
	case strings.Contains(lower, "credential"):
		return TypeCredentialCompromise
	case strings.Contains(lower, "suspicious"):
		return TypeSuspiciousConnection
	case strings.Contains(lower, "port scan"), strings.Contains(lower, "portscan"):
		return TypePortScan
	case strings.Contains(lower, "exfiltrat"):
		return TypeDataExfiltration
	case strings.Contains(lower, "benign"):
		return TypeBenign
	default:
		return TypeUnknown
	}
}

// Threat is the immutable base record for one detected security event
// candidate. Pipeline stages never modify it; everything they derive
// accumulates on a Classification instead.
type Threat struct {
	Type        ThreatType `json:"type"`
	Severity    Severity   `json:"severity"`
	Description string     `json:"description"`
	SourceIP    string     `json:"source_ip,omitempty"`
	DestIP      string     `json:"destination_ip,omitempty"`
	Protocol    string     `json:"protocol,omitempty"`
	Port        int        `json:"port,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// AppliedRule records one rule that matched a threat during a pass.
type AppliedRule struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Action   string `json:"action"`
	Result   string `json:"result"`
}

// AssetRisk records one qualifying asset risk hit for a threat.
type AssetRisk struct {
	AssetID           string   `json:"asset_id"`
	AssetName         string   `json:"asset_name"`
	RiskScore         float64  `json:"risk_score"`
	IsDirectThreat    bool     `json:"is_direct_threat"`
	IsTypicalThreat   bool     `json:"is_typical_threat"`
	RecommendedAction string   `json:"recommended_action"`
	Responses         []string `json:"responses,omitempty"`
}

// FeatureContribution names one feature's contribution to a prediction.
type FeatureContribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
	Impact  string  `json:"impact"` // high, medium
}

// BiasAssessment summarizes the over-representation indicators that
// were active when a threat was explained.
type BiasAssessment struct {
	Score      float64  `json:"score"`
	Flagged    bool     `json:"flagged"`
	Indicators []string `json:"indicators,omitempty"`
}

// Explanation is the human-readable rationale attached to one
// classified threat.
type Explanation struct {
	Summary           string                `json:"summary"`
	Contributions     []FeatureContribution `json:"contributions,omitempty"`
	RiskFactors       []string              `json:"risk_factors,omitempty"`
	MitigatingFactors []string              `json:"mitigating_factors,omitempty"`
	Bias              BiasAssessment        `json:"bias"`
	Confidence        float64               `json:"confidence"`
	Timestamp         time.Time             `json:"timestamp"`
}

// Classification accumulates everything the pipeline derives for one
// threat. Stages write their own fields and never touch the base
// Threat; Merge produces the persisted record once at the end.
type Classification struct {
	Anomaly           bool          `json:"anomaly"`
	AnomalyScore      float64       `json:"anomaly_score"`
	BehavioralAnomaly bool          `json:"behavioral_anomaly"`
	BehavioralScore   float64       `json:"behavioral_score"`
	Features          []float64     `json:"features,omitempty"`
	Prediction        string        `json:"prediction,omitempty"`
	Confidence        float64       `json:"confidence"`
	Recommendation    string        `json:"recommendation,omitempty"`
	AppliedRules      []AppliedRule `json:"applied_rules,omitempty"`
	Explanation       *Explanation  `json:"explanation,omitempty"`
	AssetRisks        []AssetRisk   `json:"asset_risks,omitempty"`
}

// ClassifiedThreat is the persisted, read-only result of one pipeline
// invocation for one threat. ID is assigned by the store.
type ClassifiedThreat struct {
	ID string `json:"id"`
	Threat
	Classification
}

// Candidate is a working pair of base threat and its accumulating
// classification, owned by a single pipeline invocation.
type Candidate struct {
	Threat         Threat
	Classification Classification

	// Severity as escalated so far. Starts at Threat.Severity and only
	// ever moves up; the base record keeps the collector's value.
	Severity Severity

	// RuleCritical marks a severity set to Critical by an explicit rule
	// escalate action, which the anomaly promotion policy must respect.
	RuleCritical bool
}

// NewCandidate wraps a raw threat for one pipeline run.
func NewCandidate(t Threat) *Candidate {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return &Candidate{Threat: t, Severity: t.Severity}
}

// Merge produces the final record for persistence. The escalated
// severity replaces the collector's value on the merged copy only.
func (c *Candidate) Merge() ClassifiedThreat {
	merged := ClassifiedThreat{Threat: c.Threat, Classification: c.Classification}
	merged.Threat.Severity = c.Severity
	return merged
}
