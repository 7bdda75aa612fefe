package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Severity
	}{
		{"critical", "Critical", SeverityCritical},
		{"lowercase high", "high", SeverityHigh},
		{"medium with spaces", " Medium ", SeverityMedium},
		{"unknown defaults to low", "whatever", SeverityLow},
		{"empty defaults to low", "", SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSeverity(tt.input))
		})
	}
}

func TestSeverityEscalateIsMonotonic(t *testing.T) {
	assert.Equal(t, SeverityHigh, SeverityMedium.Escalate(SeverityHigh))
	assert.Equal(t, SeverityCritical, SeverityCritical.Escalate(SeverityLow))
	assert.Equal(t, SeverityHigh, SeverityHigh.Escalate(SeverityHigh))
}

func TestSeverityScore(t *testing.T) {
	assert.Equal(t, 1.0, SeverityCritical.Score())
	assert.Equal(t, 0.75, SeverityHigh.Score())
	assert.Equal(t, 0.5, SeverityMedium.Score())
	assert.Equal(t, 0.25, SeverityLow.Score())
}

func TestParseThreatType(t *testing.T) {
	tests := []struct {
		input    string
		expected ThreatType
	}{
		{"DDoS", TypeDDoS},
		{"ddos attack detected", TypeDDoS},
		{"Suspicious Connection attempt", TypeSuspiciousConnection},
		{"credential stuffing", TypeCredentialCompromise},
		{"data exfiltration", TypeDataExfiltration},
		{"portscan", TypePortScan},
		{"", TypeUnknown},
		{"something else", TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseThreatType(tt.input))
		})
	}
}

func TestCandidateMergeKeepsBaseAndEscalation(t *testing.T) {
	base := Threat{
		Type:        TypeIntrusion,
		Severity:    SeverityLow,
		Description: "login anomaly",
		CreatedAt:   time.Now().UTC(),
	}
	candidate := NewCandidate(base)
	candidate.Severity = candidate.Severity.Escalate(SeverityHigh)
	candidate.Classification.Recommendation = "Investigate within 1 hour"

	merged := candidate.Merge()

	assert.Equal(t, SeverityHigh, merged.Threat.Severity)
	assert.Equal(t, SeverityLow, candidate.Threat.Severity, "base record keeps the collector severity")
	assert.Equal(t, "Investigate within 1 hour", merged.Classification.Recommendation)
}

func TestNewCandidateAssignsTimestamp(t *testing.T) {
	candidate := NewCandidate(Threat{Type: TypeBenign, Severity: SeverityLow})
	assert.False(t, candidate.Threat.CreatedAt.IsZero())
}

func TestParseIncidentStatusLegacyAlias(t *testing.T) {
	assert.Equal(t, IncidentActive, ParseIncidentStatus("open"))
	assert.Equal(t, IncidentActive, ParseIncidentStatus("Active"))
	assert.Equal(t, IncidentClosed, ParseIncidentStatus("closed"))
}
