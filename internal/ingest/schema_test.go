package ingest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

func decodeDoc(t *testing.T, raw string) interface{} {
	t.Helper()
	var doc interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestValidatorAcceptsWellFormedCandidates(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"minimal", `{"type": "Malware", "severity": "High", "description": "trojan"}`},
		{"lowercase severity", `{"type": "DDoS", "severity": "critical", "description": "flood"}`},
		{"full", `{
			"type": "Intrusion",
			"severity": "Medium",
			"description": "lateral movement",
			"source_ip": "10.0.0.1",
			"destination_ip": "10.0.0.2",
			"protocol": "tcp",
			"port": 445,
			"timestamp": "2026-03-01T12:00:00Z"
		}`},
		{"extra fields allowed", `{"type": "Benign", "severity": "Low", "description": "ok", "collector": "edge-7"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, validator.Validate(decodeDoc(t, tt.doc)))
		})
	}
}

func TestValidatorRejectsMalformedCandidates(t *testing.T) {
	validator, err := NewValidator()
	require.NoError(t, err)

	tests := []struct {
		name string
		doc  string
	}{
		{"missing severity", `{"type": "Malware", "description": "trojan"}`},
		{"unknown severity", `{"type": "Malware", "severity": "Extreme", "description": "trojan"}`},
		{"empty type", `{"type": "", "severity": "High", "description": "trojan"}`},
		{"port out of range", `{"type": "Malware", "severity": "High", "description": "trojan", "port": 70000}`},
		{"port wrong type", `{"type": "Malware", "severity": "High", "description": "trojan", "port": "443"}`},
		{"missing description", `{"type": "Malware", "severity": "High"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, validator.Validate(decodeDoc(t, tt.doc)))
		})
	}
}

func TestRawCandidateThreatConversion(t *testing.T) {
	raw := RawCandidate{
		Type:          "ddos attack",
		Severity:      "high",
		Description:   "volumetric flood",
		SourceIP:      "203.0.113.9",
		DestinationIP: "10.0.0.5",
		Protocol:      "udp",
		Port:          53,
		Timestamp:     "2026-03-01T12:00:00Z",
	}

	threat := raw.Threat()

	assert.Equal(t, model.TypeDDoS, threat.Type)
	assert.Equal(t, model.SeverityHigh, threat.Severity)
	assert.Equal(t, "203.0.113.9", threat.SourceIP)
	assert.Equal(t, "10.0.0.5", threat.DestIP)
	assert.Equal(t, 53, threat.Port)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), threat.CreatedAt)
}

func TestRawCandidateBadTimestampFallsBackToNow(t *testing.T) {
	before := time.Now().UTC()
	threat := RawCandidate{Type: "Malware", Severity: "High", Timestamp: "yesterday"}.Threat()

	assert.False(t, threat.CreatedAt.Before(before))
}
