package explain

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFeatureContributionsRankedAndCapped(t *testing.T) {
	features := []float64{0.95, 0.5, 0.1, 0.85, 0.45, 0.72, 0.9, 0.6, 0.0, 0.3, 0.81, 0.99}

	contributions := featureContributions(features)

	require.Len(t, contributions, maxContributions)
	assert.Equal(t, "frequency_anomaly", contributions[0].Feature)
	assert.Equal(t, 0.99, contributions[0].Value)
	assert.Equal(t, "high", contributions[0].Impact)
	for i := 1; i < len(contributions); i++ {
		assert.GreaterOrEqual(t, contributions[i-1].Value, contributions[i].Value)
	}
}

func TestFeatureContributionsImpactTiers(t *testing.T) {
	contributions := featureContributions([]float64{0.75, 0.5, 0.4, 0.1})

	require.Len(t, contributions, 2)
	assert.Equal(t, "high", contributions[0].Impact)
	assert.Equal(t, "medium", contributions[1].Impact)
}

func TestExplainBuildsRationale(t *testing.T) {
	auditor := NewAuditor(testLogger())

	threat := model.Threat{
		Type:        model.TypeIntrusion,
		Severity:    model.SeverityHigh,
		Description: "lateral movement detected on internal segment",
		SourceIP:    "203.0.113.5",
		Port:        3306,
	}
	explanation := auditor.Explain(threat, model.SeverityHigh, 0.82, []float64{0.9, 0.2})

	assert.NotEmpty(t, explanation.Summary)
	assert.Contains(t, explanation.RiskFactors, "high or critical severity")
	assert.Contains(t, explanation.RiskFactors, "known threat type: Intrusion")
	assert.Contains(t, explanation.RiskFactors, "targets critical service port 3306")
	assert.Contains(t, explanation.RiskFactors, "strong anomaly signal: severity")
	assert.Equal(t, 0.82, explanation.Confidence)
	assert.False(t, explanation.Bias.Flagged)
}

func TestMitigatingFactorsForLowSeverity(t *testing.T) {
	auditor := NewAuditor(testLogger())

	explanation := auditor.Explain(model.Threat{
		Type:        model.TypeBenign,
		Severity:    model.SeverityLow,
		Description: "heartbeat",
	}, model.SeverityLow, 0.1, nil)

	assert.Contains(t, explanation.MitigatingFactors, "low severity")
	assert.Contains(t, explanation.MitigatingFactors, "short description, limited indicator detail")
}

func TestSourceOctetBiasTriggersPastThreshold(t *testing.T) {
	auditor := NewAuditor(testLogger())

	threat := model.Threat{
		Type:        model.TypeIntrusion,
		Severity:    model.SeverityMedium,
		Description: "scan from recurring source",
		SourceIP:    "10.0.0.5",
	}

	var explanation model.Explanation
	for i := 0; i < sourceOctetThreshold; i++ {
		explanation = auditor.Explain(threat, model.SeverityMedium, 0.6, nil)
	}
	assert.False(t, explanation.Bias.Flagged, "fiftieth observation is still within threshold")
	assert.Empty(t, explanation.Bias.Indicators)

	explanation = auditor.Explain(threat, model.SeverityMedium, 0.6, nil)
	assert.True(t, explanation.Bias.Flagged)
	assert.Contains(t, explanation.Bias.Indicators, "source_octet:10")
}

func TestBiasCountersAreIndependentPerOctet(t *testing.T) {
	auditor := NewAuditor(testLogger())

	for i := 0; i < sourceOctetThreshold; i++ {
		auditor.Explain(model.Threat{Type: model.TypeIntrusion, SourceIP: "10.0.0.5"}, model.SeverityLow, 0.5, nil)
	}
	explanation := auditor.Explain(model.Threat{Type: model.TypeIntrusion, SourceIP: "172.16.0.9"}, model.SeverityLow, 0.5, nil)

	assert.False(t, explanation.Bias.Flagged, "a fresh octet starts from zero")
}

func TestExplanationHistoryIsBoundedFIFO(t *testing.T) {
	auditor := NewAuditor(testLogger())

	threat := model.Threat{Type: model.TypeBenign, Severity: model.SeverityLow}
	for i := 0; i < HistorySize+5; i++ {
		auditor.Explain(threat, model.SeverityLow, float64(i), nil)
	}

	recent := auditor.RecentExplanations(0)
	require.Len(t, recent, HistorySize)
	assert.Equal(t, float64(HistorySize+4), recent[0].Confidence, "newest first")
	assert.Equal(t, float64(5), recent[len(recent)-1].Confidence, "oldest five evicted")
}

func TestRecentExplanationsHonorsLimit(t *testing.T) {
	auditor := NewAuditor(testLogger())

	threat := model.Threat{Type: model.TypeBenign, Severity: model.SeverityLow}
	for i := 0; i < 10; i++ {
		auditor.Explain(threat, model.SeverityLow, float64(i), nil)
	}

	recent := auditor.RecentExplanations(3)
	require.Len(t, recent, 3)
	assert.Equal(t, 9.0, recent[0].Confidence)
	assert.Equal(t, 7.0, recent[2].Confidence)
}

func TestReportAggregatesHistory(t *testing.T) {
	auditor := NewAuditor(testLogger())

	threat := model.Threat{Type: model.TypeBenign, Severity: model.SeverityLow}
	auditor.Explain(threat, model.SeverityLow, 0.9, nil)
	auditor.Explain(threat, model.SeverityLow, 0.6, nil)
	auditor.Explain(threat, model.SeverityLow, 0.2, nil)

	report := auditor.Report()

	assert.Equal(t, 3, report.TotalExplanations)
	assert.InDelta(t, (0.9+0.6+0.2)/3, report.AverageConfidence, 1e-9)
	assert.Equal(t, 1, report.ConfidenceTiers["high"])
	assert.Equal(t, 1, report.ConfidenceTiers["medium"])
	assert.Equal(t, 1, report.ConfidenceTiers["low"])
	assert.Zero(t, report.BiasFlaggedCount)
}

func TestReportFlagsBiasAndRecommends(t *testing.T) {
	auditor := NewAuditor(testLogger())

	threat := model.Threat{Type: model.TypeIntrusion, SourceIP: "10.0.0.5"}
	for i := 0; i < sourceOctetThreshold+2; i++ {
		auditor.Explain(threat, model.SeverityMedium, 0.3, nil)
	}

	report := auditor.Report()

	assert.Equal(t, 2, report.BiasFlaggedCount)
	assert.Contains(t, report.ActiveBiasIndicators, "source_octet:10")
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "over-represented")
	assert.Len(t, report.Recommendations, 2, "low average confidence also recommends retraining")
}

func TestFirstOctet(t *testing.T) {
	assert.Equal(t, "10", firstOctet("10.0.0.5"))
	assert.Equal(t, "", firstOctet(""))
	assert.Equal(t, "", firstOctet("hostname"))
}
