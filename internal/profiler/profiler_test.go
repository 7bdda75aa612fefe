package profiler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProfiler(t *testing.T, maxProfiles int) *BehavioralProfiler {
	t.Helper()
	bp, err := New(maxProfiles, nil, testLogger())
	require.NoError(t, err)
	return bp
}

func threatAt(at time.Time) model.Threat {
	return model.Threat{
		Type:      model.TypeIntrusion,
		Severity:  model.SeverityMedium,
		SourceIP:  "10.0.0.1",
		Protocol:  "tcp",
		CreatedAt: at,
	}
}

func TestObserveReturnsFixedWidthVector(t *testing.T) {
	bp := newTestProfiler(t, 10)

	features, err := bp.Observe(threatAt(time.Now()))
	require.NoError(t, err)
	require.Len(t, features, VectorWidth)

	assert.Equal(t, 0.5, features[FeatSeverity])
	assert.Equal(t, 0.25, features[FeatProtocol])
	assert.Equal(t, 1.0, features[FeatTypeIntrusion])
	assert.Zero(t, features[FeatTypeDDoS])
}

func TestProfileHistoryIsBounded(t *testing.T) {
	bp := newTestProfiler(t, 10)

	base := time.Now().UTC()
	for i := 0; i < HistorySize+50; i++ {
		_, err := bp.Observe(threatAt(base.Add(time.Duration(i) * time.Minute)))
		require.NoError(t, err)
	}

	profile, ok := bp.profiles.Get(profileKey(threatAt(base)))
	require.True(t, ok)
	assert.Equal(t, HistorySize, profile.HistoryLen())
	assert.Equal(t, int64(HistorySize+50), profile.Count, "lifetime count survives ring eviction")
}

func TestProfilesAreKeyedBySourceAndProtocol(t *testing.T) {
	bp := newTestProfiler(t, 10)

	now := time.Now()
	_, err := bp.Observe(model.Threat{SourceIP: "10.0.0.1", Protocol: "tcp", Severity: model.SeverityLow, CreatedAt: now})
	require.NoError(t, err)
	_, err = bp.Observe(model.Threat{SourceIP: "10.0.0.1", Protocol: "udp", Severity: model.SeverityLow, CreatedAt: now})
	require.NoError(t, err)
	_, err = bp.Observe(model.Threat{SourceIP: "10.0.0.2", Protocol: "tcp", Severity: model.SeverityLow, CreatedAt: now})
	require.NoError(t, err)

	assert.Equal(t, 3, bp.ProfileCount())
}

func TestProfileCountRespectsLRUBound(t *testing.T) {
	bp := newTestProfiler(t, 2)

	now := time.Now()
	for _, source := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		_, err := bp.Observe(model.Threat{SourceIP: source, Protocol: "tcp", Severity: model.SeverityLow, CreatedAt: now})
		require.NoError(t, err)
	}

	assert.Equal(t, 2, bp.ProfileCount())
}

func TestRepetitionFeatureAfterFiveObservations(t *testing.T) {
	bp := newTestProfiler(t, 10)

	base := time.Now().UTC()
	var features []float64
	for i := 0; i < 6; i++ {
		var err error
		features, err = bp.Observe(threatAt(base.Add(time.Duration(i) * time.Minute)))
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, features[FeatRepetition])
}

func TestTemporalAnomalyOnGapDeviation(t *testing.T) {
	bp := newTestProfiler(t, 10)
	base := time.Now().UTC()

	// Steady one-minute cadence, then a gap far outside twice the mean.
	var features []float64
	for _, offset := range []time.Duration{0, time.Minute, 2 * time.Minute, 3 * time.Minute} {
		var err error
		features, err = bp.Observe(threatAt(base.Add(offset)))
		require.NoError(t, err)
	}
	assert.Zero(t, features[FeatTemporalAnomaly], "steady cadence is not anomalous")

	features, err := bp.Observe(threatAt(base.Add(20 * time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, 1.0, features[FeatTemporalAnomaly])
}

func TestTemporalAnomalyNeedsHistory(t *testing.T) {
	bp := newTestProfiler(t, 10)

	features, err := bp.Observe(threatAt(time.Now()))
	require.NoError(t, err)
	assert.Zero(t, features[FeatTemporalAnomaly], "single observation has no gaps")
}

func TestFrequencyAnomalyOnBurst(t *testing.T) {
	bp := newTestProfiler(t, 10)
	base := time.Now().UTC()

	// Ten observations a minute apart, then a one-second burst.
	var features []float64
	for i := 0; i < 10; i++ {
		var err error
		features, err = bp.Observe(threatAt(base.Add(time.Duration(i) * time.Minute)))
		require.NoError(t, err)
	}
	assert.Zero(t, features[FeatFrequencyAnomaly])

	for i := 1; i <= 4; i++ {
		var err error
		features, err = bp.Observe(threatAt(base.Add(9*time.Minute + time.Duration(i)*time.Second)))
		require.NoError(t, err)
	}
	assert.Equal(t, 1.0, features[FeatFrequencyAnomaly])
}

func TestScoreAndThreshold(t *testing.T) {
	bp := newTestProfiler(t, 10)

	features, err := bp.Observe(threatAt(time.Now()))
	require.NoError(t, err)
	score, err := bp.Score(features)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.False(t, bp.IsAnomalous(BehavioralThreshold))
	assert.True(t, bp.IsAnomalous(BehavioralThreshold+0.01))
}

func TestProtocolClass(t *testing.T) {
	tests := []struct {
		protocol string
		expected float64
	}{
		{"tcp", 0.25},
		{"UDP", 0.5},
		{"icmp", 0.75},
		{"gre", 1.0},
		{"", 0},
	}

	for _, tt := range tests {
		t.Run(tt.protocol, func(t *testing.T) {
			assert.Equal(t, tt.expected, protocolClass(tt.protocol))
		})
	}
}
