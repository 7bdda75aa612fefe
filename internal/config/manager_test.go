package config

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(nil, testLogger())
	err := m.Initialize(context.Background(), &Snapshot{
		AIEnabled:           true,
		AlertOnHighSeverity: true,
		ScanIntervalSeconds: 30,
	})
	require.NoError(t, err)
	return m
}

func TestCurrentReturnsCopy(t *testing.T) {
	m := newTestManager(t)

	snapshot := m.Current()
	require.NotNil(t, snapshot)
	snapshot.AIEnabled = false

	assert.True(t, m.Current().AIEnabled, "mutating the returned snapshot does not affect the manager")
}

func TestApplyChangeKnownKeys(t *testing.T) {
	tests := []struct {
		name   string
		change ChangeMessage
		check  func(t *testing.T, s *Snapshot)
	}{
		{
			"ai_enabled",
			ChangeMessage{Key: "ai_enabled", Value: json.RawMessage(`false`)},
			func(t *testing.T, s *Snapshot) { assert.False(t, s.AIEnabled) },
		},
		{
			"alert_on_medium_severity",
			ChangeMessage{Key: "alert_on_medium_severity", Value: json.RawMessage(`true`)},
			func(t *testing.T, s *Snapshot) { assert.True(t, s.AlertOnMediumSeverity) },
		},
		{
			"scan_interval_seconds",
			ChangeMessage{Key: "scan_interval_seconds", Value: json.RawMessage(`60`)},
			func(t *testing.T, s *Snapshot) { assert.Equal(t, 60, s.ScanIntervalSeconds) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t)
			require.True(t, m.ApplyChange(tt.change))
			tt.check(t, m.Current())
		})
	}
}

func TestApplyChangeRejectsBadValues(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.ApplyChange(ChangeMessage{Key: "unknown_key", Value: json.RawMessage(`true`)}))
	assert.False(t, m.ApplyChange(ChangeMessage{Key: "ai_enabled", Value: json.RawMessage(`"yes"`)}))
	assert.False(t, m.ApplyChange(ChangeMessage{Key: "scan_interval_seconds", Value: json.RawMessage(`0`)}),
		"non-positive intervals are rejected")
	assert.False(t, m.ApplyChange(ChangeMessage{Key: "scan_interval_seconds", Value: json.RawMessage(`-5`)}))

	snapshot := m.Current()
	assert.True(t, snapshot.AIEnabled)
	assert.Equal(t, 30, snapshot.ScanIntervalSeconds)
}
