package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

func TestMemoryThreatStoreSaveAssignsIDs(t *testing.T) {
	s := NewMemoryThreatStore()
	ctx := context.Background()

	saved, err := s.SaveThreats(ctx, []model.ClassifiedThreat{
		{Threat: model.Threat{Type: model.TypeMalware, Severity: model.SeverityHigh}},
		{Threat: model.Threat{Type: model.TypeBenign, Severity: model.SeverityLow}},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	assert.NotEmpty(t, saved[0].ID)
	assert.NotEmpty(t, saved[1].ID)
	assert.NotEqual(t, saved[0].ID, saved[1].ID)

	loaded, err := s.GetThreat(ctx, saved[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.TypeMalware, loaded.Threat.Type)
}

func TestMemoryThreatStoreGetUnknown(t *testing.T) {
	s := NewMemoryThreatStore()

	_, err := s.GetThreat(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryThreatStoreListNewestFirstWithFilters(t *testing.T) {
	s := NewMemoryThreatStore()
	ctx := context.Background()

	_, err := s.SaveThreats(ctx, []model.ClassifiedThreat{
		{Threat: model.Threat{Type: model.TypeBenign, Severity: model.SeverityLow}},
		{Threat: model.Threat{Type: model.TypeMalware, Severity: model.SeverityHigh}},
		{Threat: model.Threat{Type: model.TypeDDoS, Severity: model.SeverityCritical}},
	})
	require.NoError(t, err)

	all, err := s.ListThreats(ctx, ThreatFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.TypeDDoS, all[0].Threat.Type, "newest first")

	highPlus, err := s.ListThreats(ctx, ThreatFilter{Severity: model.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, highPlus, 2, "severity filter is a minimum")

	ddosOnly, err := s.ListThreats(ctx, ThreatFilter{Type: model.TypeDDoS})
	require.NoError(t, err)
	require.Len(t, ddosOnly, 1)

	limited, err := s.ListThreats(ctx, ThreatFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMemoryIncidentStoreLifecycle(t *testing.T) {
	s := NewMemoryIncidentStore(100)
	ctx := context.Background()

	incident := &model.Incident{ThreatID: "threat-1"}
	require.NoError(t, s.CreateIncident(ctx, incident))

	assert.NotEmpty(t, incident.ID)
	assert.Equal(t, model.IncidentActive, incident.Status)
	assert.False(t, incident.CreatedAt.IsZero())

	id, ok := s.ActiveIncidentForThreat(ctx, "threat-1")
	require.True(t, ok)
	assert.Equal(t, incident.ID, id)

	actions := []model.ResponseAction{{Action: "block_ip", Target: "10.0.0.1"}}
	require.NoError(t, s.AttachResponse(ctx, incident.ID, actions))

	loaded, err := s.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Response, 1)
	assert.Equal(t, "block_ip", loaded.Response[0].Action)

	require.NoError(t, s.CloseIncident(ctx, incident.ID))
	closed, err := s.GetIncident(ctx, incident.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IncidentClosed, closed.Status)

	_, ok = s.ActiveIncidentForThreat(ctx, "threat-1")
	assert.False(t, ok, "closing clears the active-incident mapping")
}

func TestMemoryIncidentStoreUnknownIDs(t *testing.T) {
	s := NewMemoryIncidentStore(100)
	ctx := context.Background()

	assert.ErrorIs(t, s.AttachResponse(ctx, "missing", nil), ErrNotFound)
	assert.ErrorIs(t, s.CloseIncident(ctx, "missing"), ErrNotFound)
	_, err := s.GetIncident(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryIncidentStoreListNewestFirst(t *testing.T) {
	s := NewMemoryIncidentStore(100)
	ctx := context.Background()

	first := &model.Incident{ThreatID: "t1"}
	second := &model.Incident{ThreatID: "t2"}
	require.NoError(t, s.CreateIncident(ctx, first))
	require.NoError(t, s.CreateIncident(ctx, second))

	incidents, err := s.ListIncidents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, "t2", incidents[0].ThreatID)

	limited, err := s.ListIncidents(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
