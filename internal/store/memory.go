package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// MemoryThreatStore is the default in-process threat store.
type MemoryThreatStore struct {
	mu      sync.RWMutex
	threats map[string]model.ClassifiedThreat
	order   []string
}

// NewMemoryThreatStore creates an empty threat store.
func NewMemoryThreatStore() *MemoryThreatStore {
	return &MemoryThreatStore{threats: make(map[string]model.ClassifiedThreat)}
}

// SaveThreats assigns UUIDs and stores the batch in insertion order.
func (s *MemoryThreatStore) SaveThreats(_ context.Context, threats []model.ClassifiedThreat) ([]model.ClassifiedThreat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved := make([]model.ClassifiedThreat, 0, len(threats))
	for _, threat := range threats {
		if threat.ID == "" {
			threat.ID = uuid.NewString()
		}
		s.threats[threat.ID] = threat
		s.order = append(s.order, threat.ID)
		saved = append(saved, threat)
	}
	return saved, nil
}

// GetThreat returns a threat by ID.
func (s *MemoryThreatStore) GetThreat(_ context.Context, id string) (*model.ClassifiedThreat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	threat, ok := s.threats[id]
	if !ok {
		return nil, fmt.Errorf("threat %s: %w", id, ErrNotFound)
	}
	return &threat, nil
}

// ListThreats returns threats newest first, optionally filtered.
func (s *MemoryThreatStore) ListThreats(_ context.Context, filter ThreatFilter) ([]model.ClassifiedThreat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ClassifiedThreat
	for i := len(s.order) - 1; i >= 0; i-- {
		threat := s.threats[s.order[i]]
		if filter.Severity != 0 && threat.Threat.Severity < filter.Severity {
			continue
		}
		if filter.Type != "" && threat.Threat.Type != filter.Type {
			continue
		}
		out = append(out, threat)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// MemoryIncidentStore is the default in-process incident store. An LRU
// cache tracks the active incident per threat so overlapping scans do
// not open duplicate rows for the same threat.
type MemoryIncidentStore struct {
	mu        sync.RWMutex
	incidents map[string]model.Incident
	order     []string
	byThreat  *lru.Cache[string, string]
}

// NewMemoryIncidentStore creates an empty incident store.
func NewMemoryIncidentStore(dedupeCap int) *MemoryIncidentStore {
	byThreat, _ := lru.New[string, string](dedupeCap)
	return &MemoryIncidentStore{
		incidents: make(map[string]model.Incident),
		byThreat:  byThreat,
	}
}

// CreateIncident stores a new incident, assigning an ID when absent.
func (s *MemoryIncidentStore) CreateIncident(_ context.Context, incident *model.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if incident.ID == "" {
		incident.ID = uuid.NewString()
	}
	if incident.Status == "" {
		incident.Status = model.IncidentActive
	}
	now := time.Now().UTC()
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = now
	}
	incident.UpdatedAt = now

	s.incidents[incident.ID] = *incident
	s.order = append(s.order, incident.ID)
	if incident.Status == model.IncidentActive && incident.ThreatID != "" {
		s.byThreat.Add(incident.ThreatID, incident.ID)
	}
	return nil
}

// AttachResponse sets the response plan on an existing incident.
func (s *MemoryIncidentStore) AttachResponse(_ context.Context, id string, actions []model.ResponseAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	incident.Response = actions
	incident.UpdatedAt = time.Now().UTC()
	s.incidents[id] = incident
	return nil
}

// GetIncident returns an incident by ID.
func (s *MemoryIncidentStore) GetIncident(_ context.Context, id string) (*model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incident, ok := s.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return &incident, nil
}

// ListIncidents returns incidents newest first.
func (s *MemoryIncidentStore) ListIncidents(_ context.Context, limit int) ([]model.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Incident
	for i := len(s.order) - 1; i >= 0; i-- {
		out = append(out, s.incidents[s.order[i]])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CloseIncident transitions an incident to Closed.
func (s *MemoryIncidentStore) CloseIncident(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	incident, ok := s.incidents[id]
	if !ok {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	incident.Status = model.IncidentClosed
	incident.UpdatedAt = time.Now().UTC()
	s.incidents[id] = incident
	if incident.ThreatID != "" {
		s.byThreat.Remove(incident.ThreatID)
	}
	return nil
}

// ActiveIncidentForThreat reports the cached active incident for a
// threat. Eviction only widens the duplicate window, it never loses
// incident data.
func (s *MemoryIncidentStore) ActiveIncidentForThreat(_ context.Context, threatID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byThreat.Get(threatID)
}
