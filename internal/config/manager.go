package config

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
)

// Snapshot is the effective configuration at a point in time.
type Snapshot struct {
	AIEnabled             bool `json:"ai_enabled"`
	AlertOnHighSeverity   bool `json:"alert_on_high_severity"`
	AlertOnMediumSeverity bool `json:"alert_on_medium_severity"`
	ScanIntervalSeconds   int  `json:"scan_interval_seconds"`
	MaxProfiles           int  `json:"max_profiles"`
	IncidentDedupeCap     int  `json:"incident_dedupe_cap"`
}

// ChangeMessage is one configuration change published on NATS.
type ChangeMessage struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedBy string          `json:"updated_by"`
	Timestamp int64           `json:"timestamp"`
}

// Manager holds the current snapshot and applies live updates from the
// config change feed.
type Manager struct {
	nc          *nats.Conn
	logger      *slog.Logger
	mu          sync.RWMutex
	current     *Snapshot
	subscribers []func(*Snapshot)
	sub         *nats.Subscription
}

// NewManager creates a configuration manager. nc may be nil in tests;
// live updates are then disabled.
func NewManager(nc *nats.Conn, logger *slog.Logger) *Manager {
	return &Manager{nc: nc, logger: logger}
}

// Initialize installs the environment defaults and subscribes to the
// change feed.
func (m *Manager) Initialize(ctx context.Context, envDefaults *Snapshot) error {
	m.update(envDefaults)

	if m.nc == nil {
		m.logger.Warn("No NATS connection, configuration live updates disabled")
		return nil
	}

	sub, err := m.nc.Subscribe("config.changed.>", m.handleChange)
	if err != nil {
		m.logger.Error("Failed to subscribe to config changes", "error", err)
		return err
	}
	m.sub = sub

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			m.logger.Debug("Config subscription unsubscribe failed", "error", err)
		}
	}()

	m.logger.Info("Configuration manager initialized")
	return nil
}

// Current returns a copy of the current snapshot.
func (m *Manager) Current() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	snapshot := *m.current
	return &snapshot
}

// Subscribe registers a callback invoked after every applied change.
func (m *Manager) Subscribe(callback func(*Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, callback)
}

func (m *Manager) handleChange(msg *nats.Msg) {
	var change ChangeMessage
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		m.logger.Error("Failed to parse config change", "error", err)
		return
	}

	m.mu.Lock()
	snapshot := *m.current
	applied := applyChange(&snapshot, change)
	if applied {
		m.current = &snapshot
	}
	callbacks := append([]func(*Snapshot){}, m.subscribers...)
	m.mu.Unlock()

	if !applied {
		m.logger.Debug("Ignoring unknown config key", "key", change.Key)
		return
	}

	m.logger.Info("Configuration updated",
		"key", change.Key,
		"updated_by", change.UpdatedBy)

	for _, callback := range callbacks {
		copied := snapshot
		callback(&copied)
	}
}

// ApplyChange applies a single change for tests and direct callers.
func (m *Manager) ApplyChange(change ChangeMessage) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := *m.current
	if !applyChange(&snapshot, change) {
		return false
	}
	m.current = &snapshot
	return true
}

func applyChange(snapshot *Snapshot, change ChangeMessage) bool {
	switch change.Key {
	case "ai_enabled":
		return unmarshalBool(change.Value, &snapshot.AIEnabled)
	case "alert_on_high_severity":
		return unmarshalBool(change.Value, &snapshot.AlertOnHighSeverity)
	case "alert_on_medium_severity":
		return unmarshalBool(change.Value, &snapshot.AlertOnMediumSeverity)
	case "scan_interval_seconds":
		return unmarshalInt(change.Value, &snapshot.ScanIntervalSeconds)
	default:
		return false
	}
}

func unmarshalBool(raw json.RawMessage, dest *bool) bool {
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	*dest = v
	return true
}

func unmarshalInt(raw json.RawMessage, dest *int) bool {
	var v int
	if err := json.Unmarshal(raw, &v); err != nil || v <= 0 {
		return false
	}
	*dest = v
	return true
}

func (m *Manager) update(snapshot *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = snapshot
}
