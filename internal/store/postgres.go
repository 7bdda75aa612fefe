package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// PostgresStore implements both ThreatStore and IncidentStore on
// PostgreSQL. Classification annotations and response plans are stored
// as jsonb alongside the queryable columns.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore opens a connection pool and verifies it.
func NewPostgresStore(host, port, user, password, dbname string, logger *slog.Logger) (*PostgresStore, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// InitSchema creates the threats and incidents tables when absent.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS threats (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			source_ip TEXT NOT NULL DEFAULT '',
			destination_ip TEXT NOT NULL DEFAULT '',
			protocol TEXT NOT NULL DEFAULT '',
			port INTEGER NOT NULL DEFAULT 0,
			classification JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS incidents (
			id TEXT PRIMARY KEY,
			threat_id TEXT NOT NULL,
			status TEXT NOT NULL,
			response JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS incidents_threat_id_idx ON incidents (threat_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// SaveThreats inserts the batch, assigning UUIDs. A failed insert is
// logged and skipped so one bad record cannot sink the batch.
func (s *PostgresStore) SaveThreats(ctx context.Context, threats []model.ClassifiedThreat) ([]model.ClassifiedThreat, error) {
	query := `
		INSERT INTO threats (id, type, severity, description, source_ip, destination_ip, protocol, port, classification, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	saved := make([]model.ClassifiedThreat, 0, len(threats))
	for _, threat := range threats {
		if threat.ID == "" {
			threat.ID = uuid.NewString()
		}
		classification, err := json.Marshal(threat.Classification)
		if err != nil {
			s.logger.Error("Failed to marshal classification", "threat_id", threat.ID, "error", err)
			continue
		}
		_, err = s.db.ExecContext(ctx, query,
			threat.ID, string(threat.Threat.Type), threat.Threat.Severity.String(),
			threat.Threat.Description, threat.Threat.SourceIP, threat.Threat.DestIP,
			threat.Threat.Protocol, threat.Threat.Port, classification, threat.Threat.CreatedAt)
		if err != nil {
			s.logger.Error("Failed to insert threat", "threat_id", threat.ID, "error", err)
			continue
		}
		saved = append(saved, threat)
	}
	return saved, nil
}

// GetThreat returns a threat by ID.
func (s *PostgresStore) GetThreat(ctx context.Context, id string) (*model.ClassifiedThreat, error) {
	query := `
		SELECT id, type, severity, description, source_ip, destination_ip, protocol, port, classification, created_at
		FROM threats WHERE id = $1
	`
	return s.scanThreat(s.db.QueryRowContext(ctx, query, id))
}

// ListThreats returns threats newest first, optionally filtered.
func (s *PostgresStore) ListThreats(ctx context.Context, filter ThreatFilter) ([]model.ClassifiedThreat, error) {
	query := `
		SELECT id, type, severity, description, source_ip, destination_ip, protocol, port, classification, created_at
		FROM threats
		WHERE ($1 = '' OR type = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx, query, string(filter.Type), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query threats: %w", err)
	}
	defer rows.Close()

	var out []model.ClassifiedThreat
	for rows.Next() {
		threat, err := s.scanThreat(rows)
		if err != nil {
			return nil, err
		}
		if filter.Severity != 0 && threat.Threat.Severity < filter.Severity {
			continue
		}
		out = append(out, *threat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threats: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *PostgresStore) scanThreat(row rowScanner) (*model.ClassifiedThreat, error) {
	var threat model.ClassifiedThreat
	var typeStr, severityStr string
	var classification []byte

	err := row.Scan(&threat.ID, &typeStr, &severityStr, &threat.Threat.Description,
		&threat.Threat.SourceIP, &threat.Threat.DestIP, &threat.Threat.Protocol,
		&threat.Threat.Port, &classification, &threat.Threat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan threat: %w", err)
	}
	threat.Threat.Type = model.ThreatType(typeStr)
	threat.Threat.Severity = model.ParseSeverity(severityStr)
	if err := json.Unmarshal(classification, &threat.Classification); err != nil {
		return nil, fmt.Errorf("failed to decode classification: %w", err)
	}
	return &threat, nil
}

// CreateIncident inserts a new incident row.
func (s *PostgresStore) CreateIncident(ctx context.Context, incident *model.Incident) error {
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

	response, err := json.Marshal(incident.Response)
	if err != nil {
		return fmt.Errorf("failed to marshal response plan: %w", err)
	}

	query := `
		INSERT INTO incidents (id, threat_id, status, response, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.db.ExecContext(ctx, query,
		incident.ID, incident.ThreatID, string(incident.Status), response,
		incident.CreatedAt, incident.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// AttachResponse replaces the response plan on an incident.
func (s *PostgresStore) AttachResponse(ctx context.Context, id string, actions []model.ResponseAction) error {
	response, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to marshal response plan: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET response = $1, updated_at = now() WHERE id = $2`, response, id)
	if err != nil {
		return fmt.Errorf("failed to update incident: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetIncident returns an incident by ID.
func (s *PostgresStore) GetIncident(ctx context.Context, id string) (*model.Incident, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, threat_id, status, response, created_at, updated_at FROM incidents WHERE id = $1`, id)
	return scanIncident(row)
}

// ListIncidents returns incidents newest first.
func (s *PostgresStore) ListIncidents(ctx context.Context, limit int) ([]model.Incident, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, threat_id, status, response, created_at, updated_at FROM incidents ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		incident, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *incident)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating incidents: %w", err)
	}
	return out, nil
}

func scanIncident(row rowScanner) (*model.Incident, error) {
	var incident model.Incident
	var status string
	var response []byte

	err := row.Scan(&incident.ID, &incident.ThreatID, &status, &response,
		&incident.CreatedAt, &incident.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan incident: %w", err)
	}
	incident.Status = model.ParseIncidentStatus(status)
	if err := json.Unmarshal(response, &incident.Response); err != nil {
		return nil, fmt.Errorf("failed to decode response plan: %w", err)
	}
	return &incident, nil
}

// CloseIncident transitions an incident to Closed.
func (s *PostgresStore) CloseIncident(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE incidents SET status = $1, updated_at = now() WHERE id = $2`,
		string(model.IncidentClosed), id)
	if err != nil {
		return fmt.Errorf("failed to close incident: %w", err)
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("incident %s: %w", id, ErrNotFound)
	}
	return nil
}

// ActiveIncidentForThreat looks up an active incident row for a threat.
func (s *PostgresStore) ActiveIncidentForThreat(ctx context.Context, threatID string) (string, bool) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM incidents WHERE threat_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT 1`,
		threatID, string(model.IncidentActive)).Scan(&id)
	if err != nil {
		return "", false
	}
	return id, true
}
