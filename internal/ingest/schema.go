package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// candidateSchema is the JSON schema every raw candidate must satisfy
// at the ingest boundary. Collectors are external; anything that does
// not validate is dropped and counted, never propagated.
const candidateSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type", "severity", "description"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "severity": {"type": "string", "enum": ["Low", "Medium", "High", "Critical", "low", "medium", "high", "critical"]},
    "description": {"type": "string"},
    "source_ip": {"type": "string"},
    "destination_ip": {"type": "string"},
    "protocol": {"type": "string"},
    "port": {"type": "integer", "minimum": 0, "maximum": 65535},
    "timestamp": {"type": "string"}
  },
  "additionalProperties": true
}`

// RawCandidate is the wire form of one threat candidate.
type RawCandidate struct {
	Type          string `json:"type"`
	Severity      string `json:"severity"`
	Description   string `json:"description"`
	SourceIP      string `json:"source_ip,omitempty"`
	DestinationIP string `json:"destination_ip,omitempty"`
	Protocol      string `json:"protocol,omitempty"`
	Port          int    `json:"port,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
}

// Threat converts a validated candidate into the internal base record.
func (c RawCandidate) Threat() model.Threat {
	createdAt := time.Now().UTC()
	if c.Timestamp != "" {
		if parsed, err := time.Parse(time.RFC3339, c.Timestamp); err == nil {
			createdAt = parsed.UTC()
		}
	}
	return model.Threat{
		Type:        model.ParseThreatType(c.Type),
		Severity:    model.ParseSeverity(c.Severity),
		Description: c.Description,
		SourceIP:    c.SourceIP,
		DestIP:      c.DestinationIP,
		Protocol:    c.Protocol,
		Port:        c.Port,
		CreatedAt:   createdAt,
	}
}

// Validator checks candidate documents against the boundary schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded candidate schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("candidate.json", strings.NewReader(candidateSchema)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	schema, err := compiler.Compile("candidate.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile candidate schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate checks one decoded candidate document.
func (v *Validator) Validate(doc interface{}) error {
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("candidate validation failed: %w", err)
	}
	return nil
}
