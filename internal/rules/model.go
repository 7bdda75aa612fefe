package rules

import (
	"strings"

	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// Condition is a closed, validated predicate over a threat. Exactly one
// variant field must be set; All and Any compose nested conditions.
// There is deliberately no way to attach executable code to a rule.
type Condition struct {
	TypeIs                 string      `yaml:"type_is,omitempty" json:"type_is,omitempty"`
	SeverityIs             string      `yaml:"severity_is,omitempty" json:"severity_is,omitempty"`
	SeverityAtLeast        string      `yaml:"severity_at_least,omitempty" json:"severity_at_least,omitempty"`
	DescriptionContainsAny []string    `yaml:"description_contains_any,omitempty" json:"description_contains_any,omitempty"`
	DescriptionContainsAll []string    `yaml:"description_contains_all,omitempty" json:"description_contains_all,omitempty"`
	PortIn                 []int       `yaml:"port_in,omitempty" json:"port_in,omitempty"`
	All                    []Condition `yaml:"all,omitempty" json:"all,omitempty"`
	Any                    []Condition `yaml:"any,omitempty" json:"any,omitempty"`
}

// Action describes what a matching rule does to a threat.
type Action struct {
	Kind   string            `yaml:"kind" json:"kind"`
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// Supported action kinds.
const (
	ActionEscalate         = "escalate"
	ActionAlert            = "alert"
	ActionIsolate          = "isolate"
	ActionBlockIP          = "block_ip"
	ActionQuarantine       = "quarantine"
	ActionMonitor          = "monitor"
	ActionIncreasePriority = "increase_priority"
	ActionLogEvent         = "log_event"
)

var validActionKinds = map[string]bool{
	ActionEscalate:         true,
	ActionAlert:            true,
	ActionIsolate:          true,
	ActionBlockIP:          true,
	ActionQuarantine:       true,
	ActionMonitor:          true,
	ActionIncreasePriority: true,
	ActionLogEvent:         true,
}

// Rule pairs a condition with an action. Rules are registered once and
// administered through the engine; match counters live in the engine
// for process lifetime.
type Rule struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Condition Condition `yaml:"condition" json:"condition"`
	Action    Action    `yaml:"action" json:"action"`
	Enabled   bool      `yaml:"enabled" json:"enabled"`
}

// ValidationError reports an invalid rule field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// Validate checks a rule before registration. Conditions are validated
// recursively so a malformed rule can never reach evaluation.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "id", Message: "rule ID is required"}
	}
	if r.Name == "" {
		return &ValidationError{Field: "name", Message: "rule name is required"}
	}
	if !validActionKinds[r.Action.Kind] {
		return &ValidationError{Field: "action.kind", Message: "unknown action kind: " + r.Action.Kind}
	}
	return validateCondition(r.Condition, "condition")
}

func validateCondition(c Condition, path string) error {
	variants := 0
	if c.TypeIs != "" {
		variants++
	}
	if c.SeverityIs != "" {
		variants++
	}
	if c.SeverityAtLeast != "" {
		variants++
	}
	if len(c.DescriptionContainsAny) > 0 {
		variants++
	}
	if len(c.DescriptionContainsAll) > 0 {
		variants++
	}
	if len(c.PortIn) > 0 {
		variants++
	}
	if len(c.All) > 0 {
		variants++
	}
	if len(c.Any) > 0 {
		variants++
	}
	if variants != 1 {
		return &ValidationError{Field: path, Message: "exactly one condition variant must be set"}
	}
	for _, nested := range c.All {
		if err := validateCondition(nested, path+".all"); err != nil {
			return err
		}
	}
	for _, nested := range c.Any {
		if err := validateCondition(nested, path+".any"); err != nil {
			return err
		}
	}
	return nil
}

// Matches evaluates the condition against a threat at its current
// working severity.
func (c Condition) Matches(threat model.Threat, severity model.Severity) bool {
	switch {
	case c.TypeIs != "":
		return threat.Type == model.ParseThreatType(c.TypeIs)
	case c.SeverityIs != "":
		return severity == model.ParseSeverity(c.SeverityIs)
	case c.SeverityAtLeast != "":
		return severity >= model.ParseSeverity(c.SeverityAtLeast)
	case len(c.DescriptionContainsAny) > 0:
		lower := strings.ToLower(threat.Description)
		for _, needle := range c.DescriptionContainsAny {
			if strings.Contains(lower, strings.ToLower(needle)) {
				return true
			}
		}
		return false
	case len(c.DescriptionContainsAll) > 0:
		lower := strings.ToLower(threat.Description)
		for _, needle := range c.DescriptionContainsAll {
			if !strings.Contains(lower, strings.ToLower(needle)) {
				return false
			}
		}
		return true
	case len(c.PortIn) > 0:
		for _, port := range c.PortIn {
			if threat.Port == port {
				return true
			}
		}
		return false
	case len(c.All) > 0:
		for _, nested := range c.All {
			if !nested.Matches(threat, severity) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for _, nested := range c.Any {
			if nested.Matches(threat, severity) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
