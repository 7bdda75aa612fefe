package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/saksham1508/CyberSentinelAI/internal/metrics"
	"github.com/saksham1508/CyberSentinelAI/internal/model"
)

// ErrRuleNotFound is returned by admin operations on unknown rule IDs.
var ErrRuleNotFound = fmt.Errorf("rule not found")

// RuleStatus is a rule plus its lifetime match count, for reporting.
type RuleStatus struct {
	Rule    Rule  `json:"rule"`
	Matches int64 `json:"matches"`
}

// Engine holds the ordered rule registry and evaluates it against
// threat batches. Evaluation order is registration order and is
// deterministic for a fixed enabled set.
type Engine struct {
	mu      sync.RWMutex
	order   []string
	rules   map[string]*Rule
	matches map[string]int64
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an engine preloaded with the default catalog.
func NewEngine(logger *slog.Logger, m *metrics.Metrics) *Engine {
	e := &Engine{
		rules:   make(map[string]*Rule),
		matches: make(map[string]int64),
		logger:  logger,
		metrics: m,
	}
	for _, rule := range DefaultCatalog() {
		// The default catalog is static and validated by tests.
		_ = e.Add(rule)
	}
	return e
}

// Add validates and registers a rule at the end of the evaluation order.
func (e *Engine) Add(rule Rule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule %q: %w", rule.ID, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.rules[rule.ID]; exists {
		return fmt.Errorf("rule %q already registered", rule.ID)
	}
	r := rule
	e.rules[rule.ID] = &r
	e.order = append(e.order, rule.ID)
	if e.metrics != nil {
		e.metrics.RulesLoaded.Set(float64(len(e.order)))
	}
	return nil
}

// Enable enables a rule by ID.
func (e *Engine) Enable(id string) error { return e.setEnabled(id, true) }

// Disable disables a rule by ID. Its match counter is retained.
func (e *Engine) Disable(id string) error { return e.setEnabled(id, false) }

func (e *Engine) setEnabled(id string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	rule, ok := e.rules[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	rule.Enabled = enabled
	return nil
}

// Update replaces a rule's definition in place, keeping its position in
// the evaluation order and its match counter.
func (e *Engine) Update(id string, rule Rule) error {
	rule.ID = id
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule %q: %w", id, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rules[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	r := rule
	e.rules[id] = &r
	return nil
}

// List returns all rules in evaluation order with their match counts.
func (e *Engine) List() []RuleStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]RuleStatus, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, RuleStatus{Rule: *e.rules[id], Matches: e.matches[id]})
	}
	return out
}

// Apply evaluates every enabled rule, in registration order, against
// each candidate as progressively modified by earlier rules in the same
// pass. A rule that fails is skipped for that candidate only.
func (e *Engine) Apply(candidates []*model.Candidate) {
	e.mu.Lock()
	snapshot := make([]Rule, 0, len(e.order))
	for _, id := range e.order {
		if e.rules[id].Enabled {
			snapshot = append(snapshot, *e.rules[id])
		}
	}
	e.mu.Unlock()

	for _, candidate := range candidates {
		for _, rule := range snapshot {
			e.applyRule(rule, candidate)
		}
	}
}

func (e *Engine) applyRule(rule Rule, candidate *model.Candidate) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Rule evaluation failed, skipping rule",
				"rule_id", rule.ID,
				"error", fmt.Sprint(r))
			if e.metrics != nil {
				e.metrics.RuleErrorsTotal.Inc()
			}
		}
	}()

	if !rule.Condition.Matches(candidate.Threat, candidate.Severity) {
		return
	}

	result := e.execute(rule, candidate)

	candidate.Classification.AppliedRules = append(candidate.Classification.AppliedRules, model.AppliedRule{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Action:   rule.Action.Kind,
		Result:   result,
	})

	e.mu.Lock()
	e.matches[rule.ID]++
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.RuleMatchesTotal.WithLabelValues(rule.ID).Inc()
	}

	e.logger.Debug("Rule matched",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"action", rule.Action.Kind,
		"severity", candidate.Severity.String())
}

// execute performs the rule's action against the working candidate and
// returns the action-specific result string recorded on the threat.
func (e *Engine) execute(rule Rule, candidate *model.Candidate) string {
	params := rule.Action.Params
	switch rule.Action.Kind {
	case ActionEscalate:
		to := model.ParseSeverity(param(params, "to", "Critical"))
		before := candidate.Severity
		candidate.Severity = candidate.Severity.Escalate(to)
		if to == model.SeverityCritical && candidate.Severity == model.SeverityCritical {
			candidate.RuleCritical = true
		}
		return fmt.Sprintf("severity escalated %s -> %s", before, candidate.Severity)
	case ActionAlert:
		if channel := params["channel"]; channel != "" {
			return "alert dispatched on channel " + channel
		}
		return "alert raised at severity " + param(params, "severity", candidate.Severity.String())
	case ActionIsolate:
		return "source isolated for " + param(params, "duration", "30m")
	case ActionBlockIP:
		return fmt.Sprintf("blocked %s for %s", candidate.Threat.SourceIP, param(params, "duration", "1h"))
	case ActionQuarantine:
		return "quarantine requested, scope " + param(params, "scope", "host")
	case ActionMonitor:
		return "enhanced monitoring for " + param(params, "duration", "24h")
	case ActionIncreasePriority:
		return "priority increased by " + param(params, "level", "1")
	case ActionLogEvent:
		return "event logged"
	default:
		// Validate rejects unknown kinds at registration; reaching this
		// means the registry was corrupted.
		panic("unknown action kind: " + rule.Action.Kind)
	}
}

func param(params map[string]string, key, fallback string) string {
	if v, ok := params[key]; ok && v != "" {
		return v
	}
	return fallback
}
