package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saksham1508/CyberSentinelAI/internal/assets"
	"github.com/saksham1508/CyberSentinelAI/internal/explain"
	"github.com/saksham1508/CyberSentinelAI/internal/ingest"
	"github.com/saksham1508/CyberSentinelAI/internal/model"
	"github.com/saksham1508/CyberSentinelAI/internal/pipeline"
	"github.com/saksham1508/CyberSentinelAI/internal/rules"
	"github.com/saksham1508/CyberSentinelAI/internal/store"
)

// Server is the admin and reporting HTTP surface.
type Server struct {
	r         *chi.Mux
	threats   store.ThreatStore
	incidents store.IncidentStore
	engine    *rules.Engine
	auditor   *explain.Auditor
	assessor  *assets.Assessor
	pipeline  *pipeline.Pipeline
	validator *ingest.Validator
	logger    *slog.Logger
}

// NewServer wires routes over the given components.
func NewServer(
	threats store.ThreatStore,
	incidents store.IncidentStore,
	engine *rules.Engine,
	auditor *explain.Auditor,
	assessor *assets.Assessor,
	p *pipeline.Pipeline,
	validator *ingest.Validator,
	logger *slog.Logger,
) *Server {
	s := &Server{
		r:         chi.NewRouter(),
		threats:   threats,
		incidents: incidents,
		engine:    engine,
		auditor:   auditor,
		assessor:  assessor,
		pipeline:  p,
		validator: validator,
		logger:    logger,
	}
	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.Recoverer)
	s.routes()
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ok")) })
	s.r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("ready")) })
	s.r.Handle("/metrics", promhttp.Handler())

	s.r.Get("/threats", s.listThreats)
	s.r.Get("/threats/{id}", s.getThreat)
	s.r.Post("/classify", s.classify)

	s.r.Get("/incidents", s.listIncidents)
	s.r.Get("/incidents/{id}", s.getIncident)
	s.r.Post("/incidents/{id}/close", s.closeIncident)

	s.r.Get("/rules", s.listRules)
	s.r.Post("/rules", s.addRule)
	s.r.Put("/rules/{id}", s.updateRule)
	s.r.Post("/rules/{id}/enable", s.enableRule)
	s.r.Post("/rules/{id}/disable", s.disableRule)

	s.r.Get("/reports/transparency", s.transparency)
	s.r.Get("/reports/explanations", s.explanations)
	s.r.Get("/infrastructure/status", s.infrastructureStatus)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) listThreats(w http.ResponseWriter, r *http.Request) {
	filter := store.ThreatFilter{Limit: queryInt(r, "limit", 100)}
	if severity := r.URL.Query().Get("severity"); severity != "" {
		filter.Severity = model.ParseSeverity(severity)
	}
	if threatType := r.URL.Query().Get("type"); threatType != "" {
		filter.Type = model.ParseThreatType(threatType)
	}

	threats, err := s.threats.ListThreats(r.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list threats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list threats")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"threats":   threats,
		"count":     len(threats),
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) getThreat(w http.ResponseWriter, r *http.Request) {
	threat, err := s.threats.GetThreat(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "threat not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load threat")
		return
	}
	s.writeJSON(w, http.StatusOK, threat)
}

// classify runs the pipeline synchronously over a posted candidate
// batch. Candidates go through the same boundary validation as the
// NATS path.
func (s *Server) classify(w http.ResponseWriter, r *http.Request) {
	var docs []interface{}
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		s.writeError(w, http.StatusBadRequest, "body must be a JSON array of candidates")
		return
	}

	var batch []model.Threat
	dropped := 0
	for _, doc := range docs {
		if err := s.validator.Validate(doc); err != nil {
			dropped++
			continue
		}
		data, err := json.Marshal(doc)
		if err != nil {
			dropped++
			continue
		}
		var raw ingest.RawCandidate
		if err := json.Unmarshal(data, &raw); err != nil {
			dropped++
			continue
		}
		batch = append(batch, raw.Threat())
	}

	result, err := s.pipeline.Run(r.Context(), batch)
	if err != nil {
		s.logger.Error("Classification run failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "classification failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":             result,
		"dropped_candidates": dropped,
	})
}

func (s *Server) listIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := s.incidents.ListIncidents(r.Context(), queryInt(r, "limit", 100))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list incidents")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"incidents": incidents,
		"count":     len(incidents),
	})
}

func (s *Server) getIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := s.incidents.GetIncident(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load incident")
		return
	}
	s.writeJSON(w, http.StatusOK, incident)
}

func (s *Server) closeIncident(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.incidents.CloseIncident(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "incident not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to close incident")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": string(model.IncidentClosed)})
}

func (s *Server) listRules(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"rules": s.engine.List()})
}

func (s *Server) addRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule body")
		return
	}
	if err := s.engine.Add(rule); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": rule.ID})
}

func (s *Server) updateRule(w http.ResponseWriter, r *http.Request) {
	var rule rules.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid rule body")
		return
	}
	err := s.engine.Update(chi.URLParam(r, "id"), rule)
	if errors.Is(err, rules.ErrRuleNotFound) {
		s.writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"id": chi.URLParam(r, "id")})
}

func (s *Server) enableRule(w http.ResponseWriter, r *http.Request)  { s.toggleRule(w, r, true) }
func (s *Server) disableRule(w http.ResponseWriter, r *http.Request) { s.toggleRule(w, r, false) }

func (s *Server) toggleRule(w http.ResponseWriter, r *http.Request, enabled bool) {
	id := chi.URLParam(r, "id")
	var err error
	if enabled {
		err = s.engine.Enable(id)
	} else {
		err = s.engine.Disable(id)
	}
	if errors.Is(err, rules.ErrRuleNotFound) {
		s.writeError(w, http.StatusNotFound, "rule not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "enabled": enabled})
}

func (s *Server) transparency(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.auditor.Report())
}

func (s *Server) explanations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"explanations": s.auditor.RecentExplanations(limit),
	})
}

func (s *Server) infrastructureStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.assessor.Status())
}

func queryInt(r *http.Request, key string, fallback int) int {
	if raw := r.URL.Query().Get(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
