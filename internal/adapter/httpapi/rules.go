package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mleite/autofund-backend/internal/domain"
	"github.com/mleite/autofund-backend/internal/usecase/rulemgmt"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	filter := rulemgmt.Filter{
		Type:    domain.RuleType(r.URL.Query().Get("type")),
		Trigger: domain.TriggerType(r.URL.Query().Get("trigger")),
		Search:  r.URL.Query().Get("search"),
	}
	if raw := r.URL.Query().Get("enabled"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "enabled must be a boolean")
			return
		}
		filter.Enabled = &enabled
	}

	rules, err := s.rules.FilterRules(r.Context(), filter)
	if err != nil {
		s.internalError(w, "list rules", err)
		return
	}
	respondJSON(w, http.StatusOK, rules)
}

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := s.rules.CreateRule(r.Context(), &rule)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	rule, err := s.rules.GetRule(r.Context(), id)
	if err != nil {
		s.ruleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	var rule domain.Rule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := s.rules.UpdateRule(r.Context(), id, &rule)
	if err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	if err := s.rules.DeleteRule(r.Context(), id); err != nil {
		s.ruleError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleToggleRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	rule, err := s.rules.ToggleRule(r.Context(), id)
	if err != nil {
		s.ruleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDuplicateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := s.ruleID(w, r)
	if !ok {
		return
	}

	copied, err := s.rules.DuplicateRule(r.Context(), id)
	if err != nil {
		s.ruleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, copied)
}

type bulkRequest struct {
	Action     string            `json:"action"`
	RuleIDs    []uuid.UUID       `json:"ruleIds"`
	Enabled    *bool             `json:"enabled,omitempty"`
	Priorities map[uuid.UUID]int `json:"priorities,omitempty"`
}

type bulkResponse struct {
	Affected int `json:"affected"`
}

func (s *Server) handleBulkRules(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var affected int
	var err error
	switch strings.ToLower(req.Action) {
	case "toggle":
		if req.Enabled == nil {
			respondError(w, http.StatusBadRequest, "toggle requires the enabled field")
			return
		}
		affected, err = s.rules.BulkToggle(r.Context(), req.RuleIDs, *req.Enabled)
	case "delete":
		affected, err = s.rules.BulkDelete(r.Context(), req.RuleIDs)
	case "update", "priority":
		affected, err = s.rules.BulkSetPriority(r.Context(), req.Priorities)
	default:
		respondError(w, http.StatusBadRequest, "unknown bulk action: "+req.Action)
		return
	}

	if err != nil {
		s.internalError(w, "bulk rule update", err)
		return
	}
	respondJSON(w, http.StatusOK, bulkResponse{Affected: affected})
}

func (s *Server) handleRuleStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.rules.Statistics(r.Context())
	if err != nil {
		s.internalError(w, "rule statistics", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) ruleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "ruleId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) ruleError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrRuleNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.internalError(w, "rule operation", err)
}

func (s *Server) internalError(w http.ResponseWriter, operation string, err error) {
	s.logger.Error(operation+" failed", "error", err)
	respondError(w, http.StatusInternalServerError, "internal server error")
}
