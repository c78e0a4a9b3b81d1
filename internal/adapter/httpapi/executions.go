package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mleite/autofund-backend/internal/domain"
	"github.com/mleite/autofund-backend/internal/usecase/engine"
	"github.com/mleite/autofund-backend/internal/usecase/history"
)

type executeRequest struct {
	Trigger           domain.TriggerType `json:"trigger"`
	IncomeAmount      *decimal.Decimal   `json:"incomeAmount,omitempty"`
	IncomeDescription string             `json:"incomeDescription,omitempty"`
}

func (req *executeRequest) triggerData() *engine.TriggerData {
	if req.IncomeAmount == nil {
		return nil
	}
	return &engine.TriggerData{
		IncomeAmount:      *req.IncomeAmount,
		IncomeDescription: req.IncomeDescription,
	}
}

var runTriggers = map[domain.TriggerType]bool{
	domain.TriggerManual:         true,
	domain.TriggerIncomeDetected: true,
	domain.TriggerMonthly:        true,
	domain.TriggerWeekly:         true,
	domain.TriggerBiweekly:       true,
	domain.TriggerPayday:         true,
}

func (s *Server) decodeExecuteRequest(w http.ResponseWriter, r *http.Request) (*executeRequest, bool) {
	req := &executeRequest{Trigger: domain.TriggerManual}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return nil, false
		}
	}
	if !runTriggers[req.Trigger] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid trigger %q", req.Trigger))
		return nil, false
	}
	return req, true
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	record, err := s.engine.Execute(r.Context(), req.Trigger, req.triggerData())
	if err != nil {
		if errors.Is(err, engine.ErrExecutionInProgress) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		s.internalError(w, "execute rules", err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	sim, err := s.engine.SimulateExecution(r.Context(), req.Trigger, req.triggerData())
	if err != nil {
		s.internalError(w, "simulate execution", err)
		return
	}
	respondJSON(w, http.StatusOK, sim)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	plan, err := s.engine.BuildPlan(r.Context(), req.Trigger, req.triggerData())
	if err != nil {
		s.internalError(w, "build plan", err)
		return
	}
	respondJSON(w, http.StatusOK, plan)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	trigger := domain.TriggerType(r.URL.Query().Get("trigger"))
	if trigger == "" {
		trigger = domain.TriggerManual
	}
	if !runTriggers[trigger] {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid trigger %q", trigger))
		return
	}

	readiness, err := s.engine.CanExecute(r.Context(), trigger, nil)
	if err != nil {
		s.internalError(w, "readiness check", err)
		return
	}
	respondJSON(w, http.StatusOK, readiness)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	records, err := s.history.History(r.Context(), limit)
	if err != nil {
		s.internalError(w, "list history", err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := s.executionID(w, r)
	if !ok {
		return
	}

	record, err := s.history.ExecutionByID(r.Context(), id)
	if err != nil {
		s.executionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := s.executionID(w, r)
	if !ok {
		return
	}

	if err := s.history.DeleteExecution(r.Context(), id); err != nil {
		s.executionError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.ClearHistory(r.Context()); err != nil {
		s.internalError(w, "clear history", err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, ok := s.executionID(w, r)
	if !ok {
		return
	}

	undo, err := s.history.UndoExecution(r.Context(), id)
	if err != nil {
		s.undoError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, undo)
}

func (s *Server) handleUndoLast(w http.ResponseWriter, r *http.Request) {
	undo, err := s.history.UndoLastExecution(r.Context())
	if err != nil {
		s.undoError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, undo)
}

func (s *Server) handleExecutionStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.Statistics(r.Context())
	if err != nil {
		s.internalError(w, "execution statistics", err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := history.ExportFormat(r.URL.Query().Get("format"))
	if format == "" {
		format = history.FormatJSON
	}

	from, ok := s.exportDate(w, r, "from")
	if !ok {
		return
	}
	to, ok := s.exportDate(w, r, "to")
	if !ok {
		return
	}

	filename, data, err := s.history.Export(r.Context(), format, from, to)
	if err != nil {
		if errors.Is(err, history.ErrUnknownFormat) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, "export history", err)
		return
	}

	contentType := "application/json"
	if format == history.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// exportDate parses an optional date query parameter, accepting RFC 3339
// timestamps and plain dates.
func (s *Server) exportDate(w http.ResponseWriter, r *http.Request, key string) (*time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		parsed, err = time.Parse("2006-01-02", raw)
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, key+" must be an RFC 3339 timestamp or a date")
		return nil, false
	}
	return &parsed, true
}

func (s *Server) executionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "executionId"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid execution id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) executionError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrExecutionNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.internalError(w, "execution operation", err)
}

func (s *Server) undoError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrExecutionNotFound), errors.Is(err, history.ErrNothingToUndo):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, history.ErrAlreadyUndone):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, history.ErrNotUndoable), errors.Is(err, history.ErrNoBudgetAccess):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.internalError(w, "undo execution", err)
	}
}
