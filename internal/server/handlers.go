package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/rs/zerolog/log"

	"github.com/queuehall/queuehall/internal/authz"
	"github.com/queuehall/queuehall/internal/service"
)

// actorPayload carries the caller's identity in request bodies. Platform
// directory lookups are not reachable over HTTP, so these actors resolve
// through the configured owner list and the allow-list only.
type actorPayload struct {
	Platform    string `json:"platform"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

func (p actorPayload) actor(tenantID string) authz.Actor {
	return authz.Actor{
		Platform:    p.Platform,
		TenantID:    tenantID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
	}
}

func tenantID(r *http.Request) string {
	return chi.URLParam(r, "tenant")
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.metrics.OperationFailures.WithLabelValues(errorKind(err)).Inc()
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrConfirmationMismatch):
		return http.StatusPreconditionFailed
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "not_found"
	case errors.Is(err, service.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, service.ErrForbidden):
		return "forbidden"
	case errors.Is(err, service.ErrConflict):
		return "conflict"
	case errors.Is(err, service.ErrConfirmationMismatch):
		return "confirmation_mismatch"
	case errors.Is(err, service.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	default:
		return "internal"
	}
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decode(w, r, &req) {
		return
	}

	result, err := s.svc.Query(r.Context(), tenantID(r), req.Query)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.metrics.QueriesTotal.WithLabelValues(string(result.Mode)).Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAddArcade(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor   actorPayload `json:"actor"`
		Name    string       `json:"name"`
		Aliases []string     `json:"aliases"`
	}
	if !decode(w, r, &req) {
		return
	}

	arcade, err := s.svc.AddArcade(r.Context(), req.Actor.actor(tenantID(r)), req.Name, req.Aliases)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.metrics.ArcadesCreated.Inc()
	writeJSON(w, http.StatusCreated, arcade)
}

func (s *Server) handleUpdateQueue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor actorPayload `json:"actor"`
		Query string       `json:"query"`
		Count int64        `json:"count"`
	}
	if !decode(w, r, &req) {
		return
	}

	arcade, err := s.svc.UpdateQueue(r.Context(), req.Actor.actor(tenantID(r)), req.Query, req.Count)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.metrics.UpdatesTotal.Inc()
	writeJSON(w, http.StatusOK, arcade)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.History(r.Context(), tenantID(r), chi.URLParam(r, "query"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetBinding(w http.ResponseWriter, r *http.Request) {
	binding, err := s.svc.GetBinding(r.Context(), tenantID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

func (s *Server) handleSetBinding(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor          actorPayload `json:"actor"`
		SourceTenantID string       `json:"source_tenant_id"`
		Enabled        bool         `json:"enabled"`
	}
	if !decode(w, r, &req) {
		return
	}

	binding, err := s.svc.SetBinding(r.Context(), req.Actor.actor(tenantID(r)), req.SourceTenantID, req.Enabled)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, binding)
}

func (s *Server) handleUnbind(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor actorPayload `json:"actor"`
	}
	if !decode(w, r, &req) {
		return
	}

	result, err := s.svc.Unbind(r.Context(), req.Actor.actor(tenantID(r)))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor        actorPayload `json:"actor"`
		Confirmation string       `json:"confirmation"`
	}
	if !decode(w, r, &req) {
		return
	}

	result, err := s.svc.ResetTenant(r.Context(), req.Actor.actor(tenantID(r)), req.Confirmation)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.metrics.ResetsTotal.Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAllowList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.svc.AllowList(r.Context(), tenantID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleAllowListAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor    actorPayload `json:"actor"`
		UserID   string       `json:"user_id"`
		UserName string       `json:"user_name"`
	}
	if !decode(w, r, &req) {
		return
	}

	entry, err := s.svc.AllowListAdd(r.Context(), req.Actor.actor(tenantID(r)), req.UserID, req.UserName)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleAllowListRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor actorPayload `json:"actor"`
	}
	if !decode(w, r, &req) {
		return
	}

	if err := s.svc.AllowListRemove(r.Context(), req.Actor.actor(tenantID(r)), chi.URLParam(r, "user")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

func (s *Server) handleAllowListClear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Actor actorPayload `json:"actor"`
	}
	if !decode(w, r, &req) {
		return
	}

	count, err := s.svc.AllowListClear(r.Context(), req.Actor.actor(tenantID(r)))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"removed": count})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Report(r.Context(), tenantID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Status(r.Context(), tenantID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
