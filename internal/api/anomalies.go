package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bluewatt/bluewatt-core/internal/telemetry"
)

// handleResolveAnomaly marks an anomaly event resolved on behalf of the
// authenticated viewer. Only the owner of the reporting device may resolve,
// and resolution is not repeatable.
func (s *Server) handleResolveAnomaly(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFromContext(r.Context())
	if viewer == nil {
		writeUnauthorized(w, "missing access token")
		return
	}

	eventID := chi.URLParam(r, "id")

	event, err := s.ingestor.ResolveAnomaly(r.Context(), eventID, viewer.Subject)
	if err != nil {
		switch {
		case errors.Is(err, telemetry.ErrEventNotFound):
			writeNotFound(w, "anomaly event not found")
		case errors.Is(err, telemetry.ErrAccessDenied):
			writeForbidden(w, ErrCodeForbidden, "event belongs to another owner")
		case errors.Is(err, telemetry.ErrAlreadyResolved):
			writeError(w, http.StatusConflict, ErrCodeConflict, "anomaly event already resolved")
		default:
			s.logger.Error("resolving anomaly failed",
				"error", err,
				"event_id", eventID,
				"request_id", r.Context().Value(ctxKeyRequestID),
			)
			writeInternalError(w, "failed to resolve anomaly event")
		}
		return
	}

	writeJSON(w, http.StatusOK, event)
}
