package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/planner"
)

// MaxCallbackBodyBytes caps the optimizer callback payload.
const MaxCallbackBodyBytes = 10 << 20

// Finalizer merges an optimizer callback into a queued reconciliation unit.
type Finalizer interface {
	Finalize(ctx context.Context, cb planner.CallbackBody) (string, error)
}

// CallbackResponse is the JSON answer of the planner callback.
type CallbackResponse struct {
	Status  string `json:"status"`
	FileKey string `json:"fileKey,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Callback statuses.
const (
	CallbackQueued    = "queued"
	CallbackDiscarded = "discarded"
	CallbackRejected  = "rejected"
	CallbackFailed    = "failed"
)

// CallbackHandler serves POST /planner/callback.
type CallbackHandler struct {
	finalizer Finalizer
	logger    *slog.Logger
}

// NewCallbackHandler returns a handler finalizing callbacks with f.
func NewCallbackHandler(f Finalizer, logger *slog.Logger) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{
		finalizer: f,
		logger:    logging.WithComponent(logger, "planner_callback"),
	}
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, CallbackResponse{Status: CallbackRejected, Error: "method not allowed"})
		return
	}

	var cb planner.CallbackBody
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxCallbackBodyBytes))
	if err := dec.Decode(&cb); err != nil {
		h.logger.Warn("Rejecting malformed planner callback", logging.Err(err))
		writeJSON(w, http.StatusBadRequest, CallbackResponse{Status: CallbackRejected, Error: "malformed callback body"})
		return
	}

	key, err := h.finalizer.Finalize(r.Context(), cb)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, CallbackResponse{Status: CallbackQueued, FileKey: key})
	case errors.Is(err, planner.ErrInfeasible):
		// The optimizer must not retry an infeasible answer.
		writeJSON(w, http.StatusOK, CallbackResponse{Status: CallbackDiscarded, Error: err.Error()})
	case errors.Is(err, planner.ErrValidation):
		writeJSON(w, http.StatusBadRequest, CallbackResponse{Status: CallbackRejected, Error: err.Error()})
	case errors.Is(err, blob.ErrNotFound):
		writeJSON(w, http.StatusNotFound, CallbackResponse{Status: CallbackRejected, Error: "planning context not found"})
	default:
		h.logger.Error("Planner callback failed",
			logging.HostID(cb.HostID), logging.FileKey(cb.FileKey), logging.Err(err))
		writeJSON(w, http.StatusInternalServerError, CallbackResponse{Status: CallbackFailed, Error: "internal error"})
	}
}
