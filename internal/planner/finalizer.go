package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/teemow/meetassist/internal/blob"
	"github.com/teemow/meetassist/internal/logging"
	"github.com/teemow/meetassist/internal/queue"
)

// ErrInfeasible is returned for optimizer answers with a negative hard
// score. Nothing is published for them.
var ErrInfeasible = errors.New("planning result breaks a hard constraint")

// CallbackBody is the optimizer's callback payload.
type CallbackBody struct {
	// FileKey is the planning context key sent with the request.
	FileKey string `json:"fileKey"`
	HostID  string `json:"hostId"`
	Score   string `json:"score,omitempty"`

	PlannerBodyResponse
}

// Finalizer turns optimizer callbacks into queued reconciliation units.
type Finalizer struct {
	blobs     blob.Store
	publisher queue.Publisher
	logger    *slog.Logger
}

// NewFinalizer returns a Finalizer.
func NewFinalizer(blobs blob.Store, publisher queue.Publisher, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Finalizer{
		blobs:     blobs,
		publisher: publisher,
		logger:    logging.WithComponent(logger, "finalizer"),
	}
}

// Finalize merges cb with its planning context, stores the result and
// publishes its key. The planning context is deleted once read.
func (f *Finalizer) Finalize(ctx context.Context, cb CallbackBody) (string, error) {
	if cb.HostID == "" {
		return "", &ValidationError{Field: "hostId", Err: errors.New("host id is missing")}
	}
	if cb.FileKey == "" {
		return "", &ValidationError{Field: "fileKey", Err: errors.New("file key is missing")}
	}
	logger := f.logger.With(logging.HostID(cb.HostID), logging.FileKey(cb.FileKey))

	if cb.Score != "" {
		score, err := ParseScore(cb.Score)
		switch {
		case err != nil:
			logger.Warn("Could not parse score, processing anyway", slog.String("score", cb.Score))
		case !score.Feasible():
			if err := f.blobs.Delete(ctx, cb.FileKey); err != nil {
				logger.Warn("Failed to delete planning context", logging.Err(err))
			}
			logger.Error("Discarding infeasible planning result", slog.String("score", cb.Score))
			return "", fmt.Errorf("%w: %s", ErrInfeasible, score)
		}
	}

	data, err := f.blobs.Get(ctx, cb.FileKey)
	if err != nil {
		return "", fmt.Errorf("read planning context: %w", err)
	}
	var body PostProcessQueueBody
	if err := json.Unmarshal(data, &body); err != nil {
		return "", &ValidationError{Field: "planning context", Err: err}
	}
	if body.SingletonID == "" {
		return "", &ValidationError{Field: "singletonId", Err: errors.New("planning context has no singleton id")}
	}
	body.FileKey = cb.FileKey
	body.HostID = cb.HostID
	body.Score = cb.Score
	body.PlannerBodyResponse = cb.PlannerBodyResponse

	merged, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal processed payload: %w", err)
	}
	key := blob.ProcessedKey(cb.HostID, body.SingletonID)
	if err := f.blobs.Put(ctx, key, merged); err != nil {
		return "", fmt.Errorf("store processed payload: %w", err)
	}
	if err := f.publisher.Publish(ctx, cb.HostID, queue.Body{FileKey: key}); err != nil {
		return "", fmt.Errorf("publish %s: %w", key, err)
	}
	// The context stays until the result is queued so a retried callback
	// can finalize again.
	if err := f.blobs.Delete(ctx, cb.FileKey); err != nil {
		logger.Warn("Failed to delete planning context", logging.Err(err))
	}

	logger.Info("Planning result queued",
		slog.String("processed_key", key),
		slog.Int("event_parts", len(body.EventPartList)))
	return key, nil
}
