package batch

import (
	"context"
	"encoding/json"

	"golang.org/x/sync/errgroup"
)

// Result represents the result of a single operation in a batch
type Result struct {
	ID     string `json:"id"`
	Status string `json:"status"` // "success" or "error"
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// BatchResult represents the aggregated results of a batch operation
type BatchResult struct {
	Total      int      `json:"total"`
	Successful int      `json:"successful"`
	Failed     int      `json:"failed"`
	Results    []Result `json:"results"`
}

// Summarize aggregates results.
func Summarize(results []Result) BatchResult {
	br := BatchResult{
		Total:   len(results),
		Results: results,
	}
	for _, r := range results {
		if r.Status == "success" {
			br.Successful++
		} else {
			br.Failed++
		}
	}
	return br
}

// FormatResults creates a formatted JSON string from batch results
func FormatResults(results []Result) string {
	jsonBytes, _ := json.MarshalIndent(Summarize(results), "", "  ")
	return string(jsonBytes)
}

// Run calls fn for every item with at most limit calls in flight and
// returns the results in item order. limit < 1 means one at a time.
func Run[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) R) []R {
	if limit < 1 {
		limit = 1
	}
	results := make([]R, len(items))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, item := range items {
		g.Go(func() error {
			results[i] = fn(ctx, item)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// ProcessBatch executes fn on each id with bounded concurrency and
// collects results.
func ProcessBatch(ctx context.Context, ids []string, limit int, fn func(ctx context.Context, id string) (string, error)) []Result {
	return Run(ctx, ids, limit, func(ctx context.Context, id string) Result {
		res, err := fn(ctx, id)
		if err != nil {
			return NewErrorResult(id, err)
		}
		return NewSuccessResult(id, res)
	})
}

// NewSuccessResult creates a success result
func NewSuccessResult(id, message string) Result {
	return Result{
		ID:     id,
		Status: "success",
		Result: message,
	}
}

// NewErrorResult creates an error result
func NewErrorResult(id string, err error) Result {
	return Result{
		ID:     id,
		Status: "error",
		Error:  err.Error(),
	}
}
