// Package planner defines the boundary with the external schedule
// optimizer.
//
// The Assembler turns availability and event data into a PlanningRequest,
// stores the context the optimizer does not echo back under
// blob.ContextKey and submits the request. When the optimizer calls back,
// the Finalizer merges its answer with that context into a
// PostProcessQueueBody, stores it under blob.ProcessedKey and publishes the
// key for the ingest worker.
//
// The optimizer itself is a black box reached through the Optimizer
// interface; HTTPOptimizer is the production client.
package planner
