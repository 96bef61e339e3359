// Package deadletter keeps planning payloads whose processing failed after
// their transient copy was deleted, so an operator can inspect and replay
// them.
package deadletter
