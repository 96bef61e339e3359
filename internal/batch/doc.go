// Package batch runs independent units of work with bounded fan-out.
//
// Failures stay with their item: one item's error never cancels or alters
// the processing of its siblings, and results keep the input order.
package batch
