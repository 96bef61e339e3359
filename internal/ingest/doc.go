// Package ingest consumes planning-result notifications.
//
// A notification carries only the blob key of a stored planning result.
// The Worker walks each message through an explicit state machine:
//
//	received -> queue_ack_or_delete -> fetching_payload -> blob_deleted ->
//	validating -> dispatched -> succeeded | failed
//
// The order of the ack and blob deletion relative to dispatch depends on
// the AckPolicy. With AckBeforeProcess (the default) the message is acked
// and the blob deleted before the result is reconciled, so a later failure
// is terminal for the message and ends up in the dead-letter ledger with
// the payload for manual replay. AckAfterSuccess defers both until the
// dispatch succeeded and naks on failure so the transport redelivers.
package ingest
