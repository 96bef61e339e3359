package ingest

import (
	"fmt"
	"strings"
)

// State is a stage of the per-message state machine.
type State string

const (
	StateReceived         State = "received"
	StateQueueAckOrDelete State = "queue_ack_or_delete"
	StateFetchingPayload  State = "fetching_payload"
	StateBlobDeleted      State = "blob_deleted"
	StateValidating       State = "validating"
	StateDispatched       State = "dispatched"
	StateSucceeded        State = "succeeded"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// AckPolicy decides when the inbound message and its blob are released.
type AckPolicy string

const (
	// AckBeforeProcess acks the message and deletes the blob before
	// dispatch. Delivery is at most once.
	AckBeforeProcess AckPolicy = "ack-before-process"
	// AckAfterSuccess acks and deletes only after a successful dispatch.
	// Delivery is at least once; dispatch may see a result twice.
	AckAfterSuccess AckPolicy = "ack-after-success"
)

// ParseAckPolicy parses a policy name. The empty string is the default.
func ParseAckPolicy(s string) (AckPolicy, error) {
	switch AckPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AckBeforeProcess:
		return AckBeforeProcess, nil
	case AckAfterSuccess:
		return AckAfterSuccess, nil
	}
	return "", fmt.Errorf("unknown ack policy %q: want %s or %s", s, AckBeforeProcess, AckAfterSuccess)
}
