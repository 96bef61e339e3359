package instrumentation

import "strconv"

// Label values derived from payloads (transport names, error classes,
// partitions) are bounded before they reach a metric so that a malformed
// message cannot create new series.

// LabelOther replaces any value outside an allowed set.
const LabelOther = "other"

// maxPartitionLabel caps the number of distinct partition series.
const maxPartitionLabel = 64

// BoundedLabel returns value if it is one of allowed, LabelOther otherwise.
// An empty value maps to StatusUnknown.
//
// Example:
//
//	BoundedLabel("valkey", "valkey", "jetstream")  // "valkey"
//	BoundedLabel("sqs", "valkey", "jetstream")     // "other"
func BoundedLabel(value string, allowed ...string) string {
	if value == "" {
		return StatusUnknown
	}
	for _, a := range allowed {
		if value == a {
			return value
		}
	}
	return LabelOther
}

// PartitionLabel renders a partition index as a label value.
// Negative indexes (unpartitioned transports) and indexes beyond the cap
// collapse into a single series.
func PartitionLabel(partition int) string {
	if partition < 0 {
		return "none"
	}
	if partition >= maxPartitionLabel {
		return LabelOther
	}
	return strconv.Itoa(partition)
}
