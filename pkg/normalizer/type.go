package normalizer

// Result reports what happened to each tag of one ingestion payload.
type Result struct {
	BatchID string `json:"batch_id"`
	Group   string `json:"group"`

	// Accepted tags produced a TallReading.
	Accepted []string `json:"accepted"`
	// UnknownTags were stored tall but dropped from the wide projection.
	UnknownTags []string `json:"unknown_tags,omitempty"`
	// Rejected tags carried non-numeric values and were skipped.
	Rejected []string `json:"rejected,omitempty"`
}

// NoOp reports whether the payload produced no records at all.
func (r Result) NoOp() bool {
	return len(r.Accepted) == 0
}
