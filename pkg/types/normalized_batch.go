package types

// NormalizedBatch pairs the two representations derived from one
// ingestion payload. Both are persisted in the same write unit.
type NormalizedBatch struct {
	Wide  *WideReading
	Talls []TallReading
}

// RecordCount returns the number of storage rows this batch produces.
func (b *NormalizedBatch) RecordCount() int {
	if b.Wide == nil {
		return len(b.Talls)
	}
	return len(b.Talls) + 1
}
