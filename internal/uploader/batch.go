package uploader

// splitBatches cuts records into consecutive batches of at most size
// records. Batches are subslices of the input; the final batch holds the
// remainder. Returns nil for empty input or a non-positive size.
func splitBatches(records []Record, size int) [][]Record {
	if size <= 0 || len(records) == 0 {
		return nil
	}

	batches := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end:end])
	}
	return batches
}
