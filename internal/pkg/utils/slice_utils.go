package utils

// BatchStrings splits a slice of strings into batches of at most batchSize.
func BatchStrings(items []string, batchSize int) [][]string {
	if len(items) == 0 {
		return [][]string{}
	}
	if batchSize <= 0 {
		batchSize = len(items)
	}

	var batches [][]string
	for i := 0; i < len(items); i += batchSize {
		end := i + batchSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
