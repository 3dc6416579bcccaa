package chain

import "fmt"

// Range represents an inclusive index range.
type Range struct {
	From uint64
	To   uint64
}

// Len returns the number of indices in the range.
func (r Range) Len() int {
	return int(r.To - r.From + 1)
}

// SplitRange splits an inclusive range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]Range, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("range end must be >= range start")
	}

	ranges := make([]Range, 0, (to-from)/batchSize+1)
	start := from
	for start <= to {
		end := to
		if to-start+1 > batchSize {
			end = start + batchSize - 1
		}
		ranges = append(ranges, Range{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
