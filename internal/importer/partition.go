package importer

import (
	"fmt"

	"shop-lifecycle/internal/errors"
)

// Batch is a contiguous slice of the source records, committed as one unit
type Batch[T any] struct {
	Index   int
	Offset  int
	Records []T
}

// Partition splits records into batches of size, preserving source order.
// The last batch may be shorter.
func Partition[T any](records []T, size int) ([]Batch[T], error) {
	if size < 1 {
		return nil, errors.NewAppError(errors.ErrorTypeValidation,
			fmt.Sprintf("batch size must be at least 1, got %d", size), nil)
	}

	batches := make([]Batch[T], 0, (len(records)+size-1)/size)
	for offset := 0; offset < len(records); offset += size {
		end := offset + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, Batch[T]{
			Index:   len(batches),
			Offset:  offset,
			Records: records[offset:end],
		})
	}
	return batches, nil
}
