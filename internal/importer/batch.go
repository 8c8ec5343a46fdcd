package importer

import (
	"context"
	"time"

	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"
)

// ProgressFunc is called after each committed batch
type ProgressFunc func(committed, total int)

// writeFunc writes one record inside the batch transaction
type writeFunc[T any] func(ctx context.Context, tx *database.Tx, record T) error

// runBatches commits each batch in its own transaction, in order. The first
// failing batch is rolled back and reported; later batches are not attempted.
func runBatches[T any](
	ctx context.Context,
	db *database.DB,
	logger *logging.Logger,
	dataset string,
	batches []Batch[T],
	progress ProgressFunc,
	write writeFunc[T],
) (int, error) {
	committed := 0

	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return committed, errors.NewAppError(errors.ErrorTypeInterruption,
				"import interrupted before batch started", err).
				WithContext("dataset", dataset).
				WithContext("committed_batches", committed)
		}

		start := time.Now()
		failedAt := batch.Offset
		err := db.Transaction(ctx, func(tx *database.Tx) error {
			for i, record := range batch.Records {
				failedAt = batch.Offset + i
				if err := write(ctx, tx, record); err != nil {
					return err
				}
			}
			return nil
		})
		logger.LogBatchCommit(dataset, batch.Index, len(batch.Records), time.Since(start), err)

		if err != nil {
			return committed, &BatchError{
				Dataset:     dataset,
				BatchIndex:  batch.Index,
				RecordIndex: failedAt,
				Cause:       err,
			}
		}

		committed++
		if progress != nil {
			progress(committed, len(batches))
		}
	}

	return committed, nil
}
