package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shop-lifecycle/internal/database"
	"shop-lifecycle/internal/errors"
	"shop-lifecycle/internal/logging"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const (
	DefaultLocationBatchSize = 100

	locationsTable = "store_locations"

	// keeps IN lists under the smallest engine bind-variable limit
	verifyChunkSize = 500
)

var locationColumns = []string{
	"id", "name", "phone", "address", "lat", "lng", "city", "area", "service_tags", "updated_at",
}

// LocationImporter upserts store locations by their external id
type LocationImporter struct {
	db        *database.DB
	batchSize int
	logger    *logging.Logger
	now       func() time.Time
	progress  ProgressFunc
}

// NewLocationImporter creates a location importer. A batchSize below 1 uses the default.
func NewLocationImporter(db *database.DB, batchSize int, logger *logging.Logger) *LocationImporter {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	if batchSize < 1 {
		batchSize = DefaultLocationBatchSize
	}
	return &LocationImporter{db: db, batchSize: batchSize, logger: logger, now: time.Now}
}

// WithClock overrides the source of updated_at values
func (li *LocationImporter) WithClock(now func() time.Time) *LocationImporter {
	li.now = now
	return li
}

// WithProgress registers a callback run after each committed batch
func (li *LocationImporter) WithProgress(fn ProgressFunc) *LocationImporter {
	li.progress = fn
	return li
}

// Import parses sourceFile and upserts every location, one transaction per
// batch. Existing rows with the same id are overwritten in place and get a
// fresh updated_at.
func (li *LocationImporter) Import(ctx context.Context, sourceFile string) (*ImportSummary, error) {
	start := time.Now()
	summary := &ImportSummary{Dataset: DatasetLocations, RunID: uuid.NewString()}

	done := li.logger.LogOperationStart("import locations", map[string]interface{}{
		"run_id":     summary.RunID,
		"file":       sourceFile,
		"batch_size": li.batchSize,
	})

	locations, err := ParseLocations(sourceFile)
	if err != nil {
		done(err)
		return nil, err
	}
	summary.Expected = len(locations)

	batches, err := Partition(locations, li.batchSize)
	if err != nil {
		done(err)
		return nil, err
	}

	upsert := li.db.Dialect().UpsertSQL(locationsTable, "id", locationColumns)

	committed, err := runBatches(ctx, li.db, li.logger, DatasetLocations, batches, li.progress,
		func(ctx context.Context, tx *database.Tx, l LocationRecord) error {
			tags, err := encodeTags(l.ServiceTags)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx, upsert,
				string(l.ID), l.Name, l.Phone, l.Address, l.Lat, l.Lng, l.City, l.Area, tags, li.now().UTC())
			return err
		})
	summary.BatchCount = committed
	for _, b := range batches[:committed] {
		summary.InsertedCount += len(b.Records)
	}
	if err != nil {
		summary.Duration = time.Since(start)
		done(err)
		return summary, err
	}

	if err := li.verify(ctx, summary, locations); err != nil {
		done(err)
		return summary, err
	}

	summary.Duration = time.Since(start)
	done(nil)
	return summary, nil
}

func (li *LocationImporter) verify(ctx context.Context, summary *ImportSummary, locations []LocationRecord) error {
	seen := make(map[LocationID]struct{}, len(locations))
	ids := make([]any, 0, len(locations))
	for _, l := range locations {
		if _, dup := seen[l.ID]; dup {
			continue
		}
		seen[l.ID] = struct{}{}
		ids = append(ids, string(l.ID))
	}

	actual := 0
	for start := 0; start < len(ids); start += verifyChunkSize {
		end := start + verifyChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id IN (%s)",
			locationsTable, strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", "))
		n, err := li.db.Count(ctx, query, chunk...)
		if err != nil {
			return err
		}
		actual += n
	}
	summary.ActualCount = actual

	if actual != summary.Expected {
		summary.CountMismatch = true
		li.logger.WithFields(map[string]interface{}{
			"run_id":   summary.RunID,
			"expected": summary.Expected,
			"actual":   actual,
		}).Warn("Location count does not match dataset, duplicate ids collapse into one row")
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", errors.NewAppError(errors.ErrorTypeValidation, "failed to encode service tags", err)
	}
	return string(b), nil
}
