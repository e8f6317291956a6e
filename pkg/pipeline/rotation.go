package pipeline

import (
	"bytes"
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/formats"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/storage"
)

// Rotator converts historical CSVs into Parquet under the processed
// prefix. Conversion strictly precedes deletion: a CSV is removed only
// after its Parquet twin has been written, so a failed conversion
// leaves the source object in place.
type Rotator struct {
	sink   storage.Sink
	layout Layout
	logger *zap.Logger
}

// NewRotator creates a rotator over sink.
func NewRotator(sink storage.Sink, layout Layout, logger *zap.Logger) *Rotator {
	return &Rotator{
		sink:   sink,
		layout: layout,
		logger: logger.With(zap.String("component", "rotator")),
	}
}

// Rotate processes one table prefix: every {table}_{date}.csv whose
// date is NOT in currentDates is converted and deleted. Per-object
// failures are logged and skipped; the first error is returned after
// the sweep so one bad object does not block the rest.
func (r *Rotator) Rotate(ctx context.Context, countryCode, table string, currentDates map[string]bool) error {
	prefix := r.layout.TableDir(countryCode, table)
	keys, err := r.sink.List(ctx, prefix)
	if err != nil {
		return err
	}

	var firstErr error
	for _, key := range keys {
		if strings.Contains(key, "/processed/") {
			continue
		}
		date, ok := DateFromKey(key, table)
		if !ok {
			continue
		}
		if currentDates[date.Format("2006-01-02")] {
			continue
		}

		if err := r.rotateOne(ctx, key); err != nil {
			r.logger.Error("rotation failed, keeping source object",
				zap.String("key", key),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
	}
	return firstErr
}

// RotateBatch derives the protected date set from batch dates and
// rotates everything else.
func (r *Rotator) RotateBatch(ctx context.Context, countryCode, table string, batch []time.Time) error {
	current := make(map[string]bool, len(batch))
	for _, d := range batch {
		current[d.Format("2006-01-02")] = true
	}
	return r.Rotate(ctx, countryCode, table, current)
}

func (r *Rotator) rotateOne(ctx context.Context, key string) error {
	body, err := r.sink.Get(ctx, key)
	if err != nil {
		return err
	}
	table, err := formats.ReadCSV(body)
	_ = body.Close()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formats.WriteParquet(&buf, table); err != nil {
		return err
	}

	processedKey := r.layout.ProcessedKey(key)
	if err := r.sink.Put(ctx, processedKey, &buf); err != nil {
		return err
	}

	// Parquet twin is durable; now the CSV can go.
	if err := r.sink.Delete(ctx, key); err != nil {
		return err
	}

	r.logger.Info("rotated to parquet",
		zap.String("from", key),
		zap.String("to", processedKey))
	return nil
}
