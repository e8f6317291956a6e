package runner

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/formats"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/storage"
)

// MemoryFailureLog accumulates terminal report failures during a run
// and flushes them to the sink once, as a CSV log artifact.
type MemoryFailureLog struct {
	mu      sync.Mutex
	records []report.FailureRecord
}

// NewMemoryFailureLog creates an empty failure log.
func NewMemoryFailureLog() *MemoryFailureLog {
	return &MemoryFailureLog{}
}

// Record implements report.FailureLog.
func (l *MemoryFailureLog) Record(rec report.FailureRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Len returns the number of recorded failures.
func (l *MemoryFailureLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// Flush writes the accumulated records to key. An empty log writes
// nothing.
func (l *MemoryFailureLog) Flush(ctx context.Context, sink storage.Sink, key string, logger *zap.Logger) error {
	l.mu.Lock()
	records := append([]report.FailureRecord(nil), l.records...)
	l.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	table := formats.NewTable("VENDOR", "REPORT_TYPE", "COUNTRY_CODE", "JOB_ID", "STATUS", "DETAIL", "RECORDED_AT")
	for _, rec := range records {
		_ = table.AppendRow([]string{
			rec.Vendor,
			rec.ReportType,
			rec.CountryCode,
			rec.JobID,
			string(rec.Status),
			rec.Detail,
			rec.When.UTC().Format(time.RFC3339),
		})
	}

	var buf bytes.Buffer
	if err := table.WriteCSV(&buf); err != nil {
		return err
	}
	if err := sink.Put(ctx, key, &buf); err != nil {
		return err
	}

	logger.Info("failure log flushed",
		zap.String("key", key),
		zap.Int("failures", len(records)))
	return nil
}
