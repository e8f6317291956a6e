package pipeline

import (
	"bufio"
	"context"
	"io"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/formats"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/storage"
)

// MaterializeOptions controls one materialization.
type MaterializeOptions struct {
	// FormatHint overrides URL-suffix detection when set.
	FormatHint report.Format
	// Rules is the column normalization to apply; nil means none.
	Rules []Rule
	// CountryCode, when set, is added as a COUNTRY_CODE provenance
	// column.
	CountryCode string
	// Timestamp populates LAST_UPDATED_TIMESTAMP; zero means now.
	Timestamp time.Time
	// SortColumns orders the output schema lexicographically.
	SortColumns bool
	// ExpectedColumns, when set, must equal the sorted output schema.
	ExpectedColumns []string
}

// Materializer downloads a report artifact, normalizes it into a CSV
// table and uploads it to the sink. Downloads stage through temp
// files so no partial artifact ever lands at the final key, and a
// repeat run with identical input bytes produces an identical object.
type Materializer struct {
	sink   storage.Sink
	http   *clients.HTTPClient
	logger *zap.Logger
}

// NewMaterializer creates a materializer writing to sink.
func NewMaterializer(sink storage.Sink, http *clients.HTTPClient, logger *zap.Logger) *Materializer {
	return &Materializer{
		sink:   sink,
		http:   http,
		logger: logger.With(zap.String("component", "materializer")),
	}
}

// Materialize fetches one download and writes the normalized CSV to
// key. Temp artifacts are removed on success and failure alike.
func (m *Materializer) Materialize(ctx context.Context, dl report.Download, key string, opts MaterializeOptions) error {
	tmp, err := m.download(ctx, dl.URL)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	table, err := m.decode(tmp, dl, opts)
	if err != nil {
		return err
	}

	if opts.Rules != nil {
		ApplyRules(table, opts.Rules)
	}
	if opts.CountryCode != "" {
		table.AddConstColumn("COUNTRY_CODE", opts.CountryCode)
	}
	ts := opts.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	table.AddConstColumn("LAST_UPDATED_TIMESTAMP", ts.UTC().Format(time.RFC3339))

	if opts.SortColumns {
		table.SortColumns()
	}
	if err := verifySchema(table, opts.ExpectedColumns); err != nil {
		return err
	}

	if err := m.upload(ctx, table, key); err != nil {
		return err
	}

	m.logger.Info("report materialized",
		zap.String("key", key),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)))
	return nil
}

// download streams the artifact to a temp file and returns its path.
func (m *Materializer) download(ctx context.Context, url string) (string, error) {
	resp, err := m.http.Get(ctx, url, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := clients.CheckStatus(resp); err != nil {
		return "", err
	}

	f, err := os.CreateTemp("", "report-*.download")
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "create temp file")
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, errors.ErrorTypeTransient, "download report artifact")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "close temp file")
	}
	return f.Name(), nil
}

// decode reads the staged artifact into a table, dispatching on the
// format hint, the URL suffix, then content sniffing.
func (m *Materializer) decode(path string, dl report.Download, opts MaterializeOptions) (*formats.Table, error) {
	format := opts.FormatHint
	if format == "" {
		format = dl.Format
	}
	if format == "" {
		if f, ok := report.FormatFromURL(dl.URL); ok {
			format = f
		}
	}
	if format == "" {
		sniffed, err := sniffFormat(path)
		if err != nil {
			return nil, err
		}
		format = sniffed
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "open staged artifact")
	}
	defer func() { _ = f.Close() }()

	switch format {
	case report.FormatGzipJSON:
		gz, err := formats.NewGzipReader(f)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		records, err := formats.DecodeJSONRecords(gz)
		if err != nil {
			return nil, err
		}
		return formats.Flatten(records), nil

	case report.FormatORC:
		return formats.ReadORC(f)

	case report.FormatCSV:
		return formats.ReadCSV(f)
	}

	return nil, errors.New(errors.ErrorTypeFormat, "unsupported artifact format").
		WithDetail("format", string(format)).
		WithDetail("url", dl.URL)
}

func sniffFormat(path string) (report.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeInternal, "open staged artifact")
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, 4)
	n, _ := io.ReadFull(f, head)
	head = head[:n]

	switch {
	case formats.IsGzip(head):
		return report.FormatGzipJSON, nil
	case formats.IsORC(head):
		return report.FormatORC, nil
	}
	// Vendors serve plain CSV without a suffix; let the CSV reader be
	// the final arbiter.
	return report.FormatCSV, nil
}

// upload encodes the table to a temp CSV, then copies it to the sink.
func (m *Materializer) upload(ctx context.Context, table *formats.Table, key string) error {
	f, err := os.CreateTemp("", "report-*.csv")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "create temp file")
	}
	defer func() { _ = os.Remove(f.Name()) }()

	w := bufio.NewWriter(f)
	if err := table.WriteCSV(w); err != nil {
		_ = f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeInternal, "flush temp csv")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return errors.Wrap(err, errors.ErrorTypeInternal, "rewind temp csv")
	}

	if err := m.sink.Put(ctx, key, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func verifySchema(table *formats.Table, expected []string) error {
	if len(expected) == 0 {
		return nil
	}
	got := append([]string(nil), table.Columns...)
	sort.Strings(got)
	want := append([]string(nil), expected...)
	sort.Strings(want)

	if len(got) != len(want) {
		return schemaMismatch(got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			return schemaMismatch(got, want)
		}
	}
	return nil
}

func schemaMismatch(got, want []string) error {
	return errors.New(errors.ErrorTypeData, "output schema does not match expected columns").
		WithDetail("got", got).
		WithDetail("want", want)
}
