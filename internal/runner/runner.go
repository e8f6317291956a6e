// Package runner orchestrates connector runs: it expands the
// requested date range into report windows, drives each report through
// submit/poll/materialize, rotates stale CSVs and flushes the failure
// log. Execution is sequential per invocation.
package runner

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/formats"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/pipeline"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/storage"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/vendors/vendorcentral"
)

const dateLayout = "2006-01-02"

// Options selects what one run covers.
type Options struct {
	// ReportType limits the run to a single report kind; empty runs the
	// whole catalog.
	ReportType string
	// Vendor filters the catalog when ReportType is empty.
	Vendor string
	// CountryCodes limits the run to specific countries; empty runs all
	// configured ones.
	CountryCodes []string
	// Start and End bound an explicit backfill range. When Start is
	// zero the run discovers the latest available date instead.
	Start time.Time
	End   time.Time
}

// WarehouseWriter mirrors materialized tables into warehouse tables.
// Satisfied by storage.SnowflakeSink.
type WarehouseWriter interface {
	WriteTable(ctx context.Context, tableName string, t *formats.Table) error
}

// Runner executes report runs against one configuration.
type Runner struct {
	cfg       *config.Config
	creds     config.CredentialProvider
	sink      storage.Sink
	http      *clients.HTTPClient
	warehouse WarehouseWriter
	logger    *zap.Logger

	// now is swappable in tests.
	now func() time.Time
}

// New creates a runner.
func New(cfg *config.Config, creds config.CredentialProvider, sink storage.Sink, http *clients.HTTPClient, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		creds:  creds,
		sink:   sink,
		http:   http,
		logger: logger.With(zap.String("component", "runner")),
		now:    time.Now,
	}
}

// WithWarehouse attaches a warehouse writer for report kinds carrying
// a warehouse_table.
func (r *Runner) WithWarehouse(w WarehouseWriter) *Runner {
	r.warehouse = w
	return r
}

// Run executes every selected report kind for every selected country.
// Failures in a multi-window backfill are recorded and the run moves
// on; a single-report single-window failure propagates directly. The
// first recorded error is returned once the sweep finishes.
func (r *Runner) Run(ctx context.Context, opts Options) error {
	reportTypes, err := r.selectReports(opts)
	if err != nil {
		return err
	}
	countries := r.selectCountries(opts)

	layout := pipeline.Layout{Root: r.cfg.RootPrefix, Source: r.cfg.Source}
	failures := NewMemoryFailureLog()
	poller := report.NewPoller(failures, r.logger)
	materializer := pipeline.NewMaterializer(r.sink, r.http, r.logger)
	rotator := pipeline.NewRotator(r.sink, layout, r.logger)

	var firstErr error
	single := len(reportTypes) == 1 && len(countries) == 1
	for _, reportType := range reportTypes {
		for _, countryCode := range countries {
			err := r.runReport(ctx, poller, materializer, rotator, layout, reportType, countryCode, opts, failures, single)
			if err != nil {
				if single {
					firstErr = err
					break
				}
				r.logger.Error("report run failed, continuing",
					zap.String("report_type", reportType),
					zap.String("country_code", countryCode),
					zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	logKey := layout.LogKey(r.now().UTC())
	if err := failures.Flush(ctx, r.sink, logKey, r.logger); err != nil {
		r.logger.Error("failure log flush failed", zap.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Runner) selectReports(opts Options) ([]string, error) {
	if opts.ReportType != "" {
		if _, err := r.cfg.Report(opts.ReportType); err != nil {
			return nil, err
		}
		return []string{opts.ReportType}, nil
	}

	var names []string
	for name, rc := range r.cfg.Reports {
		if opts.Vendor != "" && rc.Vendor != opts.Vendor {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "no report kinds selected").
			WithDetail("vendor", opts.Vendor)
	}
	return names, nil
}

func (r *Runner) selectCountries(opts Options) []string {
	if len(opts.CountryCodes) > 0 {
		return opts.CountryCodes
	}
	codes := make([]string, 0, len(r.cfg.Countries))
	for code := range r.cfg.Countries {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (r *Runner) runReport(ctx context.Context, poller *report.Poller, materializer *pipeline.Materializer, rotator *pipeline.Rotator, layout pipeline.Layout, reportType, countryCode string, opts Options, failures *MemoryFailureLog, single bool) error {
	rc, err := r.cfg.Report(reportType)
	if err != nil {
		return err
	}
	country, err := r.cfg.Country(countryCode)
	if err != nil {
		return err
	}
	creds, err := r.creds.Credentials(rc.Vendor)
	if err != nil {
		return err
	}
	if _, err := pipeline.RulesFor(rc.Rules); err != nil {
		return err
	}

	adapter, err := report.Create(rc.Vendor, report.Env{
		CountryCode: countryCode,
		Country:     country,
		ReportType:  reportType,
		Report:      rc,
		Credentials: creds,
		HTTP:        r.http,
		Retry:       clients.RetryPolicyFromConfig(r.cfg.Retry),
		Logger:      r.logger,
	})
	if err != nil {
		return err
	}

	explicit := !opts.Start.IsZero()
	var windows []report.Window
	switch {
	case explicit:
		windows = ExpandWindows(opts.Start, opts.End, rc.LookbackPeriodType)
	case rc.LookbackDays == 0:
		// Kinds with no lookback serve a single pre-generated "latest"
		// feed: the request carries no window and output lands under
		// the run date.
		windows = []report.Window{{}}
	default:
		windows = vendorcentral.CandidateWindows(r.now(), rc.LookbackPeriodType, rc.LookbackDays)
	}
	if len(windows) == 0 {
		return errors.New(errors.ErrorTypeConfig, "empty date range").
			WithDetail("report_type", reportType)
	}

	batch := make([]time.Time, 0, len(windows))
	for _, w := range windows {
		batch = append(batch, r.logicalDate(w))
	}
	if err := rotator.RotateBatch(ctx, countryCode, rc.Table, batch); err != nil {
		r.logger.Warn("rotation failed, continuing with run",
			zap.String("table", rc.Table),
			zap.Error(err))
	}

	present, err := r.presentDates(ctx, layout, countryCode, rc.Table)
	if err != nil {
		return err
	}

	if !explicit {
		return r.runLatest(ctx, adapter, poller, materializer, layout, reportType, countryCode, rc, windows)
	}

	logger := r.logger.With(
		zap.String("report_type", reportType),
		zap.String("country_code", countryCode))

	var firstErr error
	singleWindow := single && len(windows) == 1
	for _, w := range windows {
		if present[w.End.Format(dateLayout)] {
			logger.Info("date already materialized, skipping",
				zap.String("date", w.End.Format(dateLayout)))
			continue
		}

		err := r.processWindow(ctx, adapter, poller, materializer, layout, reportType, countryCode, rc, w, w.End)
		switch {
		case err == nil:
		case errors.Is(err, report.ErrRecorded):
			// Already in the failure log; move to the next window.
		case singleWindow:
			return err
		default:
			logger.Error("date range failed, continuing backfill",
				zap.String("date", w.End.Format(dateLayout)),
				zap.Error(err))
			failures.Record(report.FailureRecord{
				Vendor:      rc.Vendor,
				ReportType:  reportType,
				CountryCode: countryCode,
				Status:      report.StatusFailed,
				Detail:      err.Error(),
				When:        r.now().UTC(),
			})
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// runLatest walks the candidate windows newest-first until one
// materializes; data-not-ready failures step back to an older window.
func (r *Runner) runLatest(ctx context.Context, adapter report.Adapter, poller *report.Poller, materializer *pipeline.Materializer, layout pipeline.Layout, reportType, countryCode string, rc config.ReportConfig, windows []report.Window) error {
	var lastErr error
	for _, w := range windows {
		err := r.processWindow(ctx, adapter, poller, materializer, layout, reportType, countryCode, rc, w, r.logicalDate(w))
		if err == nil {
			return nil
		}
		if errors.Is(err, report.ErrRecorded) {
			return nil
		}
		if errors.IsType(err, errors.ErrorTypeVendor) || errors.IsType(err, errors.ErrorTypePollTimeout) {
			r.logger.Info("date not yet available, walking back",
				zap.String("report_type", reportType),
				zap.String("date", w.End.Format(dateLayout)),
				zap.Error(err))
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

// processWindow runs one report window end to end. logicalDate keys
// the destination object.
func (r *Runner) processWindow(ctx context.Context, adapter report.Adapter, poller *report.Poller, materializer *pipeline.Materializer, layout pipeline.Layout, reportType, countryCode string, rc config.ReportConfig, w report.Window, logicalDate time.Time) error {
	req := report.Request{
		Vendor:      rc.Vendor,
		ReportType:  reportType,
		Window:      w,
		CountryCode: countryCode,
		Options:     rc.Payload,
	}

	jobID, err := adapter.Submit(ctx, req)
	if err != nil {
		return err
	}

	downloads, err := poller.AwaitCompletion(ctx, adapter, req, jobID, report.PollOptions{
		MaxAttempts: rc.MaxPollAttempts,
		Interval:    rc.PollInterval,
		OnFailure:   rc.OnFailure,
	})
	if err != nil {
		return err
	}

	rules, err := pipeline.RulesFor(rc.Rules)
	if err != nil {
		return err
	}

	key := r.objectKey(layout, countryCode, rc.Table, reportType, logicalDate)
	mopts := pipeline.MaterializeOptions{
		FormatHint:      report.Format(rc.Format),
		Rules:           rules,
		CountryCode:     countryCode,
		SortColumns:     true,
		ExpectedColumns: rc.ExpectedColumns,
	}
	for i, dl := range downloads {
		k := key
		if i > 0 {
			k = pipeline.PartKey(key, i)
		}
		if err := materializer.Materialize(ctx, dl, k, mopts); err != nil {
			return err
		}
	}

	if rc.WarehouseTable != "" && r.warehouse != nil {
		if err := r.mirrorToWarehouse(ctx, key, rc.WarehouseTable); err != nil {
			return err
		}
	}
	return nil
}

// logicalDate names the destination date for a window. Undated latest
// feed windows land under the run date.
func (r *Runner) logicalDate(w report.Window) time.Time {
	if w.End.IsZero() {
		return r.now().UTC().Truncate(24 * time.Hour)
	}
	return w.End
}

// mirrorToWarehouse reads the materialized object back and writes it
// to the warehouse table.
func (r *Runner) mirrorToWarehouse(ctx context.Context, key, tableName string) error {
	body, err := r.sink.Get(ctx, key)
	if err != nil {
		return err
	}
	table, err := formats.ReadCSV(body)
	_ = body.Close()
	if err != nil {
		return err
	}
	return r.warehouse.WriteTable(ctx, tableName, table)
}

// objectKey prefers the configured path template, falling back to the
// standard layout.
func (r *Runner) objectKey(layout pipeline.Layout, countryCode, table, reportType string, date time.Time) string {
	if r.cfg.PathTemplate != "" {
		target := report.Target{Bucket: r.cfg.Bucket, PathTemplate: r.cfg.PathTemplate}
		return target.Key(reportType, countryCode, date)
	}
	return layout.ObjectKey(countryCode, table, date)
}

func (r *Runner) presentDates(ctx context.Context, layout pipeline.Layout, countryCode, table string) (map[string]bool, error) {
	keys, err := r.sink.List(ctx, layout.TableDir(countryCode, table))
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(keys))
	for _, key := range keys {
		if date, ok := pipeline.DateFromKey(key, table); ok {
			present[date.Format(dateLayout)] = true
		}
	}
	return present, nil
}
