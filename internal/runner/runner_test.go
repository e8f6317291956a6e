package runner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/formats"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/storage"
)

// fakeAdapter completes immediately; submitErr simulates per-window
// vendor failures for walkback tests.
type fakeAdapter struct {
	mu        sync.Mutex
	submitted []report.Window
	submitErr func(w report.Window) error
	url       string
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Submit(ctx context.Context, req report.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		if err := f.submitErr(req.Window); err != nil {
			return "", err
		}
	}
	f.submitted = append(f.submitted, req.Window)
	return "job-" + req.Window.End.Format("2006-01-02"), nil
}

func (f *fakeAdapter) PollOnce(ctx context.Context, jobID string) (report.Status, error) {
	return report.StatusSucceeded, nil
}

func (f *fakeAdapter) ResolveDownloads(ctx context.Context, jobID string) ([]report.Download, error) {
	return []report.Download{{URL: f.url, Format: report.FormatCSV}}, nil
}

type staticCreds struct{}

func (staticCreds) Credentials(vendor string) (config.Credentials, error) {
	return config.Credentials{ClientID: "cid"}, nil
}

func artifactServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("campaign,spend\nc1,10.5\n"))
	}))
}

func testConfig(vendor string) *config.Config {
	return &config.Config{
		Source:     "src",
		Bucket:     "bkt",
		RootPrefix: "landing",
		Countries:  map[string]config.CountryConfig{"US": {}},
		Reports: map[string]config.ReportConfig{
			"daily": {
				Vendor:          vendor,
				Table:           "t",
				PollInterval:    time.Millisecond,
				MaxPollAttempts: 3,
				OnFailure:       config.OnFailureRaise,
				LookbackDays:    3,
			},
		},
	}
}

func newRunner(t *testing.T, cfg *config.Config, sink storage.Sink) *Runner {
	logger := zaptest.NewLogger(t)
	r := New(cfg, staticCreds{}, sink, clients.NewHTTPClient(nil, logger), logger)
	r.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRunBackfillSkipsPresentDates(t *testing.T) {
	server := artifactServer(t)
	defer server.Close()

	adapter := &fakeAdapter{url: server.URL}
	report.Register("fake_backfill", func(env report.Env) (report.Adapter, error) {
		return adapter, nil
	})

	ctx := context.Background()
	sink := storage.NewMemorySink()
	require.NoError(t, sink.Put(ctx, "landing/src/US/t/t_2024-01-01.csv", strings.NewReader("campaign,spend\nold,1\n")))

	r := newRunner(t, testConfig("fake_backfill"), sink)
	err := r.Run(ctx, Options{
		ReportType: "daily",
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	// 01-01 was already present, so only two windows were submitted.
	require.Len(t, adapter.submitted, 2)
	assert.Equal(t, "2024-01-02", adapter.submitted[0].End.Format("2006-01-02"))
	assert.Equal(t, "2024-01-03", adapter.submitted[1].End.Format("2006-01-02"))

	for _, date := range []string{"2024-01-02", "2024-01-03"} {
		data, ok := sink.Bytes("landing/src/US/t/t_" + date + ".csv")
		require.True(t, ok, date)
		assert.Contains(t, string(data), "CAMPAIGN")
		assert.Contains(t, string(data), "COUNTRY_CODE")
	}

	// 01-01 is in the batch date set, so rotation left it alone.
	_, ok := sink.Bytes("landing/src/US/t/t_2024-01-01.csv")
	assert.True(t, ok)
}

func TestRunBackfillRecordsFailuresAndContinues(t *testing.T) {
	adapter := &fakeAdapter{
		submitErr: func(w report.Window) error {
			return errors.New(errors.ErrorTypeVendor, "report generation failed")
		},
	}
	report.Register("fake_fail", func(env report.Env) (report.Adapter, error) {
		return adapter, nil
	})

	ctx := context.Background()
	sink := storage.NewMemorySink()
	r := newRunner(t, testConfig("fake_fail"), sink)
	err := r.Run(ctx, Options{
		ReportType: "daily",
		Start:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:        time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeVendor))

	// Both failed dates landed in the flushed failure log.
	log, ok := sink.Bytes("landing/src/log/log_10012024.csv")
	require.True(t, ok)
	lines := strings.Split(strings.TrimSpace(string(log)), "\n")
	assert.Len(t, lines, 3)
	assert.Contains(t, lines[0], "REPORT_TYPE")
}

func TestRunLatestWalksBackToAvailableDate(t *testing.T) {
	server := artifactServer(t)
	defer server.Close()

	// Data exists only up to 2024-01-07; newer dates are rejected.
	available := time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC)
	adapter := &fakeAdapter{
		url: server.URL,
		submitErr: func(w report.Window) error {
			if w.End.After(available) {
				return errors.New(errors.ErrorTypeVendor, "report data not yet available")
			}
			return nil
		},
	}
	report.Register("fake_latest", func(env report.Env) (report.Adapter, error) {
		return adapter, nil
	})

	ctx := context.Background()
	sink := storage.NewMemorySink()
	r := newRunner(t, testConfig("fake_latest"), sink)
	require.NoError(t, r.Run(ctx, Options{ReportType: "daily"}))

	// Walked back from 01-09 to the newest available date.
	require.Len(t, adapter.submitted, 1)
	assert.Equal(t, "2024-01-07", adapter.submitted[0].End.Format("2006-01-02"))

	_, ok := sink.Bytes("landing/src/US/t/t_2024-01-07.csv")
	assert.True(t, ok)
}

type recordingWarehouse struct {
	mu     sync.Mutex
	tables map[string]*formats.Table
}

func (w *recordingWarehouse) WriteTable(ctx context.Context, tableName string, t *formats.Table) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.tables == nil {
		w.tables = map[string]*formats.Table{}
	}
	w.tables[tableName] = t
	return nil
}

func TestRunMirrorsToWarehouseTable(t *testing.T) {
	server := artifactServer(t)
	defer server.Close()

	adapter := &fakeAdapter{url: server.URL}
	report.Register("fake_warehouse", func(env report.Env) (report.Adapter, error) {
		return adapter, nil
	})

	cfg := testConfig("fake_warehouse")
	rc := cfg.Reports["daily"]
	rc.WarehouseTable = "STG_DAILY"
	cfg.Reports["daily"] = rc

	ctx := context.Background()
	sink := storage.NewMemorySink()
	warehouse := &recordingWarehouse{}
	r := newRunner(t, cfg, sink).WithWarehouse(warehouse)

	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, r.Run(ctx, Options{ReportType: "daily", Start: day, End: day}))

	table, ok := warehouse.tables["STG_DAILY"]
	require.True(t, ok)
	assert.Contains(t, table.Columns, "CAMPAIGN")
	assert.Contains(t, table.Columns, "COUNTRY_CODE")
	require.Len(t, table.Rows, 1)
}

func TestRunLatestFeedUsesUndatedWindow(t *testing.T) {
	server := artifactServer(t)
	defer server.Close()

	adapter := &fakeAdapter{url: server.URL}
	report.Register("fake_feed", func(env report.Env) (report.Adapter, error) {
		return adapter, nil
	})

	// No lookback configured: the kind serves a single pre-generated
	// feed and the request carries no window.
	cfg := testConfig("fake_feed")
	rc := cfg.Reports["daily"]
	rc.LookbackDays = 0
	cfg.Reports["daily"] = rc

	ctx := context.Background()
	sink := storage.NewMemorySink()
	r := newRunner(t, cfg, sink)
	require.NoError(t, r.Run(ctx, Options{ReportType: "daily"}))

	require.Len(t, adapter.submitted, 1)
	assert.True(t, adapter.submitted[0].End.IsZero())

	// Output lands under the run date.
	_, ok := sink.Bytes("landing/src/US/t/t_2024-01-10.csv")
	assert.True(t, ok)
}

func TestRunSingleWindowFailurePropagates(t *testing.T) {
	adapter := &fakeAdapter{
		submitErr: func(w report.Window) error {
			return errors.New(errors.ErrorTypeAuth, "credentials rejected")
		},
	}
	report.Register("fake_auth", func(env report.Env) (report.Adapter, error) {
		return adapter, nil
	})

	ctx := context.Background()
	r := newRunner(t, testConfig("fake_auth"), storage.NewMemorySink())
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	err := r.Run(ctx, Options{ReportType: "daily", Start: day, End: day})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuth))
}

func TestRunRejectsUnknownRuleName(t *testing.T) {
	adapter := &fakeAdapter{}
	report.Register("fake_rules", func(env report.Env) (report.Adapter, error) {
		return adapter, nil
	})

	cfg := testConfig("fake_rules")
	rc := cfg.Reports["daily"]
	rc.Rules = []string{"no_such_rule"}
	cfg.Reports["daily"] = rc

	r := newRunner(t, cfg, storage.NewMemorySink())
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	err := r.Run(context.Background(), Options{ReportType: "daily", Start: day, End: day})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Empty(t, adapter.submitted)
}

func TestExpandWindowsDay(t *testing.T) {
	windows := ExpandWindows(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		config.PeriodDay,
	)
	require.Len(t, windows, 3)
	assert.Equal(t, windows[0].Start, windows[0].End)
	assert.Equal(t, "2024-01-02", windows[1].End.Format("2006-01-02"))
}

func TestExpandWindowsWeekWithShortTail(t *testing.T) {
	windows := ExpandWindows(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		config.PeriodWeek,
	)
	require.Len(t, windows, 2)
	assert.Equal(t, "2024-01-07", windows[0].End.Format("2006-01-02"))
	assert.Equal(t, "2024-01-08", windows[1].Start.Format("2006-01-02"))
	assert.Equal(t, "2024-01-10", windows[1].End.Format("2006-01-02"))
}
