package instacart

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

func newAdapter(t *testing.T, baseURL string) *Adapter {
	logger := zaptest.NewLogger(t)
	env := report.Env{
		CountryCode: "US",
		Country: config.CountryConfig{
			AuthURL: baseURL + "/token",
			BaseURL: baseURL,
		},
		ReportType: "campaign_metrics",
		Report: config.ReportConfig{
			Vendor: Vendor,
			Payload: map[string]interface{}{
				"timespan":   "day",
				"dimensions": []string{"campaign"},
				"metrics":    []string{"spend", "attributed_sales"},
			},
		},
		Credentials: config.Credentials{ClientID: "cid", ClientSecret: "sec", RefreshToken: "ref"},
		HTTP:        clients.NewHTTPClient(nil, logger),
		Retry:       clients.DefaultRetryPolicy(),
		Logger:      logger,
	}
	adapter, err := New(env)
	require.NoError(t, err)
	return adapter.(*Adapter)
}

func newReportsAPI(t *testing.T) (*httptest.Server, *map[string]interface{}, *string) {
	created := map[string]interface{}{}
	status := "pending"

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/api/v2/reports", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		_, _ = w.Write([]byte(`{"data": {"id": "ic-1", "status": "pending"}}`))
	})
	mux.HandleFunc("/api/v2/reports/ic-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{
				"id":         "ic-1",
				"status":     status,
				"report_url": "https://cdn.example/ic-1.csv",
			},
		})
	})

	server := httptest.NewServer(mux)
	return server, &created, &status
}

func TestSubmitBuildsDateRange(t *testing.T) {
	server, created, _ := newReportsAPI(t)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	jobID, err := adapter.Submit(context.Background(), report.Request{
		ReportType: "campaign_metrics",
		Window: report.Window{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ic-1", jobID)

	dateRange := (*created)["date_range"].(map[string]interface{})
	assert.Equal(t, "2024-03-01", dateRange["start_date"])
	assert.Equal(t, "2024-03-07", dateRange["end_date"])
	assert.Equal(t, "day", (*created)["timespan"])
}

func TestPollOnceLowercaseVocabulary(t *testing.T) {
	server, _, status := newReportsAPI(t)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	ctx := context.Background()

	cases := map[string]report.Status{
		"pending":    report.StatusPending,
		"processing": report.StatusInProgress,
		"completed":  report.StatusSucceeded,
		"failed":     report.StatusFailed,
		"cancelled":  report.StatusRejected,
	}
	for raw, want := range cases {
		*status = raw
		got, err := adapter.PollOnce(ctx, "ic-1")
		require.NoError(t, err)
		assert.Equal(t, want, got, raw)
	}

	*status = "EXPLODED"
	_, err := adapter.PollOnce(ctx, "ic-1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeVendor))
}

func TestResolveDownloadsReportURL(t *testing.T) {
	server, _, status := newReportsAPI(t)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	*status = "completed"

	downloads, err := adapter.ResolveDownloads(context.Background(), "ic-1")
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, "https://cdn.example/ic-1.csv", downloads[0].URL)
	assert.Equal(t, report.FormatCSV, downloads[0].Format)
}
