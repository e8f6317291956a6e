package amazonads

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

type vendorAPI struct {
	mux *http.ServeMux

	// captured create body
	created map[string]interface{}

	status string
	url    interface{}
}

func newVendorAPI(t *testing.T) (*vendorAPI, *httptest.Server) {
	api := &vendorAPI{mux: http.NewServeMux(), status: "PENDING"}

	api.mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok", "expires_in": 3600,
		})
	})
	api.mux.HandleFunc("/v2/profiles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[
			{"profileId": 11, "countryCode": "US", "accountInfo": {"type": "vendor"}},
			{"profileId": 22, "countryCode": "UK", "accountInfo": {"type": "seller"}},
			{"profileId": 33, "countryCode": "UK", "accountInfo": {"type": "vendor"}}
		]`))
	})
	api.mux.HandleFunc("/reporting/reports", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&api.created))
		_ = json.NewEncoder(w).Encode(map[string]string{"reportId": "r-1"})
	})
	api.mux.HandleFunc("/reporting/reports/r-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": api.status, "url": api.url,
		})
	})

	server := httptest.NewServer(api.mux)
	return api, server
}

func newAdapter(t *testing.T, baseURL string) *Adapter {
	logger := zaptest.NewLogger(t)
	env := report.Env{
		CountryCode: "GB",
		Country: config.CountryConfig{
			AuthURL:       baseURL + "/token",
			BaseURL:       baseURL,
			ProfileURL:    baseURL + "/v2/profiles",
			ReportService: "vendor",
		},
		ReportType: "sp_campaigns",
		Report: config.ReportConfig{
			Vendor:   Vendor,
			Payload:  map[string]interface{}{"adProduct": "SPONSORED_PRODUCTS", "reportTypeId": "spCampaigns"},
			Columns:  []string{"campaignId", "impressions"},
			TimeUnit: "DAILY",
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

func TestSubmitResolvesProfileAndCreatesReport(t *testing.T) {
	api, server := newVendorAPI(t)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	day := time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC)
	jobID, err := adapter.Submit(context.Background(), report.Request{
		Vendor:     Vendor,
		ReportType: "sp_campaigns",
		Window:     report.Window{Start: day, End: day},
	})
	require.NoError(t, err)
	assert.Equal(t, "r-1", jobID)

	// GB maps to the vendor's UK profile of the configured account type.
	assert.Equal(t, "33", adapter.profileID)

	assert.Equal(t, "2024-03-07", api.created["startDate"])
	assert.Equal(t, "2024-03-07", api.created["endDate"])
	conf := api.created["configuration"].(map[string]interface{})
	assert.Equal(t, "GZIP_JSON", conf["format"])
	assert.Equal(t, "DAILY", conf["timeUnit"])
	assert.Equal(t, "spCampaigns", conf["reportTypeId"])
	assert.Len(t, conf["columns"], 2)
}

func TestPollOnceMapsVendorStatuses(t *testing.T) {
	api, server := newVendorAPI(t)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	ctx := context.Background()

	cases := map[string]report.Status{
		"PENDING":    report.StatusPending,
		"PROCESSING": report.StatusInProgress,
		"COMPLETED":  report.StatusSucceeded,
		"FAILURE":    report.StatusFailed,
		"CANCELLED":  report.StatusRejected,
	}
	for raw, want := range cases {
		api.status = raw
		got, err := adapter.PollOnce(ctx, "r-1")
		require.NoError(t, err)
		assert.Equal(t, want, got, raw)
	}

	api.status = "SOMETHING_NEW"
	_, err := adapter.PollOnce(ctx, "r-1")
	assert.True(t, errors.IsType(err, errors.ErrorTypeVendor))
}

func TestResolveDownloadsStringAndArrayShapes(t *testing.T) {
	api, server := newVendorAPI(t)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	ctx := context.Background()
	api.status = "COMPLETED"

	api.url = "https://cdn.example/report.json.gz"
	downloads, err := adapter.ResolveDownloads(ctx, "r-1")
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, report.FormatGzipJSON, downloads[0].Format)

	api.url = []string{"https://cdn.example/a.gz", "https://cdn.example/b.gz"}
	downloads, err = adapter.ResolveDownloads(ctx, "r-1")
	require.NoError(t, err)
	assert.Len(t, downloads, 2)
}
