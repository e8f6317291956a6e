package amc

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
			AuthURL:        baseURL + "/token",
			BaseURL:        baseURL,
			InstanceID:     "amc-inst-1",
			EntityID:       "ENTITY1",
			MarketplaceIDs: []string{"ATVPDKIKX0DER"},
			TimeWindowType: "EXPLICIT",
		},
		ReportType: "attribution",
		Report: config.ReportConfig{
			Vendor:  Vendor,
			Payload: map[string]interface{}{"sql_query": "SELECT campaign, SUM(impressions) FROM impressions GROUP BY 1"},
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

func TestSubmitStartsWorkflowExecution(t *testing.T) {
	var created map[string]interface{}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/amc/reporting/amc-inst-1/workflowExecutions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ATVPDKIKX0DER", r.Header.Get("Amazon-Advertising-API-MarketplaceId"))
		assert.Equal(t, "ENTITY1", r.Header.Get("Amazon-Advertising-API-AdvertiserId"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		_ = json.NewEncoder(w).Encode(map[string]string{"workflowExecutionId": "wf-9"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	jobID, err := adapter.Submit(context.Background(), report.Request{
		Vendor:     Vendor,
		ReportType: "attribution",
		Window: report.Window{
			Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 3, 7, 0, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "wf-9", jobID)

	assert.Equal(t, "2024-03-01T00:00:00", created["timeWindowStart"])
	assert.Equal(t, "2024-03-07T00:00:00", created["timeWindowEnd"])
	assert.Equal(t, "EXPLICIT", created["timeWindowType"])
	workflow := created["workflow"].(map[string]interface{})
	assert.Contains(t, workflow["sqlQuery"], "SELECT")
}

func TestSubmitWithoutQueryIsConfigError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	adapter.env.Report.Payload = map[string]interface{}{}

	_, err := adapter.Submit(context.Background(), report.Request{ReportType: "attribution"})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestResolveDownloadsFollowsDownloadURLs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/amc/reporting/amc-inst-1/workflowExecutions/wf-9", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "SUCCEEDED"})
	})
	mux.HandleFunc("/amc/reporting/amc-inst-1/workflowExecutions/wf-9/downloadUrls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string][]string{
			"downloadUrls": {"https://cdn.example/wf-9.csv"},
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	adapter := newAdapter(t, server.URL)
	ctx := context.Background()

	status, err := adapter.PollOnce(ctx, "wf-9")
	require.NoError(t, err)
	assert.Equal(t, report.StatusSucceeded, status)

	downloads, err := adapter.ResolveDownloads(ctx, "wf-9")
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, report.FormatCSV, downloads[0].Format)
}
