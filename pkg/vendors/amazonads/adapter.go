// Package amazonads implements the Amazon Advertising reporting
// adapter: asynchronous report creation against the v3 reporting API,
// profile-scoped requests and gzip-JSON artifacts.
package amazonads

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

// Vendor is the registry name for this adapter.
const Vendor = "amazon_ads"

const dateLayout = "2006-01-02"

// statusVocab maps the vendor's report statuses onto the normalized
// lifecycle.
var statusVocab = map[string]report.Status{
	"PENDING":    report.StatusPending,
	"PROCESSING": report.StatusInProgress,
	"COMPLETED":  report.StatusSucceeded,
	"SUCCESS":    report.StatusSucceeded,
	"FAILURE":    report.StatusFailed,
	"CANCELLED":  report.StatusRejected,
}

func init() {
	report.Register(Vendor, New)
}

// Adapter talks to the Amazon Ads reporting API for one country.
type Adapter struct {
	env    report.Env
	tokens *clients.TokenIssuer
	logger *zap.Logger

	// profileID is resolved lazily from the profiles endpoint and
	// cached for the lifetime of the run.
	profileID string
}

// New constructs the adapter from its environment.
func New(env report.Env) (report.Adapter, error) {
	if env.Credentials.ClientID == "" || env.Credentials.RefreshToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "amazon ads credentials incomplete")
	}
	if env.Country.BaseURL == "" || env.Country.AuthURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "amazon ads endpoints not configured").
			WithDetail("country_code", env.CountryCode)
	}

	tokens := clients.NewTokenIssuer(&clients.TokenConfig{
		TokenURL:     env.Country.AuthURL,
		ClientID:     env.Credentials.ClientID,
		ClientSecret: env.Credentials.ClientSecret,
		RefreshToken: env.Credentials.RefreshToken,
	}, env.HTTP, env.Logger)

	return &Adapter{
		env:    env,
		tokens: tokens,
		logger: env.Logger.With(zap.String("vendor", Vendor)),
	}, nil
}

// Name implements report.Adapter.
func (a *Adapter) Name() string { return Vendor }

// Submit creates a report job and returns the vendor report id.
func (a *Adapter) Submit(ctx context.Context, req report.Request) (string, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return "", err
	}

	start := req.Window.Start.Format(dateLayout)
	end := req.Window.End.Format(dateLayout)

	conf := make(map[string]interface{}, len(a.env.Report.Payload)+3)
	for k, v := range a.env.Report.Payload {
		conf[k] = v
	}
	if len(a.env.Report.Columns) > 0 {
		conf["columns"] = a.env.Report.Columns
	}
	if a.env.Report.TimeUnit != "" {
		conf["timeUnit"] = a.env.Report.TimeUnit
	}
	if _, ok := conf["format"]; !ok {
		conf["format"] = "GZIP_JSON"
	}

	body := map[string]interface{}{
		"name":          fmt.Sprintf("%s_%s_%s", req.ReportType, start, end),
		"startDate":     start,
		"endDate":       end,
		"configuration": conf,
	}

	var created struct {
		ReportID string `json:"reportId"`
	}
	url := a.env.Country.BaseURL + "/reporting/reports"
	if err := a.env.HTTP.PostJSON(ctx, url, body, headers, &created); err != nil {
		return "", err
	}
	if created.ReportID == "" {
		return "", errors.New(errors.ErrorTypeVendor, "report creation response missing reportId")
	}

	a.logger.Info("report submitted",
		zap.String("report_type", req.ReportType),
		zap.String("job_id", created.ReportID),
		zap.String("start", start),
		zap.String("end", end))
	return created.ReportID, nil
}

// PollOnce reads the report status without side effects.
func (a *Adapter) PollOnce(ctx context.Context, jobID string) (report.Status, error) {
	st, err := a.fetchStatus(ctx, jobID)
	if err != nil {
		return "", err
	}
	return report.MapStatus(statusVocab, st.Status)
}

// ResolveDownloads returns the artifact URL(s) for a succeeded job.
// The vendor returns url either as a string or as an array.
func (a *Adapter) ResolveDownloads(ctx context.Context, jobID string) ([]report.Download, error) {
	st, err := a.fetchStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	urls, err := decodeURLField(st.URL)
	if err != nil {
		return nil, err
	}

	downloads := make([]report.Download, 0, len(urls))
	for _, u := range urls {
		downloads = append(downloads, report.Download{URL: u, Format: report.FormatGzipJSON})
	}
	return downloads, nil
}

type statusResponse struct {
	Status string          `json:"status"`
	URL    json.RawMessage `json:"url"`
}

func (a *Adapter) fetchStatus(ctx context.Context, jobID string) (*statusResponse, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	var st statusResponse
	url := a.env.Country.BaseURL + "/reporting/reports/" + jobID
	if err := a.env.HTTP.GetJSON(ctx, url, headers, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func decodeURLField(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	return nil, errors.New(errors.ErrorTypeVendor, "unexpected url field shape").
		WithDetail("url", string(raw))
}

func (a *Adapter) headers(ctx context.Context) (map[string]string, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Amazon-Advertising-API-ClientId": a.env.Credentials.ClientID,
		"Authorization":                   "Bearer " + token,
	}

	profile, err := a.profile(ctx, headers)
	if err != nil {
		return nil, err
	}
	headers["Amazon-Advertising-API-Scope"] = profile
	return headers, nil
}

// profile resolves the advertising profile for the adapter's country
// and account type. The vendor reports the UK as "UK" while the rest
// of the configuration uses ISO "GB".
func (a *Adapter) profile(ctx context.Context, headers map[string]string) (string, error) {
	if a.profileID != "" {
		return a.profileID, nil
	}

	var profiles []struct {
		ProfileID   int64  `json:"profileId"`
		CountryCode string `json:"countryCode"`
		AccountInfo struct {
			Type string `json:"type"`
		} `json:"accountInfo"`
	}
	if err := a.env.HTTP.GetJSON(ctx, a.env.Country.ProfileURL, headers, &profiles); err != nil {
		return "", err
	}

	want := vendorCountry(a.env.CountryCode)
	for _, p := range profiles {
		if p.CountryCode != want {
			continue
		}
		if a.env.Country.ReportService != "" && p.AccountInfo.Type != a.env.Country.ReportService {
			continue
		}
		a.profileID = strconv.FormatInt(p.ProfileID, 10)
		a.logger.Debug("profile resolved",
			zap.String("country_code", a.env.CountryCode),
			zap.String("profile_id", a.profileID))
		return a.profileID, nil
	}

	return "", errors.New(errors.ErrorTypeConfig, "no advertising profile for country").
		WithDetail("country_code", a.env.CountryCode).
		WithDetail("account_type", a.env.Country.ReportService)
}

func vendorCountry(code string) string {
	if code == "GB" {
		return "UK"
	}
	return code
}
