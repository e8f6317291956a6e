// Package instacart implements the Instacart Ads reporting adapter.
package instacart

import (
	"context"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

// Vendor is the registry name for this adapter.
const Vendor = "instacart"

const dateLayout = "2006-01-02"

// The vendor reports status in lowercase.
var statusVocab = map[string]report.Status{
	"pending":     report.StatusPending,
	"processing":  report.StatusInProgress,
	"in_progress": report.StatusInProgress,
	"completed":   report.StatusSucceeded,
	"failed":      report.StatusFailed,
	"cancelled":   report.StatusRejected,
}

func init() {
	report.Register(Vendor, New)
}

// Adapter talks to the Instacart Ads reporting API.
type Adapter struct {
	env    report.Env
	tokens *clients.TokenIssuer
	logger *zap.Logger
}

// New constructs the adapter from its environment.
func New(env report.Env) (report.Adapter, error) {
	if env.Credentials.ClientID == "" || env.Credentials.RefreshToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "instacart credentials incomplete")
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

// Submit creates a report job for the request window.
func (a *Adapter) Submit(ctx context.Context, req report.Request) (string, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return "", err
	}

	body := make(map[string]interface{}, len(a.env.Report.Payload)+1)
	for k, v := range a.env.Report.Payload {
		body[k] = v
	}
	body["date_range"] = map[string]string{
		"start_date": req.Window.Start.Format(dateLayout),
		"end_date":   req.Window.End.Format(dateLayout),
	}

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := a.env.HTTP.PostJSON(ctx, a.reportsURL(""), body, headers, &created); err != nil {
		return "", err
	}
	if created.Data.ID == "" {
		return "", errors.New(errors.ErrorTypeVendor, "report creation response missing data.id")
	}

	a.logger.Info("report submitted",
		zap.String("report_type", req.ReportType),
		zap.String("job_id", created.Data.ID))
	return created.Data.ID, nil
}

// PollOnce reads the report status.
func (a *Adapter) PollOnce(ctx context.Context, jobID string) (report.Status, error) {
	st, err := a.fetchReport(ctx, jobID)
	if err != nil {
		return "", err
	}
	return report.MapStatus(statusVocab, st.Data.Status)
}

// ResolveDownloads returns the report artifact URL.
func (a *Adapter) ResolveDownloads(ctx context.Context, jobID string) ([]report.Download, error) {
	st, err := a.fetchReport(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if st.Data.ReportURL == "" {
		return nil, errors.New(errors.ErrorTypeVendor, "completed report has no report_url").
			WithDetail("job_id", jobID)
	}

	format, ok := report.FormatFromURL(st.Data.ReportURL)
	if !ok {
		format = report.FormatCSV
	}
	return []report.Download{{URL: st.Data.ReportURL, Format: format}}, nil
}

type reportResponse struct {
	Data struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		ReportURL string `json:"report_url"`
	} `json:"data"`
}

func (a *Adapter) fetchReport(ctx context.Context, jobID string) (*reportResponse, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	var st reportResponse
	if err := a.env.HTTP.GetJSON(ctx, a.reportsURL(jobID), headers, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (a *Adapter) reportsURL(jobID string) string {
	url := a.env.Country.BaseURL + "/api/v2/reports"
	if jobID != "" {
		url += "/" + jobID
	}
	return url
}

func (a *Adapter) headers(ctx context.Context) (map[string]string, error) {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"Authorization": "Bearer " + token,
	}, nil
}
