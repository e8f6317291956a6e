// Package amc implements the Amazon Marketing Cloud adapter: SQL
// workflow executions against an AMC instance with a two-step download
// URL resolution.
package amc

import (
	"context"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

// Vendor is the registry name for this adapter.
const Vendor = "amc"

// AMC time window values carry a wall-clock component even though the
// granularity is a day.
const timestampLayout = "2006-01-02T00:00:00"

var statusVocab = map[string]report.Status{
	"PENDING":   report.StatusPending,
	"RUNNING":   report.StatusInProgress,
	"SUCCEEDED": report.StatusSucceeded,
	"FAILED":    report.StatusFailed,
	"REJECTED":  report.StatusRejected,
	"CANCELLED": report.StatusRejected,
}

func init() {
	report.Register(Vendor, New)
}

// Adapter runs workflow executions against one AMC instance.
type Adapter struct {
	env    report.Env
	tokens *clients.TokenIssuer
	logger *zap.Logger
}

// New constructs the adapter from its environment.
func New(env report.Env) (report.Adapter, error) {
	if env.Credentials.ClientID == "" || env.Credentials.RefreshToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "amc credentials incomplete")
	}
	if env.Country.InstanceID == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "amc instance not configured").
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

// Submit starts a workflow execution for the request window.
func (a *Adapter) Submit(ctx context.Context, req report.Request) (string, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return "", err
	}

	query, ok := a.env.Report.Payload["sql_query"].(string)
	if !ok || query == "" {
		return "", errors.New(errors.ErrorTypeConfig, "amc report has no sql_query").
			WithDetail("report_type", req.ReportType)
	}

	windowType := a.env.Country.TimeWindowType
	if windowType == "" {
		windowType = "EXPLICIT"
	}

	body := map[string]interface{}{
		"workflow": map[string]interface{}{
			"sqlQuery": query,
		},
		"timeWindowType":                  windowType,
		"timeWindowStart":                 req.Window.Start.Format(timestampLayout),
		"timeWindowEnd":                   req.Window.End.Format(timestampLayout),
		"ignoreDataGaps":                  true,
		"workflowExecutionTimeoutSeconds": 86400,
	}

	var created struct {
		WorkflowExecutionID string `json:"workflowExecutionId"`
	}
	if err := a.env.HTTP.PostJSON(ctx, a.executionsURL(""), body, headers, &created); err != nil {
		return "", err
	}
	if created.WorkflowExecutionID == "" {
		return "", errors.New(errors.ErrorTypeVendor, "workflow execution response missing workflowExecutionId")
	}

	a.logger.Info("workflow execution submitted",
		zap.String("report_type", req.ReportType),
		zap.String("job_id", created.WorkflowExecutionID))
	return created.WorkflowExecutionID, nil
}

// PollOnce reads the execution status.
func (a *Adapter) PollOnce(ctx context.Context, jobID string) (report.Status, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return "", err
	}

	var st struct {
		Status string `json:"status"`
	}
	if err := a.env.HTTP.GetJSON(ctx, a.executionsURL(jobID), headers, &st); err != nil {
		return "", err
	}
	return report.MapStatus(statusVocab, st.Status)
}

// ResolveDownloads fetches the signed artifact URLs. AMC requires one
// further authenticated GET on the execution's downloadUrls resource.
func (a *Adapter) ResolveDownloads(ctx context.Context, jobID string) ([]report.Download, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return nil, err
	}

	var resolved struct {
		DownloadURLs []string `json:"downloadUrls"`
	}
	if err := a.env.HTTP.GetJSON(ctx, a.executionsURL(jobID)+"/downloadUrls", headers, &resolved); err != nil {
		return nil, err
	}

	downloads := make([]report.Download, 0, len(resolved.DownloadURLs))
	for _, u := range resolved.DownloadURLs {
		format, ok := report.FormatFromURL(u)
		if !ok {
			format = report.FormatCSV
		}
		downloads = append(downloads, report.Download{URL: u, Format: format})
	}
	return downloads, nil
}

func (a *Adapter) executionsURL(jobID string) string {
	url := a.env.Country.BaseURL + "/amc/reporting/" + a.env.Country.InstanceID + "/workflowExecutions"
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

	headers := map[string]string{
		"Amazon-Advertising-API-ClientId": a.env.Credentials.ClientID,
		"Authorization":                   "Bearer " + token,
	}
	if len(a.env.Country.MarketplaceIDs) > 0 {
		headers["Amazon-Advertising-API-MarketplaceId"] = a.env.Country.MarketplaceIDs[0]
	}
	if a.env.Country.EntityID != "" {
		headers["Amazon-Advertising-API-AdvertiserId"] = a.env.Country.EntityID
	}
	return headers, nil
}
