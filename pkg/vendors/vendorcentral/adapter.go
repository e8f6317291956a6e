// Package vendorcentral implements the Amazon Selling Partner API
// adapter for Vendor Central retail reports. Requests carry both an
// LWA access token and an AWS SigV4 signature.
package vendorcentral

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/clients"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

// Vendor is the registry name for this adapter.
const Vendor = "vendor_central"

const (
	reportsPath   = "/reports/2021-06-30/reports"
	documentsPath = "/reports/2021-06-30/documents"

	timestampLayout = "2006-01-02T15:04:05Z"
)

var statusVocab = map[string]report.Status{
	"IN_QUEUE":    report.StatusPending,
	"IN_PROGRESS": report.StatusInProgress,
	"DONE":        report.StatusSucceeded,
	"FATAL":       report.StatusFailed,
	"CANCELLED":   report.StatusRejected,
}

func init() {
	report.Register(Vendor, New)
}

// Adapter talks to the SP-API reports resource for one marketplace.
type Adapter struct {
	env    report.Env
	tokens *clients.TokenIssuer
	signer *clients.SigV4Signer
	logger *zap.Logger
}

// New constructs the adapter from its environment.
func New(env report.Env) (report.Adapter, error) {
	if env.Credentials.ClientID == "" || env.Credentials.RefreshToken == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "sp-api credentials incomplete")
	}
	if env.Credentials.AccessKeyID == "" || env.Credentials.SecretAccessKey == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "sp-api signing credentials incomplete")
	}
	if len(env.Country.MarketplaceIDs) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "sp-api marketplace not configured").
			WithDetail("country_code", env.CountryCode)
	}

	tokens := clients.NewTokenIssuer(&clients.TokenConfig{
		TokenURL:     env.Country.AuthURL,
		ClientID:     env.Credentials.ClientID,
		ClientSecret: env.Credentials.ClientSecret,
		RefreshToken: env.Credentials.RefreshToken,
	}, env.HTTP, env.Logger)

	signer := clients.NewSigV4Signer(
		env.Credentials.AccessKeyID,
		env.Credentials.SecretAccessKey,
		env.Credentials.SessionToken,
		env.Country.Region,
	)

	return &Adapter{
		env:    env,
		tokens: tokens,
		signer: signer,
		logger: env.Logger.With(zap.String("vendor", Vendor)),
	}, nil
}

// Name implements report.Adapter.
func (a *Adapter) Name() string { return Vendor }

// Submit creates a report. Quota rejections are retried within the
// shared bounded retry policy rather than looping until the quota
// happens to clear.
func (a *Adapter) Submit(ctx context.Context, req report.Request) (string, error) {
	reportType, ok := a.env.Report.Payload["report_type"].(string)
	if !ok || reportType == "" {
		return "", errors.New(errors.ErrorTypeConfig, "sp-api report has no report_type").
			WithDetail("report_type", req.ReportType)
	}

	options := map[string]interface{}{}
	if raw, ok := a.env.Report.Payload["report_options"].(map[string]interface{}); ok {
		for k, v := range raw {
			options[k] = v
		}
	}

	body := map[string]interface{}{
		"reportType":     reportType,
		"marketplaceIds": a.env.Country.MarketplaceIDs,
	}
	if a.env.Report.CampaignWindow {
		// Campaign reports express their window as report options, not
		// as a data time range.
		options["campaignStartDateFrom"] = req.Window.Start.UTC().Format(timestampLayout)
		options["campaignStartDateTo"] = req.Window.End.UTC().Format(timestampLayout)
	} else {
		body["dataStartTime"] = req.Window.Start.UTC().Format(timestampLayout)
		body["dataEndTime"] = req.Window.End.UTC().Format(timestampLayout)
	}
	if len(options) > 0 {
		body["reportOptions"] = options
	}

	var created struct {
		ReportID string `json:"reportId"`
	}
	err := a.env.Retry.ExecuteWithCondition(ctx, func() error {
		return a.doSigned(ctx, http.MethodPost, a.env.Country.BaseURL+reportsPath, body, &created)
	}, retryableOrQuota)
	if err != nil {
		return "", err
	}
	if created.ReportID == "" {
		return "", errors.New(errors.ErrorTypeVendor, "report creation response missing reportId")
	}

	a.logger.Info("report submitted",
		zap.String("report_type", req.ReportType),
		zap.String("job_id", created.ReportID))
	return created.ReportID, nil
}

// PollOnce reads the report's processing status.
func (a *Adapter) PollOnce(ctx context.Context, jobID string) (report.Status, error) {
	st, err := a.fetchReport(ctx, jobID)
	if err != nil {
		return "", err
	}
	return report.MapStatus(statusVocab, st.ProcessingStatus)
}

// ResolveDownloads resolves the report document to its signed URL.
func (a *Adapter) ResolveDownloads(ctx context.Context, jobID string) ([]report.Download, error) {
	st, err := a.fetchReport(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if st.ReportDocumentID == "" {
		return nil, errors.New(errors.ErrorTypeVendor, "done report has no reportDocumentId").
			WithDetail("job_id", jobID)
	}

	var doc struct {
		URL                  string `json:"url"`
		CompressionAlgorithm string `json:"compressionAlgorithm"`
	}
	url := a.env.Country.BaseURL + documentsPath + "/" + st.ReportDocumentID
	if err := a.doSigned(ctx, http.MethodGet, url, nil, &doc); err != nil {
		return nil, err
	}
	if doc.URL == "" {
		return nil, errors.New(errors.ErrorTypeVendor, "report document has no url").
			WithDetail("document_id", st.ReportDocumentID)
	}

	format, ok := report.FormatFromURL(doc.URL)
	if !ok {
		format = report.FormatCSV
	}
	if doc.CompressionAlgorithm == "GZIP" {
		format = report.FormatGzipJSON
	}
	return []report.Download{{URL: doc.URL, Format: format}}, nil
}

type reportResource struct {
	ProcessingStatus string `json:"processingStatus"`
	ReportDocumentID string `json:"reportDocumentId"`
}

func (a *Adapter) fetchReport(ctx context.Context, jobID string) (*reportResource, error) {
	var st reportResource
	url := a.env.Country.BaseURL + reportsPath + "/" + jobID
	err := a.env.Retry.ExecuteWithCondition(ctx, func() error {
		return a.doSigned(ctx, http.MethodGet, url, nil, &st)
	}, retryableOrQuota)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// doSigned issues one SP-API request with the access token header and
// a SigV4 signature over the exact payload bytes.
func (a *Adapter) doSigned(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	token, err := a.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeData, "encode request body")
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "build request")
	}
	req.Header.Set("x-amz-access-token", token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := a.signer.Sign(ctx, req, payload); err != nil {
		return err
	}

	resp, err := a.env.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if err := clients.CheckStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrorTypeVendor, "decode response body")
	}
	return nil
}

// retryableOrQuota extends the default retry condition to SP-API quota
// rejections, which arrive as a 403 with a QuotaExceeded error code.
func retryableOrQuota(err error) bool {
	if errors.IsRetryable(err) {
		return true
	}
	var typed *errors.Error
	if errors.As(err, &typed) {
		if body, ok := typed.Details["body"].(string); ok {
			return strings.Contains(body, "QuotaExceeded")
		}
	}
	return false
}
