// Package walmart implements the Walmart advertising report adapter.
// Walmart pre-generates its reports, so there is no asynchronous job
// to poll: Submit synthesizes a job id and the download URLs are
// resolved in a single authenticated call.
package walmart

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

// Vendor is the registry name for this adapter.
const Vendor = "walmart"

const dateLayout = "2006-01-02"

// latestMarker is the synthetic job-id date segment for undated
// (latest available) reports.
const latestMarker = "latest"

func init() {
	report.Register(Vendor, func(env report.Env) (report.Adapter, error) {
		signer, err := NewRSASigner(env.Credentials.ConsumerID, env.Credentials.PrivateKey)
		if err != nil {
			return nil, err
		}
		return New(env, signer)
	})
}

// Adapter fetches pre-generated Walmart reports.
type Adapter struct {
	env    report.Env
	signer Signer
	logger *zap.Logger
}

// New constructs the adapter with an explicit signer.
func New(env report.Env, signer Signer) (*Adapter, error) {
	if env.Country.BaseURL == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "walmart endpoint not configured").
			WithDetail("country_code", env.CountryCode)
	}
	return &Adapter{
		env:    env,
		signer: signer,
		logger: env.Logger.With(zap.String("vendor", Vendor)),
	}, nil
}

// Name implements report.Adapter.
func (a *Adapter) Name() string { return Vendor }

// Submit returns a synthetic job id carrying the requested feed date.
// No vendor call happens here; the report already exists server-side.
func (a *Adapter) Submit(ctx context.Context, req report.Request) (string, error) {
	date := latestMarker
	if !req.Window.End.IsZero() {
		date = req.Window.End.Format(dateLayout)
	}
	jobID := Vendor + ":" + req.ReportType + ":" + date

	a.logger.Info("report resolved without submission",
		zap.String("report_type", req.ReportType),
		zap.String("job_id", jobID))
	return jobID, nil
}

// PollOnce always reports success: pre-generated reports have no
// pending state.
func (a *Adapter) PollOnce(ctx context.Context, jobID string) (report.Status, error) {
	return report.StatusSucceeded, nil
}

// ResolveDownloads fetches the download URL list. Dated requests POST
// the feed date; latest requests are a plain GET.
func (a *Adapter) ResolveDownloads(ctx context.Context, jobID string) ([]report.Download, error) {
	headers, err := a.signer.Headers(time.Now())
	if err != nil {
		return nil, err
	}

	var resolved struct {
		DownloadURLs []struct {
			URL string `json:"url"`
		} `json:"downloadUrls"`
	}

	url := a.env.Country.BaseURL
	if date, ok := feedDate(jobID); ok {
		body := map[string]interface{}{"feedDate": date}
		if err := a.env.HTTP.PostJSON(ctx, url, body, headers, &resolved); err != nil {
			return nil, err
		}
	} else {
		if err := a.env.HTTP.GetJSON(ctx, url, headers, &resolved); err != nil {
			return nil, err
		}
	}

	downloads := make([]report.Download, 0, len(resolved.DownloadURLs))
	for _, d := range resolved.DownloadURLs {
		format, ok := report.FormatFromURL(d.URL)
		if !ok {
			format = report.FormatCSV
		}
		downloads = append(downloads, report.Download{URL: d.URL, Format: format})
	}
	return downloads, nil
}

// feedDate extracts the date segment from a synthetic job id. The
// boolean is false for latest-available requests.
func feedDate(jobID string) (string, bool) {
	for i := len(jobID) - 1; i >= 0; i-- {
		if jobID[i] == ':' {
			date := jobID[i+1:]
			return date, date != latestMarker
		}
	}
	return "", false
}
