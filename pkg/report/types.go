// Package report defines the vendor-neutral report domain model: the
// request/job/download types, the adapter contract every vendor
// implements and the poller that drives the async report protocol.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// Status is the normalized lifecycle state of a report job. Vendor
// vocabularies are mapped onto it at the adapter boundary.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSucceeded  Status = "SUCCEEDED"
	StatusFailed     Status = "FAILED"
	StatusRejected   Status = "REJECTED"
	// StatusTimedOut is synthesized client-side when the poll budget is
	// exhausted. No vendor string maps to it.
	StatusTimedOut Status = "TIMED_OUT"
)

// Terminal reports whether no further polling can change the status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusRejected, StatusTimedOut:
		return true
	}
	return false
}

// MapStatus normalizes a raw vendor status through a vocabulary map.
// Unmapped strings are vendor errors, never silently pending.
func MapStatus(vocab map[string]Status, raw string) (Status, error) {
	if s, ok := vocab[raw]; ok {
		return s, nil
	}
	return "", errors.New(errors.ErrorTypeVendor, "unrecognized report status").
		WithDetail("status", raw)
}

// Window is the inclusive report date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Request describes one report to generate. It is immutable once
// submitted.
type Request struct {
	Vendor      string
	ReportType  string
	Window      Window
	CountryCode string

	// Options carries the vendor-specific payload template from
	// configuration.
	Options map[string]interface{}
}

// Job is a submitted report job.
type Job struct {
	ID        string
	Status    Status
	CreatedAt time.Time
}

// Format identifies a report artifact encoding.
type Format string

const (
	FormatGzipJSON Format = "gzip-json"
	FormatORC      Format = "orc"
	FormatCSV      Format = "csv"
)

// FormatFromURL infers the artifact format from the URL path suffix.
// The boolean is false when the suffix is unrecognized; callers fall
// back to content sniffing.
func FormatFromURL(url string) (Format, bool) {
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	switch {
	case strings.HasSuffix(path, ".gz"):
		return FormatGzipJSON, true
	case strings.HasSuffix(path, ".orc"):
		return FormatORC, true
	case strings.HasSuffix(path, ".csv"):
		return FormatCSV, true
	}
	return "", false
}

// Download is a resolved report artifact location.
type Download struct {
	URL    string
	Format Format
}

// Target addresses the destination object for a materialized report.
type Target struct {
	Bucket       string
	PathTemplate string
}

// Key renders the target key for a report type, country and logical
// date. Placeholders {report_type}, {country_code}, {year}, {month}
// and {day} are substituted literally.
func (t Target) Key(reportType, countryCode string, date time.Time) string {
	r := strings.NewReplacer(
		"{report_type}", reportType,
		"{country_code}", countryCode,
		"{year}", fmt.Sprintf("%04d", date.Year()),
		"{month}", fmt.Sprintf("%02d", int(date.Month())),
		"{day}", fmt.Sprintf("%02d", date.Day()),
	)
	return r.Replace(t.PathTemplate)
}

// Adapter is the contract each vendor package implements. Submit
// starts report generation, PollOnce observes status without side
// effects and ResolveDownloads is only valid once the job succeeded.
type Adapter interface {
	Name() string
	Submit(ctx context.Context, req Request) (string, error)
	PollOnce(ctx context.Context, jobID string) (Status, error)
	ResolveDownloads(ctx context.Context, jobID string) ([]Download, error)
}
