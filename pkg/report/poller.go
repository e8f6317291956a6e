package report

import (
	"context"
	goerrors "errors"
	"time"

	"go.uber.org/zap"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// ErrRecorded signals that a terminal failure was appended to the
// failure log instead of aborting the run. Callers skip the date and
// continue.
var ErrRecorded = goerrors.New("report failure recorded")

// PollOptions bounds one polling session.
type PollOptions struct {
	// MaxAttempts is a hard ceiling on status polls. The poller never
	// issues more than this many, regardless of outcome.
	MaxAttempts int
	// Interval is the fixed wait between polls.
	Interval time.Duration
	// OnFailure selects the terminal-failure policy, "raise" or
	// "record".
	OnFailure string
}

// FailureRecord is one line of the per-run failure log.
type FailureRecord struct {
	Vendor      string
	ReportType  string
	CountryCode string
	JobID       string
	Status      Status
	Detail      string
	When        time.Time
}

// FailureLog collects terminal failures for report kinds whose policy
// is record-and-continue.
type FailureLog interface {
	Record(rec FailureRecord)
}

// Poller drives the poll phase of the async report protocol for any
// adapter.
type Poller struct {
	logger   *zap.Logger
	failures FailureLog
}

// NewPoller creates a poller. failures may be nil when every report
// kind in the run uses the raise policy.
func NewPoller(failures FailureLog, logger *zap.Logger) *Poller {
	return &Poller{
		logger:   logger.With(zap.String("component", "poller")),
		failures: failures,
	}
}

// AwaitCompletion polls a submitted job until it reaches a terminal
// state or the attempt budget runs out, then resolves the download
// descriptors on success. Transient poll errors consume their attempt
// and the session moves on; terminal vendor states stop it for good.
func (p *Poller) AwaitCompletion(ctx context.Context, adapter Adapter, req Request, jobID string, opts PollOptions) ([]Download, error) {
	logger := p.logger.With(
		zap.String("vendor", adapter.Name()),
		zap.String("report_type", req.ReportType),
		zap.String("job_id", jobID))

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		status, err := adapter.PollOnce(ctx, jobID)
		switch {
		case err == nil:
			logger.Info("poll attempt",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", opts.MaxAttempts),
				zap.String("status", string(status)))

			switch status {
			case StatusSucceeded:
				return p.resolve(ctx, adapter, jobID, logger)
			case StatusFailed, StatusRejected:
				return nil, p.terminalFailure(req, jobID, status, opts, logger)
			}
			// Pending or InProgress: wait and poll again.

		case errors.IsRetryable(err):
			logger.Warn("poll attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err))

		default:
			return nil, err
		}

		if attempt == opts.MaxAttempts {
			break
		}
		timer := time.NewTimer(opts.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Wrap(ctx.Err(), errors.ErrorTypeInternal, "polling cancelled")
		case <-timer.C:
		}
	}

	logger.Error("poll budget exhausted", zap.Int("attempts", opts.MaxAttempts))
	return nil, errors.New(errors.ErrorTypePollTimeout, "report not ready within poll budget").
		WithDetail("job_id", jobID).
		WithDetail("attempts", opts.MaxAttempts).
		WithDetail("status", string(StatusTimedOut))
}

func (p *Poller) resolve(ctx context.Context, adapter Adapter, jobID string, logger *zap.Logger) ([]Download, error) {
	downloads, err := adapter.ResolveDownloads(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(downloads) == 0 {
		return nil, errors.New(errors.ErrorTypeVendor, "succeeded report has no download descriptors").
			WithDetail("job_id", jobID)
	}
	logger.Info("report ready", zap.Int("downloads", len(downloads)))
	return downloads, nil
}

func (p *Poller) terminalFailure(req Request, jobID string, status Status, opts PollOptions, logger *zap.Logger) error {
	if opts.OnFailure == config.OnFailureRecord && p.failures != nil {
		logger.Warn("report failed, recording and continuing",
			zap.String("status", string(status)))
		p.failures.Record(FailureRecord{
			Vendor:      req.Vendor,
			ReportType:  req.ReportType,
			CountryCode: req.CountryCode,
			JobID:       jobID,
			Status:      status,
			Detail:      "terminal vendor status",
			When:        time.Now().UTC(),
		})
		return ErrRecorded
	}

	logger.Error("report failed", zap.String("status", string(status)))
	return errors.New(errors.ErrorTypeVendor, "report generation failed").
		WithDetail("job_id", jobID).
		WithDetail("status", string(status))
}
