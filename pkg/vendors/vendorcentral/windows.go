package vendorcentral

import (
	"time"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

// CandidateWindows enumerates report windows newest-first for
// latest-available-date discovery. Retail reports lag by a vendor-side
// settlement delay, so the caller walks this list until a submission
// succeeds and takes that window's end as the logical date.
//
// DAY kinds yield single-day windows stepping back from yesterday.
// WEEK kinds align to the vendor's Saturday week boundary and step
// back whole weeks.
func CandidateWindows(now time.Time, periodType string, lookback int) []report.Window {
	if lookback <= 0 {
		lookback = 1
	}
	day := now.UTC().Truncate(24 * time.Hour)

	windows := make([]report.Window, 0, lookback)
	switch periodType {
	case config.PeriodWeek:
		end := lastSaturday(day)
		for i := 0; i < lookback; i++ {
			windows = append(windows, report.Window{
				Start: end.AddDate(0, 0, -6),
				End:   end,
			})
			end = end.AddDate(0, 0, -7)
		}
	default:
		date := day.AddDate(0, 0, -1)
		for i := 0; i < lookback; i++ {
			windows = append(windows, report.Window{Start: date, End: date})
			date = date.AddDate(0, 0, -1)
		}
	}
	return windows
}

// lastSaturday returns the most recent Saturday strictly before day.
func lastSaturday(day time.Time) time.Time {
	d := day.AddDate(0, 0, -1)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
