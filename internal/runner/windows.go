package runner

import (
	"time"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/config"
	"github.com/jeetsigmoid/ecomm-datasources/pkg/report"
)

// ExpandWindows splits an inclusive [start, end] date range into the
// per-report windows a backfill submits. DAY kinds get one window per
// day; WEEK kinds get seven-day chunks from start, with a short final
// chunk when the range does not divide evenly.
func ExpandWindows(start, end time.Time, periodType string) []report.Window {
	start = start.UTC().Truncate(24 * time.Hour)
	end = end.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return nil
	}

	var windows []report.Window
	switch periodType {
	case config.PeriodWeek:
		for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 7) {
			wEnd := cur.AddDate(0, 0, 6)
			if wEnd.After(end) {
				wEnd = end
			}
			windows = append(windows, report.Window{Start: cur, End: wEnd})
		}
	default:
		for cur := start; !cur.After(end); cur = cur.AddDate(0, 0, 1) {
			windows = append(windows, report.Window{Start: cur, End: cur})
		}
	}
	return windows
}
