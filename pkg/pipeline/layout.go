// Package pipeline turns resolved report downloads into normalized
// CSV objects at deterministic destination keys, and rotates prior
// days' CSVs into Parquet under a processed prefix.
package pipeline

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Layout computes destination keys. The scheme is
// {root}/{source}/{country_code}/{table}/{table}_{date}.csv with
// rotated files under a processed/ subprefix and the per-run failure
// log under {root}/{source}/log/.
type Layout struct {
	Root   string
	Source string
}

// TableDir returns the prefix holding one table's daily CSVs.
func (l Layout) TableDir(countryCode, table string) string {
	return path.Join(l.Root, l.Source, countryCode, table) + "/"
}

// ObjectKey returns the key for one table-date CSV.
func (l Layout) ObjectKey(countryCode, table string, date time.Time) string {
	name := fmt.Sprintf("%s_%s.csv", table, date.Format("2006-01-02"))
	return path.Join(l.Root, l.Source, countryCode, table, name)
}

// ProcessedKey maps a CSV key into its processed Parquet twin.
func (l Layout) ProcessedKey(csvKey string) string {
	dir, name := path.Split(csvKey)
	name = strings.TrimSuffix(name, ".csv") + ".parquet"
	return dir + "processed/" + name
}

// LogKey returns the failure-log key for a run date.
func (l Layout) LogKey(runDate time.Time) string {
	name := fmt.Sprintf("log_%s.csv", runDate.Format("02012006"))
	return path.Join(l.Root, l.Source, "log", name)
}

// PartKey derives the key for the nth extra download of a sharded
// report, inserting a part suffix before the extension.
func PartKey(key string, part int) string {
	ext := path.Ext(key)
	return fmt.Sprintf("%s_part%d%s", strings.TrimSuffix(key, ext), part, ext)
}

// DateFromKey extracts the trailing date from a {table}_{date}.csv
// key. The boolean is false for keys that do not follow the scheme.
func DateFromKey(key, table string) (time.Time, bool) {
	name := path.Base(key)
	prefix := table + "_"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv")
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}
