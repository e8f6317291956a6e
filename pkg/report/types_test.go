package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

func TestMapStatus(t *testing.T) {
	vocab := map[string]Status{
		"IN_QUEUE":    StatusPending,
		"IN_PROGRESS": StatusInProgress,
		"DONE":        StatusSucceeded,
		"CANCELLED":   StatusRejected,
		"FATAL":       StatusFailed,
	}

	for raw, want := range vocab {
		got, err := MapStatus(vocab, raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := MapStatus(vocab, "SOMETHING_NEW")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeVendor))
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusSucceeded.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusTimedOut.Terminal())
}

func TestFormatFromURL(t *testing.T) {
	tests := []struct {
		url    string
		format Format
		ok     bool
	}{
		{"https://cdn.example.com/r/part-0.json.gz", FormatGzipJSON, true},
		{"https://cdn.example.com/r/part-0.orc", FormatORC, true},
		{"https://cdn.example.com/r/part-0.csv", FormatCSV, true},
		{"https://cdn.example.com/r/part-0.csv?X-Amz-Signature=abc.def", FormatCSV, true},
		{"https://cdn.example.com/r/part-0.parquet", "", false},
		{"https://cdn.example.com/r/part-0", "", false},
	}
	for _, tt := range tests {
		format, ok := FormatFromURL(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.format, format, tt.url)
	}
}

func TestTargetKey(t *testing.T) {
	target := Target{
		Bucket:       "reports",
		PathTemplate: "landing/{report_type}/{country_code}/{year}/{month}/{day}/data.csv",
	}
	date := time.Date(2024, time.March, 7, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "landing/sp_campaigns/US/2024/03/07/data.csv",
		target.Key("sp_campaigns", "US", date))
}
