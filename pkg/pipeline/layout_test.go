package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLayoutKeys(t *testing.T) {
	l := Layout{Root: "landing", Source: "amazon_ads"}
	date := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "landing/amazon_ads/US/sp_campaigns/", l.TableDir("US", "sp_campaigns"))
	assert.Equal(t,
		"landing/amazon_ads/US/sp_campaigns/sp_campaigns_2024-01-02.csv",
		l.ObjectKey("US", "sp_campaigns", date))
	assert.Equal(t,
		"landing/amazon_ads/US/sp_campaigns/processed/sp_campaigns_2024-01-02.parquet",
		l.ProcessedKey("landing/amazon_ads/US/sp_campaigns/sp_campaigns_2024-01-02.csv"))
	assert.Equal(t, "landing/amazon_ads/log/log_02012024.csv", l.LogKey(date))
}

func TestDateFromKey(t *testing.T) {
	date, ok := DateFromKey("landing/a/US/t/t_2024-05-06.csv", "t")
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, time.May, 6, 0, 0, 0, 0, time.UTC), date)

	_, ok = DateFromKey("landing/a/US/t/other_2024-05-06.csv", "t")
	assert.False(t, ok)

	_, ok = DateFromKey("landing/a/US/t/t_not-a-date.csv", "t")
	assert.False(t, ok)

	_, ok = DateFromKey("landing/a/US/t/t_2024-05-06.parquet", "t")
	assert.False(t, ok)
}
