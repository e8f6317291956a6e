package formats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONRecordsArray(t *testing.T) {
	payload := `[{"campaignId": 1, "cost": 1.5}, {"campaignId": 2, "cost": 0}]`
	records, err := DecodeJSONRecords(strings.NewReader(payload))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, float64(1), records[0]["campaignId"])
}

func TestDecodeJSONRecordsNDJSON(t *testing.T) {
	payload := "{\"a\": 1}\n{\"a\": 2}\n{\"a\": 3}\n"
	records, err := DecodeJSONRecords(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestDecodeJSONRecordsEmpty(t *testing.T) {
	records, err := DecodeJSONRecords(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeJSONRecordsGarbage(t *testing.T) {
	_, err := DecodeJSONRecords(strings.NewReader("not json"))
	require.Error(t, err)
}

func TestFlattenNested(t *testing.T) {
	records := []map[string]interface{}{
		{
			"campaignId": float64(42),
			"metrics": map[string]interface{}{
				"impressions": float64(100),
				"cost": map[string]interface{}{
					"amount":       float64(1.25),
					"currencyCode": "USD",
				},
			},
		},
	}

	tab := Flatten(records)
	require.Len(t, tab.Rows, 1)

	idx := tab.ColumnIndex("metrics.cost.amount")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "1.25", tab.Rows[0][idx])

	idx = tab.ColumnIndex("metrics.cost.currencyCode")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "USD", tab.Rows[0][idx])

	idx = tab.ColumnIndex("campaignId")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "42", tab.Rows[0][idx])
}

func TestFlattenRaggedRecords(t *testing.T) {
	records := []map[string]interface{}{
		{"a": "1"},
		{"a": "2", "b": "x"},
	}
	tab := Flatten(records)
	require.Equal(t, 2, len(tab.Rows))

	bIdx := tab.ColumnIndex("b")
	require.GreaterOrEqual(t, bIdx, 0)
	assert.Equal(t, "", tab.Rows[0][bIdx])
	assert.Equal(t, "x", tab.Rows[1][bIdx])
}

func TestStringifyValue(t *testing.T) {
	assert.Equal(t, "", stringifyValue(nil))
	assert.Equal(t, "true", stringifyValue(true))
	assert.Equal(t, "3", stringifyValue(float64(3)))
	assert.Equal(t, "3.14", stringifyValue(float64(3.14)))
	assert.Equal(t, `["a","b"]`, stringifyValue([]interface{}{"a", "b"}))
}
