package formats

import (
	"bytes"
	"io"
	"sort"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/jeetsigmoid/ecomm-datasources/pkg/errors"
)

// DecodeJSONRecords reads report records from r. Vendors ship either a
// top-level JSON array of objects or newline-delimited objects; both
// are accepted.
func DecodeJSONRecords(r io.Reader) ([]map[string]interface{}, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "read json payload")
	}

	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var records []map[string]interface{}
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "decode json array")
		}
		return records, nil

	case '{':
		var records []map[string]interface{}
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		for {
			var rec map[string]interface{}
			if err := dec.Decode(&rec); err == io.EOF {
				break
			} else if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "decode json record")
			}
			records = append(records, rec)
		}
		return records, nil
	}

	return nil, errors.New(errors.ErrorTypeData, "json payload is neither array nor object stream")
}

// Flatten converts records into a table, expanding nested objects into
// dotted column paths. Columns appear in first-occurrence order;
// records missing a column get an empty cell.
func Flatten(records []map[string]interface{}) *Table {
	var columns []string
	seen := make(map[string]int)

	flat := make([]map[string]string, len(records))
	for i, rec := range records {
		cells := make(map[string]string)
		flattenInto("", rec, cells)
		flat[i] = cells

		keys := make([]string, 0, len(cells))
		for k := range cells {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, ok := seen[k]; !ok {
				seen[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}

	t := NewTable(columns...)
	for _, cells := range flat {
		row := make([]string, len(columns))
		for k, v := range cells {
			row[seen[k]] = v
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func flattenInto(prefix string, value map[string]interface{}, out map[string]string) {
	for key, v := range value {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		switch vv := v.(type) {
		case map[string]interface{}:
			flattenInto(name, vv, out)
		default:
			out[name] = stringifyValue(vv)
		}
	}
}

func stringifyValue(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case bool:
		return strconv.FormatBool(vv)
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case json.Number:
		return vv.String()
	default:
		// Lists and anything exotic keep their JSON form.
		b, err := json.Marshal(vv)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
