package transport

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NormalizeResponse turns a raw server response into a generic object.
// Byte slices and strings are parsed as JSON. Anything that does not decode
// to a JSON object yields nil.
func NormalizeResponse(raw any) map[string]any {
	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		return v
	case []byte:
		return decodeObject(v)
	case json.RawMessage:
		return decodeObject(v)
	case string:
		return decodeObject([]byte(v))
	default:
		return nil
	}
}

func decodeObject(data []byte) map[string]any {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// ResponseCode extracts the numeric "code" field. Numeric strings are
// accepted; fractional or non-numeric values are not.
func ResponseCode(resp map[string]any) (int, bool) {
	if resp == nil {
		return 0, false
	}
	switch v := resp["code"].(type) {
	case float64:
		return wholeNumber(v)
	case int:
		return v, true
	case int64:
		return int(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return wholeNumber(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return wholeNumber(f)
	default:
		return 0, false
	}
}

func wholeNumber(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
