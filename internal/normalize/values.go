package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dawgsconnect/jobboard/internal/store"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// lookup returns the first present, non-nil value among keys.
func lookup(record store.Record, keys ...string) any {
	for _, key := range keys {
		if value, ok := record[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func text(record store.Record, keys ...string) string {
	switch v := lookup(record, keys...).(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// count reads a non-negative integer counter.
func count(record store.Record, keys ...string) int {
	var n float64
	switch v := lookup(record, keys...).(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		n, _ = v.Float64()
	case string:
		n, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if n < 0 || math.IsNaN(n) {
		return 0
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

func timestamp(record store.Record, keys ...string) time.Time {
	switch v := lookup(record, keys...).(type) {
	case time.Time:
		return v.UTC()
	case string:
		raw := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// stringList drops nil and non-string entries; a single string is split on commas.
func stringList(record store.Record, keys ...string) []string {
	out := []string{}
	switch v := lookup(record, keys...).(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	case string:
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func object(record store.Record, keys ...string) store.Record {
	switch v := lookup(record, keys...).(type) {
	case map[string]any:
		return store.Record(v)
	case store.Record:
		return v
	default:
		return store.Record{}
	}
}
