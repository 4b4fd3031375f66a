package docsift

import (
	"encoding/json"
	"time"
)

// applyConverters rewrites declared converter fields of one returned
// document in place. Fields absent from the document, non-numeric values,
// and converter pairs without a defined rule are left as they are.
func applyConverters(s Schema, doc map[string]any) {
	for name, spec := range s.Fields {
		conv := spec.Convert
		if conv == nil {
			continue
		}
		v, present := doc[name]
		if !present {
			continue
		}
		n, numeric := epochValue(v)
		if !numeric {
			continue
		}

		switch {
		case conv.From == ConvertDateTimeString && conv.To == ConvertTimestamp:
			doc[name] = formatRFC3339Millis(time.Unix(n, 0))
		case conv.From == ConvertDateTimeString && conv.To == ConvertTimestampMillis:
			doc[name] = formatRFC3339Millis(time.UnixMilli(n))
		}
	}
}

func epochValue(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}

func formatRFC3339Millis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
