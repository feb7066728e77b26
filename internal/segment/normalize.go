package segment

import (
	"fmt"

	"github.com/hupe1980/lsmvec/model"
)

// normalizeMetadata maps decoded msgpack values onto the value model produced
// by the JSON write-ahead log, so a record reads back the same from either tier:
// numbers become float64, maps become map[string]any, arrays become []any.
func normalizeMetadata(md model.Metadata) model.Metadata {
	if md == nil {
		return nil
	}
	for k, v := range md {
		md[k] = normalizeValue(v)
	}
	return md
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	case float32:
		return float64(x)
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeValue(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalizeValue(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalizeValue(e)
		}
		return x
	default:
		return v
	}
}
