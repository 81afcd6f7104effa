package payment

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"

	"github.com/carelink/carelink_backend/pkg/apperr"
)

const (
	maxMetadataKeys   = 20
	maxMetadataKeyLen = 40
	maxMetadataValLen = 500
)

// ValidateMetadata accepts an open map of scalar values. Keys are not
// interpreted; only the size and shape of the map are bounded.
func ValidateMetadata(md map[string]any) error {
	if len(md) > maxMetadataKeys {
		return apperr.Validationf("metadata may have at most %d keys", maxMetadataKeys)
	}
	for _, k := range slices.Sorted(maps.Keys(md)) {
		if n := utf8.RuneCountInString(k); n == 0 || n > maxMetadataKeyLen {
			return apperr.Validationf("metadata key %q must be 1-%d characters", k, maxMetadataKeyLen)
		}
		switch v := md[k].(type) {
		case nil, bool, float64, float32, int, int32, int64, json.Number:
		case string:
			if utf8.RuneCountInString(v) > maxMetadataValLen {
				return apperr.Validationf("metadata value for %q exceeds %d characters", k, maxMetadataValLen)
			}
		default:
			return apperr.Validationf("metadata value for %q must be a string, number, boolean or null", k)
		}
	}
	return nil
}

// stringMetadata renders scalar metadata the way Stripe stores it.
func stringMetadata(md map[string]any) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
