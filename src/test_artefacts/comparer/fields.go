package comparer

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func IgnoreFieldsFor[T any](fields ...string) cmp.Option {
	var t T
	return cmpopts.IgnoreFields(t, fields...)
}

// TimeWithinTolerance treats timestamps closer than d as equal.
func TimeWithinTolerance(d time.Duration) cmp.Option {
	return cmpopts.EquateApproxTime(d)
}

// JSONRawMessage compares raw JSON by value, ignoring formatting and key
// order differences introduced by jsonb round trips.
func JSONRawMessage() cmp.Option {
	return cmp.FilterValues(
		func(x, y json.RawMessage) bool { return json.Valid(x) && json.Valid(y) },
		cmp.Comparer(func(x, y json.RawMessage) bool {
			var xv, yv any
			if err := json.Unmarshal(x, &xv); err != nil {
				return bytes.Equal(x, y)
			}
			if err := json.Unmarshal(y, &yv); err != nil {
				return bytes.Equal(x, y)
			}
			xc, _ := json.Marshal(xv)
			yc, _ := json.Marshal(yv)
			return bytes.Equal(xc, yc)
		}),
	)
}
