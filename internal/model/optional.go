package model

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
)

// opt decodes an optional value encoded either as null / a bare value or as
// a zero-or-one element array.
type opt[T any] struct {
	v *T
}

func (o *opt[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		o.v = nil
		return nil
	}

	if data[0] == '[' {
		var arr []T
		if err := json.Unmarshal(data, &arr); err != nil {
			return eris.Wrap(err, "model: decode optional")
		}
		switch len(arr) {
		case 0:
			o.v = nil
		case 1:
			o.v = &arr[0]
		default:
			return eris.Errorf("model: optional holds %d values", len(arr))
		}
		return nil
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return eris.Wrap(err, "model: decode optional")
	}
	o.v = &v
	return nil
}

func (o opt[T]) ptr() *T {
	return o.v
}

// flexUint64 accepts a JSON number or a decimal string. Backend nat64
// values are often sent as strings to survive JavaScript number precision.
type flexUint64 uint64

func (f *flexUint64) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	s := string(bytes.Trim(data, `"`))
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return eris.Wrapf(err, "model: parse nat64 %q", s)
	}
	*f = flexUint64(n)
	return nil
}
