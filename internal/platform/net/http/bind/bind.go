// Package bind decodes and validates JSON request bodies
package bind

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/validate"
)

// JSONOptions controls parsing
type JSONOptions struct {
	MaxBytes        int64 // default 1MB
	DisallowUnknown bool  // default true
	AllowEmptyBody  bool
}

func defaultJSONOptions() JSONOptions {
	return JSONOptions{MaxBytes: 1 << 20, DisallowUnknown: true}
}

// ParseJSON decodes the body into T and validates it
// decode failures carry ErrorCodeJSON, rule failures ErrorCodeValidation with the field set
func ParseJSON[T any](r *http.Request, opts ...JSONOptions) (T, error) {
	var zero T
	o := defaultJSONOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	defer func() { _ = r.Body.Close() }()

	var body io.Reader = r.Body
	if o.MaxBytes > 0 {
		body = io.LimitReader(body, o.MaxBytes)
	}
	if !o.AllowEmptyBody {
		buf := make([]byte, 1)
		n, _ := body.Read(buf)
		if n == 0 {
			return zero, perr.New(perr.ErrorCodeJSON, "empty body")
		}
		body = io.MultiReader(bytes.NewReader(buf[:n]), body)
	}

	dec := json.NewDecoder(body)
	if o.DisallowUnknown {
		dec.DisallowUnknownFields()
	}
	var dst T
	if err := dec.Decode(&dst); err != nil {
		if o.AllowEmptyBody && errors.Is(err, io.EOF) {
			return dst, nil
		}
		return zero, perr.Newf(perr.ErrorCodeJSON, "invalid JSON: %v", err)
	}
	if dec.More() {
		return zero, perr.New(perr.ErrorCodeJSON, "unexpected trailing data")
	}
	if err := validate.Struct(dst, perr.ErrorCodeValidation); err != nil {
		return zero, err
	}
	return dst, nil
}
