package config

import (
	"bytes"
	"errors"
	"io"
	"os"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes the file at path into dst, unknown keys are rejected
// An empty path is a no-op so callers can pass an unset env value straight through
func LoadYAML(path string, dst any) error {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read config %s", path)
	}
	return DecodeYAML(b, dst)
}

// DecodeYAML decodes b into dst with strict field checking
func DecodeYAML(b []byte, dst any) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "decode yaml")
	}
	return nil
}
