package module

import "github.com/LetsGoKDH/taps/internal/platform/config"

// Backends accepted by TAPS_RESOLUTIONS_BACKEND
const (
	BackendClickhouse = "ch"
	BackendFile       = "file"
	BackendMemory     = "memory"
)

// Options holds configuration for the resolutions module
type Options struct {
	Backend string
	File    string
}

// FromConfig reads TAPS_RESOLUTIONS_*
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("TAPS_RESOLUTIONS_")
	return Options{
		Backend: rc.MayEnum("BACKEND", BackendFile, BackendClickhouse, BackendFile, BackendMemory),
		File:    rc.MayString("FILE", "resolutions.jsonl"),
	}
}
