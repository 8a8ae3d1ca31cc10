package module

import (
	"time"

	"github.com/LetsGoKDH/taps/internal/platform/config"
)

// Adapter names accepted by TAPS_REWRITER_ADAPTER
const (
	AdapterOpenAI = "openai"
	AdapterStatic = "static"
)

// Options holds configuration for the rewriter module
type Options struct {
	Adapter string

	// openai
	APIKey      string
	Model       string
	BaseURL     string
	HTTPTimeout time.Duration
	Temperature float64
	MaxTokens   int

	// static
	TablePath string

	// resilience
	Timeout  time.Duration
	Attempts int
	Backoff  time.Duration
}

// FromConfig reads TAPS_REWRITER_* with OPENAI_API_KEY as the key fallback
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("TAPS_REWRITER_")
	return Options{
		Adapter:     rc.MayEnum("ADAPTER", AdapterStatic, AdapterOpenAI, AdapterStatic),
		APIKey:      rc.MayString("API_KEY", cfg.MayString("OPENAI_API_KEY", "")),
		Model:       rc.MayString("MODEL", "gpt-4o-mini"),
		BaseURL:     rc.MayString("BASE_URL", ""),
		HTTPTimeout: rc.MayDuration("HTTP_TIMEOUT", 30*time.Second),
		Temperature: rc.MayFloat64("TEMPERATURE", 0.2),
		MaxTokens:   rc.MayInt("MAX_TOKENS", 512),
		TablePath:   rc.MayString("TABLE", ""),
		Timeout:     rc.MayDuration("TIMEOUT", 10*time.Second),
		Attempts:    rc.MayInt("ATTEMPTS", 2),
		Backoff:     rc.MayDuration("BACKOFF", 200*time.Millisecond),
	}
}
