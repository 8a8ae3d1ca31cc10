package module

import (
	"time"

	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/core/triage"
	"github.com/LetsGoKDH/taps/internal/platform/config"
)

// Ledger backends accepted by TAPS_RUN_LEDGER
const (
	LedgerMemory = "memory"
	LedgerFile   = "file"
	LedgerPG     = "pg"
)

// Options holds configuration for the correct module
type Options struct {
	Workers       int
	RewriterSlots int
	K             int
	ContextWidth  int
	SentenceMode  bool

	Ledger     string
	LedgerFile string
	Leases     bool
	LeaseTTL   time.Duration

	RunTimeout       time.Duration
	UtteranceTimeout time.Duration
	RewriteTimeout   time.Duration
	LedgerTimeout    time.Duration

	// PolicyFile overlays decision and triage defaults, RulePack replaces the embedded pack
	PolicyFile string
	RulePack   string
}

// FromConfig reads TAPS_RUN_* plus TAPS_POLICY_FILE and TAPS_RULEPACK_FILE
func FromConfig(cfg config.Conf) Options {
	rc := cfg.Prefix("TAPS_RUN_")
	return Options{
		Workers:          rc.MayInt("WORKERS", 4),
		RewriterSlots:    rc.MayInt("REWRITER_SLOTS", 0),
		K:                rc.MayInt("K", 5),
		ContextWidth:     rc.MayInt("CONTEXT_WIDTH", 40),
		SentenceMode:     rc.MayBool("SENTENCE_MODE", false),
		Ledger:           rc.MayEnum("LEDGER", LedgerFile, LedgerMemory, LedgerFile, LedgerPG),
		LedgerFile:       rc.MayString("LEDGER_FILE", "taps-ledger.jsonl"),
		Leases:           rc.MayBool("LEASES", true),
		LeaseTTL:         rc.MayDuration("LEASE_TTL", time.Hour),
		RunTimeout:       rc.MayDuration("TIMEOUT", 0),
		UtteranceTimeout: rc.MayDuration("UTTERANCE_TIMEOUT", time.Minute),
		RewriteTimeout:   rc.MayDuration("REWRITE_TIMEOUT", 10*time.Second),
		LedgerTimeout:    rc.MayDuration("LEDGER_TIMEOUT", 5*time.Second),
		PolicyFile:       cfg.MayString("TAPS_POLICY_FILE", ""),
		RulePack:         cfg.MayString("TAPS_RULEPACK_FILE", ""),
	}
}

// PolicyFile is the yaml document behind TAPS_POLICY_FILE. Keys left out keep
// their defaults
type PolicyFile struct {
	Policy decision.Policy `yaml:"policy"`
	Triage triage.Config   `yaml:"triage"`
}

// LoadPolicy returns the defaults overlaid with the file at path, if any,
// after validating both halves
func LoadPolicy(path string) (decision.Policy, triage.Config, error) {
	pf := PolicyFile{Policy: decision.DefaultPolicy(), Triage: triage.DefaultConfig()}
	if err := config.LoadYAML(path, &pf); err != nil {
		return decision.Policy{}, triage.Config{}, err
	}
	if err := pf.Policy.Validate(); err != nil {
		return decision.Policy{}, triage.Config{}, err
	}
	if err := pf.Triage.Validate(); err != nil {
		return decision.Policy{}, triage.Config{}, err
	}
	return pf.Policy, pf.Triage, nil
}
