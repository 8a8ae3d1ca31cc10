package module

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/core/triage"
	"github.com/LetsGoKDH/taps/internal/modkit"
	"github.com/LetsGoKDH/taps/internal/platform/config"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/mock"

	"github.com/prometheus/client_golang/prometheus"
)

func deps() modkit.Deps {
	return modkit.Deps{Metrics: metrics.New(prometheus.NewRegistry())}
}

func TestFromConfig(t *testing.T) {
	t.Setenv("TAPS_RUN_WORKERS", "8")
	t.Setenv("TAPS_RUN_LEDGER", "PG")
	t.Setenv("TAPS_RUN_SENTENCE_MODE", "true")
	t.Setenv("TAPS_POLICY_FILE", "/etc/taps/policy.yaml")

	o := FromConfig(config.New())
	if o.Workers != 8 || o.Ledger != LedgerPG || !o.SentenceMode || o.PolicyFile != "/etc/taps/policy.yaml" {
		t.Fatalf("unexpected options %+v", o)
	}
	if o.K != 5 || o.ContextWidth != 40 || !o.Leases {
		t.Fatalf("defaults not applied %+v", o)
	}
}

func TestLoadPolicy(t *testing.T) {
	p, tri, err := LoadPolicy("")
	if err != nil || p.Version != decision.DefaultPolicy().Version || len(tri.Cuts) != 3 {
		t.Fatalf("defaults: %+v %+v %v", p, tri, err)
	}

	path := filepath.Join(t.TempDir(), "policy.yaml")
	body := "policy:\n  version: p-test\n  numeric:\n    min_margin: 0.4\ntriage:\n  cuts: [0.1, 0.2, 0.5]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	p, tri, err = LoadPolicy(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if p.Version != "p-test" || p.Numeric.MinMargin != 0.4 || p.Numeric.MaxDistance != 0.20 {
		t.Fatalf("policy overlay = %+v", p)
	}
	if tri.Cuts[2] != 0.5 || tri.CompressionMax != 4 {
		t.Fatalf("triage overlay = %+v", tri)
	}

	for name, body := range map[string]string{
		"bad cuts":    "triage:\n  cuts: [0.5, 0.2, 0.1]\n",
		"bad margin":  "policy:\n  numeric:\n    min_margin: 2\n",
		"unknown key": "policy:\n  nope: 1\n",
	} {
		if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		if _, _, err := LoadPolicy(path); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("%s: want invalid argument, got %v", name, err)
		}
	}
}

func TestNewRunsBatch(t *testing.T) {
	rw := &mock.Rewriter{Table: map[string][]candidate.Candidate{
		"meeting": {{Text: "meeting", Score: 1}},
	}}
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	m, err := New(context.Background(), deps(), rw, Options{Ledger: LedgerFile, LedgerFile: path, Leases: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Close()
	if _, ok := m.Ports().(Ports); !ok || m.Name() != "correct" {
		t.Fatalf("ports type %T", m.Ports())
	}

	rep, err := m.Runner().Run(context.Background(), domain.Batch{ID: "b", Records: []domain.Record{
		{SpeakerID: "a", SentenceID: "1", Text: "오늘 meeting 있어"},
	}})
	if err != nil || len(rep.Outputs) != 1 || rep.Mode != triage.ModeFallback {
		t.Fatalf("run: %+v %v", rep, err)
	}
	outs, err := m.Outputs().Outputs(context.Background(), "b")
	if err != nil || len(outs) != 1 || outs[0].UttID != "a_1" {
		t.Fatalf("outputs: %+v %v", outs, err)
	}
}

func TestNewErrors(t *testing.T) {
	rw := &mock.Rewriter{}
	cases := map[string]Options{
		"pg without store": {Ledger: LedgerPG},
		"unknown ledger":   {Ledger: "redis"},
		"missing pack":     {Ledger: LedgerMemory, RulePack: "/nonexistent/pack.yaml"},
		"missing policy":   {Ledger: LedgerMemory, PolicyFile: "/nonexistent/policy.yaml"},
	}
	for name, o := range cases {
		if _, err := New(context.Background(), deps(), rw, o); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
			t.Fatalf("%s: want invalid argument, got %v", name, err)
		}
	}
}
