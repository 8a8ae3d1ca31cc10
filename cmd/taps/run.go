package main

import (
	"io"
	"os"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	cmod "github.com/LetsGoKDH/taps/internal/services/correct/module"
	cservice "github.com/LetsGoKDH/taps/internal/services/correct/service"
	rwmod "github.com/LetsGoKDH/taps/internal/services/rewriter/module"

	"github.com/spf13/cobra"
)

type runFlags struct {
	in, out, issues string
	batchID         string
	workers, k      int
	sentenceMode    bool
	rewriter        string
	ledger          string
	ledgerFile      string
	policy          string
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Correct a batch of utterances",
		Long: `Read utterances from a JSONL file, run span detection, triage, the
rewriter and the decision gate, then write one output per utterance.

Outputs already finalized in the ledger for the same input are reused, so an
interrupted run picks up where it stopped.

Examples:
  taps run --in day1.jsonl --out day1.out.jsonl --issues day1.issues.jsonl
  taps run --in day1.jsonl --out - --rewriter static --ledger memory`,
		RunE: func(cmd *cobra.Command, _ []string) error { return runBatch(cmd, f) },
	}
	fl := cmd.Flags()
	fl.StringVar(&f.in, "in", "", "utterances jsonl")
	fl.StringVar(&f.out, "out", "", "outputs jsonl, - for stdout")
	fl.StringVar(&f.issues, "issues", "", "optional issues jsonl")
	fl.StringVar(&f.batchID, "batch-id", "", "batch id, defaults to the input file name")
	fl.IntVar(&f.workers, "workers", 0, "utterance workers")
	fl.IntVar(&f.k, "k", 0, "candidates requested per span")
	fl.BoolVar(&f.sentenceMode, "sentence-mode", false, "add a whole sentence proposal per utterance")
	fl.StringVar(&f.rewriter, "rewriter", "", "rewriter adapter: openai or static")
	fl.StringVar(&f.ledger, "ledger", "", "ledger backend: pg, file or memory")
	fl.StringVar(&f.ledgerFile, "ledger-file", "", "file ledger path")
	fl.StringVar(&f.policy, "policy", "", "policy yaml overlaying the defaults")
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runBatch(cmd *cobra.Command, f runFlags) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, "run")
	if err != nil {
		return err
	}
	defer a.Close()

	rwOpts := rwmod.FromConfig(a.cfg)
	if f.rewriter != "" {
		rwOpts.Adapter = f.rewriter
	}
	rw, err := rwmod.New(a.deps, rwOpts)
	if err != nil {
		return err
	}

	opts := cmod.FromConfig(a.cfg)
	fl := cmd.Flags()
	if fl.Changed("workers") {
		opts.Workers = f.workers
	}
	if fl.Changed("k") {
		opts.K = f.k
	}
	if fl.Changed("sentence-mode") {
		opts.SentenceMode = f.sentenceMode
	}
	if f.ledger != "" {
		opts.Ledger = f.ledger
	}
	if f.ledgerFile != "" {
		opts.LedgerFile = f.ledgerFile
	}
	if f.policy != "" {
		opts.PolicyFile = f.policy
	}
	cm, err := cmod.New(ctx, a.deps, rw.Rewriter(), opts)
	if err != nil {
		return err
	}
	defer cm.Close()

	in, err := os.Open(f.in)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "open input %s", f.in)
	}
	defer in.Close()
	id := f.batchID
	if id == "" {
		id = batchName(f.in)
	}
	b, err := cservice.ReadBatch(in, id)
	if err != nil {
		return err
	}

	rep, err := cm.Runner().Run(ctx, b)
	if err != nil {
		return err
	}
	if err := writeFile(f.out, func(w io.Writer) error { return cservice.WriteOutputs(w, rep.Outputs) }); err != nil {
		return err
	}
	if f.issues != "" {
		if err := writeFile(f.issues, func(w io.Writer) error { return cservice.WriteIssues(w, rep.Outputs) }); err != nil {
			return err
		}
	}

	a.log.Info().
		Str("run_id", rep.RunID).
		Str("batch_id", rep.BatchID).
		Str("triage_mode", string(rep.Mode)).
		Int("total", rep.Total).
		Int("invalid", len(rep.Invalid)).
		Int("processed", rep.Stats.Processed).
		Int("resumed", rep.Stats.Resumed).
		Int("issues", rep.Stats.Issues).
		Interface("buckets", rep.Stats.Buckets).
		Interface("outcomes", rep.Stats.Outcomes).
		Dur("elapsed", rep.Elapsed).
		Msg("run complete")
	for _, iv := range rep.Invalid {
		a.log.Warn().Int("line", iv.Line).Str("utt_id", iv.UttID).Str("code", iv.Code).
			Str("field", iv.Field).Msg(iv.Error)
	}
	return nil
}
