package main

import (
	"context"
	"io"
	"os"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	cservice "github.com/LetsGoKDH/taps/internal/services/correct/service"
	resmod "github.com/LetsGoKDH/taps/internal/services/resolutions/module"
	rvdomain "github.com/LetsGoKDH/taps/internal/services/review/domain"
	rvmod "github.com/LetsGoKDH/taps/internal/services/review/module"
	rvservice "github.com/LetsGoKDH/taps/internal/services/review/service"

	"github.com/spf13/cobra"
)

func newExportCmd() *cobra.Command {
	var outputs, xlsx string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the issues of an outputs file to a review workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			outs, err := readOutputs(outputs)
			if err != nil {
				return err
			}
			return writeFile(xlsx, func(w io.Writer) error { return rvservice.Export(w, outs) })
		},
	}
	cmd.Flags().StringVar(&outputs, "outputs", "", "outputs jsonl from taps run")
	cmd.Flags().StringVar(&xlsx, "xlsx", "review.xlsx", "workbook to write")
	_ = cmd.MarkFlagRequired("outputs")
	return cmd
}

// reviewer opens the resolutions store and a review service over a fixed
// outputs file
type reviewer struct {
	app *app
	res *resmod.Module
	svc *rvservice.Service
}

func openReviewer(ctx context.Context, role, outputs, resolutions string) (*reviewer, error) {
	outs, err := readOutputs(outputs)
	if err != nil {
		return nil, err
	}
	a, err := openApp(ctx, role)
	if err != nil {
		return nil, err
	}
	opts := resmod.FromConfig(a.cfg)
	if resolutions != "" {
		opts.Backend = resmod.BackendFile
		opts.File = resolutions
	}
	rm, err := resmod.New(ctx, a.deps, opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	m := rvmod.New(a.deps, rvservice.StaticOutputs(outs), rm.Resolutions(), rvmod.FromConfig(a.cfg))
	return &reviewer{app: a, res: rm, svc: m.Service()}, nil
}

func (r *reviewer) Close() {
	if err := r.res.Close(); err != nil {
		r.app.log.Error().Err(err).Msg("failed to close resolutions")
	}
	r.app.Close()
}

func newImportCmd() *cobra.Command {
	var xlsx, outputs, resolutions, final, who string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Record reviewer decisions from a workbook and write final text",
		Long: `Read a review workbook exported by taps export. A row with status done
becomes a human resolution, taking the recommendation when final_text is
empty. A row whose final_text was edited away from the recommendation is
resolved to that text. Untouched open rows and rows marked skip stay pending.
Each output is then rebuilt from its automatic edits plus the resolved
issues; an output with unresolved issues keeps text_avail null.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := os.Open(xlsx)
			if err != nil {
				return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "open workbook %s", xlsx)
			}
			defer f.Close()
			rows, err := rvservice.Import(f)
			if err != nil {
				return err
			}

			rv, err := openReviewer(ctx, "import", outputs, resolutions)
			if err != nil {
				return err
			}
			defer rv.Close()

			res, err := rv.svc.Import(ctx, rows, who)
			if err != nil {
				return err
			}
			if err := writeFile(final, func(w io.Writer) error { return cservice.WriteJSONL(w, res.Finals) }); err != nil {
				return err
			}
			rv.app.log.Info().
				Int("rows", len(rows)).
				Int("recorded", len(res.Recorded)).
				Int("pending", res.Pending).
				Strs("unknown", res.Unknown).
				Msg("import complete")
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&xlsx, "xlsx", "review.xlsx", "reviewed workbook")
	fl.StringVar(&outputs, "outputs", "", "outputs jsonl the workbook was exported from")
	fl.StringVar(&resolutions, "resolutions", "", "resolutions jsonl, overrides TAPS_RESOLUTIONS_*")
	fl.StringVar(&final, "final", "final.jsonl", "final text jsonl, - for stdout")
	fl.StringVar(&who, "reviewer", "", "reviewer name stamped on each resolution")
	_ = cmd.MarkFlagRequired("outputs")
	return cmd
}

func newResolveCmd() *cobra.Command {
	var (
		outputs, resolutions string
		issueID, text, who   string
		index                int
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Record one resolution for an issue",
		Long: `Resolve an issue by candidate index or by free text. With neither the
recommendation is taken.

Examples:
  taps resolve --outputs day1.out.jsonl --issue 'spk1_s001#0' --index 1
  taps resolve --outputs day1.out.jsonl --issue 'spk1_s001#0' --text '1234'`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fl := cmd.Flags()
			if fl.Changed("index") && fl.Changed("text") {
				return perr.InvalidArgf("--index and --text are exclusive")
			}
			req := rvdomain.ResolveRequest{Reviewer: who}
			if fl.Changed("index") {
				i := index
				req.CandidateIndex = &i
			}
			if fl.Changed("text") {
				t := text
				req.FinalText = &t
			}

			rv, err := openReviewer(cmd.Context(), "resolve", outputs, resolutions)
			if err != nil {
				return err
			}
			defer rv.Close()

			r, err := rv.svc.Resolve(cmd.Context(), issueID, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), r)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&outputs, "outputs", "", "outputs jsonl holding the issue")
	fl.StringVar(&resolutions, "resolutions", "", "resolutions jsonl, overrides TAPS_RESOLUTIONS_*")
	fl.StringVar(&issueID, "issue", "", "issue id, utt_id#n")
	fl.IntVar(&index, "index", 0, "candidate index")
	fl.StringVar(&text, "text", "", "final text")
	fl.StringVar(&who, "reviewer", "", "reviewer name")
	_ = cmd.MarkFlagRequired("outputs")
	_ = cmd.MarkFlagRequired("issue")
	return cmd
}
