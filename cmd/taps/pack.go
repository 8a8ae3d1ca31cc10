package main

import (
	"github.com/LetsGoKDH/taps/internal/core/rulepack"
	"github.com/LetsGoKDH/taps/internal/core/span"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"

	"github.com/spf13/cobra"
)

type packProbe struct {
	Text  string      `json:"text"`
	Spans []span.Span `json:"spans"`
	Error string      `json:"error,omitempty"`
}

func newPackCmd() *cobra.Command {
	var (
		file  string
		width int
	)
	cmd := &cobra.Command{
		Use:   "pack [text...]",
		Short: "Validate a rule pack and show the spans it finds",
		Long: `Compile a rule pack (the embedded one when --file is empty). Each
argument is run through the span finder and printed as JSON.

Examples:
  taps pack --file rules.yaml
  taps pack '인증번호가 일이삼사야' 'www 쩜 example 쩜 com'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := rulepack.LoadFile(file)
			if err != nil {
				return perr.Wrap(err, perr.ErrorCodeInvalidArgument, "rule pack")
			}
			if len(args) == 0 {
				cmd.Printf("rule pack ok (version %d)\n", p.Version)
				return nil
			}
			f := span.New(p, span.Options{ContextWidth: width})
			probes := make([]packProbe, 0, len(args))
			for _, text := range args {
				spans, err := f.Find(text)
				pr := packProbe{Text: text, Spans: spans}
				if err != nil {
					pr.Error = err.Error()
				}
				probes = append(probes, pr)
			}
			return printJSON(cmd.OutOrStdout(), probes)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "rule pack yaml")
	cmd.Flags().IntVar(&width, "context", span.DefaultContextWidth, "context runes per side")
	return cmd
}
