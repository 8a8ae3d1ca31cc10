// Package service is the review workflow: sheet export and import, issue
// listing and single resolutions, all reconciled through the finalizer
package service

import (
	"context"
	"sort"

	"github.com/LetsGoKDH/taps/internal/core/issue"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/validate"
	cdomain "github.com/LetsGoKDH/taps/internal/services/correct/domain"
	correct "github.com/LetsGoKDH/taps/internal/services/correct/service"
	resdomain "github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
	"github.com/LetsGoKDH/taps/internal/services/review/domain"
)

// Service reads outputs of one batch and records resolutions for their issues
type Service struct {
	Outputs     cdomain.OutputsPort
	Resolutions resdomain.Port
	BatchID     string
}

// New returns the review service for batchID
func New(outs cdomain.OutputsPort, res resdomain.Port, batchID string) *Service {
	if outs == nil || res == nil {
		panic("review.Service requires outputs and resolutions")
	}
	return &Service{Outputs: outs, Resolutions: res, BatchID: batchID}
}

// StaticOutputs serves a fixed set of outputs, e.g. read from an outputs file
type StaticOutputs []cdomain.Output

// Outputs implements cdomain.OutputsPort, the batch id is ignored
func (s StaticOutputs) Outputs(context.Context, string) ([]cdomain.Output, error) { return s, nil }

// ImportResult is what a sheet import produced
type ImportResult struct {
	Recorded []resdomain.Resolution `json:"recorded"`
	Pending  int                    `json:"pending"`
	Unknown  []string               `json:"unknown,omitempty"` // not found or span moved
	Finals   []correct.Final        `json:"-"`
}

// Issues lists the open issues of the batch, optionally for one utterance
func (s *Service) Issues(ctx context.Context, uttID string) ([]issue.Issue, error) {
	outs, err := s.Outputs.Outputs(ctx, s.BatchID)
	if err != nil {
		return nil, err
	}
	var all []issue.Issue
	for _, o := range outs {
		if uttID != "" && o.UttID != uttID {
			continue
		}
		all = append(all, o.Issues...)
	}
	resolved, err := s.Resolutions.LatestMany(ctx, ids(all))
	if err != nil {
		return nil, err
	}
	open := make([]issue.Issue, 0, len(all))
	for _, is := range all {
		if _, done := resolved[is.ID]; !done {
			open = append(open, is)
		}
	}
	return open, nil
}

// Resolve records a human resolution for one issue and returns the stored record
func (s *Service) Resolve(ctx context.Context, issueID string, req domain.ResolveRequest) (resdomain.Resolution, error) {
	if err := validate.Struct(req, perr.ErrorCodeInputValidation); err != nil {
		return resdomain.Resolution{}, err
	}
	is, err := s.find(ctx, issueID)
	if err != nil {
		return resdomain.Resolution{}, err
	}

	final := is.Prefill
	switch {
	case req.CandidateIndex != nil:
		i := *req.CandidateIndex
		if i >= len(is.Candidates) {
			return resdomain.Resolution{}, perr.WithField(
				perr.InputValidationf("candidate_index %d out of range, issue has %d", i, len(is.Candidates)), "candidate_index")
		}
		final = is.Candidates[i].Text
	case req.FinalText != nil:
		final = *req.FinalText
	}

	if err := s.Resolutions.Record(ctx, resdomain.FromIssue(is, final, resdomain.ResolverHuman, req.Reviewer)); err != nil {
		return resdomain.Resolution{}, err
	}
	r, _, err := s.Resolutions.Latest(ctx, issueID)
	return r, err
}

// Latest returns the superseding resolution of an issue
func (s *Service) Latest(ctx context.Context, issueID string) (resdomain.Resolution, error) {
	r, ok, err := s.Resolutions.Latest(ctx, issueID)
	if err != nil {
		return resdomain.Resolution{}, err
	}
	if !ok {
		return resdomain.Resolution{}, perr.NotFoundf("no resolution for %s", issueID)
	}
	return r, nil
}

// Import records a resolution per settled row, then finalizes every output
// against the latest resolutions
func (s *Service) Import(ctx context.Context, rows []domain.Row, reviewer string) (ImportResult, error) {
	log := logger.C(ctx)
	outs, err := s.Outputs.Outputs(ctx, s.BatchID)
	if err != nil {
		return ImportResult{}, err
	}
	byID := map[string]issue.Issue{}
	for _, o := range outs {
		for _, is := range o.Issues {
			byID[is.ID] = is
		}
	}

	var res ImportResult
	for _, row := range rows {
		is, ok := byID[row.IssueID]
		if !ok || (row.SpanStart >= 0 && (row.SpanStart != is.SpanStart || row.SpanEnd != is.SpanEnd)) {
			log.Warn().Str("issue_id", row.IssueID).Int("line", row.Line).Msg("review: row does not match an issue")
			res.Unknown = append(res.Unknown, row.IssueID)
			continue
		}
		final, settled := row.Final(is)
		if !settled {
			res.Pending++
			continue
		}
		r := resdomain.FromIssue(is, final, resdomain.ResolverHuman, reviewer)
		if err := s.Resolutions.Record(ctx, r); err != nil {
			return res, perr.WithOp(err, "review.import")
		}
		res.Recorded = append(res.Recorded, r)
	}

	latest, err := s.Resolutions.LatestMany(ctx, keys(byID))
	if err != nil {
		return res, err
	}
	texts := resdomain.Texts(latest)
	for _, o := range outs {
		f, err := correct.Finalize(o, texts)
		if err != nil {
			log.Warn().Err(err).Str("utt_id", o.UttID).Msg("review: finalize")
		}
		res.Finals = append(res.Finals, f)
	}
	log.Info().
		Int("recorded", len(res.Recorded)).
		Int("pending", res.Pending).
		Int("unknown", len(res.Unknown)).
		Msg("review: import done")
	return res, nil
}

func (s *Service) find(ctx context.Context, issueID string) (issue.Issue, error) {
	uttID, _, err := issue.ParseID(issueID)
	if err != nil {
		return issue.Issue{}, err
	}
	outs, err := s.Outputs.Outputs(ctx, s.BatchID)
	if err != nil {
		return issue.Issue{}, err
	}
	for _, o := range outs {
		if o.UttID != uttID {
			continue
		}
		for _, is := range o.Issues {
			if is.ID == issueID {
				return is, nil
			}
		}
	}
	return issue.Issue{}, perr.NotFoundf("issue %s not found", issueID)
}

func ids(is []issue.Issue) []string {
	out := make([]string, len(is))
	for i, x := range is {
		out[i] = x.ID
	}
	return out
}

func keys(m map[string]issue.Issue) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
