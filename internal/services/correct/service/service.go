// Package service runs a batch of utterances through the correction gate
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/LetsGoKDH/taps/internal/core/apply"
	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/core/issue"
	"github.com/LetsGoKDH/taps/internal/core/span"
	"github.com/LetsGoKDH/taps/internal/core/triage"
	"github.com/LetsGoKDH/taps/internal/core/version"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/events"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	"github.com/LetsGoKDH/taps/internal/platform/validate"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
	"github.com/LetsGoKDH/taps/internal/services/correct/guardrails"
	rwdomain "github.com/LetsGoKDH/taps/internal/services/rewriter/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Config holds the runner settings, built once per process
type Config struct {
	// Workers bounds utterances in flight; <=0 -> 4
	Workers int

	// RewriterSlots bounds concurrent rewriter calls; <=0 -> Workers
	RewriterSlots int

	// K is the candidate count requested per span; <=0 -> 5
	K int

	// SentenceMode asks for a whole sentence rewrite when no span was found
	SentenceMode bool

	Timeouts guardrails.Timeouts
	Triage   triage.Config
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.RewriterSlots <= 0 {
		c.RewriterSlots = c.Workers
	}
	if c.K <= 0 {
		c.K = 5
	}
	if len(c.Triage.Cuts) == 0 {
		c.Triage = triage.DefaultConfig()
	}
	return c
}

// Service implements domain.RunnerPort
type Service struct {
	Finder   *span.Finder
	Engine   *decision.Engine
	Builder  issue.Builder
	Rewriter rwdomain.Port
	Ledger   domain.Ledger
	Lease    domain.LeaseFunc
	Events   events.Sink
	Metrics  *metrics.Metrics
	Cfg      Config
}

var _ domain.RunnerPort = (*Service)(nil)

// New constructs the runner. finder, engine, rewriter and ledger are required
func New(finder *span.Finder, engine *decision.Engine, rw rwdomain.Port, ledger domain.Ledger, cfg Config) *Service {
	if finder == nil || engine == nil {
		panic("correct.Service requires a finder and an engine")
	}
	if rw == nil {
		panic("correct.Service requires a non nil rewriter")
	}
	if ledger == nil {
		panic("correct.Service requires a non nil ledger")
	}
	return &Service{
		Finder:   finder,
		Engine:   engine,
		Builder:  issue.NewBuilder(finder.ContextWidth()),
		Rewriter: rw,
		Ledger:   ledger,
		Lease:    guardrails.NoLease,
		Events:   events.Discard{},
		Metrics:  metrics.Default,
		Cfg:      cfg.withDefaults(),
	}
}

// WithLease sets the batch lease
func (s *Service) WithLease(l domain.LeaseFunc) *Service {
	if l != nil {
		s.Lease = l
	}
	return s
}

// WithEvents sets the event sink for finalized outputs
func (s *Service) WithEvents(e events.Sink) *Service {
	if e != nil {
		s.Events = e
	}
	return s
}

// WithMetrics sets the collectors
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	if m != nil {
		s.Metrics = m
	}
	return s
}

// job is one validated utterance after the triage barrier
type job struct {
	idx     int
	u       domain.Utterance
	key     string
	spans   []span.Span
	spanErr error
	assign  triage.Assignment
}

// Run implements domain.RunnerPort. It always returns a report; the error is
// non nil only when the batch could not start or was canceled
func (s *Service) Run(ctx context.Context, b domain.Batch) (domain.Report, error) {
	runID := uuid.NewString()
	if b.ID == "" {
		b.ID = runID
	}
	ctx = logger.WithRun(ctx, runID)

	var rep domain.Report
	err := s.Lease(ctx, b.ID, runID, func(ctx context.Context) error {
		var err error
		rep, err = s.run(ctx, runID, b)
		return err
	})
	if rep.RunID == "" {
		rep = domain.Report{RunID: runID, BatchID: b.ID, Stats: domain.NewStats()}
	}
	return rep, err
}

func (s *Service) run(ctx context.Context, runID string, b domain.Batch) (rep domain.Report, err error) {
	log := logger.C(ctx)
	ctx, cancel := guardrails.WithRun(ctx, s.Cfg.Timeouts)
	defer cancel()

	rep = domain.Report{
		RunID:   runID,
		BatchID: b.ID,
		Total:   len(b.Records) + len(b.Rejected),
		Invalid: append([]domain.Invalid(nil), b.Rejected...),
		Stats:   domain.NewStats(),
		Started: time.Now().UTC(),
	}
	defer func() {
		rep.Elapsed = time.Since(rep.Started)
		s.Metrics.RunDuration.Observe(rep.Elapsed.Seconds())
	}()

	jobs, invalid := s.prepare(b.Records)
	rep.Invalid = append(rep.Invalid, invalid...)
	for range rep.Invalid {
		s.Metrics.Utterances.WithLabelValues("invalid").Inc()
	}

	// barrier: every valid utterance is scanned before any bucket is assigned
	items := make([]triage.Item, len(jobs))
	for i, j := range jobs {
		tags := make([]span.Tag, len(j.spans))
		for k, sp := range j.spans {
			tags[k] = sp.Tag
			s.Metrics.Spans.WithLabelValues(string(sp.Tag)).Inc()
		}
		items[i] = triage.Item{
			ID:               j.u.ID,
			Text:             j.u.Text,
			AvgLogprob:       j.u.Signal.AvgLogprob,
			CompressionRatio: j.u.Signal.CompressionRatio,
			Tags:             tags,
		}
	}
	tri, err := triage.Assign(items, s.Cfg.Triage)
	if err != nil {
		return rep, err
	}
	rep.Mode = tri.Mode
	for i := range jobs {
		jobs[i].assign = tri.Items[jobs[i].u.ID]
		s.Metrics.Buckets.WithLabelValues(string(jobs[i].assign.Bucket)).Inc()
	}

	var done map[string]domain.Entry
	done, err = s.Ledger.Load(ctx, b.ID)
	if err != nil {
		if ctx.Err() != nil {
			rep.Canceled = true
			return rep, perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "correct: run canceled")
		}
		return rep, perr.Wrap(err, perr.CodeOf(err), "correct: load ledger")
	}

	log.Info().
		Str("batch_id", b.ID).
		Int("valid", len(jobs)).
		Int("invalid", len(rep.Invalid)).
		Int("finalized", len(done)).
		Str("triage_mode", string(tri.Mode)).
		Int("workers", s.Cfg.Workers).
		Msg("correct: run start")

	outs := make([]*domain.Output, len(jobs))
	var (
		mu      sync.Mutex
		resumed int
	)
	slots := semaphore.NewWeighted(int64(s.Cfg.RewriterSlots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Cfg.Workers)

	for i := range jobs {
		j := jobs[i]
		if e, ok := done[j.u.ID]; ok && e.Final(j.key) {
			var o domain.Output
			if err := json.Unmarshal(e.Output, &o); err == nil {
				outs[j.idx] = &o
				resumed++
				s.Metrics.Utterances.WithLabelValues("resumed").Inc()
				continue
			}
			log.Warn().Str("utt_id", j.u.ID).Msg("correct: unreadable ledger output, reprocessing")
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			o, ok := s.finalize(gctx, slots, tri.Mode, b.ID, j)
			if ok {
				mu.Lock()
				outs[j.idx] = &o
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outs {
		if o == nil {
			continue
		}
		rep.Outputs = append(rep.Outputs, *o)
		rep.Stats.Add(*o)
	}
	sort.SliceStable(rep.Outputs, func(i, j int) bool { return rep.Outputs[i].UttID < rep.Outputs[j].UttID })
	rep.Stats.Resumed = resumed
	rep.Stats.Processed = len(rep.Outputs) - resumed

	ev := log.Info()
	if err := ctx.Err(); err != nil {
		rep.Canceled = true
		ev = log.Warn().Err(err)
	}
	ev.Str("batch_id", b.ID).
		Int("outputs", len(rep.Outputs)).
		Int("resumed", resumed).
		Int("issues", rep.Stats.Issues).
		Interface("buckets", rep.Stats.Buckets).
		Interface("outcomes", rep.Stats.Outcomes).
		Interface("actions", rep.Stats.Actions).
		Msg("correct: run done")

	if rep.Canceled {
		return rep, perr.Wrap(ctx.Err(), perr.ErrorCodeUnavailable, "correct: run canceled")
	}
	return rep, nil
}

// prepare validates, ingests and scans every record, isolating bad ones
func (s *Service) prepare(records []domain.Record) ([]job, []domain.Invalid) {
	var (
		jobs    []job
		invalid []domain.Invalid
		seen    = make(map[string]int, len(records))
	)
	reject := func(line int, uttID string, err error) {
		inv := domain.Invalid{Line: line, UttID: uttID, Code: perr.CodeOf(err).String(), Error: err.Error()}
		if e, ok := perr.As(err); ok {
			inv.Field = e.Field()
		}
		invalid = append(invalid, inv)
	}

	for i, raw := range records {
		line := raw.Line
		if line == 0 {
			line = i + 1
		}
		rec := raw.Resolve()
		if err := validate.Struct(rec, perr.ErrorCodeInputValidation); err != nil {
			reject(line, rec.UttID, err)
			continue
		}
		if prev, dup := seen[rec.UttID]; dup {
			reject(line, rec.UttID, perr.InputValidationf("duplicate utt_id %q, first seen on line %d", rec.UttID, prev))
			continue
		}
		u := rec.Ingest()
		spans, err := s.Finder.Find(u.Text)
		if perr.IsCode(err, perr.ErrorCodeInputValidation) {
			reject(line, u.ID, err)
			continue
		}
		seen[rec.UttID] = line
		jobs = append(jobs, job{idx: len(jobs), u: u, key: s.inputKey(u), spans: spans, spanErr: err})
	}
	return jobs, invalid
}

// inputKey ties a ledger row to the input and to every setting that changes the output
func (s *Service) inputKey(u domain.Utterance) string {
	h := sha256.New()
	for _, p := range []string{
		u.Hash,
		s.Engine.Policy().Version,
		version.PipelineVersion,
		strconv.Itoa(s.Cfg.K),
		strconv.Itoa(s.Builder.ContextWidth),
		strconv.FormatBool(s.Cfg.SentenceMode),
	} {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// finalize processes one utterance and records it. ok is false when the run
// was canceled before the output could be trusted
func (s *Service) finalize(ctx context.Context, slots *semaphore.Weighted, mode triage.Mode, batchID string, j job) (domain.Output, bool) {
	ctx = logger.WithUtterance(ctx, j.u.ID)
	log := logger.C(ctx)

	s.Metrics.InFlight.Inc()
	defer s.Metrics.InFlight.Dec()

	s.ledger(ctx, "start", func(lctx context.Context) error {
		return s.Ledger.Start(lctx, batchID, j.u.ID, j.key)
	})

	uctx, cancel := guardrails.ForUtterance(ctx, s.Cfg.Timeouts)
	defer cancel()
	o := s.process(uctx, slots, mode, j)

	// a canceled run leaves the row running; its escalations would be artifacts
	if ctx.Err() != nil {
		return o, false
	}

	b, err := json.Marshal(o)
	if err != nil {
		log.Error().Err(err).Msg("correct: encode output")
		s.ledger(ctx, "fail", func(lctx context.Context) error {
			return s.Ledger.Fail(lctx, batchID, j.u.ID, j.key, err.Error())
		})
		s.Metrics.Utterances.WithLabelValues("error").Inc()
		return o, false
	}
	s.ledger(ctx, "finish", func(lctx context.Context) error {
		return s.Ledger.Finish(lctx, batchID, j.u.ID, j.key, b)
	})
	s.Metrics.Utterances.WithLabelValues("ok").Inc()
	s.Metrics.Aggregates.WithLabelValues(string(o.Decision)).Inc()

	if err := s.Events.Publish(ctx, events.TopicOutput, o.UttID, o); err != nil {
		log.Warn().Err(err).Msg("correct: publish output")
	}
	return o, true
}

func (s *Service) ledger(ctx context.Context, op string, fn func(context.Context) error) {
	lctx, cancel := guardrails.ForLedger(ctx, s.Cfg.Timeouts)
	defer cancel()
	if err := fn(lctx); err != nil {
		logger.C(ctx).Error().Err(err).Str("op", op).Msg("correct: ledger write failed")
	}
}

// process is the pure part of one utterance: propose, decide, build issues, apply
func (s *Service) process(ctx context.Context, slots *semaphore.Weighted, mode triage.Mode, j job) domain.Output {
	u, a := j.u, j.assign
	policy := s.Engine.Policy()

	o := domain.Output{
		UttID:      u.ID,
		SpeakerID:  u.SpeakerID,
		SentenceID: u.SentenceID,
		TextRaw:    u.Text,
		Bucket:     a.Bucket,
		Issues:     []issue.Issue{},
		Audit: domain.Audit{
			PolicyVersion:   policy.Version,
			PipelineVersion: version.PipelineVersion,
			TriageSignal:    string(a.Signal),
			TriageMode:      string(mode),
			KCandidates:     s.Cfg.K,
			ContextLen:      s.Builder.ContextWidth,
			SpansDetected:   len(j.spans),
			Mode:            domain.ModeSpan,
		},
	}
	if j.spanErr != nil {
		o.Audit.SpanErrors = append(o.Audit.SpanErrors, j.spanErr.Error())
	}

	urlInSentence := false
	for _, sp := range j.spans {
		if sp.Tag == span.TagURL {
			urlInSentence = true
			break
		}
	}

	var (
		actions []decision.Action
		edits   []apply.Edit
	)
	for ordinal, sp := range j.spans {
		kind := candidate.TaskSpan
		if sp.Tag == span.TagURL {
			kind = candidate.TaskURL
		}
		cands, rwErr := s.propose(ctx, slots, rwdomain.Request{
			Kind: kind, Left: sp.Left, Span: sp.Text, Right: sp.Right, K: s.Cfg.K,
		})
		rec := ""
		if top, ok := candidate.Top(cands); ok {
			rec = top.Text
		}
		v := s.Engine.Decide(decision.Input{
			Tag:           sp.Tag,
			Bucket:        a.Bucket,
			Candidates:    cands,
			Source:        sp.Text,
			Recommended:   rec,
			URLInSentence: urlInSentence,
		})
		s.Metrics.RecordDecision(string(sp.Tag), string(v.Action), v.Reason)

		sd := domain.SpanDecision{Span: sp, Verdict: v}
		if rwErr != nil {
			sd.RewriterError = rwErr.Error()
		}
		switch v.Action {
		case decision.Accept:
			edits = append(edits, apply.Edit{Start: sp.Start, End: sp.End, Text: rec, Ref: issue.ID(u.ID, ordinal)})
		case decision.Escalate:
			is := s.Builder.Build(u.Source(), sp, a.Bucket, cands, ordinal, s.meta(u, a, v, sd.RewriterError))
			sd.IssueID = is.ID
			o.Issues = append(o.Issues, is)
		}
		actions = append(actions, v.Action)
		o.Spans = append(o.Spans, sd)
	}

	if len(j.spans) == 0 && s.Cfg.SentenceMode {
		o.Audit.Mode = domain.ModeSentence
		act, e, sd, is := s.sentence(ctx, slots, j)
		actions = append(actions, act)
		edits = append(edits, e...)
		o.Spans = append(o.Spans, sd)
		if is != nil {
			o.Issues = append(o.Issues, *is)
		}
	}

	res, err := apply.Apply(u.Text, edits)
	if err != nil {
		o.Audit.SpanErrors = append(o.Audit.SpanErrors, err.Error())
	}
	if c := res.Conflict(); c != nil {
		o.Audit.SkippedOverlaps = c.Skipped
		s.Metrics.OverlapSkip.Add(float64(len(c.Skipped)))
		logger.C(ctx).Warn().Err(c).Msg("correct: overlapping edits skipped")
	}
	o.AutoEdits = res.Applied
	o.Audit.AutoFixed = len(res.Applied)
	o.Decision = decision.Aggregate(actions, u.Text, res.Text)
	o.TextAvail = decision.TextAvail(o.Decision, res.Text)
	return o
}

// sentence proposes and decides a whole sentence rewrite
func (s *Service) sentence(ctx context.Context, slots *semaphore.Weighted, j job) (decision.Action, []apply.Edit, domain.SpanDecision, *issue.Issue) {
	u := j.u
	cands, rwErr := s.propose(ctx, slots, rwdomain.Request{Kind: candidate.TaskSentence, Span: u.Text, K: s.Cfg.K})
	rec := ""
	if top, ok := candidate.Top(cands); ok {
		rec = top.Text
	}
	v := s.Engine.Decide(decision.Input{
		Tag:         issue.TagSentence,
		Bucket:      j.assign.Bucket,
		Candidates:  cands,
		Source:      u.Text,
		Recommended: rec,
		Whole:       true,
	})
	s.Metrics.RecordDecision(string(issue.TagSentence), string(v.Action), v.Reason)

	n := len([]rune(u.Text))
	sd := domain.SpanDecision{
		Span:    span.Span{Start: 0, End: n, Text: u.Text, Tag: issue.TagSentence},
		Verdict: v,
	}
	if rwErr != nil {
		sd.RewriterError = rwErr.Error()
	}

	switch v.Action {
	case decision.Accept:
		return v.Action, []apply.Edit{{Start: 0, End: n, Text: rec, Ref: issue.ID(u.ID, 0)}}, sd, nil
	case decision.Escalate:
		is := s.Builder.BuildSentence(u.Source(), j.assign.Bucket, cands, 0, s.meta(u, j.assign, v, sd.RewriterError))
		sd.IssueID = is.ID
		return v.Action, nil, sd, &is
	}
	return v.Action, nil, sd, nil
}

// propose calls the rewriter under a slot and the per call budget. Any
// failure comes back as no candidates plus the error for the audit trail
func (s *Service) propose(ctx context.Context, slots *semaphore.Weighted, req rwdomain.Request) ([]candidate.Candidate, error) {
	if err := slots.Acquire(ctx, 1); err != nil {
		return nil, perr.RewriterUnavailable(err, "rewriter slot")
	}
	defer slots.Release(1)

	rctx, cancel := guardrails.ForRewrite(ctx, s.Cfg.Timeouts)
	defer cancel()
	cs, err := s.Rewriter.Propose(rctx, req)
	if err != nil {
		if !perr.IsCode(err, perr.ErrorCodeRewriterUnavailable) {
			err = perr.RewriterUnavailable(err, "rewriter")
		}
		logger.C(ctx).Debug().Err(err).Str("kind", string(req.Kind)).Msg("correct: no usable candidates")
		return nil, err
	}
	return candidate.Rank(cs, req.K), nil
}

func (s *Service) meta(u domain.Utterance, a triage.Assignment, v decision.Verdict, rwErr string) issue.Meta {
	return issue.Meta{
		PolicyVersion:    s.Engine.Policy().Version,
		TriageSignal:     string(a.Signal),
		Reason:           v.Reason,
		AvgLogprob:       u.Signal.AvgLogprob,
		CompressionRatio: u.Signal.CompressionRatio,
		NoSpeechProb:     u.Signal.NoSpeechProb,
		Duration:         u.Signal.Duration,
		Language:         u.Signal.Language,
		RewriterError:    rwErr,
	}
}
