package service

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	"github.com/LetsGoKDH/taps/internal/core/decision"
	"github.com/LetsGoKDH/taps/internal/core/issue"
	"github.com/LetsGoKDH/taps/internal/core/rulepack"
	"github.com/LetsGoKDH/taps/internal/core/span"
	"github.com/LetsGoKDH/taps/internal/core/triage"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/events"
	"github.com/LetsGoKDH/taps/internal/platform/metrics"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
	"github.com/LetsGoKDH/taps/internal/services/correct/guardrails"
	"github.com/LetsGoKDH/taps/internal/services/correct/repo"
	rwdomain "github.com/LetsGoKDH/taps/internal/services/rewriter/domain"
	"github.com/LetsGoKDH/taps/internal/services/rewriter/mock"

	"github.com/prometheus/client_golang/prometheus"
)

func f64(v float64) *float64 { return &v }

// three signal levels land in RED, ORANGE and GREEN under these cuts
var testCuts = func() triage.Config {
	c := triage.DefaultConfig()
	c.Cuts = []float64{0.1, 0.6, 0.9}
	return c
}()

func newService(t *testing.T, rw rwdomain.Port, cfg Config) (*Service, *repo.Memory) {
	t.Helper()
	engine, err := decision.NewEngine(decision.DefaultPolicy())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if len(cfg.Triage.Cuts) == 0 {
		cfg.Triage = testCuts
	}
	ledger := repo.NewMemory()
	s := New(span.New(rulepack.MustLoad(), span.Options{}), engine, rw, ledger, cfg).
		WithMetrics(metrics.New(prometheus.NewRegistry()))
	return s, ledger
}

func scenarioRewriter() *mock.Rewriter {
	return &mock.Rewriter{Table: map[string][]candidate.Candidate{
		"일이삼사":       {{Text: "1 2 3 4", Score: 0.62}, {Text: "1234", Score: 0.55}},
		"공일공일이삼사오육칠": {{Text: "공일공일이삼사오육팔", Score: 0.90}, {Text: "공일공일이삼사오육칠", Score: 0.60}},
	}}
}

func scenarioBatch() domain.Batch {
	return domain.Batch{ID: "batch-1", Records: []domain.Record{
		{SpeakerID: "spk0", SentenceID: "s000", Text: "회의실에서 만나요", AvgLogprob: f64(-2.0)},
		{SpeakerID: "spk1", SentenceID: "s001", Text: "인증번호가 일이삼사야", AvgLogprob: f64(-1.0)},
		{SpeakerID: "spk1", SentenceID: "s002", Text: "인증번호가 공일공일이삼사오육칠야", AvgLogprob: f64(-0.1)},
	}}
}

func byID(rep domain.Report) map[string]domain.Output {
	m := make(map[string]domain.Output, len(rep.Outputs))
	for _, o := range rep.Outputs {
		m[o.UttID] = o
	}
	return m
}

func checkInvariants(t *testing.T, outs []domain.Output) {
	t.Helper()
	for _, o := range outs {
		switch o.Decision {
		case decision.PartiallyEscalated:
			if o.TextAvail != nil {
				t.Fatalf("%s: escalated output carries text", o.UttID)
			}
		case decision.Unchanged:
			if o.TextAvail == nil || *o.TextAvail != o.TextRaw {
				t.Fatalf("%s: unchanged output must equal raw", o.UttID)
			}
		case decision.FullyAccepted:
			if o.TextAvail == nil || *o.TextAvail == o.TextRaw {
				t.Fatalf("%s: accepted output must differ from raw", o.UttID)
			}
		default:
			t.Fatalf("%s: unknown decision %q", o.UttID, o.Decision)
		}
	}
}

func TestRun_Scenarios(t *testing.T) {
	s, _ := newService(t, scenarioRewriter(), Config{Workers: 2})
	rep, err := s.Run(context.Background(), scenarioBatch())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Mode != triage.ModeSignal || len(rep.Outputs) != 3 || len(rep.Invalid) != 0 {
		t.Fatalf("report = %+v", rep)
	}
	checkInvariants(t, rep.Outputs)
	outs := byID(rep)

	// scenario 1: ORANGE, narrow margin, escalate with recommendation 0
	o1 := outs["spk1_s001"]
	if o1.Bucket != triage.Orange || o1.Decision != decision.PartiallyEscalated || o1.TextAvail != nil {
		t.Fatalf("scenario 1 = %+v", o1)
	}
	if len(o1.Issues) != 1 {
		t.Fatalf("scenario 1 issues = %+v", o1.Issues)
	}
	is := o1.Issues[0]
	if is.ID != "spk1_s001#0" || is.SpanStart != 6 || is.SpanEnd != 10 || is.RawSpan != "일이삼사" ||
		is.Recommended != 0 || is.Prefill != "1 2 3 4" || is.Tag != span.TagNumeric {
		t.Fatalf("scenario 1 issue = %+v", is)
	}
	if o1.Spans[0].Verdict.Action != decision.Escalate {
		t.Fatalf("scenario 1 verdict = %+v", o1.Spans[0].Verdict)
	}

	// scenario 2: GREEN, margin 0.30, distance 0.10, accepted
	o2 := outs["spk1_s002"]
	if o2.Bucket != triage.Green || o2.Decision != decision.FullyAccepted {
		t.Fatalf("scenario 2 = %+v", o2)
	}
	if *o2.TextAvail != "인증번호가 공일공일이삼사오육팔야" || len(o2.Issues) != 0 || o2.Audit.AutoFixed != 1 {
		t.Fatalf("scenario 2 text = %q issues %d", *o2.TextAvail, len(o2.Issues))
	}

	// scenario 4: zero spans, unchanged and no issues
	o4 := outs["spk0_s000"]
	if o4.Decision != decision.Unchanged || *o4.TextAvail != "회의실에서 만나요" || len(o4.Issues) != 0 {
		t.Fatalf("scenario 4 = %+v", o4)
	}
	if o4.Audit.Mode != domain.ModeSpan || o4.Audit.SpansDetected != 0 {
		t.Fatalf("scenario 4 audit = %+v", o4.Audit)
	}

	if rep.Stats.Issues != 1 || rep.Stats.Outcomes[decision.FullyAccepted] != 1 || rep.Stats.Processed != 3 {
		t.Fatalf("stats = %+v", rep.Stats)
	}
}

func TestRun_RewriterTimeoutEscalates(t *testing.T) {
	rw := &mock.Rewriter{
		Delay: 500 * time.Millisecond,
		Table: scenarioRewriter().Table,
	}
	s, _ := newService(t, rw, Config{Timeouts: guardrails.Timeouts{Rewrite: 20 * time.Millisecond}})

	start := time.Now()
	rep, err := s.Run(context.Background(), domain.Batch{Records: []domain.Record{
		{SpeakerID: "a", SentenceID: "1", Text: "인증번호가 공일공일이삼사오육칠야", AvgLogprob: f64(-0.1)},
		{SpeakerID: "b", SentenceID: "1", Text: "회의실에서 만나요", AvgLogprob: f64(-0.2)},
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if time.Since(start) > 400*time.Millisecond {
		t.Fatalf("rewriter timeout not applied")
	}
	outs := byID(rep)
	a := outs["a_1"]
	if a.Decision != decision.PartiallyEscalated || len(a.Issues) != 1 {
		t.Fatalf("timed out span must escalate: %+v", a)
	}
	sd := a.Spans[0]
	if sd.Verdict.Reason != decision.ReasonNoCandidates || sd.RewriterError == "" || a.Issues[0].Meta.RewriterError == "" {
		t.Fatalf("span decision = %+v", sd)
	}
	if a.Issues[0].Recommended != -1 || a.Issues[0].Prefill != "공일공일이삼사오육칠" {
		t.Fatalf("issue = %+v", a.Issues[0])
	}
	if outs["b_1"].Decision != decision.Unchanged {
		t.Fatalf("sibling utterance = %+v", outs["b_1"])
	}
	if rep.Stats.Rewriter != 1 {
		t.Fatalf("rewriter failures = %d", rep.Stats.Rewriter)
	}
}

func TestRun_URLNeverAccepted(t *testing.T) {
	rw := &mock.Rewriter{Fn: func(_ context.Context, req rwdomain.Request) ([]candidate.Candidate, error) {
		return []candidate.Candidate{{Text: req.Span + "x", Score: 1}}, nil
	}}
	s, _ := newService(t, rw, Config{})
	rep, err := s.Run(context.Background(), domain.Batch{Records: []domain.Record{
		{SpeakerID: "a", SentenceID: "1", Text: "www.naver.com 접속해봐", AvgLogprob: f64(-0.01)},
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	o := rep.Outputs[0]
	if o.Decision != decision.PartiallyEscalated || o.TextAvail != nil {
		t.Fatalf("url output = %+v", o)
	}
	var url *domain.SpanDecision
	for i := range o.Spans {
		if o.Spans[i].Span.Tag == span.TagURL {
			url = &o.Spans[i]
		}
	}
	if url == nil || url.Span.Text != "www.naver.com" || url.Verdict.Reason != decision.ReasonGuardURL {
		t.Fatalf("url span = %+v", o.Spans)
	}
	if calls := rw.Calls(); len(calls) == 0 || calls[0].Kind != candidate.TaskURL {
		t.Fatalf("calls = %+v", calls)
	}
}

func TestRun_UnchangedKeepsRawSpacing(t *testing.T) {
	s, _ := newService(t, scenarioRewriter(), Config{})
	raw := "  회의실에서   만나요 "
	rep, err := s.Run(context.Background(), domain.Batch{Records: []domain.Record{
		{SpeakerID: "s", SentenceID: "1", Text: raw, AvgLogprob: f64(-0.1)},
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	o := byID(rep)["s_1"]
	if o.TextRaw != raw || o.Decision != decision.Unchanged || o.TextAvail == nil || *o.TextAvail != raw {
		t.Fatalf("output = %+v", o)
	}
}

func TestRun_InvalidIsolated(t *testing.T) {
	s, _ := newService(t, scenarioRewriter(), Config{})
	b := scenarioBatch()
	b.Records = append(b.Records,
		domain.Record{SpeakerID: "x", SentenceID: "1", Text: "   ", Line: 10},
		domain.Record{SentenceID: "2", Text: "안녕", Line: 11},
		domain.Record{SpeakerID: "spk1", SentenceID: "s001", Text: "다른 문장", Line: 12},
		domain.Record{SpeakerID: "y", SentenceID: "1", TextRaw: "회의실에서 만나요", Line: 13},
	)
	b.Rejected = []domain.Invalid{{Line: 9, Code: "input_validation", Error: "undecodable record"}}

	rep, err := s.Run(context.Background(), b)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Total != 8 || len(rep.Outputs) != 4 || len(rep.Invalid) != 4 {
		t.Fatalf("total %d outputs %d invalid %+v", rep.Total, len(rep.Outputs), rep.Invalid)
	}
	lines := map[int]domain.Invalid{}
	for _, inv := range rep.Invalid {
		lines[inv.Line] = inv
	}
	if lines[10].Field != "text" || lines[11].Field != "speaker_id" {
		t.Fatalf("invalid fields = %+v", rep.Invalid)
	}
	if !strings.Contains(lines[12].Error, "duplicate") || lines[12].Code != perr.ErrorCodeInputValidation.String() {
		t.Fatalf("duplicate = %+v", lines[12])
	}
	if _, ok := byID(rep)["y_1"]; !ok {
		t.Fatalf("text_raw alias not accepted")
	}
}

func TestRun_ResumeSkipsFinalized(t *testing.T) {
	rw := scenarioRewriter()
	s, ledger := newService(t, rw, Config{})
	first, err := s.Run(context.Background(), scenarioBatch())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	calls := len(rw.Calls())
	if calls != 2 {
		t.Fatalf("first run calls = %d", calls)
	}
	rows, _ := ledger.Load(context.Background(), "batch-1")
	for id, e := range rows {
		if e.Status != domain.StatusOK {
			t.Fatalf("%s status = %s", id, e.Status)
		}
	}

	second, err := s.Run(context.Background(), scenarioBatch())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(rw.Calls()) != calls || second.Stats.Resumed != 3 || second.Stats.Processed != 0 {
		t.Fatalf("second run calls %d stats %+v", len(rw.Calls()), second.Stats)
	}
	var a, b bytes.Buffer
	_ = WriteOutputs(&a, first.Outputs)
	_ = WriteOutputs(&b, second.Outputs)
	if a.String() != b.String() {
		t.Fatalf("resumed outputs differ\n%s\n%s", a.String(), b.String())
	}

	changed := scenarioBatch()
	changed.Records[1].Text = "인증번호가 일이삼사입니다"
	third, err := s.Run(context.Background(), changed)
	if err != nil {
		t.Fatalf("third run: %v", err)
	}
	if third.Stats.Resumed != 2 || third.Stats.Processed != 1 {
		t.Fatalf("changed input must be reprocessed, stats %+v", third.Stats)
	}
}

func TestRun_SentenceMode(t *testing.T) {
	rw := &mock.Rewriter{Fn: func(_ context.Context, req rwdomain.Request) ([]candidate.Candidate, error) {
		if req.Kind != candidate.TaskSentence {
			return nil, rwdomain.ErrEmpty
		}
		return []candidate.Candidate{{Text: req.Span + ".", Score: 0.9}}, nil
	}}
	s, _ := newService(t, rw, Config{SentenceMode: true})
	rep, err := s.Run(context.Background(), domain.Batch{Records: []domain.Record{
		{SpeakerID: "g", SentenceID: "1", Text: "회의실에서 만나요", AvgLogprob: f64(-0.1)},
		{SpeakerID: "m", SentenceID: "1", Text: "회의실에서 만나요", AvgLogprob: f64(-0.5)},
		{SpeakerID: "r", SentenceID: "1", Text: "회의실에서 만나요", AvgLogprob: f64(-3)},
	}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	checkInvariants(t, rep.Outputs)
	outs := byID(rep)

	g := outs["g_1"]
	if g.Decision != decision.FullyAccepted || *g.TextAvail != "회의실에서 만나요." || g.Audit.Mode != domain.ModeSentence {
		t.Fatalf("green sentence = %+v", g)
	}
	r := outs["r_1"]
	if r.Decision != decision.PartiallyEscalated || len(r.Issues) != 1 {
		t.Fatalf("red sentence = %+v", r)
	}
	if is := r.Issues[0]; is.Tag != issue.TagSentence || is.Task != candidate.TaskSentence || is.ID != "r_1#0" {
		t.Fatalf("sentence issue = %+v", is)
	}
}

func TestRun_CanceledLeavesNothingFinal(t *testing.T) {
	s, ledger := newService(t, scenarioRewriter(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := s.Run(ctx, scenarioBatch())
	if err == nil || !rep.Canceled {
		t.Fatalf("want canceled run, got %v %+v", err, rep)
	}
	rows, _ := ledger.Load(context.Background(), "batch-1")
	for id, e := range rows {
		if e.Status == domain.StatusOK {
			t.Fatalf("%s finalized after cancel", id)
		}
	}
}

type recordingSink struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingSink) Publish(_ context.Context, t events.Topic, key string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t == events.TopicOutput {
		r.keys = append(r.keys, key)
	}
	return nil
}

func TestRun_ResequencedAndPublished(t *testing.T) {
	rw := &mock.Rewriter{Fn: func(ctx context.Context, req rwdomain.Request) ([]candidate.Candidate, error) {
		// later utterances answer first
		d := time.Duration(40-len([]rune(req.Span))) * time.Millisecond
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []candidate.Candidate{{Text: req.Span, Score: 1}}, nil
	}}
	sink := &recordingSink{}
	s, _ := newService(t, rw, Config{Workers: 4})
	s.WithEvents(sink)

	var recs []domain.Record
	for i, txt := range []string{"오늘 meeting 있어", "그 file 보내줘", "이 code 봐", "새 project 시작"} {
		recs = append(recs, domain.Record{SpeakerID: "s", SentenceID: string(rune('d' - i)), Text: txt})
	}
	rep, err := s.Run(context.Background(), domain.Batch{Records: recs})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if rep.Mode != triage.ModeFallback {
		t.Fatalf("mode = %s", rep.Mode)
	}
	for i := 1; i < len(rep.Outputs); i++ {
		if rep.Outputs[i-1].UttID >= rep.Outputs[i].UttID {
			t.Fatalf("outputs not resequenced: %s before %s", rep.Outputs[i-1].UttID, rep.Outputs[i].UttID)
		}
	}
	if len(sink.keys) != 4 {
		t.Fatalf("published %v", sink.keys)
	}
	for _, o := range rep.Outputs {
		if o.Decision != decision.Unchanged || len(o.Spans) == 0 {
			t.Fatalf("identity candidates must pass: %+v", o)
		}
		for _, sd := range o.Spans {
			if sd.Verdict.Reason != decision.ReasonSame {
				t.Fatalf("%s: verdict %+v", o.UttID, sd.Verdict)
			}
		}
	}
}

func TestRun_LeaseHeld(t *testing.T) {
	s, _ := newService(t, scenarioRewriter(), Config{})
	s.WithLease(func(context.Context, string, string, func(context.Context) error) error {
		return guardrails.ErrLeaseHeld
	})
	_, err := s.Run(context.Background(), scenarioBatch())
	if !guardrails.IsLeaseHeld(err) || !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("want held lease, got %v", err)
	}
}
