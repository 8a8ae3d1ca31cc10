package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
)

func exercise(t *testing.T, st domain.Store) {
	t.Helper()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	two := 2
	rows := []domain.Resolution{
		{IssueID: "a#0", UttID: "a", Resolver: domain.ResolverHuman, FinalText: "first", ResolvedAt: at, Seq: 1},
		{IssueID: "a#0", UttID: "a", Resolver: domain.ResolverHuman, FinalText: "second", ResolvedAt: at, Seq: 2, CandidateIndex: &two},
		{IssueID: "a#0", UttID: "a", Resolver: domain.ResolverAuto, FinalText: "stale", ResolvedAt: at.Add(-time.Minute), Seq: 3},
		{IssueID: "b#0", UttID: "b", Resolver: domain.ResolverHuman, FinalText: "b", ResolvedAt: at, Seq: 4, Modified: true},
	}
	for _, r := range rows {
		if err := st.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	got, ok, err := st.Latest(ctx, "a#0")
	if err != nil || !ok {
		t.Fatalf("latest: %v %v", ok, err)
	}
	if got.FinalText != "second" || got.CandidateIndex == nil || *got.CandidateIndex != 2 {
		t.Fatalf("latest a#0 = %+v", got)
	}
	many, err := st.LatestMany(ctx, []string{"a#0", "b#0", "c#0"})
	if err != nil || len(many) != 2 || !many["b#0"].Modified {
		t.Fatalf("many = %+v %v", many, err)
	}
	if _, ok, _ := st.Latest(ctx, "c#0"); ok {
		t.Fatalf("c#0 has no records")
	}
}

func TestMemoryStore(t *testing.T) { exercise(t, NewMemory()) }

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "res.jsonl")
	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	exercise(t, f)

	// a torn tail is skipped on read
	raw, _ := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	_, _ = raw.WriteString(`{"issue_id":"a#0","final_te`)
	_ = raw.Close()
	got, ok, err := f.Latest(context.Background(), "a#0")
	if err != nil || !ok || got.FinalText != "second" {
		t.Fatalf("after torn tail: %+v %v %v", got, ok, err)
	}
}
