package repo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/LetsGoKDH/taps/internal/modkit/repokit"
	"github.com/LetsGoKDH/taps/internal/platform/testkit"
	ptime "github.com/LetsGoKDH/taps/internal/platform/time"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

func exercise(t *testing.T, l domain.Ledger) {
	t.Helper()
	ctx := context.Background()
	out := json.RawMessage(`{"utt_id":"a"}`)

	steps := []func() error{
		func() error { return l.Start(ctx, "b1", "a", "h1") },
		func() error { return l.Finish(ctx, "b1", "a", "h1", out) },
		func() error { return l.Start(ctx, "b1", "a", "h1") }, // stale writer, ignored
		func() error { return l.Start(ctx, "b1", "b", "h2") },
		func() error { return l.Fail(ctx, "b1", "c", "h3", "boom") },
		func() error { return l.Start(ctx, "b2", "a", "h1") },
	}
	for i, s := range steps {
		if err := s(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	got, err := l.Load(ctx, "b1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("entries = %d, want 3: %+v", len(got), got)
	}
	if a := got["a"]; !a.Final("h1") || a.Final("other") || string(a.Output) != string(out) {
		t.Fatalf("a = %+v", a)
	}
	if b := got["b"]; b.Status != domain.StatusRunning || b.Final("h2") {
		t.Fatalf("b = %+v", b)
	}
	if c := got["c"]; c.Status != domain.StatusError || c.Error != "boom" {
		t.Fatalf("c = %+v", c)
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestMemoryRehashReplaces(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Finish(ctx, "b", "a", "old", json.RawMessage(`{}`))
	_ = m.Start(ctx, "b", "a", "new")
	got, _ := m.Load(ctx, "b")
	if got["a"].Status != domain.StatusRunning || got["a"].InputHash != "new" {
		t.Fatalf("changed input must reopen the row, got %+v", got["a"])
	}
}

func TestFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "ledger.jsonl")
	l, err := OpenFile(p)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	exercise(t, l)
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// torn tail from a crash
	f, _ := os.OpenFile(p, os.O_APPEND|os.O_WRONLY, 0o644)
	_, _ = f.WriteString(`{"batch_id":"b1","utt_id":"b","sta`)
	_ = f.Close()

	l2, err := OpenFile(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer l2.Close()
	got, err := l2.Load(context.Background(), "b1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got["a"].Final("h1") || got["b"].Status != domain.StatusRunning {
		t.Fatalf("reloaded = %+v", got)
	}
}

type fakeTag struct{}

func (fakeTag) String() string      { return "INSERT 0 1" }
func (fakeTag) RowsAffected() int64 { return 1 }

type fakeRows struct {
	data [][]any
	i    int
}

func (r *fakeRows) Next() bool {
	if r.i >= len(r.data) {
		return false
	}
	r.i++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.i-1]
	for i := range dest {
		switch d := dest[i].(type) {
		case *string:
			*d = row[i].(string)
		case *time.Time:
			*d = row[i].(time.Time)
		}
	}
	return nil
}

func (r *fakeRows) Err() error        { return nil }
func (r *fakeRows) Close()            {}
func (r *fakeRows) Columns() []string { return nil }

type call struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls []call
	rows  [][]any
	txs   int
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (repokit.CommandTag, error) {
	f.calls = append(f.calls, call{sql, args})
	return fakeTag{}, nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (repokit.Rows, error) {
	f.calls = append(f.calls, call{sql, args})
	return &fakeRows{data: f.rows}, nil
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) repokit.Row { return nil }

func (f *fakeDB) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	f.txs++
	return fn(f)
}

func TestPostgresLedger(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{"a", "ok", "h1", `{"utt_id":"a"}`, "", at},
		{"b", "error", "h2", "", "boom", at},
	}}
	l := NewPostgres(db, nil)
	l.Now = func() time.Time { return at }
	ctx := context.Background()

	if err := l.Finish(ctx, "b1", "a", "h1", json.RawMessage(`{"x":1}`)); err != nil {
		t.Fatalf("finish: %v", err)
	}
	c := db.calls[0]
	if !strings.Contains(c.sql, "ON CONFLICT (batch_id, utt_id)") {
		t.Fatalf("sql = %s", c.sql)
	}
	if c.args[0] != "b1" || c.args[1] != "a" || c.args[2] != "ok" || c.args[4] != `{"x":1}` {
		t.Fatalf("args = %v", c.args)
	}

	if err := l.Start(ctx, "b1", "z", "h9"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if db.calls[1].args[4] != nil {
		t.Fatalf("running row must carry a null output, got %v", db.calls[1].args[4])
	}

	got, err := l.Load(ctx, "b1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !got["a"].Final("h1") || got["b"].Error != "boom" || got["b"].Output != nil {
		t.Fatalf("loaded = %+v", got)
	}
	if db.txs != 3 {
		t.Fatalf("tx count = %d", db.txs)
	}
}

func TestMemoryStampsClock(t *testing.T) {
	testkit.Serial(t)
	at := time.Date(2025, 9, 2, 10, 0, 0, 0, time.UTC)
	testkit.Swap(t, &ptime.Now, func() time.Time { return at })

	m := NewMemory()
	ctx := context.Background()
	if err := m.Start(ctx, "b", "a", "h"); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Load(ctx, "b")
	if !got["a"].UpdatedAt.Equal(at) {
		t.Fatalf("updated_at = %v, want %v", got["a"].UpdatedAt, at)
	}
}
