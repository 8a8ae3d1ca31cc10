package repo

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	ptime "github.com/LetsGoKDH/taps/internal/platform/time"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

// File is an append only JSONL ledger. Each state change is one line and
// the last line per utterance wins on Load, so a torn final line from a
// crash only loses that one transition
type File struct {
	path string
	mu   sync.Mutex
	f    *os.File
	w    *bufio.Writer
	now  func() time.Time
}

var _ domain.Ledger = (*File)(nil)

// OpenFile opens or creates the ledger at path
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "correct: open ledger %s", path)
	}
	return &File{path: path, f: f, w: bufio.NewWriter(f), now: ptime.Now}, nil
}

// Load implements domain.Ledger
func (l *File) Load(ctx context.Context, batchID string) (map[string]domain.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "correct: flush ledger")
	}

	r, err := os.Open(l.path)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "correct: read ledger")
	}
	defer r.Close()

	out := map[string]domain.Entry{}
	br := bufio.NewReader(r)
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := br.ReadBytes('\n')
		if len(b) > 0 {
			line++
			var e domain.Entry
			if jerr := json.Unmarshal(b, &e); jerr != nil {
				logger.C(ctx).Warn().Err(jerr).Int("line", line).Str("path", l.path).Msg("correct: skip torn ledger line")
			} else if e.BatchID == batchID {
				out[e.UttID] = merge(out[e.UttID], e)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "correct: read ledger")
		}
	}
	return out, nil
}

// Start implements domain.Ledger
func (l *File) Start(_ context.Context, batchID, uttID, hash string) error {
	return l.append(domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusRunning, InputHash: hash})
}

// Finish implements domain.Ledger, the line is flushed before returning
func (l *File) Finish(_ context.Context, batchID, uttID, hash string, output json.RawMessage) error {
	return l.append(domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusOK, InputHash: hash, Output: output})
}

// Fail implements domain.Ledger
func (l *File) Fail(_ context.Context, batchID, uttID, hash, errText string) error {
	return l.append(domain.Entry{BatchID: batchID, UttID: uttID, Status: domain.StatusError, InputHash: hash, Error: errText})
}

func (l *File) append(e domain.Entry) error {
	e.UpdatedAt = l.now().UTC()
	b, err := json.Marshal(e)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "correct: encode ledger entry")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.w.Write(append(b, '\n')); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "correct: append ledger")
	}
	if err := l.w.Flush(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "correct: flush ledger")
	}
	return nil
}

// Close flushes and closes the file
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ferr := l.w.Flush()
	cerr := l.f.Close()
	return errors.Join(ferr, cerr)
}
