package repo

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"sync"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/platform/logger"
	"github.com/LetsGoKDH/taps/internal/services/resolutions/domain"
)

// File appends one JSON record per line. Reads scan the whole file, which is
// fine at review scale
type File struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

var _ domain.Store = (*File)(nil)

// OpenFile opens or creates the log at path
func OpenFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "resolutions: open %s", path)
	}
	return &File{path: path, f: f}, nil
}

// Append implements domain.Store
func (l *File) Append(_ context.Context, r domain.Resolution) error {
	b, err := json.Marshal(r)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "resolutions: encode")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.f.Write(append(b, '\n')); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "resolutions: append")
	}
	return nil
}

// Latest implements domain.Store
func (l *File) Latest(ctx context.Context, issueID string) (domain.Resolution, bool, error) {
	got, err := l.LatestMany(ctx, []string{issueID})
	r, ok := got[issueID]
	return r, ok, err
}

// LatestMany implements domain.Store
func (l *File) LatestMany(ctx context.Context, issueIDs []string) (map[string]domain.Resolution, error) {
	rows, err := l.read(ctx)
	if err != nil {
		return nil, err
	}
	return latest(rows, issueIDs), nil
}

func (l *File) read(ctx context.Context) ([]domain.Resolution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	f, err := os.Open(l.path)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "resolutions: read %s", l.path)
	}
	defer f.Close()

	var out []domain.Resolution
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var r domain.Resolution
		if err := json.Unmarshal(raw, &r); err != nil {
			logger.C(ctx).Warn().Err(err).Int("line", line).Str("path", l.path).Msg("resolutions: skip torn line")
			continue
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "resolutions: scan")
	}
	return out, nil
}

// Close closes the file
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}
