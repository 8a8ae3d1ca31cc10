package service

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	"github.com/LetsGoKDH/taps/internal/services/correct/domain"
)

// maxLine bounds one jsonl record
var maxLine = 4 << 20

// ReadBatch decodes one record per non blank line. Undecodable or oversized
// lines land in Batch.Rejected with their line number instead of failing the read
func ReadBatch(r io.Reader, id string) (domain.Batch, error) {
	b := domain.Batch{ID: id}
	br := bufio.NewReaderSize(r, 64<<10)
	line := 0
	for {
		raw, tooLong, err := readLine(br, maxLine)
		if err == io.EOF {
			break
		}
		if err != nil {
			return b, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read input at line %d", line+1)
		}
		line++
		if tooLong {
			b.Rejected = append(b.Rejected, domain.Invalid{
				Line:  line,
				Code:  perr.ErrorCodeInputValidation.String(),
				Error: fmt.Sprintf("record exceeds %d bytes", maxLine),
			})
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var rec domain.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			b.Rejected = append(b.Rejected, domain.Invalid{
				Line:  line,
				Code:  perr.ErrorCodeInputValidation.String(),
				Error: "undecodable record: " + err.Error(),
			})
			continue
		}
		rec.Line = line
		b.Records = append(b.Records, rec)
	}
	return b, nil
}

// ReadOutputs decodes an outputs file written by WriteOutputs
func ReadOutputs(r io.Reader) ([]domain.Output, error) {
	var out []domain.Output
	br := bufio.NewReaderSize(r, 64<<10)
	line := 0
	for {
		raw, tooLong, err := readLine(br, maxLine)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "read outputs")
		}
		line++
		if tooLong {
			return nil, perr.Newf(perr.ErrorCodeInvalidArgument, "outputs line %d exceeds %d bytes", line, maxLine)
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var o domain.Output
		if err := json.Unmarshal(raw, &o); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeJSON, "outputs line %d", line)
		}
		out = append(out, o)
	}
	return out, nil
}

// readLine returns the next line without its terminator. A line longer than
// limit is drained and reported as too long; io.EOF once input is exhausted
func readLine(br *bufio.Reader, limit int) (line []byte, tooLong bool, err error) {
	for {
		frag, isPrefix, err := br.ReadLine()
		if err != nil {
			return nil, false, err
		}
		if !tooLong {
			if len(line)+len(frag) > limit {
				tooLong, line = true, nil
			} else {
				line = append(line, frag...)
			}
		}
		if !isPrefix {
			return line, tooLong, nil
		}
	}
}

// WriteJSONL encodes rows one per line without html escaping
func WriteJSONL[T any](w io.Writer, rows []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return perr.Wrap(err, perr.ErrorCodeJSON, "encode row")
		}
	}
	return bw.Flush()
}

// WriteOutputs writes one output per line in the given order
func WriteOutputs(w io.Writer, outs []domain.Output) error { return WriteJSONL(w, outs) }

// WriteIssues flattens every issue of outs, one per line
func WriteIssues(w io.Writer, outs []domain.Output) error {
	var all []any
	for _, o := range outs {
		for _, is := range o.Issues {
			all = append(all, is)
		}
	}
	return WriteJSONL(w, all)
}
