package service

import (
	"io"
	"strconv"
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/candidate"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
	cdomain "github.com/LetsGoKDH/taps/internal/services/correct/domain"
	"github.com/LetsGoKDH/taps/internal/services/review/domain"

	"github.com/xuri/excelize/v2"
)

var widths = map[int]float64{1: 18, 9: 16, 10: 60, 11: 40, 12: 20, 13: 24, 15: 30}

// Export writes every issue of outs to a single sheet workbook
func Export(w io.Writer, outs []cdomain.Output) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", domain.Sheet); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "xlsx: sheet")
	}
	sw, err := f.NewStreamWriter(domain.Sheet)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "xlsx: stream writer")
	}
	for col, wd := range widths {
		if err := sw.SetColWidth(col, col, wd); err != nil {
			return perr.Wrap(err, perr.ErrorCodeUnknown, "xlsx: column width")
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "xlsx: style")
	}
	header := make([]any, len(domain.Columns))
	for i, c := range domain.Columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: bold}); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "xlsx: header")
	}

	n := 2
	for _, o := range outs {
		for _, is := range o.Issues {
			cell, _ := excelize.CoordinatesToCellName(1, n)
			row := []any{
				is.ID, is.UttID, is.SpeakerID, is.SentenceID, string(is.Bucket), string(is.Tag),
				is.SpanStart, is.SpanEnd, is.RawSpan, is.ContextMarked, candidate.Format(is.Candidates),
				is.RecommendedText, is.Prefill, domain.StatusOpen, "", floatCell(is.Meta.AvgLogprob), floatCell(is.Meta.CompressionRatio),
			}
			if err := sw.SetRow(cell, row); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeUnknown, "xlsx: row %d", n)
			}
			n++
		}
	}
	if err := sw.Flush(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnknown, "xlsx: flush")
	}
	if err := f.Write(w); err != nil {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, "xlsx: write")
	}
	return nil
}

func floatCell(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

// Import reads the review sheet back. Columns are matched by header name so
// reviewers may reorder or add columns
func Import(r io.Reader) ([]domain.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInputValidation, "xlsx: open")
	}
	defer f.Close()
	rows, err := f.GetRows(domain.Sheet)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInputValidation, "xlsx: sheet %q", domain.Sheet)
	}
	if len(rows) == 0 {
		return nil, perr.InputValidationf("xlsx: sheet %q is empty", domain.Sheet)
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range []string{"issue_id", "final_text", "status"} {
		if _, ok := idx[c]; !ok {
			return nil, perr.WithField(perr.InputValidationf("xlsx: missing column %q", c), c)
		}
	}

	var out []domain.Row
	for i, rec := range rows[1:] {
		get := func(col string) string {
			j, ok := idx[col]
			if !ok || j >= len(rec) {
				return ""
			}
			return rec[j]
		}
		id := strings.TrimSpace(get("issue_id"))
		if id == "" {
			continue
		}
		row := domain.Row{
			Line:             i + 2,
			IssueID:          id,
			UttID:            get("utt_id"),
			SpeakerID:        get("speaker_id"),
			SentenceID:       get("sentence_id"),
			Bucket:           get("bucket"),
			Tag:              get("tag"),
			RawSpan:          get("raw_span"),
			ContextMarked:    get("context_marked"),
			Candidates:       get("candidates"),
			Recommended:      get("recommended"),
			FinalText:        get("final_text"),
			Status:           get("status"),
			Notes:            get("notes"),
			AvgLogprob:       parseFloat(get("avg_logprob")),
			CompressionRatio: parseFloat(get("compression_ratio")),
			SpanStart:        -1,
			SpanEnd:          -1,
		}
		if v, err := strconv.Atoi(strings.TrimSpace(get("span_start"))); err == nil {
			row.SpanStart = v
		}
		if v, err := strconv.Atoi(strings.TrimSpace(get("span_end"))); err == nil {
			row.SpanEnd = v
		}
		out = append(out, row)
	}
	return out, nil
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}
