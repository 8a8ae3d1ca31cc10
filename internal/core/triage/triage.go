// Package triage assigns each utterance of a batch a severity bucket
//
// Utterances carrying an average log probability are ranked against each
// other, so the bucket of one utterance depends on the whole batch. The
// others get a heuristic risk score and are ranked against each other on
// that fallback scale, cut at the same percentiles
package triage

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/LetsGoKDH/taps/internal/core/span"
	perr "github.com/LetsGoKDH/taps/internal/platform/errors"
)

// Bucket is an ordinal severity class, RED is the most severe
type Bucket string

const (
	Red    Bucket = "RED"
	Orange Bucket = "ORANGE"
	Yellow Bucket = "YELLOW"
	Green  Bucket = "GREEN"
)

// Buckets lists buckets from most to least severe
var Buckets = []Bucket{Red, Orange, Yellow, Green}

// Severity is 3 for RED down to 0 for GREEN, -1 for unknown values
func (b Bucket) Severity() int {
	switch b {
	case Red:
		return 3
	case Orange:
		return 2
	case Yellow:
		return 1
	case Green:
		return 0
	}
	return -1
}

// Valid reports whether b is one of the four buckets
func (b Bucket) Valid() bool { return b.Severity() >= 0 }

// ParseBucket accepts any case
func ParseBucket(s string) (Bucket, error) {
	b := Bucket(strings.ToUpper(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", perr.InvalidArgf("triage: unknown bucket %q", s)
	}
	return b, nil
}

// Signal records which scale produced a bucket
type Signal string

const (
	SignalExplicit Signal = "explicit"
	SignalFallback Signal = "fallback"
)

// Mode summarises the signals of a whole batch
type Mode string

const (
	ModeSignal   Mode = "signal"
	ModeMixed    Mode = "mixed"
	ModeFallback Mode = "fallback"
)

// Item is the triage view of one utterance
type Item struct {
	ID               string
	Text             string
	AvgLogprob       *float64
	CompressionRatio *float64
	Tags             []span.Tag
}

// Assignment is the outcome for one item
type Assignment struct {
	Bucket Bucket  `json:"bucket"`
	Signal Signal  `json:"signal"`
	Rank   float64 `json:"rank,omitempty"`
	Risk   float64 `json:"risk,omitempty"`
}

// Result is the outcome for a batch
type Result struct {
	Mode   Mode
	Items  map[string]Assignment
	Counts map[Bucket]int
}

// Assign buckets a batch. It reads nothing but items and cfg
func Assign(items []Item, cfg Config) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	res := Result{
		Items:  make(map[string]Assignment, len(items)),
		Counts: make(map[Bucket]int, len(Buckets)),
	}

	var explicit, fallback []int
	for i, it := range items {
		if _, dup := res.Items[it.ID]; dup {
			return Result{}, perr.InputValidationf("triage: duplicate utterance id %q", it.ID)
		}
		res.Items[it.ID] = Assignment{}
		if it.AvgLogprob != nil {
			explicit = append(explicit, i)
		} else {
			fallback = append(fallback, i)
		}
	}

	switch {
	case len(items) > 0 && len(explicit) == len(items):
		res.Mode = ModeSignal
	case len(explicit) == 0:
		res.Mode = ModeFallback
	default:
		res.Mode = ModeMixed
	}

	lps := make([]float64, len(explicit))
	for k, i := range explicit {
		lps[k] = *items[i].AvgLogprob
	}
	// higher risk reads as a lower log probability
	risks := make([]float64, len(fallback))
	negated := make([]float64, len(fallback))
	for k, i := range fallback {
		risks[k] = cfg.Risk(items[i])
		negated[k] = -risks[k]
	}

	for k, r := range percentiles(lps) {
		it := items[explicit[k]]
		res.Items[it.ID] = Assignment{Bucket: cfg.byRank(r), Signal: SignalExplicit, Rank: r}
	}
	for k, r := range percentiles(negated) {
		it := items[fallback[k]]
		res.Items[it.ID] = Assignment{Bucket: cfg.byRank(r), Signal: SignalFallback, Rank: r, Risk: risks[k]}
	}
	for _, a := range res.Items {
		res.Counts[a.Bucket]++
	}
	return res, nil
}

// percentiles gives the mid-rank percentile of every value. Equal values
// share a percentile and a strictly lower value always ranks lower
func percentiles(vals []float64) []float64 {
	n := len(vals)
	out := make([]float64, n)
	if n == 1 {
		out[0] = 0.5
	}
	if n <= 1 {
		return out
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	for k, v := range vals {
		below := sort.SearchFloat64s(sorted, v)
		equal := sort.Search(n, func(j int) bool { return sorted[j] > v }) - below
		out[k] = (float64(below) + float64(equal-1)/2) / float64(n-1)
	}
	return out
}

func (c Config) byRank(r float64) Bucket {
	switch {
	case r < c.Cuts[0]:
		return Red
	case r < c.Cuts[1]:
		return Orange
	case r < c.Cuts[2]:
		return Yellow
	}
	return Green
}

// Risk is the heuristic score used when an item has no confidence signal
func (c Config) Risk(it Item) float64 {
	risk := 0.0
	for _, t := range it.Tags {
		risk += c.Weights[t]
	}
	if it.CompressionRatio != nil && *it.CompressionRatio > c.CompressionMax {
		risk += 2
	}
	if RepeatedNgram(it.Text, 2, c.NgramRepeat) {
		risk++
	}
	if utf8.RuneCountInString(strings.TrimSpace(it.Text)) < c.MinRunes {
		risk += 2
	}
	return risk
}

// RepeatedNgram reports a character n-gram repeated back to back at least
// repeats times, or that many identical consecutive words
func RepeatedNgram(text string, n, repeats int) bool {
	text = strings.TrimSpace(text)
	rs := []rune(text)
	if n <= 0 || repeats <= 1 || len(rs) < n*repeats {
		return false
	}
	for i := 0; i+n*repeats <= len(rs); i++ {
		pat := string(rs[i : i+n])
		if strings.Contains(text, strings.Repeat(pat, repeats)) {
			return true
		}
	}
	words := strings.Fields(text)
	for i := 0; i+repeats <= len(words); i++ {
		same := true
		for _, w := range words[i+1 : i+repeats] {
			if w != words[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}
