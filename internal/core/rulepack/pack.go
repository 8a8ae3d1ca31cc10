// Package rulepack loads the lexical resources behind span detection
//
// The embedded pack.yaml carries numeric context words, URL cues, a small
// lexicon with particle endings and the idiom list. Deployments may replace it
// with LoadFile
package rulepack

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/LetsGoKDH/taps/internal/core/normalize"

	"gopkg.in/yaml.v3"
)

//go:embed pack.yaml
var embedded []byte

// Numeric holds the context cues that qualify a number-like run
type Numeric struct {
	Lookahead    int      `yaml:"lookahead"`
	Lookback     int      `yaml:"lookback"`
	MinKoreanRun int      `yaml:"min_korean_run"`
	Keywords     []string `yaml:"keywords"`
	Units        []string `yaml:"units"`
	Particles    []string `yaml:"particles"`
}

// URL holds the domain suffixes and spoken URL cues
type URL struct {
	TLDs     []string `yaml:"tlds"`
	Phonetic []string `yaml:"phonetic"`
}

// Lexicon is the known word list used for out of vocabulary checks
type Lexicon struct {
	MinStem            int      `yaml:"min_stem"`
	NearMissSimilarity float64  `yaml:"near_miss_similarity"`
	Endings            []string `yaml:"endings"`
	Stems              []string `yaml:"stems"`
}

// Idioms holds fixed expressions matched approximately
type Idioms struct {
	Threshold   float64  `yaml:"threshold"`
	Partial     float64  `yaml:"partial"`
	Expressions []string `yaml:"expressions"`
}

// Noise configures repeated token detection
type Noise struct {
	MinRepeat int `yaml:"min_repeat"`
}

// Pack is a validated rule pack ready for the span finder
type Pack struct {
	Version int     `yaml:"version"`
	Numeric Numeric `yaml:"numeric"`
	URL     URL     `yaml:"url"`
	Lexicon Lexicon `yaml:"lexicon"`
	Idioms  Idioms  `yaml:"idioms"`
	Noise   Noise   `yaml:"noise"`

	stems    map[string]struct{}
	units    map[string]struct{}
	parts    map[string]struct{}
	phonetic *regexp.Regexp
}

// Load returns the embedded pack
func Load() (*Pack, error) { return Parse(embedded) }

// MustLoad is Load for package init and tests
func MustLoad() *Pack {
	p, err := Load()
	if err != nil {
		panic(err)
	}
	return p
}

// LoadFile reads a pack from disk, an empty path yields the embedded pack
func LoadFile(path string) (*Pack, error) {
	if path == "" {
		return Load()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rulepack: read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes and compiles a pack document
func Parse(b []byte) (*Pack, error) {
	var p Pack
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("rulepack: parse: %w", err)
	}
	if p.Version != 1 {
		return nil, fmt.Errorf("rulepack: unsupported version %d (want 1)", p.Version)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pack) compile() error {
	if p.Numeric.Lookahead <= 0 {
		p.Numeric.Lookahead = 5
	}
	if p.Numeric.Lookback <= 0 {
		p.Numeric.Lookback = 20
	}
	if p.Numeric.MinKoreanRun <= 0 {
		p.Numeric.MinKoreanRun = 2
	}
	if p.Lexicon.MinStem <= 0 {
		p.Lexicon.MinStem = 3
	}
	if p.Lexicon.NearMissSimilarity <= 0 {
		p.Lexicon.NearMissSimilarity = 0.85
	}
	if p.Idioms.Threshold <= 0 {
		p.Idioms.Threshold = 0.88
	}
	if p.Idioms.Partial <= 0 || p.Idioms.Partial >= p.Idioms.Threshold {
		p.Idioms.Partial = p.Idioms.Threshold - 0.13
	}
	if p.Noise.MinRepeat < 2 {
		p.Noise.MinRepeat = 3
	}
	if len(p.URL.TLDs) == 0 {
		return errors.New("rulepack: url.tlds is empty")
	}

	p.stems = toSet(p.Lexicon.Stems, normalize.Key)
	p.units = toSet(p.Numeric.Units, nil)
	p.parts = toSet(p.Numeric.Particles, nil)

	// longest ending first so stripping is greedy
	sort.SliceStable(p.Lexicon.Endings, func(i, j int) bool {
		return len([]rune(p.Lexicon.Endings[i])) > len([]rune(p.Lexicon.Endings[j]))
	})
	sort.Strings(p.Lexicon.Stems)

	if len(p.URL.Phonetic) > 0 {
		alts := make([]string, 0, len(p.URL.Phonetic))
		for _, s := range p.URL.Phonetic {
			if _, err := regexp.Compile(s); err != nil {
				return fmt.Errorf("rulepack: phonetic %q: %w", s, err)
			}
			alts = append(alts, "(?:"+s+")")
		}
		p.phonetic = regexp.MustCompile(strings.Join(alts, "|"))
	}
	return nil
}

func toSet(in []string, fold func(string) string) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if fold != nil {
			s = fold(s)
		}
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

// Known reports whether stem is a lexicon entry
func (p *Pack) Known(stem string) bool {
	_, ok := p.stems[normalize.Key(stem)]
	return ok
}

// IsUnit reports whether s is a counter or measure word
func (p *Pack) IsUnit(s string) bool { _, ok := p.units[s]; return ok }

// IsParticle reports whether s is a case particle
func (p *Pack) IsParticle(s string) bool { _, ok := p.parts[s]; return ok }

// Phonetic returns the compiled spoken URL matcher, nil when the pack has none
func (p *Pack) Phonetic() *regexp.Regexp { return p.phonetic }

// DomainPattern returns the bare domain alternation for the configured TLDs
func (p *Pack) DomainPattern() string {
	tlds := append([]string(nil), p.URL.TLDs...)
	// longer suffixes first so co.kr wins over kr
	sort.SliceStable(tlds, func(i, j int) bool { return len(tlds[i]) > len(tlds[j]) })
	q := make([]string, len(tlds))
	for i, t := range tlds {
		q[i] = regexp.QuoteMeta(t)
	}
	return `[a-zA-Z0-9][-a-zA-Z0-9]*\.(?:` + strings.Join(q, "|") + `)`
}

// Stem reduces token to a lexicon form. A known token is returned as is, then
// the longest ending that leaves a known stem wins, then the longest ending
func (p *Pack) Stem(token string) string {
	if p.Known(token) {
		return token
	}
	first := ""
	for _, e := range p.Lexicon.Endings {
		if !strings.HasSuffix(token, e) || len(token) <= len(e) {
			continue
		}
		s := strings.TrimSuffix(token, e)
		if p.Known(s) {
			return s
		}
		if first == "" {
			first = s
		}
	}
	if first != "" {
		return first
	}
	return token
}
