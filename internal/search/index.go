// Package search provides a simple, deterministic, concurrency-safe in-memory
// lookup index over the cached master-product snapshot. It is intentionally
// small and dependency-free:
//
//   - No logging in the library (callers decide how/what to log)
//   - Immutable, read-only index after construction (safe for concurrent use)
//   - Barcode lookups are exact or prefix matches and always rank first
//   - Name/type/lot matching scores by token overlap (Jaccard similarity)
//   - Deterministic sorting (stable order for ties)
//
// An index is cheap to build and is rebuilt from the snapshot on demand
// rather than kept in sync with it.
package search

import (
	"regexp"
	"sort"
	"strings"
)

// Result is a ranked product with its match score in (0, 1].
type Result struct {
	Product any
	Score   float64
}

// Index is the minimal interface implemented by product indices.
type Index interface {
	TopK(query string, k int) []Result
}

// Entry is one indexable product. Callers map their domain type onto it;
// Ref is returned untouched in Result.Product.
type Entry struct {
	Barcode string
	Text    string // searchable free text: name, type, lot
	Ref     any
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	maxEntries int
	minScore   float64
}

func defaultConfig() config {
	return config{maxEntries: 0, minScore: 0}
}

// WithMaxEntries caps how many products the index retains.
func WithMaxEntries(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMinScore drops text matches scoring below the threshold. Barcode
// matches are never dropped.
func WithMinScore(s float64) Option {
	return func(c *config) {
		if s > 0 && s <= 1 {
			c.minScore = s
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	barcode string
	tokens  map[string]struct{}
	tLen    int
	ref     any
}

type index struct {
	cfg  config
	docs []doc
}

// NewIndex builds an Index from the given entries. Entries with neither a
// barcode nor searchable text are skipped.
func NewIndex(entries []Entry, opts ...Option) Index {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(entries))
	for _, e := range entries {
		barcode := strings.ToLower(strings.TrimSpace(e.Barcode))
		toks := tokenize(e.Text)
		if barcode == "" && len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{barcode: barcode, tokens: toks, tLen: len(toks), ref: e.Ref})
		if cfg.maxEntries > 0 && len(docs) >= cfg.maxEntries {
			break
		}
	}
	return &index{cfg: cfg, docs: docs}
}

// TopK returns up to k best matches for the query. An exact barcode match
// scores 1.0, a barcode prefix match 0.9; otherwise token overlap between
// the query and the product text decides.
func (i *index) TopK(q string, k int) []Result {
	if len(i.docs) == 0 {
		return nil
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	needle := strings.ToLower(q)
	qTokens := tokenize(q)
	qLen := len(qTokens)

	type scored struct {
		score   float64
		barcode string
		ref     any
	}

	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for _, d := range i.docs {
		score := 0.0
		switch {
		case d.barcode != "" && d.barcode == needle:
			score = 1.0
		case d.barcode != "" && strings.HasPrefix(d.barcode, needle):
			score = 0.9
		default:
			over := overlap(qTokens, d.tokens)
			if over == 0 {
				continue
			}
			union := float64(qLen + d.tLen - over)
			if union <= 0 {
				continue
			}
			score = float64(over) / union
			if score < i.cfg.minScore {
				continue
			}
		}
		buf = append(buf, scored{score: score, barcode: d.barcode, ref: d.ref})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		return buf[a].barcode < buf[b].barcode
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for idx := 0; idx < k; idx++ {
		out[idx] = Result{Product: buf[idx].ref, Score: buf[idx].score}
	}
	return out
}

// ----------------------------------------------------------------------------
// Helpers

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string) map[string]struct{} {
	s = strings.ToLower(s)
	words := wordRE.FindAllString(s, -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w != "" {
			out[w] = struct{}{}
		}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
