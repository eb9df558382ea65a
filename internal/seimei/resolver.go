// Package seimei computes stroke counts and five-grade readings for Japanese names.
package seimei

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// CharStrokes describes how a single character contributed to a stroke sum.
type CharStrokes struct {
	Char    string        `json:"char"`
	Strokes int           `json:"strokes"`
	Known   bool          `json:"known"`
	Class   FallbackClass `json:"class,omitempty"`
}

// Resolver sums stroke counts for name strings.
type Resolver struct {
	table    *StrokeTable
	fallback FallbackPolicy
}

// ResolverOption customises a Resolver.
type ResolverOption func(*Resolver)

// WithStrokeTable overrides the stroke table.
func WithStrokeTable(table *StrokeTable) ResolverOption {
	return func(r *Resolver) {
		if table != nil {
			r.table = table
		}
	}
}

// WithFallbackPolicy overrides the contribution of characters missing from the table.
func WithFallbackPolicy(policy FallbackPolicy) ResolverOption {
	return func(r *Resolver) {
		if policy != nil {
			r.fallback = policy
		}
	}
}

// NewResolver constructs a Resolver backed by the built-in table unless overridden.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		table:    DefaultStrokeTable(),
		fallback: DefaultFallbackPolicy,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the total stroke count of text. It never fails: characters
// missing from the table contribute an approximate count per fallback class.
func (r *Resolver) Resolve(text string) int {
	total := 0
	for _, c := range r.Breakdown(text) {
		total += c.Strokes
	}
	return total
}

// Breakdown returns the per-grapheme contributions for text after NFKC
// normalisation. Combining marks, variation selectors and joiners are folded
// into the preceding base character, so each cluster is charged once by its
// base. Separators are included with a zero contribution.
func (r *Resolver) Breakdown(text string) []CharStrokes {
	normalized := norm.NFKC.String(text)
	if normalized == "" {
		return nil
	}
	out := make([]CharStrokes, 0, utf8.RuneCountInString(normalized))
	for rest := normalized; rest != ""; {
		base, cluster := nextCluster(rest)
		rest = rest[len(cluster):]
		if strokes, ok := r.table.Lookup(base); ok {
			out = append(out, CharStrokes{Char: cluster, Strokes: strokes, Known: true})
			continue
		}
		class := Classify(base)
		out = append(out, CharStrokes{Char: cluster, Strokes: r.fallback.Strokes(class), Class: class})
	}
	return out
}

// nextCluster splits the leading grapheme cluster off s and returns its base rune.
func nextCluster(s string) (rune, string) {
	base, size := utf8.DecodeRuneInString(s)
	end := size
	joined := false
	for end < len(s) {
		next, n := utf8.DecodeRuneInString(s[end:])
		switch {
		case isExtender(next):
			joined = next == zeroWidthJoiner
		case joined:
			joined = false
		default:
			return base, s[:end]
		}
		end += n
	}
	return base, s[:end]
}

const zeroWidthJoiner = '\u200D'

func isExtender(r rune) bool {
	switch {
	case r == zeroWidthJoiner:
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	default:
		return unicode.Is(unicode.Mn, r)
	}
}
