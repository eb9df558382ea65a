package seimei

import "unicode"

// FallbackClass tags characters that are missing from the stroke table.
type FallbackClass string

const (
	FallbackLatin     FallbackClass = "latin"
	FallbackKana      FallbackClass = "kana"
	FallbackSeparator FallbackClass = "separator"
	FallbackOther     FallbackClass = "other"
)

// FallbackPolicy assigns an approximate stroke count to each fallback class.
type FallbackPolicy map[FallbackClass]int

// DefaultFallbackPolicy is used when no policy is configured.
var DefaultFallbackPolicy = FallbackPolicy{
	FallbackLatin:     1,
	FallbackKana:      2,
	FallbackSeparator: 0,
	FallbackOther:     5,
}

// Strokes returns the contribution for class, using the default policy for
// classes the receiver does not cover.
func (p FallbackPolicy) Strokes(class FallbackClass) int {
	if n, ok := p[class]; ok && n >= 0 {
		return n
	}
	return DefaultFallbackPolicy[class]
}

// Classify determines the fallback class of r.
func Classify(r rune) FallbackClass {
	switch {
	case unicode.IsSpace(r), unicode.IsControl(r), r == '・':
		return FallbackSeparator
	case unicode.Is(unicode.Latin, r):
		return FallbackLatin
	case unicode.Is(unicode.Hiragana, r), unicode.Is(unicode.Katakana, r), r == 'ー':
		return FallbackKana
	default:
		return FallbackOther
	}
}
