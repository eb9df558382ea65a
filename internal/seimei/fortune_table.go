package seimei

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	domain "github.com/hanko-field/fortune/internal/domain"
)

// MaxFortuneNumber is the size of the fortune cycle.
const MaxFortuneNumber = 81

//go:embed data/fortunes.yaml
var fortunesYAML []byte

// FortuneEntry is the reading for a single reduced stroke count.
type FortuneEntry struct {
	Number      int                    `yaml:"number"`
	Category    domain.FortuneCategory `yaml:"category"`
	Explanation string                 `yaml:"explanation"`
}

type fortuneDocument struct {
	Fortunes []FortuneEntry `yaml:"fortunes"`
}

// ErrIncompleteFortuneTable is returned when a table does not cover 1..81.
var ErrIncompleteFortuneTable = errors.New("fortune table: incomplete")

// FortuneTable maps reduced stroke counts to fortune readings.
type FortuneTable struct {
	entries [MaxFortuneNumber + 1]*FortuneEntry
}

// ParseFortuneTable decodes a YAML fortune document and validates that it
// covers every number in 1..81 exactly once with a known category.
func ParseFortuneTable(data []byte) (*FortuneTable, error) {
	var doc fortuneDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fortune table: decode: %w", err)
	}
	return NewFortuneTable(doc.Fortunes)
}

// NewFortuneTable builds a complete table from entries.
func NewFortuneTable(entries []FortuneEntry) (*FortuneTable, error) {
	table := &FortuneTable{}
	for i := range entries {
		entry := entries[i]
		if entry.Number < 1 || entry.Number > MaxFortuneNumber {
			return nil, fmt.Errorf("fortune table: number %d out of range", entry.Number)
		}
		if !entry.Category.Valid() {
			return nil, fmt.Errorf("fortune table: number %d has unknown category %q", entry.Number, entry.Category)
		}
		if table.entries[entry.Number] != nil {
			return nil, fmt.Errorf("fortune table: number %d defined twice", entry.Number)
		}
		table.entries[entry.Number] = &entry
	}
	for n := 1; n <= MaxFortuneNumber; n++ {
		if table.entries[n] == nil {
			return nil, fmt.Errorf("%w: missing %d", ErrIncompleteFortuneTable, n)
		}
	}
	return table, nil
}

// Reduce folds n onto the 1..81 cycle using ((n-1) mod 81) + 1. Zero and
// negative inputs fold the same way, so 0 becomes 81.
func Reduce(n int) int {
	return ((n-1)%MaxFortuneNumber+MaxFortuneNumber)%MaxFortuneNumber + 1
}

// Lookup reduces n and returns its entry.
func (t *FortuneTable) Lookup(n int) (FortuneEntry, bool) {
	if t == nil {
		return FortuneEntry{}, false
	}
	entry := t.entries[Reduce(n)]
	if entry == nil {
		return FortuneEntry{}, false
	}
	return *entry, true
}

var defaultFortuneTable = mustParseFortuneTable()

// DefaultFortuneTable returns the embedded fortune table.
func DefaultFortuneTable() *FortuneTable {
	return defaultFortuneTable
}

func mustParseFortuneTable() *FortuneTable {
	table, err := ParseFortuneTable(fortunesYAML)
	if err != nil {
		panic(err)
	}
	return table
}
