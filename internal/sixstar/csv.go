package sixstar

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	domain "github.com/hanko-field/fortune/internal/domain"
)

// maxDatasetBytes bounds how much of a source is read.
const maxDatasetBytes = 32 << 20

type column struct {
	name    string
	aliases []string
}

var expectedColumns = []column{
	{name: "year", aliases: []string{"year", "年"}},
	{name: "month", aliases: []string{"month", "月"}},
	{name: "day", aliases: []string{"day", "日"}},
	{name: "destinyNumber", aliases: []string{"destinynumber", "destiny", "運命数", "運命番号"}},
	{name: "star", aliases: []string{"star", "星", "星人"}},
	{name: "polarity", aliases: []string{"polarity", "type", "startype", "陰陽", "+/-", "±", "タイプ"}},
	{name: "zodiac", aliases: []string{"zodiac", "干支", "十二支"}},
	{name: "element", aliases: []string{"element", "五行"}},
}

// ParseReport summarises a dataset parse.
type ParseReport struct {
	Rows      int
	Accepted  int
	Discarded int
}

// ParseDataset reads delimited destiny rows from r. The first line must be a
// header naming the expected columns in order; a mismatch returns a
// *DatasetSchemaError. Rows with fewer than eight columns or unparseable
// numbers are discarded.
func ParseDataset(r io.Reader) ([]domain.DestinyRecord, ParseReport, error) {
	var report ParseReport

	data, err := io.ReadAll(io.LimitReader(r, maxDatasetBytes+1))
	if err != nil {
		return nil, report, fmt.Errorf("sixstar: read dataset: %w", err)
	}
	if len(data) > maxDatasetBytes {
		return nil, report, fmt.Errorf("sixstar: dataset exceeds %d bytes", maxDatasetBytes)
	}
	data = bytes.TrimPrefix(data, []byte("\ufeff"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, report, &DatasetSchemaError{Header: nil}
	}
	if err != nil {
		return nil, report, fmt.Errorf("sixstar: read header: %w", err)
	}
	if err := validateHeader(header); err != nil {
		return nil, report, err
	}

	records := make([]domain.DestinyRecord, 0, 1024)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.Rows++
				report.Discarded++
				continue
			}
			return nil, report, fmt.Errorf("sixstar: read row: %w", err)
		}
		if isBlankRow(row) {
			continue
		}
		report.Rows++
		record, ok := parseRow(row)
		if !ok {
			report.Discarded++
			continue
		}
		records = append(records, record)
		report.Accepted++
	}
	return records, report, nil
}

func detectDelimiter(data []byte) rune {
	firstLine := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		firstLine = data[:idx]
	}
	if bytes.IndexByte(firstLine, '\t') >= 0 && bytes.IndexByte(firstLine, ',') < 0 {
		return '\t'
	}
	return ','
}

func validateHeader(header []string) error {
	if len(header) < len(expectedColumns) {
		return &DatasetSchemaError{Header: header}
	}
	for i, col := range expectedColumns {
		name := normalizeHeader(header[i])
		matched := false
		for _, alias := range col.aliases {
			if name == alias {
				matched = true
				break
			}
		}
		if !matched {
			return &DatasetSchemaError{Column: i, Expected: col.name, Found: header[i], Header: header}
		}
	}
	return nil
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	return strings.NewReplacer(" ", "", "_", "", "　", "").Replace(value)
}

func isBlankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func parseRow(row []string) (domain.DestinyRecord, bool) {
	if len(row) < len(expectedColumns) {
		return domain.DestinyRecord{}, false
	}
	nums := make([]int, 4)
	for i := range nums {
		n, err := strconv.Atoi(strings.TrimSpace(row[i]))
		if err != nil {
			return domain.DestinyRecord{}, false
		}
		nums[i] = n
	}
	year, month, day, destiny := nums[0], nums[1], nums[2], nums[3]
	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 || destiny < 1 || destiny > cycleLen {
		return domain.DestinyRecord{}, false
	}

	star := domain.Star(strings.TrimSuffix(strings.TrimSpace(row[4]), "人"))
	polarity, ok := parsePolarity(row[5])
	if !ok {
		polarity = domain.Polarity(strings.TrimSpace(row[5]))
	}

	return domain.DestinyRecord{
		Year:          year,
		Month:         month,
		Day:           day,
		DestinyNumber: destiny,
		Star:          star,
		Polarity:      polarity,
		Zodiac:        strings.TrimSpace(row[6]),
		Element:       domain.Element(strings.TrimSpace(row[7])),
	}, true
}

// parsePolarity accepts a bare sign or a full star type such as "土星人+".
func parsePolarity(value string) (domain.Polarity, bool) {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) == 0 {
		return "", false
	}
	switch runes[len(runes)-1] {
	case '+', '＋', '陽':
		return domain.PolarityPlus, true
	case '-', '−', '－', '陰':
		return domain.PolarityMinus, true
	}
	return "", false
}
