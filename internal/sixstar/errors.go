package sixstar

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDatasetUnavailable indicates the destiny dataset could not be loaded.
	ErrDatasetUnavailable = errors.New("sixstar: dataset unavailable")
	// ErrSourceRequired indicates a dataset was constructed without a source.
	ErrSourceRequired = errors.New("sixstar: dataset source is required")
)

// DatasetSchemaError reports a header row that does not match the expected columns.
type DatasetSchemaError struct {
	Column   int
	Expected string
	Found    string
	Header   []string
}

// Error implements the error interface.
func (e *DatasetSchemaError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("sixstar: dataset header has %d columns, need %d: [%s]", len(e.Header), len(expectedColumns), strings.Join(e.Header, ", "))
	}
	return fmt.Sprintf("sixstar: dataset column %d is %q, expected %s", e.Column+1, e.Found, e.Expected)
}
