// Command fortunectl computes name and birth-date readings from the command
// line and audits the destiny dataset against the six-star formula.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hanko-field/fortune/internal/platform/observability"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

var errMismatchesFound = errors.New("dataset and formula disagree")

type rootOptions struct {
	output   string
	logLevel string
	logger   *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "fortunectl",
		Short:         "Name-fortune and six-star readings from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			switch opts.output {
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unsupported output %q (want text, json or yaml)", opts.output)
			}
			if opts.logger != nil {
				return nil
			}
			logger, err := observability.NewLogger(observability.LoggerOptions{
				Level:   opts.logLevel,
				Console: true,
				Stderr:  true,
				Service: "fortunectl",
			})
			if err != nil {
				return fmt.Errorf("initialise logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", outputText, "output format: text, json or yaml")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level for diagnostics on stderr")

	cmd.AddCommand(
		newStrokesCmd(opts),
		newFiveGradesCmd(opts),
		newSixStarCmd(opts),
		newAuditCmd(opts),
		newDatasetCmd(opts),
	)
	return cmd
}

// render writes v in the selected structured format, or calls text for the
// default human-readable output.
func (o *rootOptions) render(w io.Writer, v any, text func(io.Writer) error) error {
	switch o.output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		// Round-trip through JSON so YAML keys follow the json tags.
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return err
		}
		var generic any
		if err := yaml.Unmarshal(buf.Bytes(), &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	default:
		return text(w)
	}
}

func exitCode(err error) int {
	if errors.Is(err, errMismatchesFound) {
		return 2
	}
	return 1
}

func joinNonEmpty(values ...string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, " ")
}
