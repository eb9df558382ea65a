package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanko-field/fortune/internal/di"
	domain "github.com/hanko-field/fortune/internal/domain"
	"github.com/hanko-field/fortune/internal/platform/config"
	"github.com/hanko-field/fortune/internal/platform/storage"
)

// datasetFlags selects the destiny dataset for commands that resolve birth dates.
type datasetFlags struct {
	url       string
	authToken string
	gcs       string
	file      string
	timeout   time.Duration
	projectID string
	topic     string
}

func (f *datasetFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.url, "dataset-url", "", "HTTP(S) URL of the destiny dataset")
	cmd.Flags().StringVar(&f.authToken, "dataset-token", os.Getenv("FORTUNE_DATASET_AUTH_TOKEN"), "bearer token for --dataset-url")
	cmd.Flags().StringVar(&f.gcs, "dataset-gcs", "", "gs://bucket/object location of the destiny dataset")
	cmd.Flags().StringVar(&f.file, "dataset-file", "", "local path of the destiny dataset")
	cmd.Flags().DurationVar(&f.timeout, "dataset-timeout", 10*time.Second, "dataset fetch timeout")
	cmd.Flags().StringVar(&f.projectID, "project", os.Getenv("FORTUNE_GCP_PROJECT_ID"), "GCP project for divergence publishing")
	cmd.Flags().StringVar(&f.topic, "divergence-topic", "", "Pub/Sub topic receiving dataset/formula disagreements")
	cmd.MarkFlagsMutuallyExclusive("dataset-url", "dataset-gcs", "dataset-file")
}

func (f *datasetFlags) config() (config.Config, error) {
	cfg := config.Config{Environment: "cli"}
	cfg.Dataset = config.DatasetConfig{
		URL:          strings.TrimSpace(f.url),
		AuthToken:    strings.TrimSpace(f.authToken),
		File:         strings.TrimSpace(f.file),
		FetchTimeout: f.timeout,
	}
	if raw := strings.TrimSpace(f.gcs); raw != "" {
		loc, err := storage.ParseLocation(raw)
		if err != nil {
			return config.Config{}, fmt.Errorf("--dataset-gcs: %w", err)
		}
		cfg.Dataset.GCSBucket = loc.Bucket
		cfg.Dataset.GCSObject = loc.Object
	}
	cfg.GCP.ProjectID = strings.TrimSpace(f.projectID)
	cfg.Divergence.Topic = strings.TrimSpace(f.topic)
	return cfg, nil
}

func (f *datasetFlags) container(ctx context.Context, logger *zap.Logger) (*di.Container, error) {
	cfg, err := f.config()
	if err != nil {
		return nil, err
	}
	return di.NewContainer(ctx, cfg, di.WithLogger(logger))
}

func newSixStarCmd(opts *rootOptions) *cobra.Command {
	flags := &datasetFlags{}
	var compare bool
	cmd := &cobra.Command{
		Use:   "six-star <YYYY-MM-DD>",
		Short: "Resolve the six-star reading for a birth date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := domain.ParseBirthDate(args[0])
			if err != nil {
				return err
			}
			c, err := flags.container(cmd.Context(), opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if compare {
				comparison, err := c.Services.Fortune.CompareSixStar(cmd.Context(), date)
				if err != nil {
					return err
				}
				return opts.render(cmd.OutOrStdout(), comparison, func(w io.Writer) error {
					return writeComparisons(w, []domain.SixStarComparison{comparison}, true)
				})
			}

			result, err := c.Services.Fortune.ResolveSixStar(cmd.Context(), date)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), result, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "date\t%s\n", date)
				fmt.Fprintf(tw, "starType\t%s\n", result.StarType)
				fmt.Fprintf(tw, "destinyNumber\t%d\n", result.DestinyNumber)
				fmt.Fprintf(tw, "zodiac\t%s\n", result.Zodiac)
				fmt.Fprintf(tw, "element\t%s\n", result.Element)
				fmt.Fprintf(tw, "source\t%s (confidence %.1f)\n", result.Source, result.Confidence)
				return tw.Flush()
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&compare, "compare", false, "compare the dataset row against the formula")
	return cmd
}

type auditReport struct {
	From        domain.BirthDate           `json:"from"`
	To          domain.BirthDate           `json:"to"`
	Days        int                        `json:"days"`
	Mismatches  int                        `json:"mismatches"`
	Missing     int                        `json:"missing"`
	Comparisons []domain.SixStarComparison `json:"comparisons,omitempty"`
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	flags := &datasetFlags{}
	var (
		from, to       string
		concurrency    int
		failOnMismatch bool
		all            bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare the destiny dataset with the formula over a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fromDate, err := domain.ParseBirthDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toDate, err := domain.ParseBirthDate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			if flags.url == "" && flags.gcs == "" && flags.file == "" {
				return errors.New("audit needs one of --dataset-url, --dataset-gcs or --dataset-file")
			}
			c, err := flags.container(cmd.Context(), opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			if _, err := c.Dataset.Load(cmd.Context()); err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			results, err := c.Services.Fortune.CompareSixStarRange(cmd.Context(), fromDate, toDate, concurrency)
			if err != nil {
				return err
			}

			report := summarise(fromDate, toDate, results, all)
			if err := opts.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				fmt.Fprintf(w, "%s..%s: %d days, %d mismatches, %d without a dataset row\n",
					report.From, report.To, report.Days, report.Mismatches, report.Missing)
				return writeComparisons(w, report.Comparisons, all)
			}); err != nil {
				return err
			}
			if failOnMismatch && report.Mismatches > 0 {
				return fmt.Errorf("%w on %d days", errMismatchesFound, report.Mismatches)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&from, "from", "", "first date of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date of the range (YYYY-MM-DD)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 8, "comparisons run in parallel")
	cmd.Flags().BoolVar(&failOnMismatch, "fail-on-mismatch", false, "exit with status 2 when any date disagrees")
	cmd.Flags().BoolVar(&all, "all", false, "list matching and missing dates as well as mismatches")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func summarise(from, to domain.BirthDate, results []domain.SixStarComparison, all bool) auditReport {
	report := auditReport{From: from, To: to, Days: len(results)}
	for _, c := range results {
		mismatch := c.Dataset != nil && !c.Match
		switch {
		case c.Dataset == nil:
			report.Missing++
		case mismatch:
			report.Mismatches++
		}
		if all || mismatch {
			report.Comparisons = append(report.Comparisons, c)
		}
	}
	return report
}

func writeComparisons(w io.Writer, comparisons []domain.SixStarComparison, verbose bool) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range comparisons {
		status := "match"
		switch {
		case c.Dataset == nil:
			status = "missing"
		case !c.Match:
			status = "mismatch"
		}
		if !verbose && status != "mismatch" {
			continue
		}
		datasetType := "-"
		if c.Dataset != nil {
			datasetType = c.Dataset.StarType
		}
		fmt.Fprintf(tw, "%s\t%s\tdataset=%s\tformula=%s\t%s\n",
			c.Date, status, datasetType, c.Formula.StarType, strings.Join(c.Differences, "; "))
	}
	return tw.Flush()
}
