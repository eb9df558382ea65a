package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	gcs "cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hanko-field/fortune/internal/platform/storage"
	"github.com/hanko-field/fortune/internal/sixstar"
)

type validateReport struct {
	Path      string `json:"path"`
	Rows      int    `json:"rows"`
	Accepted  int    `json:"accepted"`
	Discarded int    `json:"discarded"`
}

func newDatasetCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Validate and publish destiny dataset snapshots",
	}
	cmd.AddCommand(
		newDatasetValidateCmd(opts),
		newDatasetPublishCmd(opts),
		newDatasetPromoteCmd(opts),
	)
	return cmd
}

func newDatasetValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Parse a dataset file and report accepted and discarded rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			report, err := validateDataset(args[0], data)
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "%s: %d rows, %d accepted, %d discarded\n",
					report.Path, report.Rows, report.Accepted, report.Discarded)
				return err
			})
		},
	}
}

func validateDataset(path string, data []byte) (validateReport, error) {
	_, parsed, err := sixstar.ParseDataset(bytes.NewReader(data))
	if err != nil {
		return validateReport{}, fmt.Errorf("%s: %w", path, err)
	}
	if parsed.Accepted == 0 {
		return validateReport{}, fmt.Errorf("%s: no usable rows", path)
	}
	return validateReport{
		Path:      path,
		Rows:      parsed.Rows,
		Accepted:  parsed.Accepted,
		Discarded: parsed.Discarded,
	}, nil
}

func newDatasetPublishCmd(opts *rootOptions) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "publish <file>",
		Short: "Validate a dataset file and upload it to Cloud Storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := storage.ParseLocation(dest)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			report, err := validateDataset(args[0], data)
			if err != nil {
				return err
			}
			return withPublisher(cmd.Context(), func(p *storage.Publisher) error {
				if err := p.Upload(cmd.Context(), dst, bytes.NewReader(data), ""); err != nil {
					return err
				}
				opts.logger.Info("dataset published",
					zap.String("destination", dst.String()),
					zap.Int("accepted", report.Accepted),
					zap.Int("discarded", report.Discarded),
				)
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "published %d rows to %s\n", report.Accepted, dst)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&dest, "to", "", "gs://bucket/object destination")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newDatasetPromoteCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Copy a staged dataset snapshot over the live object",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := storage.ParseLocation(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			dst, err := storage.ParseLocation(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			return withPublisher(cmd.Context(), func(p *storage.Publisher) error {
				if err := p.Promote(cmd.Context(), src, dst); err != nil {
					return err
				}
				opts.logger.Info("dataset promoted", zap.String("source", src.String()), zap.String("destination", dst.String()))
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "promoted %s to %s\n", src, dst)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "gs://bucket/object of the staged snapshot")
	cmd.Flags().StringVar(&to, "to", "", "gs://bucket/object of the live dataset")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func withPublisher(ctx context.Context, fn func(*storage.Publisher) error) error {
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("build storage client: %w", err)
	}
	defer func() { _ = client.Close() }()
	publisher, err := storage.NewPublisher(client)
	if err != nil {
		return err
	}
	return fn(publisher)
}
