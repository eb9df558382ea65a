package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hanko-field/fortune/internal/services"
)

type strokesReport struct {
	Text      string                 `json:"text"`
	Strokes   int                    `json:"strokes"`
	Breakdown []services.CharStrokes `json:"breakdown"`
}

func newStrokesCmd(opts *rootOptions) *cobra.Command {
	var detail bool
	cmd := &cobra.Command{
		Use:   "strokes <text>...",
		Short: "Print the stroke total of a name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewFortuneService(services.FortuneServiceDeps{})
			text := strings.Join(args, " ")
			report := strokesReport{
				Text:      text,
				Strokes:   svc.ResolveNameStrokes(text),
				Breakdown: svc.NameStrokeBreakdown(text),
			}
			return opts.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				if !detail {
					_, err := fmt.Fprintf(w, "%s\t%d\n", report.Text, report.Strokes)
					return err
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, c := range report.Breakdown {
					source := "table"
					if !c.Known {
						source = "fallback:" + string(c.Class)
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n", c.Char, c.Strokes, source)
				}
				fmt.Fprintf(tw, "total\t%d\t\n", report.Strokes)
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "print the per-character breakdown")
	return cmd
}

func newFiveGradesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "five-grades <surname> <given-name>",
		Short: "Compute the five-grade reading of a full name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := services.NewFortuneService(services.FortuneServiceDeps{})
			result := svc.CalculateFiveGrades(args[0], args[1])
			return opts.render(cmd.OutOrStdout(), result, func(w io.Writer) error {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintf(tw, "name\t%s\n", joinNonEmpty(args[0], args[1]))
				fmt.Fprintf(tw, "strokes\t%d + %d\n", result.SurnameSum, result.GivenNameSum)
				for _, c := range result.Categories {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%d\n", c.Name, c.StrokeCount, c.Fortune, c.Score)
				}
				fmt.Fprintf(tw, "overall\t%d\n", result.OverallScore)
				return tw.Flush()
			})
		},
	}
}
