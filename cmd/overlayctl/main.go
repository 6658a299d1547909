// Package main provides overlayctl, an offline companion to the overlay
// server. It runs the same parsing, transform and export code on local
// files without starting HTTP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/monoidalcat-ux/Impulse-overlay/internal/core"
	"github.com/monoidalcat-ux/Impulse-overlay/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel string
	pretty   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "overlayctl",
		Short:        "Inspect, transform and convert overlay spreadsheets",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logging.New(cmd.ErrOrStderr(), opts.logLevel, "text"))
		},
	}
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&opts.pretty, "pretty", false, "Pretty-print JSON output")

	root.AddCommand(newInspectCmd(opts), newTransformCmd(opts), newConvertCmd())
	return root
}

// newService builds an unregistered service for one-shot commands.
func newService() (*core.Service, error) {
	return core.NewService(core.Options{}, nil)
}

func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// ---------- inspect ----------

// inspection describes an input file: every sheet, and the series of the
// selected one.
type inspection struct {
	File   core.InputFileSummary `json:"file"`
	Series *core.SeriesDetail    `json:"series,omitempty"`
}

func newInspectCmd(root *rootOptions) *cobra.Command {
	var sheet, series string
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Describe an input file's sheets, series and time columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}

			sum, err := svc.UploadInputFile(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			out := inspection{File: sum}
			if series != "" {
				detail, err := svc.GetSeries(sum.ID, sheet, series)
				if err != nil {
					return err
				}
				out.Series = &detail
			}
			return writeJSON(cmd.OutOrStdout(), out, root.pretty)
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "Sheet to read the series from (default: Quarterly)")
	cmd.Flags().StringVar(&series, "series", "", "Also print this series' values and metadata")
	return cmd
}

// ---------- transform ----------

func newTransformCmd(root *rootOptions) *cobra.Command {
	var (
		dateColumn string
		series     []string
		mode       string
		start, end string
	)
	cmd := &cobra.Command{
		Use:   "transform FILE",
		Short: "Transform dataset series and print the chart payload as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}

			sum, err := svc.UploadDataset(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}
			if dateColumn == "" {
				dateColumn = sum.DateColumn
			}
			if len(series) == 0 {
				series = sum.NumericColumns
			}

			res, err := svc.QuerySeries(cmd.Context(), sum.DatasetID, core.SeriesQuery{
				DateColumn: dateColumn,
				Series:     series,
				Transform:  core.TransformMode(mode),
				StartDate:  start,
				EndDate:    end,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res.Data, root.pretty)
		},
	}
	cmd.Flags().StringVar(&dateColumn, "date-column", "", "Date column (default: inferred)")
	cmd.Flags().StringSliceVar(&series, "series", nil, "Series columns (default: every numeric column)")
	cmd.Flags().StringVar(&mode, "mode", string(core.TransformRaw), "Transform: raw, monthly_change, quarterly_change")
	cmd.Flags().StringVar(&start, "start", "", "Inclusive start date")
	cmd.Flags().StringVar(&end, "end", "", "Inclusive end date")
	return cmd
}

// ---------- convert ----------

func newConvertCmd() *cobra.Command {
	var (
		output    string
		format    string
		inputFile bool
	)
	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Re-export a dataset or input file as csv or xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(args[0])
			if err != nil {
				return err
			}
			svc, err := newService()
			if err != nil {
				return err
			}

			out, err := convert(cmd.Context(), svc, filepath.Base(args[0]), data, format, inputFile)
			if err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(args[0]), out.Filename)
			}
			if filepath.Clean(output) == filepath.Clean(args[0]) {
				return fmt.Errorf("refusing to overwrite input %s; pass --output", args[0])
			}
			if err := os.WriteFile(output, out.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			slog.Info("converted", "input", args[0], "output", output, "bytes", len(out.Data))
			fmt.Fprintln(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path (default: next to the input)")
	cmd.Flags().StringVar(&format, "to", "", "Target format: csv or xlsx (default: the other one)")
	cmd.Flags().BoolVar(&inputFile, "input-file", false, "Treat FILE as a Mnemonic-indexed input file")
	return cmd
}

func convert(ctx context.Context, svc *core.Service, name string, data []byte, format string, inputFile bool) (core.ExportFile, error) {
	if format == "" {
		format = string(core.FormatXLSX)
		if core.DetectFormat(name) == core.FormatXLSX {
			format = string(core.FormatCSV)
		}
	}
	format = strings.ToLower(format)

	if inputFile {
		sum, err := svc.UploadInputFile(ctx, name, data)
		if err != nil {
			return core.ExportFile{}, err
		}
		return svc.ExportInputFile(ctx, sum.ID, format)
	}

	sum, err := svc.UploadDataset(ctx, name, data)
	if err != nil {
		return core.ExportFile{}, err
	}
	return svc.ExportDataset(ctx, sum.DatasetID, format)
}
