package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"coinsleuth/adapters/ingestion"
	"coinsleuth/app"
	"coinsleuth/domain/stats"
	"coinsleuth/internal/api"
	"coinsleuth/internal/container"
	"coinsleuth/internal/testkit"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newBuildCmd(flags *storageFlags) *cobra.Command {
	var lower, upper int
	var summarize bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and persist statistics tables over a range of lengths",
		Long: `Build every missing statistics table for lower <= N <= upper.

Example: sleuth build --lower 1 --upper 40 --summarize`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, flags, func(c *container.Container) error {
				report, err := c.Builder.BuildRange(cmd.Context(), lower, upper, summarize)
				if err != nil {
					return err
				}
				fmt.Printf("Built %d tables, %d already present (%s)\n", len(report.Built), len(report.Existing), report.Duration)
				for _, summary := range report.Summaries {
					fmt.Printf("Summarized %s over %d lengths\n", summary.Statistic, len(summary.Rows))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&lower, "lower", 1, "Smallest sequence length")
	cmd.Flags().IntVar(&upper, "upper", 20, "Largest sequence length")
	cmd.Flags().BoolVar(&summarize, "summarize", true, "Regenerate summaries after building")
	return cmd
}

func newSummarizeCmd(flags *storageFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "summarize [statistic]",
		Short: "Regenerate summaries, or print the summary of one statistic",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, flags, func(c *container.Container) error {
				if len(args) == 0 {
					summaries, err := c.Builder.Summarize(cmd.Context())
					if err != nil {
						return err
					}
					for _, summary := range summaries {
						fmt.Printf("Summarized %s over %d lengths\n", summary.Statistic, len(summary.Rows))
					}
					return nil
				}

				statistic, err := stats.ParseStatistic(args[0])
				if err != nil {
					return err
				}
				summary, err := c.Store.GetSummary(cmd.Context(), statistic)
				if err != nil {
					return err
				}
				return render(os.Stdout, format, api.SummaryDocument(summary), func(w io.Writer) error {
					return printSummary(w, summary)
				})
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json|yaml")
	return cmd
}

func newTableCmd(flags *storageFlags) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "table [N]",
		Short: "Print the statistics table for sequences of length N",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid length %q: %w", args[0], err)
			}
			return withContainer(cmd, flags, func(c *container.Container) error {
				table, err := c.Store.GetTable(cmd.Context(), n)
				if err != nil {
					return err
				}
				return render(os.Stdout, format, api.TableDocument(table), func(w io.Writer) error {
					return printTable(w, table)
				})
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text|json|yaml")
	return cmd
}

func newAnalyzeCmd(flags *storageFlags) *cobra.Command {
	var dataPath, out string

	cmd := &cobra.Command{
		Use:   "analyze [file | sequences...]",
		Short: "Analyze sequences given inline or from a CSV, XLSX or JSON file",
		Long: `Analyze sequences. A single argument ending in .csv, .xlsx or .json is read
as a file with a "sequence" column; the output keeps its columns and appends
length, chi_squared, log_chi_squared and p_value.

Examples:
  sleuth analyze 0011 HTHTTH
  sleuth analyze flips.csv --out analyzed.xlsx
  sleuth analyze export.json --data-path data.flips`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, flags, func(c *container.Container) error {
				data, err := loadDataset(c, args, dataPath)
				if err != nil {
					return err
				}
				records, err := c.Analyzer.AnalyzeSample(cmd.Context(), data.Column(ingestion.SequenceColumn))
				if err != nil {
					return err
				}
				return writeDataset(ingestion.Join(data, records), out)
			})
		},
	}

	cmd.Flags().StringVar(&dataPath, "data-path", "", "gjson path to the record array in a JSON file")
	cmd.Flags().StringVar(&out, "out", "", "Output file (.csv or .xlsx); CSV on stdout when empty")
	return cmd
}

func newTestCmd(flags *storageFlags) *cobra.Command {
	var dataPath string

	cmd := &cobra.Command{
		Use:   "test [file | sequences...]",
		Short: "Z-test a sample of equal-length sequences against the population",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withContainer(cmd, flags, func(c *container.Container) error {
				data, err := loadDataset(c, args, dataPath)
				if err != nil {
					return err
				}
				records, err := c.Analyzer.AnalyzeSample(cmd.Context(), data.Column(ingestion.SequenceColumn))
				if err != nil {
					return err
				}
				report, err := c.Tester.Test(cmd.Context(), records)
				if err != nil {
					return err
				}

				fmt.Printf("Run %s: %d sequences of length %d\n\n", report.RunID, report.SampleSize, report.Length)
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "statistic\tsample_mean\tpopulation_mean\tstd_error\tz\tp_value")
				for _, r := range report.Results {
					fmt.Fprintf(w, "%s\t%.6g\t%.6g\t%.6g\t%.4f\t%.6g\n",
						r.Statistic, r.SampleMean, r.PopulationMean, r.StdError, r.ZScore, r.PValue)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&dataPath, "data-path", "", "gjson path to the record array in a JSON file")
	return cmd
}

func newSimulateCmd(flags *storageFlags) *cobra.Command {
	var req app.SamplingRequest
	var statistic string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Build the Monte Carlo sampling distribution of a statistic's sample mean",
		Long: `Draw --trials samples of --sample-size random sequences of length --n and
record the sample mean of the statistic for each.

Example: sleuth simulate --n 20 --sample-size 30 --trials 1000 --statistic p_value --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := stats.ParseStatistic(statistic)
			if err != nil {
				return err
			}
			req.Statistic = s
			return withContainer(cmd, flags, func(c *container.Container) error {
				dist, err := c.Sampling.BuildSamplingDistribution(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Printf("Run %s: %d trials of %d sequences at N=%d\n", dist.RunID, len(dist.SampleMeans), dist.SampleSize, dist.Length)
				fmt.Printf("Mean %s: %.6g (std %.6g)\n", dist.Statistic, dist.Mean, dist.StdDev)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&req.Trials, "trials", 1000, "Number of Monte Carlo trials")
	cmd.Flags().IntVar(&req.SampleSize, "sample-size", 30, "Sequences per trial")
	cmd.Flags().IntVar(&req.Length, "n", 20, "Sequence length")
	cmd.Flags().Int64Var(&req.Seed, "seed", 42, "Random seed; trial i uses seed+i")
	cmd.Flags().StringVar(&statistic, "statistic", string(stats.PValue), "chi_squared|log_chi_squared|p_value")
	return cmd
}

func newMoeCmd(flags *storageFlags) *cobra.Command {
	var n, sampleSize int
	var statistic string

	cmd := &cobra.Command{
		Use:   "moe",
		Short: "Print margins of error of a statistic's sample mean",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := stats.ParseStatistic(statistic)
			if err != nil {
				return err
			}
			return withContainer(cmd, flags, func(c *container.Container) error {
				margins, err := c.Sampling.MarginsOfError(cmd.Context(), n, sampleSize, s)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "confidence\tz\tmargin")
				for _, m := range margins {
					fmt.Fprintf(w, "%.3f\t%.3f\t%.6g\n", m.ConfidenceLevel, m.ZScore, m.Margin)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().IntVar(&n, "n", 20, "Sequence length")
	cmd.Flags().IntVar(&sampleSize, "sample-size", 30, "Sample size")
	cmd.Flags().StringVar(&statistic, "statistic", string(stats.PValue), "chi_squared|log_chi_squared|p_value")
	return cmd
}

func newGenerateCmd() *cobra.Command {
	config := testkit.DefaultSequenceConfig()
	var process, out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic sample of coin-flip sequences",
		Long: `Generate --count sequences of --n flips from a known process and write them
as a dataset with a "sequence" column, ready for analyze or test.

Processes:
  fair         independent fair flips
  sticky       repeat the previous flip with probability --persistence
  alternating  switch from the previous flip with probability --persistence
  biased       heads with probability --bias

Example: sleuth generate --process sticky --n 20 --count 50 --out sticky.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := testkit.ParseProcess(process)
			if err != nil {
				return err
			}
			config.Process = p

			sequences, err := testkit.NewSequenceGenerator(config).Generate()
			if err != nil {
				return err
			}
			data := &ingestion.Dataset{Headers: []string{ingestion.SequenceColumn}}
			for _, seq := range sequences {
				data.Rows = append(data.Rows, ingestion.Row{ingestion.SequenceColumn: seq})
			}
			return writeDataset(data, out)
		},
	}

	cmd.Flags().StringVar(&process, "process", string(testkit.ProcessFair), "fair|sticky|alternating|biased")
	cmd.Flags().IntVar(&config.Length, "n", config.Length, "Sequence length")
	cmd.Flags().IntVar(&config.Count, "count", config.Count, "Number of sequences")
	cmd.Flags().Float64Var(&config.Persistence, "persistence", config.Persistence, "Repeat (sticky) or switch (alternating) probability")
	cmd.Flags().Float64Var(&config.Bias, "bias", config.Bias, "Heads probability of the biased process")
	cmd.Flags().Int64Var(&config.Seed, "seed", config.Seed, "Random seed")
	cmd.Flags().StringVar(&out, "out", "", "Output file (.csv or .xlsx); CSV on stdout when empty")
	return cmd
}

func withContainer(cmd *cobra.Command, flags *storageFlags, fn func(c *container.Container) error) error {
	c, err := openContainer(cmd.Context(), flags)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}

// loadDataset reads a file argument or wraps inline sequences
func loadDataset(c *container.Container, args []string, dataPath string) (*ingestion.Dataset, error) {
	if len(args) == 1 && isDataFile(args[0]) {
		return ingestion.NewReader(args[0], dataPath, c.Logger).Read()
	}

	data := &ingestion.Dataset{Headers: []string{ingestion.SequenceColumn}}
	for _, seq := range args {
		data.Rows = append(data.Rows, ingestion.Row{ingestion.SequenceColumn: seq})
	}
	return data, nil
}

func isDataFile(arg string) bool {
	switch strings.ToLower(filepath.Ext(arg)) {
	case ".csv", ".xlsx", ".json":
		return true
	}
	return false
}

func writeDataset(data *ingestion.Dataset, out string) error {
	switch strings.ToLower(filepath.Ext(out)) {
	case "":
		return ingestion.WriteCSV(os.Stdout, data)
	case ".xlsx":
		return ingestion.WriteXLSX(out, data)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	return ingestion.WriteCSV(f, data)
}

// render writes doc as JSON or YAML, or calls text for the tabular form
func render(out io.Writer, format string, doc any, text func(io.Writer) error) error {
	switch strings.ToLower(format) {
	case "", "text":
		return text(out)
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}

func printTable(out io.Writer, table *stats.Table) error {
	fmt.Fprintf(out, "%s: %d partitions, total multiplicity %d\n\n", table.Key(), table.Len(), table.TotalMultiplicity())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "partition\tmultiplicity\tchi_squared\tlog_chi_squared\tp_value")
	for _, row := range table.Rows {
		fmt.Fprintf(w, "%s\t%d\t%.6g\t%.6g\t%.6g\n", row.Partition, row.Multiplicity, row.ChiSquared, row.LogChiSquared, row.PValue)
	}
	return w.Flush()
}

func printSummary(out io.Writer, summary *stats.SummaryTable) error {
	fmt.Fprintf(out, "%s\n\n", summary.Key())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "N\tmode\tmin\tmedian\tmax\tmean\tstd_dev")
	for _, row := range summary.Rows {
		fmt.Fprintf(w, "%d\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\t%.6g\n",
			row.N, row.Mode, row.Min, row.Median, row.Max, row.Mean, row.StdDev)
	}
	return w.Flush()
}
