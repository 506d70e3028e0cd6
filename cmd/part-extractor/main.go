// Package main provides the part extractor CLI entrypoint.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/part-extractor/internal/app"
	"github.com/spherical-ai/part-extractor/internal/config"
	"github.com/spherical-ai/part-extractor/internal/domain"
	"github.com/spherical-ai/part-extractor/internal/export"
	"github.com/spherical-ai/part-extractor/internal/extraction"
	"github.com/spherical-ai/part-extractor/internal/metrics"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/prompt"
)

const version = "0.1.0"

var (
	// Global flags
	cfgFile    string
	outputJSON bool
	noColor    bool
	verbose    bool

	// Configuration and logger
	cfg    *config.Config
	logger *observability.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "part-extractor",
	Short: "Extract connector attributes from supplier pages and datasheets",
	Long: `part-extractor resolves a catalog part number and/or a PDF datasheet into
structured attribute values.

Each attribute is first looked up on the supplier web page for the part number,
then in the datasheet passages most relevant to it. Results report the value,
where it came from and how long it took.

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		} else if !outputJSON {
			// keep the progress display readable
			level = "warn"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      "console",
			Output:      os.Stderr,
			ServiceName: "part-extractor",
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newExtractCmd())
	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newMetricsCmd())
	rootCmd.AddCommand(newAttributesCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// extractOutput is the --json shape of the extract command.
type extractOutput struct {
	PartNumber string                    `json:"part_number,omitempty"`
	Handle     string                    `json:"handle,omitempty"`
	Results    []domain.ExtractionResult `json:"results"`
	Metrics    domain.BatchMetrics       `json:"metrics"`
}

// newExtractCmd creates the extract subcommand.
func newExtractCmd() *cobra.Command {
	var (
		partNumber  string
		pdfPath     string
		attributes  []string
		groundTruth string
		xlsxPath    string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract attributes for a part number and/or datasheet",
		Long: `Extract runs every selected attribute through the web stage (supplier page
for --part-number) and then the datasheet stage (--pdf). At least one of the
two is required.

--ground-truth takes a JSON file mapping attribute names to expected values;
matching results are scored and the accuracy appears in the metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			partNumber = strings.TrimSpace(partNumber)
			if partNumber == "" && pdfPath == "" {
				return fmt.Errorf("either --part-number or --pdf is required")
			}
			for _, key := range attributes {
				if _, ok := prompt.Lookup(key); !ok {
					return fmt.Errorf("unknown attribute %q (see: part-extractor attributes)", key)
				}
			}

			job := extraction.Job{PartNumber: partNumber, Attributes: attributes}
			if groundTruth != "" {
				truth, err := readGroundTruth(groundTruth)
				if err != nil {
					return err
				}
				job.GroundTruth = truth
			}

			ctx, cancel := signalContext()
			defer cancel()

			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("initialise services: %w", err)
			}
			defer a.Close()

			if pdfPath != "" {
				stop := ui.Spinner(fmt.Sprintf("Reading %s", pdfPath))
				h, chunks, err := a.IndexDocument(ctx, pdfPath)
				stop()
				switch {
				case err == nil:
					defer func() { _ = a.DeleteDocument(context.WithoutCancel(ctx), h) }()
					job.Handle = h
					ui.Success("Indexed %s (%d passages)", pdfPath, chunks)
				case domain.IsRequestFatal(err):
					return fmt.Errorf("index datasheet: %w", err)
				default:
					logger.Warn().Err(err).Str("file", pdfPath).Msg("datasheet unavailable, continuing without it")
					ui.Warning("Could not read %s, continuing without the datasheet: %v", pdfPath, err)
				}
			}

			if bar := ui.AttributeBar(len(extraction.Specs(job))); bar != nil {
				job.OnResult = func(domain.ExtractionResult) { bar.Increment() }
			}

			start := time.Now()
			results := a.Processor.Process(ctx, job)
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("extraction interrupted: %w", err)
			}
			m := metrics.Aggregate(results)

			if xlsxPath != "" {
				data, err := export.ResultsXLSX(partNumber, results, m)
				if err != nil {
					return err
				}
				if err := os.WriteFile(xlsxPath, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", xlsxPath, err)
				}
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(extractOutput{
					PartNumber: partNumber,
					Handle:     string(job.Handle),
					Results:    results,
					Metrics:    m,
				})
			}

			ui.Close()
			ui.Section("Results")
			ui.Table(resultHeaders(job.GroundTruth != nil), resultRows(results, job.GroundTruth != nil))
			printMetrics(ui, m)
			ui.Newline()
			ui.Success("Extracted %d attributes in %s", len(results), FormatDuration(time.Since(start)))
			if xlsxPath != "" {
				ui.Success("Wrote %s", xlsxPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&partNumber, "part-number", "p", "", "catalog part number")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "PDF datasheet path")
	cmd.Flags().StringSliceVarP(&attributes, "attributes", "a", nil, "attributes to extract (default: all)")
	cmd.Flags().StringVar(&groundTruth, "ground-truth", "", "JSON file of expected values by attribute")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write results and metrics to this XLSX file")

	return cmd
}

// ingestOutput is one line of the --json ingest report.
type ingestOutput struct {
	Path     string `json:"path"`
	Handle   string `json:"handle,omitempty"`
	Passages int    `json:"passages"`
	Error    string `json:"error,omitempty"`
}

// newIngestCmd creates the ingest subcommand.
func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <pdf>...",
		Short: "Transcribe and index datasheets",
		Long: `Ingest validates each PDF, transcribes its pages with the vision model and
stores the passages in the configured index. The printed handles can be
queried later through the API when a persistent index store is configured.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			ui := NewUI(outputJSON, noColor)
			defer ui.Close()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("initialise services: %w", err)
			}
			defer a.Close()

			var valid []string
			out := make([]ingestOutput, 0, len(args))
			for _, path := range args {
				if err := a.Validator.ValidatePath(path); err != nil {
					out = append(out, ingestOutput{Path: path, Error: err.Error()})
					continue
				}
				valid = append(valid, path)
			}

			bar := ui.DocumentBar(len(valid))
			docs := a.Ingester.IngestAll(ctx, valid)
			for _, doc := range docs {
				_ = bar.Add(1)
				entry := ingestOutput{Path: doc.Path, Passages: len(doc.Passages)}
				if doc.Err != nil {
					entry.Error = doc.Err.Error()
					out = append(out, entry)
					continue
				}
				h, err := a.Index.Build(ctx, doc.Passages)
				if err != nil {
					entry.Error = err.Error()
				}
				entry.Handle = string(h)
				out = append(out, entry)
			}
			_ = bar.Finish()

			failed := 0
			for _, e := range out {
				if e.Error != "" {
					failed++
				}
			}

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return err
				}
			} else {
				for _, e := range out {
					if e.Error != "" {
						ui.Error("%s: %s", e.Path, e.Error)
						continue
					}
					ui.Success("%s → %s (%d passages)", e.Path, e.Handle, e.Passages)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d datasheets failed", failed, len(args))
			}
			return nil
		},
	}
}

// newMetricsCmd creates the metrics subcommand.
func newMetricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics <results.json>",
		Short: "Summarise a saved results file",
		Long: `Metrics reads the JSON written by "extract --json" (or a bare array of
results) and prints the batch counts, rates and accuracies.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := readResults(args[0])
			if err != nil {
				return err
			}
			m := metrics.Aggregate(results)

			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(m)
			}

			ui := NewUI(false, noColor)
			defer ui.Close()
			printMetrics(ui, m)
			return nil
		},
	}
}

// newAttributesCmd creates the attributes subcommand.
func newAttributesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attributes",
		Short: "List the attributes that can be extracted",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := prompt.Keys()
			if outputJSON {
				return json.NewEncoder(os.Stdout).Encode(keys)
			}
			for _, k := range keys {
				fmt.Println(k)
			}
			return nil
		},
	}
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			if outputJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.Encode(map[string]string{"version": version})
				return
			}
			fmt.Printf("part-extractor v%s\n", version)
		},
	}
}

func readGroundTruth(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ground truth: %w", err)
	}
	var truth map[string]string
	if err := json.Unmarshal(data, &truth); err != nil {
		return nil, fmt.Errorf("parse ground truth %s: %w", path, err)
	}
	return truth, nil
}

// readResults accepts either an extract --json document or a bare result array.
func readResults(path string) ([]domain.ExtractionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var results []domain.ExtractionResult
		if err := json.Unmarshal(data, &results); err != nil {
			return nil, fmt.Errorf("parse results %s: %w", path, err)
		}
		return results, nil
	}

	var doc extractOutput
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse results %s: %w", path, err)
	}
	return doc.Results, nil
}

func resultHeaders(withTruth bool) []string {
	h := []string{"Attribute", "Value", "Source", "Latency"}
	if withTruth {
		h = append(h, "Expected", "Match")
	}
	return h
}

func resultRows(results []domain.ExtractionResult, withTruth bool) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{r.Attribute, r.Value, string(r.Source), fmt.Sprintf("%.2fs", r.Latency)}
		if r.IsRateLimit {
			row[2] += " (rate limited)"
		}
		if withTruth {
			expected, match := "", ""
			if r.GroundTruth != nil {
				expected = *r.GroundTruth
			}
			switch {
			case r.ExactMatch != nil && *r.ExactMatch:
				match = "exact"
			case r.CaseInsensitiveMatch != nil && *r.CaseInsensitiveMatch:
				match = "case-insensitive"
			case r.ExactMatch != nil:
				match = "no"
			}
			row = append(row, expected, match)
		}
		rows = append(rows, row)
	}
	return rows
}

func printMetrics(ui *UI, m domain.BatchMetrics) {
	ui.Section("Metrics")
	ui.KeyValue("Total fields", m.TotalFields)
	ui.KeyValue("Success", fmt.Sprintf("%d (%s)", m.SuccessCount, FormatPercent(m.SuccessRate)))
	ui.KeyValue("Not found", fmt.Sprintf("%d (%s)", m.NotFoundCount, FormatPercent(m.NotFoundRate)))
	ui.KeyValue("Errors", fmt.Sprintf("%d (%s)", m.ErrorCount, FormatPercent(m.ErrorRate)))
	ui.KeyValue("Rate limited", fmt.Sprintf("%d (%s)", m.RateLimitCount, FormatPercent(m.RateLimitRate)))
	if m.ExactMatchCount > 0 || m.CaseInsensitiveMatchCount > 0 {
		ui.KeyValue("Exact match accuracy", FormatPercent(m.ExactMatchAccuracy))
		ui.KeyValue("Case-insensitive accuracy", FormatPercent(m.CaseInsensitiveAccuracy))
	}
	ui.KeyValue("Average latency", fmt.Sprintf("%.2fs", m.AvgLatency))
}
