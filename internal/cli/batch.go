package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ppiankov/incidentlens/internal/pipeline"
	"github.com/ppiankov/incidentlens/internal/worker"
)

var (
	concurrency  int
	outputFile   string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Run many filter requests from a YAML file in parallel",
	Long: `Batch evaluates independent filter requests concurrently:
- Read named requests from a YAML file
- Run them in parallel against one loaded dataset
- Write one JSON document with the results in file order

AI analysis is never run in batch mode.

File format:
  requests:
    - name: kazlu incidents
      filters:
        Factory: Kazlu Ruda Board
        Category: incident
      threshold: 70
      limit: 10
    - name: first half 2020
      filters:
        Date: {from: "2020-01-01", to: "2020-06-30"}

Example:
  incidentlens batch requests.yaml
  incidentlens batch requests.yaml --concurrency 8 --output results.json`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write results to file instead of stdout")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
}

// batchEntry is one result in the batch output
type batchEntry struct {
	Name     string                   `json:"name"`
	Error    string                   `json:"error,omitempty"`
	Response *pipeline.FilterResponse `json:"response,omitempty"`
}

func runBatch(cmd *cobra.Command, args []string) (err error) {
	file := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = cfg.Concurrency.Workers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  IncidentLens Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Dataset:      %s\n", cfg.Dataset.Path)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	p := openPipeline(ctx, cfg, nil)
	if err := p.Ready(); err != nil {
		return err
	}

	processor := worker.NewBatchProcessor(p, concurrency)
	results, err := processor.ProcessFile(ctx, afero.NewOsFs(), file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	entries := make([]batchEntry, 0, len(results))
	failures := 0
	for _, result := range results {
		entry := batchEntry{Name: result.Name, Response: result.Response}
		if result.Error != nil {
			failures++
			entry.Error = result.Error.Error()
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Name, result.Error)
		} else {
			fmt.Fprintf(os.Stderr, "✓ %s (%d rows)\n", result.Name, result.Response.Aggregates.TotalRows)
		}
		entries = append(entries, entry)
	}

	out := cmd.OutOrStdout()
	if outputFile != "" {
		f, createErr := os.Create(outputFile)
		if createErr != nil {
			return fmt.Errorf("create output file: %w", createErr)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close output file: %w", closeErr)
			}
		}()
		out = f
	}
	if err := writeIndentedJSON(out, entries); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d requests\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", len(results)-failures)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
