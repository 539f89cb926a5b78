package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/pipeline"
)

var (
	filterArgs    []string
	dateArgs      []string
	filterLimit   int
	filterThresh  float64
	analysisNames []string
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "List dataset columns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		columns, err := openPipeline(cmd.Context(), cfg, nil).Columns()
		if err != nil {
			return err
		}
		for _, c := range columns {
			fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var valuesCmd = &cobra.Command{
	Use:   "values <column>",
	Short: "List the distinct values of a column",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		values, err := openPipeline(cmd.Context(), cfg, nil).UniqueValues(args[0])
		if err != nil {
			return err
		}
		for _, v := range values {
			fmt.Fprintln(cmd.OutOrStdout(), model.ValueString(v))
		}
		return nil
	},
}

// filterCmd represents the filter command
var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Filter the dataset and print aggregates as JSON",
	Long: `Filter applies fuzzy text and date range filters in the order given,
aggregates the matching rows and prints the same JSON the /filter endpoint
returns.

Example:
  incidentlens filter --where "Factory=Kazlu Ruda Board" --where Category=incident --threshold 70
  incidentlens filter --date "Date=2020-01-01..2020-06-30" --analysis summary`,
	Args: cobra.NoArgs,
	RunE: runFilter,
}

func init() {
	rootCmd.AddCommand(columnsCmd)
	rootCmd.AddCommand(valuesCmd)
	rootCmd.AddCommand(filterCmd)

	filterCmd.Flags().StringArrayVar(&filterArgs, "where", nil, "text filter as column=value (repeatable)")
	filterCmd.Flags().StringArrayVar(&dateArgs, "date", nil, "date range as column=from..to, either bound optional (repeatable)")
	filterCmd.Flags().IntVar(&filterLimit, "limit", -1, "maximum rows in results (default from config)")
	filterCmd.Flags().Float64Var(&filterThresh, "threshold", -1, "fuzzy match threshold 0-100 (default from config)")
	filterCmd.Flags().StringSliceVar(&analysisNames, "analysis", nil, "AI analyses to run: summary, by_location, severity")
}

func runFilter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	req, err := buildFilterRequest(filterArgs, dateArgs, analysisNames)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("limit") {
		req.Limit = &filterLimit
	}
	if cmd.Flags().Changed("threshold") {
		req.Threshold = &filterThresh
	}

	var p *pipeline.Pipeline
	if len(req.Analysis) > 0 {
		p = openPipeline(cmd.Context(), cfg, pipeline.NewProvider(cfg))
	} else {
		p = openPipeline(cmd.Context(), cfg, nil)
	}

	resp, err := p.Filter(cmd.Context(), req)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Matched %d rows (%.0f accidents, %.0f incidents)\n",
			resp.Aggregates.TotalRows, resp.Aggregates.Accidents, resp.Aggregates.Incidents)
	}
	return writeIndentedJSON(cmd.OutOrStdout(), resp)
}

// buildFilterRequest turns --where/--date flags into a request. Text
// clauses come first in flag order, followed by date clauses.
func buildFilterRequest(where, dates, analyses []string) (model.FilterRequest, error) {
	var req model.FilterRequest

	for _, arg := range where {
		column, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return req, fmt.Errorf("invalid --where %q: expected column=value", arg)
		}
		req.Filters = append(req.Filters, model.FilterClause{
			Column:    strings.TrimSpace(column),
			Criterion: model.TextCriterion(value),
		})
	}

	for _, arg := range dates {
		column, bounds, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(column) == "" {
			return req, fmt.Errorf("invalid --date %q: expected column=from..to", arg)
		}
		from, to, ok := strings.Cut(bounds, "..")
		if !ok {
			return req, fmt.Errorf("invalid --date %q: expected column=from..to", arg)
		}
		req.Filters = append(req.Filters, model.FilterClause{
			Column:    strings.TrimSpace(column),
			Criterion: model.DateRangeCriterion(strings.TrimSpace(from), strings.TrimSpace(to)),
		})
	}

	for _, name := range analyses {
		req.Analysis = append(req.Analysis, model.Analysis(strings.TrimSpace(name)))
	}
	if req.Analysis == nil {
		req.Analysis = []model.Analysis{}
	}
	return req, nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
