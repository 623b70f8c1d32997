// Package reporter renders finished comparison runs for people and programs:
// a console format for terminal review, JSON for downstream consumption, and
// CSV for spreadsheet work.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"invoice-reconciliation-engine/internal/categorizer"
	"invoice-reconciliation-engine/internal/matcher"
	"invoice-reconciliation-engine/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	IncludeMatches       bool `json:"include_matches"`
	IncludeDiscrepancies bool `json:"include_discrepancies"`
	IncludeErrors        bool `json:"include_errors"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeMatches:       true,
		IncludeDiscrepancies: true,
		IncludeErrors:        true,
		CSVDelimiter:         ',',
		CSVHeaders:           true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.CSVDelimiter == 0 {
		return fmt.Errorf("csv delimiter cannot be empty")
	}
	return nil
}

// ReportGenerator renders comparison runs in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{config: config}, nil
}

// GenerateReport renders a run and writes it to the provided writer.
func (rg *ReportGenerator) GenerateReport(run *reconciler.ComparisonRun, writer io.Writer) error {
	if run == nil {
		return fmt.Errorf("comparison run cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(run, writer)
	case FormatJSON:
		return rg.generateJSONReport(run, writer)
	case FormatCSV:
		return rg.generateCSVReport(run, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport renders a human-readable report.
func (rg *ReportGenerator) generateConsoleReport(run *reconciler.ComparisonRun, writer io.Writer) error {
	fmt.Fprintf(writer, "INVOICE COMPARISON REPORT\n")
	fmt.Fprintf(writer, "Run ID:    %s\n", run.ID)
	fmt.Fprintf(writer, "State:     %s\n", run.State)
	fmt.Fprintf(writer, "Started:   %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Duration:  %v\n\n", run.CompletedAt.Sub(run.StartedAt))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(run.Summary, writer)
	fmt.Fprintf(writer, "\n")

	fmt.Fprintf(writer, "=== CATEGORIES ===\n")
	rg.printBuckets(run.Buckets, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeMatches && len(run.Matches) > 0 {
		fmt.Fprintf(writer, "=== MATCHES ===\n")
		rg.printMatches(run.Matches, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeErrors && len(run.Errors) > 0 {
		fmt.Fprintf(writer, "=== EXCLUDED RECORDS ===\n")
		for _, recordErr := range run.Errors {
			id := recordErr.RecordID
			if id == "" {
				id = "(unknown)"
			}
			fmt.Fprintf(writer, "  %-12s %-10s %s\n", id, recordErr.Source, recordErr.Reason)
		}
	}

	return nil
}

func (rg *ReportGenerator) printSummary(summary *reconciler.RunSummary, writer io.Writer) {
	if summary == nil {
		return
	}
	fmt.Fprintf(writer, "Reference records: %d\n", summary.TotalReference)
	fmt.Fprintf(writer, "Subject records:   %d\n", summary.TotalSubject)
	fmt.Fprintf(writer, "Matched:           %d (%.1f%%)\n", summary.Matched, summary.MatchRate*100)
	fmt.Fprintf(writer, "Disputed:          %d (%.1f%% of matched)\n", summary.Disputed, summary.DisputeRate*100)
}

func (rg *ReportGenerator) printBuckets(buckets *categorizer.Buckets, writer io.Writer) {
	if buckets == nil {
		return
	}
	fmt.Fprintf(writer, "Matched, approved:          %d\n", len(buckets.MatchedApproved))
	fmt.Fprintf(writer, "Matched, pending approval:  %d\n", len(buckets.MatchedPendingApproval))
	fmt.Fprintf(writer, "Matched, disputed:          %d\n", len(buckets.MatchedDisputed))
	fmt.Fprintf(writer, "Unmatched, reference only:  %d\n", len(buckets.UnmatchedReferenceOnly))
	fmt.Fprintf(writer, "Unmatched, subject only:    %d\n", len(buckets.UnmatchedSubjectOnly))
}

func (rg *ReportGenerator) printMatches(matches []*matcher.MatchCandidate, writer io.Writer) {
	for _, match := range matches {
		fmt.Fprintf(writer, "  %-12s -> %-12s %-15s confidence=%.3f\n",
			match.Subject.ID, match.Reference.ID, match.MatchType, match.Confidence)

		if rg.config.IncludeDiscrepancies {
			for _, d := range match.Discrepancies {
				fmt.Fprintf(writer, "      %s: subject=%s reference=%s\n",
					d.Field, d.SubjectValue.String(), d.ReferenceValue.String())
			}
		}
	}
}

// generateJSONReport renders the run as indented JSON.
func (rg *ReportGenerator) generateJSONReport(run *reconciler.ComparisonRun, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(run)
}

// generateCSVReport renders one row per record outcome.
func (rg *ReportGenerator) generateCSVReport(run *reconciler.ComparisonRun, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	if rg.config.CSVHeaders {
		headers := []string{
			"category",
			"subject_id",
			"reference_id",
			"match_type",
			"confidence",
			"discrepancies",
		}
		if err := csvWriter.Write(headers); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	categories := categorizeMatches(run)
	for _, match := range run.Matches {
		row := []string{
			string(categories[match.Subject.ID]),
			match.Subject.ID,
			match.Reference.ID,
			string(match.MatchType),
			fmt.Sprintf("%.3f", match.Confidence),
			fmt.Sprintf("%d", len(match.Discrepancies)),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write match row: %w", err)
		}
	}

	if run.Buckets != nil {
		for _, id := range run.Buckets.UnmatchedReferenceOnly {
			row := []string{string(categorizer.CategoryUnmatchedReferenceOnly), "", id, "", "", ""}
			if err := csvWriter.Write(row); err != nil {
				return fmt.Errorf("failed to write unmatched reference row: %w", err)
			}
		}
		for _, id := range run.Buckets.UnmatchedSubjectOnly {
			row := []string{string(categorizer.CategoryUnmatchedSubjectOnly), id, "", "", "", ""}
			if err := csvWriter.Write(row); err != nil {
				return fmt.Errorf("failed to write unmatched subject row: %w", err)
			}
		}
	}

	return nil
}

// categorizeMatches inverts the run's buckets into a subject id lookup.
func categorizeMatches(run *reconciler.ComparisonRun) map[string]categorizer.Category {
	categories := make(map[string]categorizer.Category)
	if run.Buckets == nil {
		return categories
	}

	for _, id := range run.Buckets.MatchedApproved {
		categories[id] = categorizer.CategoryMatchedApproved
	}
	for _, id := range run.Buckets.MatchedPendingApproval {
		categories[id] = categorizer.CategoryMatchedPendingApproval
	}
	for _, id := range run.Buckets.MatchedDisputed {
		categories[id] = categorizer.CategoryMatchedDisputed
	}

	return categories
}
