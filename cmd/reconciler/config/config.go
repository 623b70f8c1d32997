// Package config builds the runtime configurations the CLI hands to the
// parser, matcher, and reporter layers.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"invoice-reconciliation-engine/internal/matcher"
	"invoice-reconciliation-engine/internal/models"
	"invoice-reconciliation-engine/internal/parsers"
	"invoice-reconciliation-engine/internal/reporter"

	"github.com/shopspring/decimal"
)

// CreateRecordParserConfig creates a parser configuration for record feeds
// that use the canonical column names plus common aliases.
func CreateRecordParserConfig() (*parsers.RecordParserConfig, error) {
	config := parsers.DefaultRecordParserConfig()
	return config, nil
}

// LoadStatusVocabulary loads a status vocabulary from a JSON file mapping
// raw status strings to normalized statuses. An empty path selects the
// default procurement vocabulary.
func LoadStatusVocabulary(path string) (models.StatusVocabulary, error) {
	if path == "" {
		return models.DefaultStatusVocabulary(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file %s: %w", path, err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid vocabulary file %s: %w", path, err)
	}

	valid := map[models.NormalizedStatus]bool{
		models.StatusApproved: true,
		models.StatusPending:  true,
		models.StatusRejected: true,
		models.StatusOther:    true,
	}

	vocab := make(models.StatusVocabulary, len(raw))
	for status, normalized := range raw {
		ns := models.NormalizedStatus(strings.ToUpper(strings.TrimSpace(normalized)))
		if !valid[ns] {
			return nil, fmt.Errorf("vocabulary file %s maps '%s' to unknown status '%s'",
				path, status, normalized)
		}
		vocab[strings.ToLower(strings.TrimSpace(status))] = ns
	}

	return vocab, nil
}

// CreateMatchingOptions builds matching options from a base profile and the
// CLI overrides. Negative values leave the profile's setting untouched.
func CreateMatchingOptions(
	profile string,
	amountTolerance float64,
	dateTolerance int,
	fuzzyThreshold float64,
	maxCandidates int,
	concurrency int,
) (*matcher.MatchingOptions, error) {

	var opts *matcher.MatchingOptions
	switch strings.ToLower(profile) {
	case "", "default":
		opts = matcher.DefaultMatchingOptions()
	case "strict":
		opts = matcher.StrictMatchingOptions()
	case "relaxed":
		opts = matcher.RelaxedMatchingOptions()
	default:
		return nil, fmt.Errorf("unknown matching profile '%s' (valid: default, strict, relaxed)", profile)
	}

	if amountTolerance >= 0 {
		opts.AmountTolerance = decimal.NewFromFloat(amountTolerance)
	}
	if dateTolerance >= 0 {
		opts.DateToleranceDays = dateTolerance
	}
	if fuzzyThreshold >= 0 {
		opts.FuzzyThreshold = fuzzyThreshold
	}
	if maxCandidates >= 0 {
		opts.MaxCandidatesPerRecord = maxCandidates
	}
	if concurrency > 0 {
		opts.Concurrency = concurrency
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return opts, nil
}

// CreateReportConfig creates a report configuration for the given format.
func CreateReportConfig(format string, includeMatches bool) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(format))
	config.IncludeMatches = includeMatches

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
