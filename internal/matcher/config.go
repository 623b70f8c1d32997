// Package matcher implements the core invoice matching engine: exact-key
// matching over invoice and purchase-order numbers, fuzzy matching over
// name/amount/date similarity, and confidence scoring.
//
// The engine runs in two passes per comparison:
//  1. Key pass: exact lookups against the reference index in priority order
//     (invoice number, then PO number), with a deterministic tie-break.
//  2. Fuzzy pass: weighted similarity scoring of every still-unclaimed
//     reference record for each still-unclaimed subject record, parallelized
//     for scoring and serialized for claiming.
//
// Example usage:
//
//	opts := matcher.DefaultMatchingOptions()
//	opts.DateToleranceDays = 2
//
//	engine, err := matcher.NewMatchingEngine(opts)
//	outcome, err := engine.Match(ctx, referenceRecords, subjectRecords)
package matcher

import (
	"fmt"
	"time"

	"invoice-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// MatchType classifies how a pairing was established.
type MatchType string

const (
	// MatchInvoiceNumber is an exact match on the normalized invoice number.
	MatchInvoiceNumber MatchType = "INVOICE_NUMBER"
	// MatchPONumber is an exact match on the normalized purchase-order number.
	MatchPONumber MatchType = "PO_NUMBER"
	// MatchFuzzy is a similarity match that cleared the fuzzy threshold.
	MatchFuzzy MatchType = "FUZZY"
)

// String returns the string representation of MatchType
func (mt MatchType) String() string {
	return string(mt)
}

// Weights defines the relative importance of the scored fields. They must sum
// to approximately 1.0.
type Weights struct {
	Name   float64 `json:"name_weight"`
	Amount float64 `json:"amount_weight"`
	Date   float64 `json:"date_weight"`
}

// Validate checks if the weights are valid
func (w *Weights) Validate() error {
	if w.Name < 0.0 || w.Name > 1.0 {
		return fmt.Errorf("name weight must be between 0.0 and 1.0: %f", w.Name)
	}

	if w.Amount < 0.0 || w.Amount > 1.0 {
		return fmt.Errorf("amount weight must be between 0.0 and 1.0: %f", w.Amount)
	}

	if w.Date < 0.0 || w.Date > 1.0 {
		return fmt.Errorf("date weight must be between 0.0 and 1.0: %f", w.Date)
	}

	total := w.Name + w.Amount + w.Date
	if total < 0.9 || total > 1.1 {
		return fmt.Errorf("weights should sum to approximately 1.0, got %f", total)
	}

	return nil
}

// MatchingOptions holds configuration for a comparison run. Tolerances bound
// what still counts as "the same" value; the fuzzy threshold bounds what the
// fuzzy pass will accept; concurrency bounds the fuzzy scoring pool.
//
// Use the factory functions for common scenarios:
//   - DefaultMatchingOptions(): balanced defaults for most feeds
//   - StrictMatchingOptions(): tight tolerances for audited runs
//   - RelaxedMatchingOptions(): loose tolerances for exploratory comparison
type MatchingOptions struct {
	// AmountTolerance is the absolute amount difference, in currency units,
	// below which two amounts are considered equal.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// DateToleranceDays is the number of days tolerance for date comparison.
	DateToleranceDays int `json:"date_tolerance_days"`

	// FuzzyThreshold is the minimum confidence for accepting a fuzzy match.
	FuzzyThreshold float64 `json:"fuzzy_threshold"`

	// MaxCandidatesPerRecord bounds the per-subject fuzzy candidate list.
	// Zero means unlimited.
	MaxCandidatesPerRecord int `json:"max_candidates_per_record"`

	// Concurrency bounds the fuzzy scoring worker pool.
	Concurrency int `json:"concurrency"`

	// Weights are the relative field weights used by the scorer.
	Weights Weights `json:"weights"`
}

// DefaultMatchingOptions returns options with sensible defaults
func DefaultMatchingOptions() *MatchingOptions {
	return &MatchingOptions{
		AmountTolerance:        decimal.NewFromFloat(0.01),
		DateToleranceDays:      3,
		FuzzyThreshold:         0.8,
		MaxCandidatesPerRecord: 0,
		Concurrency:            4,
		Weights: Weights{
			Name:   0.4,
			Amount: 0.4,
			Date:   0.2,
		},
	}
}

// StrictMatchingOptions returns options for strict matching
func StrictMatchingOptions() *MatchingOptions {
	return &MatchingOptions{
		AmountTolerance:        decimal.Zero,
		DateToleranceDays:      0,
		FuzzyThreshold:         0.95,
		MaxCandidatesPerRecord: 5,
		Concurrency:            4,
		Weights: Weights{
			Name:   0.3,
			Amount: 0.5,
			Date:   0.2,
		},
	}
}

// RelaxedMatchingOptions returns options for relaxed matching
func RelaxedMatchingOptions() *MatchingOptions {
	return &MatchingOptions{
		AmountTolerance:        decimal.NewFromFloat(1.00),
		DateToleranceDays:      7,
		FuzzyThreshold:         0.6,
		MaxCandidatesPerRecord: 20,
		Concurrency:            8,
		Weights: Weights{
			Name:   0.4,
			Amount: 0.35,
			Date:   0.25,
		},
	}
}

// Validate checks if the matching options are valid. Invalid options are a
// configuration error and must be rejected before any matching begins.
func (mo *MatchingOptions) Validate() error {
	if mo.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", mo.AmountTolerance.String())
	}

	if mo.DateToleranceDays < 0 {
		return fmt.Errorf("date tolerance days cannot be negative: %d", mo.DateToleranceDays)
	}

	if mo.FuzzyThreshold < 0.0 || mo.FuzzyThreshold > 1.0 {
		return fmt.Errorf("fuzzy threshold must be between 0.0 and 1.0: %f", mo.FuzzyThreshold)
	}

	if mo.MaxCandidatesPerRecord < 0 {
		return fmt.Errorf("max candidates per record cannot be negative: %d", mo.MaxCandidatesPerRecord)
	}

	if mo.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive: %d", mo.Concurrency)
	}

	if err := mo.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}

	return nil
}

// Clone creates a deep copy of the matching options
func (mo *MatchingOptions) Clone() *MatchingOptions {
	if mo == nil {
		return nil
	}

	return &MatchingOptions{
		AmountTolerance:        mo.AmountTolerance,
		DateToleranceDays:      mo.DateToleranceDays,
		FuzzyThreshold:         mo.FuzzyThreshold,
		MaxCandidatesPerRecord: mo.MaxCandidatesPerRecord,
		Concurrency:            mo.Concurrency,
		Weights: Weights{
			Name:   mo.Weights.Name,
			Amount: mo.Weights.Amount,
			Date:   mo.Weights.Date,
		},
	}
}

// WithinAmountTolerance checks two amounts against the configured tolerance.
func (mo *MatchingOptions) WithinAmountTolerance(a, b decimal.Decimal) bool {
	return models.CompareAmountsWithTolerance(a, b, mo.AmountTolerance)
}

// WithinDateTolerance checks two dates against the configured day tolerance.
func (mo *MatchingOptions) WithinDateTolerance(a, b time.Time) bool {
	return models.CompareDatesWithTolerance(a, b, mo.DateToleranceDays)
}

// String returns a human-readable description of the options
func (mo *MatchingOptions) String() string {
	return fmt.Sprintf("MatchingOptions{AmountTolerance: %s, DateTolerance: %d days, FuzzyThreshold: %.2f, Concurrency: %d}",
		mo.AmountTolerance.String(), mo.DateToleranceDays, mo.FuzzyThreshold, mo.Concurrency)
}
