package matcher

import (
	"context"
	"fmt"
	"sort"

	"invoice-reconciliation-engine/internal/models"
)

// MatchCandidate is an accepted pairing of one subject record to one
// reference record, with the match type that established it, a confidence in
// [0,1], and any out-of-tolerance field discrepancies.
type MatchCandidate struct {
	Subject       *models.InvoiceRecord `json:"subject"`
	Reference     *models.InvoiceRecord `json:"reference"`
	MatchType     MatchType             `json:"matchType"`
	Confidence    float64               `json:"confidence"`
	Discrepancies []models.Discrepancy  `json:"discrepancies,omitempty"`
}

// HasDiscrepancy reports whether the pairing recorded a discrepancy on the
// given field.
func (mc *MatchCandidate) HasDiscrepancy(field models.DiscrepancyField) bool {
	for _, d := range mc.Discrepancies {
		if d.Field == field {
			return true
		}
	}
	return false
}

// String returns a short description of the candidate
func (mc *MatchCandidate) String() string {
	return fmt.Sprintf("MatchCandidate{%s -> %s, %s, confidence=%.3f, discrepancies=%d}",
		mc.Subject.ID, mc.Reference.ID, mc.MatchType, mc.Confidence, len(mc.Discrepancies))
}

// MatchOutcome is the result of the full matching pipeline over one pair of
// record sets: the accepted matches in ascending subject id order, the claim
// table that produced them, and the id-ordered inputs the passes ran over.
type MatchOutcome struct {
	Matches    []*MatchCandidate
	Claims     *ClaimTable
	References []*models.InvoiceRecord
	Subjects   []*models.InvoiceRecord
}

// UnmatchedSubjects returns the subject records no pass claimed, in id order.
func (mo *MatchOutcome) UnmatchedSubjects() []*models.InvoiceRecord {
	var unmatched []*models.InvoiceRecord
	for _, subject := range mo.Subjects {
		if !mo.Claims.SubjectClaimed(subject.ID) {
			unmatched = append(unmatched, subject)
		}
	}
	return unmatched
}

// UnmatchedReferences returns the reference records never claimed, in id order.
func (mo *MatchOutcome) UnmatchedReferences() []*models.InvoiceRecord {
	var unmatched []*models.InvoiceRecord
	for _, reference := range mo.References {
		if !mo.Claims.ReferenceClaimed(reference.ID) {
			unmatched = append(unmatched, reference)
		}
	}
	return unmatched
}

// MatchingEngine drives the key pass and the fuzzy pass over one pair of
// record sets. The engine holds no per-run state: every Match call builds its
// own index and claim table, so identical inputs always produce identical
// outcomes and the engine is safe to reuse across runs.
type MatchingEngine struct {
	opts *MatchingOptions
}

// NewMatchingEngine creates an engine with the given options. Invalid options
// are rejected here, before any matching can begin.
func NewMatchingEngine(opts *MatchingOptions) (*MatchingEngine, error) {
	if opts == nil {
		opts = DefaultMatchingOptions()
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matching options: %w", err)
	}

	return &MatchingEngine{opts: opts.Clone()}, nil
}

// Options returns a copy of the engine options
func (me *MatchingEngine) Options() *MatchingOptions {
	return me.opts.Clone()
}

// Match runs both passes. Input slices are not modified; the engine works on
// id-sorted copies so subject processing order is always deterministic.
// On cancellation the matches established so far are returned in the outcome
// together with the context error.
func (me *MatchingEngine) Match(
	ctx context.Context,
	references []*models.InvoiceRecord,
	subjects []*models.InvoiceRecord,
) (*MatchOutcome, error) {

	index := BuildReferenceIndex(references)

	orderedSubjects := make([]*models.InvoiceRecord, len(subjects))
	copy(orderedSubjects, subjects)
	models.SortRecordsByID(orderedSubjects)

	claims := NewClaimTable()
	scorer := NewScorer(me.opts)

	keyMatches := NewKeyMatcher(index, claims, scorer).Match(orderedSubjects)

	fuzzyMatches, err := NewFuzzyMatcher(claims, scorer, me.opts).Match(ctx, orderedSubjects, index.AllRecords)

	matches := append(keyMatches, fuzzyMatches...)
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Subject.ID < matches[j].Subject.ID
	})

	outcome := &MatchOutcome{
		Matches:    matches,
		Claims:     claims,
		References: index.AllRecords,
		Subjects:   orderedSubjects,
	}

	return outcome, err
}
