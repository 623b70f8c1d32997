// Package categorizer sorts every record of a comparison run into exactly one
// of five mutually exclusive outcome buckets, based on match outcome and the
// record's own status resolved through an injected vocabulary.
package categorizer

import (
	"invoice-reconciliation-engine/internal/matcher"
	"invoice-reconciliation-engine/internal/models"
)

// Category names one of the five outcome buckets.
type Category string

const (
	CategoryMatchedApproved        Category = "matchedApproved"
	CategoryMatchedPendingApproval Category = "matchedPendingApproval"
	CategoryMatchedDisputed        Category = "matchedDisputed"
	CategoryUnmatchedReferenceOnly Category = "unmatchedReferenceOnly"
	CategoryUnmatchedSubjectOnly   Category = "unmatchedSubjectOnly"
)

// String returns the string representation of Category
func (c Category) String() string {
	return string(c)
}

// Buckets holds the record ids assigned to each category. Matched buckets
// carry subject record ids; unmatchedReferenceOnly carries reference record
// ids. Their union covers every input record exactly once.
type Buckets struct {
	MatchedApproved        []string `json:"matchedApproved"`
	MatchedPendingApproval []string `json:"matchedPendingApproval"`
	MatchedDisputed        []string `json:"matchedDisputed"`
	UnmatchedReferenceOnly []string `json:"unmatchedReferenceOnly"`
	UnmatchedSubjectOnly   []string `json:"unmatchedSubjectOnly"`
}

// MatchedCount returns the number of subject ids across the matched buckets.
func (b *Buckets) MatchedCount() int {
	return len(b.MatchedApproved) + len(b.MatchedPendingApproval) + len(b.MatchedDisputed)
}

// SubjectCount returns the number of subject ids across all subject buckets.
func (b *Buckets) SubjectCount() int {
	return b.MatchedCount() + len(b.UnmatchedSubjectOnly)
}

// Counts returns the per-category sizes keyed by category name.
func (b *Buckets) Counts() map[Category]int {
	return map[Category]int{
		CategoryMatchedApproved:        len(b.MatchedApproved),
		CategoryMatchedPendingApproval: len(b.MatchedPendingApproval),
		CategoryMatchedDisputed:        len(b.MatchedDisputed),
		CategoryUnmatchedReferenceOnly: len(b.UnmatchedReferenceOnly),
		CategoryUnmatchedSubjectOnly:   len(b.UnmatchedSubjectOnly),
	}
}

// Categorizer assigns categories using a status vocabulary injected at
// construction. The engine never interprets raw status strings itself, so a
// new upstream system is onboarded by supplying its vocabulary here.
type Categorizer struct {
	vocab models.StatusVocabulary
}

// New creates a categorizer with the given vocabulary. A nil vocabulary
// falls back to the default procurement/ERP vocabulary.
func New(vocab models.StatusVocabulary) *Categorizer {
	if vocab == nil {
		vocab = models.DefaultStatusVocabulary()
	}
	return &Categorizer{vocab: vocab}
}

// CategorizeMatch resolves the bucket for a matched pair. An amount
// discrepancy beyond tolerance forces matchedDisputed regardless of status;
// otherwise the subject's normalized status decides. Statuses that resolve
// to OTHER land in matchedPendingApproval: an unrecognized status needs
// review, not silent approval.
func (c *Categorizer) CategorizeMatch(candidate *matcher.MatchCandidate) Category {
	if candidate.HasDiscrepancy(models.FieldAmount) {
		return CategoryMatchedDisputed
	}

	switch c.vocab.Resolve(candidate.Subject.Status) {
	case models.StatusApproved:
		return CategoryMatchedApproved
	case models.StatusRejected:
		return CategoryMatchedDisputed
	default:
		return CategoryMatchedPendingApproval
	}
}

// Categorize sorts every record of a match outcome into its bucket. Bucket
// contents follow the outcome's id ordering, so identical outcomes produce
// identical buckets.
func (c *Categorizer) Categorize(outcome *matcher.MatchOutcome) *Buckets {
	buckets := &Buckets{}

	for _, candidate := range outcome.Matches {
		switch c.CategorizeMatch(candidate) {
		case CategoryMatchedApproved:
			buckets.MatchedApproved = append(buckets.MatchedApproved, candidate.Subject.ID)
		case CategoryMatchedDisputed:
			buckets.MatchedDisputed = append(buckets.MatchedDisputed, candidate.Subject.ID)
		default:
			buckets.MatchedPendingApproval = append(buckets.MatchedPendingApproval, candidate.Subject.ID)
		}
	}

	for _, reference := range outcome.UnmatchedReferences() {
		buckets.UnmatchedReferenceOnly = append(buckets.UnmatchedReferenceOnly, reference.ID)
	}

	for _, subject := range outcome.UnmatchedSubjects() {
		buckets.UnmatchedSubjectOnly = append(buckets.UnmatchedSubjectOnly, subject.ID)
	}

	return buckets
}
