package matcher

import (
	"math"
	"strings"
	"time"

	"invoice-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// keyMatchPenalty is deducted per out-of-tolerance field on a key match,
// scaled by how far the field similarity is from 1.0. Exact pairs stay at 1.0.
const keyMatchPenalty = 0.1

// Scorer computes the confidence of a candidate pairing as a weighted blend
// of name, amount, and date similarity, each mapped to [0,1]. Field
// comparisons that exceed their tolerance are recorded as discrepancies
// regardless of whether the blended confidence clears any threshold.
type Scorer struct {
	opts *MatchingOptions
}

// NewScorer creates a scorer using the given options
func NewScorer(opts *MatchingOptions) *Scorer {
	if opts == nil {
		opts = DefaultMatchingOptions()
	}
	return &Scorer{opts: opts}
}

// FieldScores holds the per-field similarity components of a confidence value.
type FieldScores struct {
	Name   float64 `json:"name"`
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
}

// Score computes the blended confidence for a subject/reference pairing along
// with the field scores and any out-of-tolerance discrepancies.
func (s *Scorer) Score(subject, reference *models.InvoiceRecord) (float64, FieldScores, []models.Discrepancy) {
	scores := FieldScores{
		Name:   s.nameSimilarity(subject.CounterpartyName, reference.CounterpartyName),
		Amount: s.amountSimilarity(subject.Amount, reference.Amount),
		Date:   s.dateSimilarity(subject.IssueDate, reference.IssueDate),
	}

	weights := s.opts.Weights
	confidence := scores.Name*weights.Name +
		scores.Amount*weights.Amount +
		scores.Date*weights.Date
	confidence = clamp01(confidence)

	return confidence, scores, s.Discrepancies(subject, reference)
}

// KeyMatchConfidence computes the confidence of an exact-key match: 1.0 minus
// a small penalty for each of amount and date falling outside its tolerance.
func (s *Scorer) KeyMatchConfidence(subject, reference *models.InvoiceRecord) float64 {
	confidence := 1.0

	if !s.opts.WithinAmountTolerance(subject.Amount, reference.Amount) {
		confidence -= keyMatchPenalty * (1.0 - s.amountSimilarity(subject.Amount, reference.Amount))
	}

	if !s.opts.WithinDateTolerance(subject.IssueDate, reference.IssueDate) {
		confidence -= keyMatchPenalty * (1.0 - s.dateSimilarity(subject.IssueDate, reference.IssueDate))
	}

	return clamp01(confidence)
}

// Discrepancies records every compared field whose values differ beyond
// tolerance. Names carry zero tolerance: any difference after normalization
// is recorded.
func (s *Scorer) Discrepancies(subject, reference *models.InvoiceRecord) []models.Discrepancy {
	var discrepancies []models.Discrepancy

	if !s.opts.WithinAmountTolerance(subject.Amount, reference.Amount) {
		discrepancies = append(discrepancies, models.Discrepancy{
			Field:          models.FieldAmount,
			SubjectValue:   models.AmountValue(subject.Amount),
			ReferenceValue: models.AmountValue(reference.Amount),
		})
	}

	if !s.opts.WithinDateTolerance(subject.IssueDate, reference.IssueDate) {
		discrepancies = append(discrepancies, models.Discrepancy{
			Field:          models.FieldIssueDate,
			SubjectValue:   models.DateValue(subject.IssueDate),
			ReferenceValue: models.DateValue(reference.IssueDate),
		})
	}

	if models.NormalizeName(subject.CounterpartyName) != models.NormalizeName(reference.CounterpartyName) {
		discrepancies = append(discrepancies, models.Discrepancy{
			Field:          models.FieldCounterpartyName,
			SubjectValue:   models.StringValue(subject.CounterpartyName),
			ReferenceValue: models.StringValue(reference.CounterpartyName),
		})
	}

	return discrepancies
}

// nameSimilarity maps two counterparty names to [0,1] using the better of a
// normalized edit-distance measure and token overlap on the normalized forms.
func (s *Scorer) nameSimilarity(a, b string) float64 {
	an := models.NormalizeName(a)
	bn := models.NormalizeName(b)

	if an == bn {
		return 1.0
	}

	if an == "" || bn == "" {
		return 0.0
	}

	return math.Max(editSimilarity(an, bn), tokenOverlap(an, bn))
}

// editSimilarity is 1 minus the Levenshtein distance normalized by the longer
// string length.
func editSimilarity(a, b string) float64 {
	distance := levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions)

	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}

	return clamp01(1.0 - float64(distance)/float64(maxLen))
}

// tokenOverlap is the Jaccard overlap of whitespace-delimited tokens.
func tokenOverlap(a, b string) float64 {
	aTokens := strings.Fields(a)
	bTokens := strings.Fields(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0.0
	}

	aSet := make(map[string]bool, len(aTokens))
	for _, tok := range aTokens {
		aSet[tok] = true
	}
	bSet := make(map[string]bool, len(bTokens))
	for _, tok := range bTokens {
		bSet[tok] = true
	}

	shared := 0
	for tok := range aSet {
		if bSet[tok] {
			shared++
		}
	}

	union := len(aSet) + len(bSet) - shared
	return float64(shared) / float64(union)
}

// amountSimilarity maps the absolute amount difference to [0,1]: within
// tolerance scores near 1, far outside scores 0. The divisor is floored at
// one currency unit so a zero tolerance does not collapse the scale.
func (s *Scorer) amountSimilarity(a, b decimal.Decimal) float64 {
	diff := a.Sub(b).Abs()
	if diff.IsZero() {
		return 1.0
	}

	divisor := s.opts.AmountTolerance
	if divisor.LessThan(decimal.NewFromInt(1)) {
		divisor = decimal.NewFromInt(1)
	}

	ratio := diff.Div(divisor).InexactFloat64()
	return clamp01(1.0 - ratio)
}

// dateSimilarity follows the same shape as amountSimilarity using the day
// tolerance, floored at one day.
func (s *Scorer) dateSimilarity(a, b time.Time) float64 {
	diffDays := models.DateDifferenceDays(a, b)
	if diffDays == 0 {
		return 1.0
	}

	divisor := s.opts.DateToleranceDays
	if divisor < 1 {
		divisor = 1
	}

	return clamp01(1.0 - float64(diffDays)/float64(divisor))
}

func clamp01(v float64) float64 {
	if v < 0.0 {
		return 0.0
	}
	if v > 1.0 {
		return 1.0
	}
	return v
}
