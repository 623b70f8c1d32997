package matcher

import (
	"sort"

	"invoice-reconciliation-engine/internal/models"
)

// KeyMatcher performs the exact-key pass: for each subject record, in
// ascending id order, it looks up unclaimed reference records by normalized
// invoice number, then by normalized PO number. Multiple unclaimed candidates
// sharing a key are never an error; the tie is resolved deterministically by
// amount proximity, then earliest issue date, then reference id.
type KeyMatcher struct {
	index  *ReferenceIndex
	claims *ClaimTable
	scorer *Scorer
}

// NewKeyMatcher creates a key matcher over the given index and claim table
func NewKeyMatcher(index *ReferenceIndex, claims *ClaimTable, scorer *Scorer) *KeyMatcher {
	return &KeyMatcher{
		index:  index,
		claims: claims,
		scorer: scorer,
	}
}

// Match runs the exact-key pass over the subject records. Subjects must be in
// ascending id order; matched pairs are claimed and removed from further
// consideration. Returned candidates follow subject order.
func (km *KeyMatcher) Match(subjects []*models.InvoiceRecord) []*MatchCandidate {
	var matches []*MatchCandidate

	for _, subject := range subjects {
		if km.claims.SubjectClaimed(subject.ID) {
			continue
		}

		if candidate := km.matchOne(subject); candidate != nil {
			matches = append(matches, candidate)
		}
	}

	return matches
}

// matchOne attempts the keyed lookups for a single subject record in
// priority order.
func (km *KeyMatcher) matchOne(subject *models.InvoiceRecord) *MatchCandidate {
	if key := subject.NormalizedInvoiceNumber(); key != "" {
		candidates := Unclaimed(km.index.GetByInvoiceNumber(key), km.claims)
		if len(candidates) > 0 {
			return km.claim(subject, selectByProximity(subject, candidates), MatchInvoiceNumber)
		}
	}

	if key := subject.NormalizedPONumber(); key != "" {
		candidates := Unclaimed(km.index.GetByPONumber(key), km.claims)
		if len(candidates) > 0 {
			return km.claim(subject, selectByProximity(subject, candidates), MatchPONumber)
		}
	}

	return nil
}

// claim records the pairing and builds its MatchCandidate. Key matches score
// 1.0 minus the scorer's penalty for out-of-tolerance amount/date fields;
// discrepancies are recorded either way.
func (km *KeyMatcher) claim(subject, reference *models.InvoiceRecord, matchType MatchType) *MatchCandidate {
	if !km.claims.Claim(reference.ID, subject.ID) {
		return nil
	}

	return &MatchCandidate{
		Subject:       subject,
		Reference:     reference,
		MatchType:     matchType,
		Confidence:    km.scorer.KeyMatchConfidence(subject, reference),
		Discrepancies: km.scorer.Discrepancies(subject, reference),
	}
}

// selectByProximity resolves a multi-candidate tie: smallest absolute amount
// difference, then earliest issue date, then reference id ordering. The sort
// is stable over an id-ordered input, so the outcome is reproducible.
func selectByProximity(subject *models.InvoiceRecord, candidates []*models.InvoiceRecord) *models.InvoiceRecord {
	if len(candidates) == 1 {
		return candidates[0]
	}

	ranked := make([]*models.InvoiceRecord, len(candidates))
	copy(ranked, candidates)

	sort.SliceStable(ranked, func(i, j int) bool {
		di := ranked[i].Amount.Sub(subject.Amount).Abs()
		dj := ranked[j].Amount.Sub(subject.Amount).Abs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}

		if !ranked[i].IssueDate.Equal(ranked[j].IssueDate) {
			return ranked[i].IssueDate.Before(ranked[j].IssueDate)
		}

		return ranked[i].ID < ranked[j].ID
	})

	return ranked[0]
}
