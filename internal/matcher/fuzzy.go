package matcher

import (
	"context"
	"sort"
	"sync"

	"invoice-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

// FuzzyMatcher performs the similarity pass over records left unclaimed by
// the key pass. Candidate scoring is the O(n*m) hot path and runs on a
// bounded worker pool: each worker only reads the shared immutable reference
// slice, so no synchronization is needed until claiming. Claims are then
// resolved in a single serial pass ordered by subject id, which keeps
// first-claimed-wins deterministic regardless of worker scheduling.
type FuzzyMatcher struct {
	claims *ClaimTable
	scorer *Scorer
	opts   *MatchingOptions
}

// NewFuzzyMatcher creates a fuzzy matcher over the given claim table
func NewFuzzyMatcher(claims *ClaimTable, scorer *Scorer, opts *MatchingOptions) *FuzzyMatcher {
	return &FuzzyMatcher{
		claims: claims,
		scorer: scorer,
		opts:   opts,
	}
}

// scoredCandidate is one reference record scored against a subject record.
type scoredCandidate struct {
	reference    *models.InvoiceRecord
	confidence   float64
	amountDiff   decimal.Decimal
	dateDiffDays int
}

// subjectProposal holds the ranked acceptable candidates for one subject.
type subjectProposal struct {
	subject *models.InvoiceRecord
	ranked  []scoredCandidate
}

// Match scores every unclaimed reference record for each unclaimed subject
// record and accepts the best candidate at or above the fuzzy threshold.
// Subjects must be in ascending id order. Cancellation is checked between
// records; on cancellation the matches claimed so far are returned together
// with the context error.
func (fm *FuzzyMatcher) Match(ctx context.Context, subjects, references []*models.InvoiceRecord) ([]*MatchCandidate, error) {
	openSubjects := fm.unclaimedSubjects(subjects)
	openReferences := Unclaimed(references, fm.claims)

	if len(openSubjects) == 0 || len(openReferences) == 0 {
		return nil, ctx.Err()
	}

	proposals, err := fm.scoreSubjects(ctx, openSubjects, openReferences)

	// Claim resolution stays serial and id-ordered even after cancellation
	// so a partial result is still internally consistent.
	matches := fm.resolveClaims(proposals)

	return matches, err
}

// unclaimedSubjects filters subjects down to those without a key match,
// preserving order.
func (fm *FuzzyMatcher) unclaimedSubjects(subjects []*models.InvoiceRecord) []*models.InvoiceRecord {
	var open []*models.InvoiceRecord
	for _, subject := range subjects {
		if !fm.claims.SubjectClaimed(subject.ID) {
			open = append(open, subject)
		}
	}
	return open
}

// scoreSubjects fans subject indexes out to a bounded worker pool. Workers
// write disjoint slots of the proposals slice, so the only coordination is
// the jobs channel and the wait group.
func (fm *FuzzyMatcher) scoreSubjects(
	ctx context.Context,
	subjects []*models.InvoiceRecord,
	references []*models.InvoiceRecord,
) ([]*subjectProposal, error) {

	proposals := make([]*subjectProposal, len(subjects))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < fm.opts.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				proposals[idx] = fm.scoreOne(subjects[idx], references)
			}
		}()
	}

	var err error
dispatch:
	for i := range subjects {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}

	close(jobs)
	wg.Wait()

	return proposals, err
}

// scoreOne computes the ranked acceptable candidates for a single subject.
// Ranking is confidence descending with the same deterministic tie-break as
// the key pass: amount proximity, then date proximity, then reference id.
func (fm *FuzzyMatcher) scoreOne(subject *models.InvoiceRecord, references []*models.InvoiceRecord) *subjectProposal {
	var ranked []scoredCandidate

	for _, reference := range references {
		confidence, _, _ := fm.scorer.Score(subject, reference)
		if confidence < fm.opts.FuzzyThreshold {
			continue
		}

		ranked = append(ranked, scoredCandidate{
			reference:    reference,
			confidence:   confidence,
			amountDiff:   reference.Amount.Sub(subject.Amount).Abs(),
			dateDiffDays: models.DateDifferenceDays(reference.IssueDate, subject.IssueDate),
		})
	}

	if len(ranked) == 0 {
		return &subjectProposal{subject: subject}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].confidence != ranked[j].confidence {
			return ranked[i].confidence > ranked[j].confidence
		}

		if !ranked[i].amountDiff.Equal(ranked[j].amountDiff) {
			return ranked[i].amountDiff.LessThan(ranked[j].amountDiff)
		}

		if ranked[i].dateDiffDays != ranked[j].dateDiffDays {
			return ranked[i].dateDiffDays < ranked[j].dateDiffDays
		}

		return ranked[i].reference.ID < ranked[j].reference.ID
	})

	if limit := fm.opts.MaxCandidatesPerRecord; limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return &subjectProposal{subject: subject, ranked: ranked}
}

// resolveClaims walks proposals in subject order and claims each subject's
// best still-available candidate. A subject whose entire candidate list was
// claimed by earlier subjects remains unmatched.
func (fm *FuzzyMatcher) resolveClaims(proposals []*subjectProposal) []*MatchCandidate {
	var matches []*MatchCandidate

	for _, proposal := range proposals {
		if proposal == nil {
			continue
		}

		for _, candidate := range proposal.ranked {
			if !fm.claims.Claim(candidate.reference.ID, proposal.subject.ID) {
				continue
			}

			matches = append(matches, &MatchCandidate{
				Subject:       proposal.subject,
				Reference:     candidate.reference,
				MatchType:     MatchFuzzy,
				Confidence:    candidate.confidence,
				Discrepancies: fm.scorer.Discrepancies(proposal.subject, candidate.reference),
			})
			break
		}
	}

	return matches
}
