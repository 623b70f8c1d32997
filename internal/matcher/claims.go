package matcher

import "sync"

// ClaimTable tracks which reference records have been claimed by which
// subject records within a single comparison run. A reference record can be
// claimed by at most one subject record per run (first-claimed-wins).
//
// The table is owned by its run and never shared across runs. Claiming is the
// only operation that needs exclusive access; reads during candidate scoring
// take the same lock so the fuzzy pass can snapshot claim state safely while
// scoring workers are in flight.
type ClaimTable struct {
	mu sync.Mutex

	// referenceOwner maps reference record id -> claiming subject record id
	referenceOwner map[string]string

	// subjectClaim maps subject record id -> claimed reference record id
	subjectClaim map[string]string
}

// NewClaimTable creates an empty claim table
func NewClaimTable() *ClaimTable {
	return &ClaimTable{
		referenceOwner: make(map[string]string),
		subjectClaim:   make(map[string]string),
	}
}

// Claim associates a reference record with a subject record. It returns false
// without modifying the table if either side is already claimed, which
// preserves the first-claimed-wins invariant under concurrent callers.
func (ct *ClaimTable) Claim(referenceID, subjectID string) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	if _, taken := ct.referenceOwner[referenceID]; taken {
		return false
	}
	if _, taken := ct.subjectClaim[subjectID]; taken {
		return false
	}

	ct.referenceOwner[referenceID] = subjectID
	ct.subjectClaim[subjectID] = referenceID
	return true
}

// ReferenceClaimed reports whether the reference record has been claimed.
func (ct *ClaimTable) ReferenceClaimed(referenceID string) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	_, taken := ct.referenceOwner[referenceID]
	return taken
}

// SubjectClaimed reports whether the subject record has claimed a reference.
func (ct *ClaimTable) SubjectClaimed(subjectID string) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	_, taken := ct.subjectClaim[subjectID]
	return taken
}

// ReferenceOwner returns the subject id that claimed the reference record.
func (ct *ClaimTable) ReferenceOwner(referenceID string) (string, bool) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	owner, taken := ct.referenceOwner[referenceID]
	return owner, taken
}

// ClaimCount returns the number of claimed pairs.
func (ct *ClaimTable) ClaimCount() int {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	return len(ct.referenceOwner)
}
