package matcher

import (
	"sort"

	"invoice-reconciliation-engine/internal/models"
)

// ReferenceIndex provides exact-key lookups over the reference record set.
// Keys are normalized (lower-cased, trimmed, internal whitespace collapsed);
// records whose key normalizes to the empty string are excluded from that
// index so nothing ever matches on an empty key.
//
// Building is O(n) and side-effect-free. Buckets are kept in ascending record
// id order so every downstream consumer sees candidates in a stable order.
type ReferenceIndex struct {
	// InvoiceNumberIndex maps normalized invoice numbers to record slices
	InvoiceNumberIndex map[string][]*models.InvoiceRecord

	// PONumberIndex maps normalized purchase-order numbers to record slices
	PONumberIndex map[string][]*models.InvoiceRecord

	// AllRecords holds all indexed reference records in ascending id order
	AllRecords []*models.InvoiceRecord
}

// BuildReferenceIndex creates a new index from a slice of reference records.
// The input slice is not modified.
func BuildReferenceIndex(records []*models.InvoiceRecord) *ReferenceIndex {
	ordered := make([]*models.InvoiceRecord, len(records))
	copy(ordered, records)
	models.SortRecordsByID(ordered)

	index := &ReferenceIndex{
		InvoiceNumberIndex: make(map[string][]*models.InvoiceRecord),
		PONumberIndex:      make(map[string][]*models.InvoiceRecord),
		AllRecords:         ordered,
	}

	index.buildIndexes()
	return index
}

// buildIndexes constructs both key maps
func (ri *ReferenceIndex) buildIndexes() {
	for _, rec := range ri.AllRecords {
		if key := rec.NormalizedInvoiceNumber(); key != "" {
			ri.InvoiceNumberIndex[key] = append(ri.InvoiceNumberIndex[key], rec)
		}

		if key := rec.NormalizedPONumber(); key != "" {
			ri.PONumberIndex[key] = append(ri.PONumberIndex[key], rec)
		}
	}
}

// GetByInvoiceNumber returns reference records sharing the normalized invoice
// number key. An empty key returns nothing.
func (ri *ReferenceIndex) GetByInvoiceNumber(key string) []*models.InvoiceRecord {
	if key == "" {
		return nil
	}
	return ri.InvoiceNumberIndex[key]
}

// GetByPONumber returns reference records sharing the normalized PO number
// key. An empty key returns nothing.
func (ri *ReferenceIndex) GetByPONumber(key string) []*models.InvoiceRecord {
	if key == "" {
		return nil
	}
	return ri.PONumberIndex[key]
}

// Unclaimed filters a candidate bucket down to records not yet claimed in the
// given claim table, preserving order.
func Unclaimed(candidates []*models.InvoiceRecord, claims *ClaimTable) []*models.InvoiceRecord {
	var open []*models.InvoiceRecord
	for _, rec := range candidates {
		if !claims.ReferenceClaimed(rec.ID) {
			open = append(open, rec)
		}
	}
	return open
}

// IndexStats provides statistics about index contents
type IndexStats struct {
	TotalRecords         int
	UniqueInvoiceNumbers int
	UniquePONumbers      int
}

// GetIndexStats returns statistics about the reference index
func (ri *ReferenceIndex) GetIndexStats() IndexStats {
	return IndexStats{
		TotalRecords:         len(ri.AllRecords),
		UniqueInvoiceNumbers: len(ri.InvoiceNumberIndex),
		UniquePONumbers:      len(ri.PONumberIndex),
	}
}

// Keys returns the normalized invoice-number keys in sorted order. Used by
// diagnostics and tests; matching never iterates keys.
func (ri *ReferenceIndex) Keys() []string {
	keys := make([]string, 0, len(ri.InvoiceNumberIndex))
	for k := range ri.InvoiceNumberIndex {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
