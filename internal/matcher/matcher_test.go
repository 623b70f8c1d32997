package matcher

import (
	"context"
	"math"
	"testing"
	"time"

	"invoice-reconciliation-engine/internal/models"

	"github.com/shopspring/decimal"
)

func createTestMatchingData() ([]*models.InvoiceRecord, []*models.InvoiceRecord) {
	references := []*models.InvoiceRecord{
		{
			ID:               "REF001",
			InvoiceNumber:    "INV-1001",
			PONumber:         "PO-500",
			Amount:           decimal.NewFromFloat(100.50),
			IssueDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Acme Corporation",
			Status:           "approved",
			Source:           models.SourceReference,
		},
		{
			ID:               "REF002",
			InvoiceNumber:    "INV-1002",
			Amount:           decimal.NewFromFloat(250.00),
			IssueDate:        time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Globex LLC",
			Status:           "approved",
			Source:           models.SourceReference,
		},
		{
			ID:               "REF003",
			InvoiceNumber:    "INV-1003",
			PONumber:         "PO-501",
			Amount:           decimal.NewFromFloat(75.25),
			IssueDate:        time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Initech Ltd",
			Status:           "pending",
			Source:           models.SourceReference,
		},
		{
			ID:               "REF004",
			PONumber:         "PO-502",
			Amount:           decimal.NewFromFloat(980.00),
			IssueDate:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Umbrella Supply Co",
			Status:           "approved",
			Source:           models.SourceReference,
		},
		{
			ID:               "REF005",
			InvoiceNumber:    "INV-2000",
			Amount:           decimal.NewFromFloat(500.00),
			IssueDate:        time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Stark Industries",
			Status:           "approved",
			Source:           models.SourceReference,
		},
	}

	subjects := []*models.InvoiceRecord{
		{
			ID:               "SUB001",
			InvoiceNumber:    "inv-1001",
			Amount:           decimal.NewFromFloat(100.50),
			IssueDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Acme Corporation",
			Status:           "approved",
			Source:           models.SourceSubject,
		},
		{
			ID:               "SUB002",
			InvoiceNumber:    "INV-1002",
			Amount:           decimal.NewFromFloat(250.50),
			IssueDate:        time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Globex LLC",
			Status:           "approved",
			Source:           models.SourceSubject,
		},
		{
			ID:               "SUB003",
			PONumber:         "po-502",
			Amount:           decimal.NewFromFloat(980.00),
			IssueDate:        time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Umbrella Supply Co",
			Status:           "pending",
			Source:           models.SourceSubject,
		},
		{
			ID:               "SUB004",
			Amount:           decimal.NewFromFloat(75.25),
			IssueDate:        time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Initech Limited",
			Status:           "pending",
			Source:           models.SourceSubject,
		},
		{
			ID:               "SUB005",
			Amount:           decimal.NewFromFloat(999.99),
			IssueDate:        time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Wayne Enterprises",
			Status:           "approved",
			Source:           models.SourceSubject,
		},
	}

	return references, subjects
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNewMatchingEngine(t *testing.T) {
	engine, err := NewMatchingEngine(nil)
	if err != nil {
		t.Fatalf("Expected engine with default options, got error: %v", err)
	}
	if engine == nil {
		t.Fatal("Expected matching engine to be created")
	}

	bad := DefaultMatchingOptions()
	bad.FuzzyThreshold = 1.5
	if _, err := NewMatchingEngine(bad); err == nil {
		t.Error("Expected error for invalid options")
	}
}

func TestBuildReferenceIndex(t *testing.T) {
	references, _ := createTestMatchingData()
	index := BuildReferenceIndex(references)

	if len(index.AllRecords) != len(references) {
		t.Fatalf("Expected %d records in index, got %d", len(references), len(index.AllRecords))
	}

	// Keys are normalized, lookups go through the same normalization
	byInvoice := index.GetByInvoiceNumber(models.NormalizeKey("  INV-1001  "))
	if len(byInvoice) != 1 || byInvoice[0].ID != "REF001" {
		t.Errorf("Expected REF001 for invoice key, got %v", byInvoice)
	}

	byPO := index.GetByPONumber(models.NormalizeKey("PO-502"))
	if len(byPO) != 1 || byPO[0].ID != "REF004" {
		t.Errorf("Expected REF004 for PO key, got %v", byPO)
	}

	// REF004 has no invoice number so the invoice index must not contain it
	stats := index.GetIndexStats()
	if stats.UniqueInvoiceNumbers != 4 {
		t.Errorf("Expected 4 invoice number keys, got %d", stats.UniqueInvoiceNumbers)
	}

	if got := index.GetByInvoiceNumber(""); got != nil {
		t.Errorf("Expected nil for empty key lookup, got %v", got)
	}
}

func TestClaimTable(t *testing.T) {
	claims := NewClaimTable()

	if !claims.Claim("REF001", "SUB001") {
		t.Fatal("Expected first claim to succeed")
	}
	if claims.Claim("REF001", "SUB002") {
		t.Error("Expected claim on taken reference to fail")
	}
	if claims.Claim("REF002", "SUB001") {
		t.Error("Expected claim by taken subject to fail")
	}

	if !claims.ReferenceClaimed("REF001") {
		t.Error("Expected REF001 to be claimed")
	}
	if !claims.SubjectClaimed("SUB001") {
		t.Error("Expected SUB001 to be claimed")
	}

	owner, ok := claims.ReferenceOwner("REF001")
	if !ok || owner != "SUB001" {
		t.Errorf("Expected REF001 owned by SUB001, got %s", owner)
	}

	if claims.ClaimCount() != 1 {
		t.Errorf("Expected 1 claim, got %d", claims.ClaimCount())
	}
}

func TestKeyMatcher_InvoiceNumberPriority(t *testing.T) {
	references, subjects := createTestMatchingData()
	index := BuildReferenceIndex(references)
	claims := NewClaimTable()
	scorer := NewScorer(DefaultMatchingOptions())

	matches := NewKeyMatcher(index, claims, scorer).Match(subjects)

	byID := make(map[string]*MatchCandidate)
	for _, m := range matches {
		byID[m.Subject.ID] = m
	}

	// SUB001 matches REF001 on invoice number despite case difference
	m, ok := byID["SUB001"]
	if !ok {
		t.Fatal("Expected SUB001 to be key matched")
	}
	if m.Reference.ID != "REF001" || m.MatchType != MatchInvoiceNumber {
		t.Errorf("Expected SUB001 -> REF001 via invoice number, got %s via %s", m.Reference.ID, m.MatchType)
	}
	if !almostEqual(m.Confidence, 1.0) {
		t.Errorf("Expected confidence 1.0 for exact key match, got %f", m.Confidence)
	}
	if len(m.Discrepancies) != 0 {
		t.Errorf("Expected no discrepancies for identical records, got %v", m.Discrepancies)
	}

	// SUB003 has no invoice number and falls through to the PO index
	m, ok = byID["SUB003"]
	if !ok {
		t.Fatal("Expected SUB003 to be key matched")
	}
	if m.Reference.ID != "REF004" || m.MatchType != MatchPONumber {
		t.Errorf("Expected SUB003 -> REF004 via PO number, got %s via %s", m.Reference.ID, m.MatchType)
	}

	// SUB004 and SUB005 carry no keys
	if _, ok := byID["SUB004"]; ok {
		t.Error("Expected SUB004 to be left for the fuzzy pass")
	}
	if _, ok := byID["SUB005"]; ok {
		t.Error("Expected SUB005 to be left for the fuzzy pass")
	}
}

func TestKeyMatcher_AmountDiscrepancy(t *testing.T) {
	references, subjects := createTestMatchingData()
	index := BuildReferenceIndex(references)
	claims := NewClaimTable()
	scorer := NewScorer(DefaultMatchingOptions())

	matches := NewKeyMatcher(index, claims, scorer).Match(subjects)

	var m *MatchCandidate
	for _, candidate := range matches {
		if candidate.Subject.ID == "SUB002" {
			m = candidate
		}
	}
	if m == nil {
		t.Fatal("Expected SUB002 to be key matched despite amount drift")
	}

	if !m.HasDiscrepancy(models.FieldAmount) {
		t.Error("Expected amount discrepancy for 0.50 drift with 0.01 tolerance")
	}
	if m.Confidence >= 1.0 {
		t.Errorf("Expected confidence below 1.0 with out-of-tolerance amount, got %f", m.Confidence)
	}
	// amount similarity is 1 - 0.50/1 = 0.5, so confidence is 1 - 0.1*(1-0.5)
	if !almostEqual(m.Confidence, 0.95) {
		t.Errorf("Expected confidence 0.95, got %f", m.Confidence)
	}
}

func TestKeyMatcher_TieBreakByAmountProximity(t *testing.T) {
	references := []*models.InvoiceRecord{
		{
			ID:            "REF-B",
			InvoiceNumber: "INV-9000",
			Amount:        decimal.NewFromFloat(100.40),
			IssueDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Source:        models.SourceReference,
		},
		{
			ID:            "REF-A",
			InvoiceNumber: "INV-9000",
			Amount:        decimal.NewFromFloat(100.00),
			IssueDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Source:        models.SourceReference,
		},
	}
	subjects := []*models.InvoiceRecord{
		{
			ID:            "SUB-X",
			InvoiceNumber: "INV-9000",
			Amount:        decimal.NewFromFloat(100.05),
			IssueDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Source:        models.SourceSubject,
		},
	}

	index := BuildReferenceIndex(references)
	matches := NewKeyMatcher(index, NewClaimTable(), NewScorer(nil)).Match(subjects)

	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].Reference.ID != "REF-A" {
		t.Errorf("Expected tie broken toward closest amount REF-A, got %s", matches[0].Reference.ID)
	}
}

func TestKeyMatcher_TieBreakByID(t *testing.T) {
	sharedDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	references := []*models.InvoiceRecord{
		{
			ID:            "REF-ZZ",
			InvoiceNumber: "INV-9001",
			Amount:        decimal.NewFromFloat(50.00),
			IssueDate:     sharedDate,
			Source:        models.SourceReference,
		},
		{
			ID:            "REF-AA",
			InvoiceNumber: "INV-9001",
			Amount:        decimal.NewFromFloat(50.00),
			IssueDate:     sharedDate,
			Source:        models.SourceReference,
		},
	}
	subjects := []*models.InvoiceRecord{
		{
			ID:            "SUB-Y",
			InvoiceNumber: "INV-9001",
			Amount:        decimal.NewFromFloat(50.00),
			IssueDate:     sharedDate,
			Source:        models.SourceSubject,
		},
	}

	index := BuildReferenceIndex(references)
	matches := NewKeyMatcher(index, NewClaimTable(), NewScorer(nil)).Match(subjects)

	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].Reference.ID != "REF-AA" {
		t.Errorf("Expected identical candidates tie broken by id, got %s", matches[0].Reference.ID)
	}
}

func TestScorer_ExactRecordsScoreOne(t *testing.T) {
	record := &models.InvoiceRecord{
		ID:               "R1",
		Amount:           decimal.NewFromFloat(123.45),
		IssueDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CounterpartyName: "Acme Corporation",
	}

	scorer := NewScorer(nil)
	confidence, fields, discrepancies := scorer.Score(record, record)

	if !almostEqual(confidence, 1.0) {
		t.Errorf("Expected confidence 1.0 for identical records, got %f", confidence)
	}
	if !almostEqual(fields.Name, 1.0) || !almostEqual(fields.Amount, 1.0) || !almostEqual(fields.Date, 1.0) {
		t.Errorf("Expected all field scores 1.0, got %+v", fields)
	}
	if len(discrepancies) != 0 {
		t.Errorf("Expected no discrepancies, got %v", discrepancies)
	}
}

func TestScorer_NameVariants(t *testing.T) {
	scorer := NewScorer(nil)

	cases := []struct {
		a, b    string
		atLeast float64
	}{
		{"Acme Corporation", "ACME CORPORATION", 1.0},
		{"Acme Corporation", "Acme Corp.", 0.5},
		{"Initech Ltd", "Initech Limited", 0.5},
	}

	for _, tc := range cases {
		got := scorer.nameSimilarity(tc.a, tc.b)
		if got < tc.atLeast {
			t.Errorf("nameSimilarity(%q, %q) = %f, expected at least %f", tc.a, tc.b, got, tc.atLeast)
		}
		if got > 1.0 {
			t.Errorf("nameSimilarity(%q, %q) = %f exceeds 1.0", tc.a, tc.b, got)
		}
	}

	if got := scorer.nameSimilarity("", "Acme"); !almostEqual(got, 0.0) {
		t.Errorf("Expected similarity 0.0 when one name is empty, got %f", got)
	}
}

func TestScorer_DateSimilarity(t *testing.T) {
	scorer := NewScorer(DefaultMatchingOptions())
	base := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	if got := scorer.dateSimilarity(base, base); !almostEqual(got, 1.0) {
		t.Errorf("Expected 1.0 for same day, got %f", got)
	}

	oneDay := scorer.dateSimilarity(base, base.AddDate(0, 0, 1))
	if !almostEqual(oneDay, 1.0-1.0/3.0) {
		t.Errorf("Expected 1 - 1/3 for one day apart, got %f", oneDay)
	}

	farAway := scorer.dateSimilarity(base, base.AddDate(0, 1, 0))
	if !almostEqual(farAway, 0.0) {
		t.Errorf("Expected 0.0 beyond the tolerance window, got %f", farAway)
	}
}

func TestMatchingEngine_FullPipeline(t *testing.T) {
	references, subjects := createTestMatchingData()
	engine, err := NewMatchingEngine(nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	outcome, err := engine.Match(context.Background(), references, subjects)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	byID := make(map[string]*MatchCandidate)
	for _, m := range outcome.Matches {
		byID[m.Subject.ID] = m
	}

	if len(outcome.Matches) != 4 {
		t.Fatalf("Expected 4 matches, got %d", len(outcome.Matches))
	}

	// Key passes
	if m := byID["SUB001"]; m == nil || m.Reference.ID != "REF001" {
		t.Error("Expected SUB001 matched to REF001")
	}
	if m := byID["SUB002"]; m == nil || m.Reference.ID != "REF002" {
		t.Error("Expected SUB002 matched to REF002")
	}
	if m := byID["SUB003"]; m == nil || m.Reference.ID != "REF004" {
		t.Error("Expected SUB003 matched to REF004")
	}

	// Fuzzy pass picks up the keyless near-duplicate
	m := byID["SUB004"]
	if m == nil {
		t.Fatal("Expected SUB004 to be fuzzy matched")
	}
	if m.Reference.ID != "REF003" || m.MatchType != MatchFuzzy {
		t.Errorf("Expected SUB004 -> REF003 via fuzzy, got %s via %s", m.Reference.ID, m.MatchType)
	}
	if m.Confidence < engine.Options().FuzzyThreshold {
		t.Errorf("Fuzzy match confidence %f below threshold", m.Confidence)
	}

	// SUB005 resembles nothing
	unmatchedSubjects := outcome.UnmatchedSubjects()
	if len(unmatchedSubjects) != 1 || unmatchedSubjects[0].ID != "SUB005" {
		t.Errorf("Expected only SUB005 unmatched, got %v", unmatchedSubjects)
	}

	unmatchedReferences := outcome.UnmatchedReferences()
	if len(unmatchedReferences) != 1 || unmatchedReferences[0].ID != "REF005" {
		t.Errorf("Expected only REF005 unmatched, got %v", unmatchedReferences)
	}
}

func TestMatchingEngine_Deterministic(t *testing.T) {
	references, subjects := createTestMatchingData()
	engine, err := NewMatchingEngine(nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	first, err := engine.Match(context.Background(), references, subjects)
	if err != nil {
		t.Fatalf("First match failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		again, err := engine.Match(context.Background(), references, subjects)
		if err != nil {
			t.Fatalf("Repeat match failed: %v", err)
		}

		if len(again.Matches) != len(first.Matches) {
			t.Fatalf("Match count changed between runs: %d vs %d", len(again.Matches), len(first.Matches))
		}

		for j, m := range again.Matches {
			expected := first.Matches[j]
			if m.Subject.ID != expected.Subject.ID ||
				m.Reference.ID != expected.Reference.ID ||
				m.MatchType != expected.MatchType ||
				!almostEqual(m.Confidence, expected.Confidence) {
				t.Errorf("Run %d produced different match at %d: %s vs %s", i, j, m, expected)
			}
		}
	}
}

func TestFuzzyMatcher_ClaimContention(t *testing.T) {
	references := []*models.InvoiceRecord{
		{
			ID:               "REF100",
			Amount:           decimal.NewFromFloat(300.00),
			IssueDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Acme Corp",
			Status:           "approved",
			Source:           models.SourceReference,
		},
	}
	subjects := []*models.InvoiceRecord{
		{
			ID:               "SUB100",
			Amount:           decimal.NewFromFloat(300.00),
			IssueDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "ACME CORP.",
			Status:           "approved",
			Source:           models.SourceSubject,
		},
		{
			ID:               "SUB200",
			Amount:           decimal.NewFromFloat(300.00),
			IssueDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Acme Corp",
			Status:           "approved",
			Source:           models.SourceSubject,
		},
	}

	engine, err := NewMatchingEngine(nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	// Both subjects score the single reference above threshold; the lower
	// subject id must claim it on every run regardless of pool scheduling.
	for i := 0; i < 25; i++ {
		outcome, err := engine.Match(context.Background(), references, subjects)
		if err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}

		if len(outcome.Matches) != 1 {
			t.Fatalf("Run %d: expected 1 match, got %d", i, len(outcome.Matches))
		}

		m := outcome.Matches[0]
		if m.Subject.ID != "SUB100" || m.Reference.ID != "REF100" || m.MatchType != MatchFuzzy {
			t.Fatalf("Run %d: expected SUB100 -> REF100 via fuzzy, got %s", i, m)
		}

		unmatched := outcome.UnmatchedSubjects()
		if len(unmatched) != 1 || unmatched[0].ID != "SUB200" {
			t.Fatalf("Run %d: expected SUB200 unmatched, got %v", i, unmatched)
		}
	}
}

func TestFuzzyMatcher_MaxCandidatesTruncation(t *testing.T) {
	references := []*models.InvoiceRecord{
		{
			ID:               "REF100",
			Amount:           decimal.NewFromFloat(300.00),
			IssueDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Orbit Logistics",
			Status:           "approved",
			Source:           models.SourceReference,
		},
		{
			// Same name, amount off by 0.40: scores 0.84, second in rank
			ID:               "REF200",
			Amount:           decimal.NewFromFloat(300.40),
			IssueDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
			CounterpartyName: "Orbit Logistics",
			Status:           "approved",
			Source:           models.SourceReference,
		},
	}
	makeSubjects := func() []*models.InvoiceRecord {
		return []*models.InvoiceRecord{
			{
				ID:               "SUB100",
				Amount:           decimal.NewFromFloat(300.00),
				IssueDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
				CounterpartyName: "Orbit Logistics",
				Status:           "approved",
				Source:           models.SourceSubject,
			},
			{
				ID:               "SUB200",
				Amount:           decimal.NewFromFloat(300.00),
				IssueDate:        time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
				CounterpartyName: "Orbit Logistics",
				Status:           "approved",
				Source:           models.SourceSubject,
			},
		}
	}

	// Unlimited candidates: the loser of the best reference falls back to
	// the runner-up.
	engine, err := NewMatchingEngine(nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	outcome, err := engine.Match(context.Background(), references, makeSubjects())
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	byID := make(map[string]*MatchCandidate)
	for _, m := range outcome.Matches {
		byID[m.Subject.ID] = m
	}
	if m := byID["SUB100"]; m == nil || m.Reference.ID != "REF100" {
		t.Error("Expected SUB100 to claim the best reference REF100")
	}
	if m := byID["SUB200"]; m == nil || m.Reference.ID != "REF200" {
		t.Error("Expected SUB200 to fall back to REF200")
	}

	// With one candidate per record the runner-up is truncated away, so the
	// contended subject stays unmatched.
	opts := DefaultMatchingOptions()
	opts.MaxCandidatesPerRecord = 1
	limited, err := NewMatchingEngine(opts)
	if err != nil {
		t.Fatalf("Failed to create limited engine: %v", err)
	}

	outcome, err = limited.Match(context.Background(), references, makeSubjects())
	if err != nil {
		t.Fatalf("Limited match failed: %v", err)
	}

	if len(outcome.Matches) != 1 {
		t.Fatalf("Expected 1 match with candidate limit, got %d", len(outcome.Matches))
	}
	if m := outcome.Matches[0]; m.Subject.ID != "SUB100" || m.Reference.ID != "REF100" {
		t.Errorf("Expected SUB100 -> REF100, got %s", m)
	}

	unmatched := outcome.UnmatchedSubjects()
	if len(unmatched) != 1 || unmatched[0].ID != "SUB200" {
		t.Errorf("Expected SUB200 unmatched under candidate limit, got %v", unmatched)
	}
}

func TestMatchingEngine_ContextCancellation(t *testing.T) {
	references, subjects := createTestMatchingData()
	engine, err := NewMatchingEngine(nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := engine.Match(ctx, references, subjects)
	if err == nil {
		t.Error("Expected error from cancelled context")
	}
	if outcome == nil {
		t.Fatal("Expected partial outcome even when cancelled")
	}
}

func TestMatchingEngine_EmptyInputs(t *testing.T) {
	engine, err := NewMatchingEngine(nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	references, _ := createTestMatchingData()

	outcome, err := engine.Match(context.Background(), references, nil)
	if err != nil {
		t.Fatalf("Match with no subjects failed: %v", err)
	}
	if len(outcome.Matches) != 0 {
		t.Errorf("Expected no matches with no subjects, got %d", len(outcome.Matches))
	}
	if len(outcome.UnmatchedReferences()) != len(references) {
		t.Errorf("Expected every reference unmatched")
	}

	outcome, err = engine.Match(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Match with empty inputs failed: %v", err)
	}
	if len(outcome.Matches) != 0 {
		t.Errorf("Expected no matches for empty inputs")
	}
}

func TestMatchingOptions_Profiles(t *testing.T) {
	for name, opts := range map[string]*MatchingOptions{
		"default": DefaultMatchingOptions(),
		"strict":  StrictMatchingOptions(),
		"relaxed": RelaxedMatchingOptions(),
	} {
		if err := opts.Validate(); err != nil {
			t.Errorf("Profile %s failed validation: %v", name, err)
		}
	}

	opts := DefaultMatchingOptions()
	if !opts.AmountTolerance.Equal(decimal.NewFromFloat(0.01)) {
		t.Errorf("Expected default amount tolerance 0.01, got %s", opts.AmountTolerance)
	}
	if opts.DateToleranceDays != 3 {
		t.Errorf("Expected default date tolerance 3, got %d", opts.DateToleranceDays)
	}
	if !almostEqual(opts.FuzzyThreshold, 0.8) {
		t.Errorf("Expected default fuzzy threshold 0.8, got %f", opts.FuzzyThreshold)
	}
	if opts.MaxCandidatesPerRecord != 0 {
		t.Errorf("Expected unlimited candidates by default, got %d", opts.MaxCandidatesPerRecord)
	}

	clone := opts.Clone()
	clone.DateToleranceDays = 99
	if opts.DateToleranceDays == 99 {
		t.Error("Clone must not share state with the original")
	}
}
