package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"invoice-reconciliation-engine/internal/categorizer"
	"invoice-reconciliation-engine/internal/matcher"
	"invoice-reconciliation-engine/internal/models"
	"invoice-reconciliation-engine/internal/reconciler"

	"github.com/shopspring/decimal"
)

func createTestRun() *reconciler.ComparisonRun {
	subject := &models.InvoiceRecord{
		ID:               "SUB001",
		InvoiceNumber:    "INV-1001",
		Amount:           decimal.NewFromFloat(100.50),
		IssueDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CounterpartyName: "Acme Corporation",
		Status:           "approved",
		Source:           models.SourceSubject,
	}
	reference := &models.InvoiceRecord{
		ID:               "REF001",
		InvoiceNumber:    "INV-1001",
		Amount:           decimal.NewFromFloat(100.00),
		IssueDate:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		CounterpartyName: "Acme Corporation",
		Status:           "approved",
		Source:           models.SourceReference,
	}

	started := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	return &reconciler.ComparisonRun{
		ID:          "run-123",
		Options:     matcher.DefaultMatchingOptions(),
		State:       reconciler.RunStateCompleted,
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
		Matches: []*matcher.MatchCandidate{
			{
				Subject:    subject,
				Reference:  reference,
				MatchType:  matcher.MatchInvoiceNumber,
				Confidence: 0.95,
				Discrepancies: []models.Discrepancy{
					{
						Field:          models.FieldAmount,
						SubjectValue:   models.AmountValue(subject.Amount),
						ReferenceValue: models.AmountValue(reference.Amount),
					},
				},
			},
		},
		Buckets: &categorizer.Buckets{
			MatchedDisputed:        []string{"SUB001"},
			UnmatchedReferenceOnly: []string{"REF002"},
			UnmatchedSubjectOnly:   []string{"SUB002"},
		},
		Summary: &reconciler.RunSummary{
			TotalReference: 2,
			TotalSubject:   2,
			Matched:        1,
			Disputed:       1,
			MatchRate:      0.5,
			DisputeRate:    1.0,
		},
		Errors: []reconciler.RecordError{
			{RecordID: "SUB999", Source: models.SourceSubject, Reason: "record amount cannot be negative"},
		},
	}
}

func TestNewReportGenerator(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("Expected generator with defaults, got error: %v", err)
	}
	if generator == nil {
		t.Fatal("Expected generator to be created")
	}

	bad := DefaultReportConfig()
	bad.Format = "pdf"
	if _, err := NewReportGenerator(bad); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestGenerateConsoleReport(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestRun(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	output := buf.String()
	for _, expected := range []string{
		"run-123",
		"SUMMARY",
		"CATEGORIES",
		"Matched, disputed:          1",
		"SUB001",
		"-> REF001",
		"confidence=0.950",
		"amount: subject=100.5 reference=100",
		"EXCLUDED RECORDS",
		"SUB999",
	} {
		if !strings.Contains(output, expected) {
			t.Errorf("Console report missing %q:\n%s", expected, output)
		}
	}
}

func TestGenerateJSONReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestRun(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("JSON report is not valid JSON: %v", err)
	}
	if decoded["id"] != "run-123" {
		t.Errorf("Expected run id in JSON output, got %v", decoded["id"])
	}
	if decoded["state"] != "completed" {
		t.Errorf("Expected state in JSON output, got %v", decoded["state"])
	}
}

func TestGenerateCSVReport(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(createTestRun(), &buf); err != nil {
		t.Fatalf("GenerateReport failed: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("CSV report is not valid CSV: %v", err)
	}

	// Header plus one match row plus two unmatched rows
	if len(rows) != 4 {
		t.Fatalf("Expected 4 CSV rows, got %d", len(rows))
	}
	if rows[0][0] != "category" {
		t.Errorf("Expected header row, got %v", rows[0])
	}
	if rows[1][0] != string(categorizer.CategoryMatchedDisputed) || rows[1][1] != "SUB001" {
		t.Errorf("Unexpected match row: %v", rows[1])
	}
	if rows[2][0] != string(categorizer.CategoryUnmatchedReferenceOnly) || rows[2][2] != "REF002" {
		t.Errorf("Unexpected unmatched reference row: %v", rows[2])
	}
	if rows[3][0] != string(categorizer.CategoryUnmatchedSubjectOnly) || rows[3][1] != "SUB002" {
		t.Errorf("Unexpected unmatched subject row: %v", rows[3])
	}
}

func TestGenerateReport_NilRun(t *testing.T) {
	generator, err := NewReportGenerator(nil)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(nil, &buf); err == nil {
		t.Error("Expected error for nil run")
	}
}
