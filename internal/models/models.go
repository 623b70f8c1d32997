package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Source identifies which side of a comparison run a record belongs to.
type Source string

const (
	// SourceReference marks records from the collection treated as ground truth.
	SourceReference Source = "REFERENCE"
	// SourceSubject marks records from the collection being reconciled.
	SourceSubject Source = "SUBJECT"
)

// String returns the string representation of Source
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source tag is valid
func (s Source) IsValid() bool {
	return s == SourceReference || s == SourceSubject
}

// NormalizedStatus is the closed status enum the engine operates on.
// Source-specific status vocabularies are resolved into this enum by an
// injected StatusVocabulary so the categorizer never sees raw strings.
type NormalizedStatus string

const (
	StatusApproved NormalizedStatus = "APPROVED"
	StatusPending  NormalizedStatus = "PENDING"
	StatusRejected NormalizedStatus = "REJECTED"
	StatusOther    NormalizedStatus = "OTHER"
)

// String returns the string representation of NormalizedStatus
func (ns NormalizedStatus) String() string {
	return string(ns)
}

// StatusVocabulary maps raw, source-specific status strings to the closed
// NormalizedStatus enum. Keys are matched case-insensitively with surrounding
// whitespace trimmed. Unknown statuses resolve to StatusOther.
type StatusVocabulary map[string]NormalizedStatus

// Resolve maps a raw status string to its normalized status.
func (v StatusVocabulary) Resolve(raw string) NormalizedStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if status, ok := v[key]; ok {
		return status
	}
	return StatusOther
}

// DefaultStatusVocabulary returns a vocabulary covering the status strings
// commonly emitted by procurement and ERP accounts-receivable systems. New
// upstream systems are onboarded by supplying their own vocabulary, not by
// changing engine code.
func DefaultStatusVocabulary() StatusVocabulary {
	return StatusVocabulary{
		"approved":          StatusApproved,
		"paid":              StatusApproved,
		"ok_to_pay":         StatusApproved,
		"closed":            StatusApproved,
		"settled":           StatusApproved,
		"pending":           StatusPending,
		"pending_approval":  StatusPending,
		"awaiting_approval": StatusPending,
		"pending_receipt":   StatusPending,
		"submitted":         StatusPending,
		"draft":             StatusPending,
		"open":              StatusPending,
		"rejected":          StatusRejected,
		"disputed":          StatusRejected,
		"denied":            StatusRejected,
		"voided":            StatusRejected,
		"cancelled":         StatusRejected,
	}
}

// InvoiceRecord is one invoice or bill line in canonical shape, as produced by
// the upstream normalizer. Amounts are decimal and non-negative; dates are
// calendar dates (timezone-naive, stored at midnight UTC).
type InvoiceRecord struct {
	ID               string          `json:"id" csv:"id"`
	InvoiceNumber    string          `json:"invoiceNumber" csv:"invoice_number"`
	PONumber         string          `json:"poNumber,omitempty" csv:"po_number"`
	Amount           decimal.Decimal `json:"amount" csv:"amount"`
	Currency         string          `json:"currency" csv:"currency"`
	IssueDate        time.Time       `json:"issueDate" csv:"issue_date"`
	DueDate          time.Time       `json:"dueDate" csv:"due_date"`
	CounterpartyName string          `json:"counterpartyName" csv:"counterparty_name"`
	Status           string          `json:"status" csv:"status"`
	Source           Source          `json:"source" csv:"source"`
}

// NewInvoiceRecord creates a new InvoiceRecord instance
func NewInvoiceRecord(id string, source Source) *InvoiceRecord {
	return &InvoiceRecord{
		ID:     id,
		Source: source,
	}
}

// Validate performs basic validation on the InvoiceRecord
func (r *InvoiceRecord) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("record id cannot be empty")
	}

	if r.Amount.IsNegative() {
		return fmt.Errorf("record amount cannot be negative: %s", r.Amount.String())
	}

	if !r.Source.IsValid() {
		return fmt.Errorf("invalid record source: %s", r.Source)
	}

	if r.IssueDate.IsZero() {
		return fmt.Errorf("record issue date cannot be zero")
	}

	return nil
}

// String returns a string representation of the InvoiceRecord
func (r *InvoiceRecord) String() string {
	return fmt.Sprintf("InvoiceRecord{ID: %s, Invoice: %s, Amount: %s, Issued: %s, Source: %s}",
		r.ID, r.InvoiceNumber, r.Amount.String(), r.IssueDate.Format("2006-01-02"), r.Source)
}

// NormalizedInvoiceNumber returns the invoice number normalized for key matching.
func (r *InvoiceRecord) NormalizedInvoiceNumber() string {
	return NormalizeKey(r.InvoiceNumber)
}

// NormalizedPONumber returns the purchase-order number normalized for key matching.
func (r *InvoiceRecord) NormalizedPONumber() string {
	return NormalizeKey(r.PONumber)
}

// MarshalJSON implements custom JSON marshaling for InvoiceRecord
func (r *InvoiceRecord) MarshalJSON() ([]byte, error) {
	type Alias InvoiceRecord
	return json.Marshal(&struct {
		Amount    string `json:"amount"`
		IssueDate string `json:"issueDate"`
		DueDate   string `json:"dueDate,omitempty"`
		*Alias
	}{
		Amount:    r.Amount.String(),
		IssueDate: r.IssueDate.Format("2006-01-02"),
		DueDate:   formatOptionalDate(r.DueDate),
		Alias:     (*Alias)(r),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for InvoiceRecord
func (r *InvoiceRecord) UnmarshalJSON(data []byte) error {
	type Alias InvoiceRecord
	aux := &struct {
		Amount    string `json:"amount"`
		IssueDate string `json:"issueDate"`
		DueDate   string `json:"dueDate,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	r.Amount, err = ParseDecimalFromString(aux.Amount)
	if err != nil {
		return fmt.Errorf("invalid amount format: %w", err)
	}

	r.IssueDate, err = ParseDateWithFormats(aux.IssueDate)
	if err != nil {
		return fmt.Errorf("invalid issue date format: %w", err)
	}

	if strings.TrimSpace(aux.DueDate) != "" {
		r.DueDate, err = ParseDateWithFormats(aux.DueDate)
		if err != nil {
			return fmt.Errorf("invalid due date format: %w", err)
		}
	}

	return nil
}

// Equals compares two InvoiceRecord instances for equality
func (r *InvoiceRecord) Equals(other *InvoiceRecord) bool {
	if other == nil {
		return false
	}

	return r.ID == other.ID &&
		r.Source == other.Source &&
		r.NormalizedInvoiceNumber() == other.NormalizedInvoiceNumber() &&
		r.NormalizedPONumber() == other.NormalizedPONumber() &&
		r.Amount.Equal(other.Amount) &&
		r.IssueDate.Format("2006-01-02") == other.IssueDate.Format("2006-01-02")
}

func formatOptionalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// ValueKind discriminates the closed Value sum type.
type ValueKind string

const (
	ValueKindString ValueKind = "string"
	ValueKindAmount ValueKind = "amount"
	ValueKindDate   ValueKind = "date"
)

// Value is a closed sum type for discrepancy payloads: exactly one of a
// string, a decimal amount, or a calendar date, tagged by Kind.
type Value struct {
	Kind   ValueKind       `json:"kind"`
	Str    string          `json:"str,omitempty"`
	Amount decimal.Decimal `json:"amount,omitempty"`
	Date   time.Time       `json:"date,omitempty"`
}

// StringValue constructs a string-kinded Value.
func StringValue(s string) Value {
	return Value{Kind: ValueKindString, Str: s}
}

// AmountValue constructs an amount-kinded Value.
func AmountValue(d decimal.Decimal) Value {
	return Value{Kind: ValueKindAmount, Amount: d}
}

// DateValue constructs a date-kinded Value.
func DateValue(t time.Time) Value {
	return Value{Kind: ValueKindDate, Date: t}
}

// String renders the active variant.
func (v Value) String() string {
	switch v.Kind {
	case ValueKindAmount:
		return v.Amount.String()
	case ValueKindDate:
		return v.Date.Format("2006-01-02")
	default:
		return v.Str
	}
}

// Equals compares two Values for equality of kind and payload.
func (v Value) Equals(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueKindAmount:
		return v.Amount.Equal(other.Amount)
	case ValueKindDate:
		return v.Date.Format("2006-01-02") == other.Date.Format("2006-01-02")
	default:
		return v.Str == other.Str
	}
}

// DiscrepancyField identifies the compared field a discrepancy refers to.
type DiscrepancyField string

const (
	FieldAmount           DiscrepancyField = "amount"
	FieldIssueDate        DiscrepancyField = "issue_date"
	FieldCounterpartyName DiscrepancyField = "counterparty_name"
)

// Discrepancy records a field-level difference between a matched pair that
// exceeds the configured tolerance for that field.
type Discrepancy struct {
	Field          DiscrepancyField `json:"field"`
	SubjectValue   Value            `json:"subjectValue"`
	ReferenceValue Value            `json:"referenceValue"`
}

// String returns a human-readable description of the discrepancy
func (d Discrepancy) String() string {
	return fmt.Sprintf("%s: subject=%s reference=%s", d.Field, d.SubjectValue.String(), d.ReferenceValue.String())
}

// Utility functions for normalization and parsing

// NormalizeKey lower-cases, trims, and collapses internal whitespace so that
// invoice and PO numbers compare equal across sources. An empty result means
// the record cannot participate in that key index.
func NormalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// NormalizeName normalizes a counterparty name for similarity comparison:
// lower-cased, whitespace collapsed, punctuation trimmed per token.
func NormalizeName(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".,;:")
	}
	return strings.Join(fields, " ")
}

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDateWithFormats attempts to parse a calendar date from string using
// the formats commonly seen in normalized feeds. The result is truncated to
// midnight UTC since InvoiceRecord dates are timezone-naive.
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"01/02/2006",
		"2006/01/02",
		"Jan 2, 2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return TruncateToDate(t), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// TruncateToDate drops the time-of-day and timezone components of a timestamp.
func TruncateToDate(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// CompareAmountsWithTolerance compares two decimal amounts with a tolerance
func CompareAmountsWithTolerance(a, b, tolerance decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(tolerance)
}

// DateDifferenceDays returns the absolute whole-day difference between two dates.
func DateDifferenceDays(a, b time.Time) int {
	diff := TruncateToDate(a).Sub(TruncateToDate(b))
	if diff < 0 {
		diff = -diff
	}
	return int(diff / (24 * time.Hour))
}

// CompareDatesWithTolerance compares two dates within a day tolerance
func CompareDatesWithTolerance(a, b time.Time, toleranceDays int) bool {
	return DateDifferenceDays(a, b) <= toleranceDays
}

// SortRecordsByID orders records by id ascending, in place. Subject records
// are always processed in this order so outcomes are reproducible.
func SortRecordsByID(records []*InvoiceRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
}
