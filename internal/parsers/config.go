package parsers

import (
	"fmt"
	"strings"
)

// Canonical field names a record feed must map onto.
const (
	FieldID               = "id"
	FieldInvoiceNumber    = "invoice_number"
	FieldPONumber         = "po_number"
	FieldAmount           = "amount"
	FieldCurrency         = "currency"
	FieldIssueDate        = "issue_date"
	FieldDueDate          = "due_date"
	FieldCounterpartyName = "counterparty_name"
	FieldStatus           = "status"
)

// requiredFields must be present in every feed; the rest are optional.
var requiredFields = []string{FieldID, FieldAmount, FieldIssueDate}

// RecordParserConfig configures how a record feed maps onto the canonical
// invoice record fields. ColumnMappings translates canonical field names to
// the header names the feed actually uses; unmapped fields fall back to the
// canonical name itself.
type RecordParserConfig struct {
	HasHeader      bool              `json:"has_header"`
	Delimiter      rune              `json:"delimiter"`
	ColumnMappings map[string]string `json:"column_mappings,omitempty"`
}

// DefaultRecordParserConfig returns a configuration for feeds that already
// use the canonical header names.
func DefaultRecordParserConfig() *RecordParserConfig {
	return &RecordParserConfig{
		HasHeader: true,
		Delimiter: ',',
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *RecordParserConfig) Validate() error {
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}

	for field, column := range c.ColumnMappings {
		if strings.TrimSpace(column) == "" {
			return fmt.Errorf("column mapping for field '%s' cannot be empty", field)
		}
	}

	return nil
}

// GetColumnName returns the feed's header name for a canonical field.
func (c *RecordParserConfig) GetColumnName(field string) string {
	if c.ColumnMappings != nil {
		if column, ok := c.ColumnMappings[field]; ok {
			return column
		}
	}
	return field
}
