// Package parsers loads invoice record feeds from CSV and JSON files into
// the canonical record model. A malformed row or element never aborts a
// load; it is reported in the parse statistics and the rest of the file is
// processed.
package parsers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"invoice-reconciliation-engine/internal/models"
	"invoice-reconciliation-engine/pkg/errors"
	"invoice-reconciliation-engine/pkg/logger"
)

// ParseError describes one row or element that could not be loaded.
type ParseError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("parse error at line %d (%s='%s'): %s", e.Line, e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("parse error at line %d: %s", e.Line, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseStats holds statistics about a loading operation
type ParseStats struct {
	TotalLines    int
	RecordsParsed int
	RecordsValid  int
	Errors        []*ParseError
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{Errors: make([]*ParseError, 0)}
}

// AddError adds an error to the parsing statistics
func (ps *ParseStats) AddError(err *ParseError) {
	ps.Errors = append(ps.Errors, err)
}

// HasErrors returns true if there were any parsing errors
func (ps *ParseStats) HasErrors() bool {
	return len(ps.Errors) > 0
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d lines, %d records (%d valid), %d errors",
		ps.TotalLines, ps.RecordsParsed, ps.RecordsValid, len(ps.Errors))
}

// GetSampleErrors returns up to maxSamples error messages for logging.
func (ps *ParseStats) GetSampleErrors(maxSamples int) []string {
	var samples []string
	limit := len(ps.Errors)
	if maxSamples > 0 && maxSamples < limit {
		limit = maxSamples
	}
	for i := 0; i < limit; i++ {
		samples = append(samples, ps.Errors[i].Error())
	}
	return samples
}

// RecordParser loads invoice record files. The format is picked from the
// file extension: .json files are decoded as a JSON array, everything else
// is treated as CSV.
type RecordParser struct {
	config *RecordParserConfig
	logger logger.Logger
}

// NewRecordParser creates a parser with the given configuration. A nil
// configuration selects the defaults.
func NewRecordParser(config *RecordParserConfig) (*RecordParser, error) {
	if config == nil {
		config = DefaultRecordParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"record_parser_config",
			config,
			err,
		)
	}

	return &RecordParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("record_parser"),
	}, nil
}

// ParseFile loads all records from a file and tags them with the given
// source. The returned error covers failures that prevent loading anything;
// per-row failures land in the stats instead.
func (rp *RecordParser) ParseFile(filePath string, source models.Source) ([]*models.InvoiceRecord, *ParseStats, error) {
	rp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"source":    source,
	}).Info("Loading record file")

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.FileError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, nil, errors.FileError(errors.CodeFilePermission, filePath, err)
		}
		return nil, nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	defer file.Close()

	var records []*models.InvoiceRecord
	var stats *ParseStats

	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		records, stats, err = rp.parseJSON(file, source)
	} else {
		records, stats, err = rp.parseCSV(file, filePath, source)
	}
	if err != nil {
		return nil, stats, err
	}

	rp.logger.WithFields(logger.Fields{
		"file_path":     filePath,
		"records_valid": stats.RecordsValid,
		"error_count":   len(stats.Errors),
	}).Info("Record file loaded")

	if stats.HasErrors() {
		rp.logger.WithField("sample_errors", stats.GetSampleErrors(3)).
			Warn("Some entries could not be loaded")
	}

	return records, stats, nil
}

// parseCSV reads a delimited feed row by row.
func (rp *RecordParser) parseCSV(file io.Reader, filePath string, source models.Source) ([]*models.InvoiceRecord, *ParseStats, error) {
	reader := csv.NewReader(file)
	reader.Comma = rp.config.Delimiter
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	stats := NewParseStats()

	headerMap, err := rp.readHeaders(reader, filePath)
	if err != nil {
		return nil, stats, err
	}
	line := 0
	if rp.config.HasHeader {
		line = 1
	}

	var records []*models.InvoiceRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.AddError(&ParseError{
				Line:    line,
				Message: "malformed row",
				Err:     err,
			})
			continue
		}

		if isEmptyRow(row) {
			continue
		}
		stats.RecordsParsed++

		record, parseErr := rp.recordFromRow(row, headerMap, line, source)
		if parseErr != nil {
			stats.AddError(parseErr)
			continue
		}

		if err := record.Validate(); err != nil {
			stats.AddError(&ParseError{
				Line:    line,
				Field:   FieldID,
				Value:   record.ID,
				Message: err.Error(),
				Err:     err,
			})
			continue
		}

		records = append(records, record)
		stats.RecordsValid++
	}

	stats.TotalLines = line
	return records, stats, nil
}

// readHeaders consumes the header row and verifies the required columns are
// present. Feeds without a header row use the canonical column order.
func (rp *RecordParser) readHeaders(reader *csv.Reader, filePath string) (map[string]int, error) {
	canonicalOrder := []string{
		FieldID, FieldInvoiceNumber, FieldPONumber, FieldAmount, FieldCurrency,
		FieldIssueDate, FieldDueDate, FieldCounterpartyName, FieldStatus,
	}

	headerMap := make(map[string]int)

	if !rp.config.HasHeader {
		for i, field := range canonicalOrder {
			headerMap[field] = i
		}
		return headerMap, nil
	}

	headers, err := reader.Read()
	if err != nil {
		return nil, errors.ParseError(
			errors.CodeInvalidFormat, filePath, 1, "headers", "", err,
		).WithSuggestion("Ensure the file contains a header row and data rows")
	}

	columnIndex := make(map[string]int, len(headers))
	for i, header := range headers {
		columnIndex[strings.ToLower(strings.TrimSpace(header))] = i
	}

	for _, field := range canonicalOrder {
		column := strings.ToLower(rp.config.GetColumnName(field))
		if index, ok := columnIndex[column]; ok {
			headerMap[field] = index
		}
	}

	var missing []string
	for _, field := range requiredFields {
		if _, ok := headerMap[field]; !ok {
			missing = append(missing, rp.config.GetColumnName(field))
		}
	}
	if len(missing) > 0 {
		return nil, errors.ParseError(
			errors.CodeMissingColumn, filePath, 1, strings.Join(missing, ", "), "", nil,
		).WithSuggestion(fmt.Sprintf("Ensure the file contains these columns: %s", strings.Join(missing, ", ")))
	}

	return headerMap, nil
}

// recordFromRow builds one record from a CSV row.
func (rp *RecordParser) recordFromRow(
	row []string,
	headerMap map[string]int,
	line int,
	source models.Source,
) (*models.InvoiceRecord, *ParseError) {

	field := func(name string) string {
		index, ok := headerMap[name]
		if !ok || index >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[index])
	}

	record := models.NewInvoiceRecord(field(FieldID), source)
	record.InvoiceNumber = field(FieldInvoiceNumber)
	record.PONumber = field(FieldPONumber)
	record.Currency = field(FieldCurrency)
	record.CounterpartyName = field(FieldCounterpartyName)
	record.Status = field(FieldStatus)

	amountStr := field(FieldAmount)
	amount, err := models.ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, &ParseError{
			Line:    line,
			Field:   FieldAmount,
			Value:   amountStr,
			Message: "invalid amount",
			Err:     err,
		}
	}
	record.Amount = amount

	issueDateStr := field(FieldIssueDate)
	issueDate, err := models.ParseDateWithFormats(issueDateStr)
	if err != nil {
		return nil, &ParseError{
			Line:    line,
			Field:   FieldIssueDate,
			Value:   issueDateStr,
			Message: "invalid issue date",
			Err:     err,
		}
	}
	record.IssueDate = issueDate

	if dueDateStr := field(FieldDueDate); dueDateStr != "" {
		dueDate, err := models.ParseDateWithFormats(dueDateStr)
		if err != nil {
			return nil, &ParseError{
				Line:    line,
				Field:   FieldDueDate,
				Value:   dueDateStr,
				Message: "invalid due date",
				Err:     err,
			}
		}
		record.DueDate = dueDate
	}

	return record, nil
}

// parseJSON reads a feed stored as a JSON array. Elements are decoded one at
// a time so a single bad element does not sink the file.
func (rp *RecordParser) parseJSON(file io.Reader, source models.Source) ([]*models.InvoiceRecord, *ParseStats, error) {
	stats := NewParseStats()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, stats, errors.FileError(errors.CodeFileCorrupted, "", err)
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, stats, errors.ParseError(
			errors.CodeInvalidFormat, "", 0, "", "", err,
		).WithSuggestion("Ensure the file contains a JSON array of records")
	}

	var records []*models.InvoiceRecord
	for i, element := range elements {
		stats.RecordsParsed++

		var record models.InvoiceRecord
		if err := json.Unmarshal(element, &record); err != nil {
			stats.AddError(&ParseError{
				Line:    i + 1,
				Message: "malformed record element",
				Err:     err,
			})
			continue
		}
		record.Source = source

		if err := record.Validate(); err != nil {
			stats.AddError(&ParseError{
				Line:    i + 1,
				Field:   FieldID,
				Value:   record.ID,
				Message: err.Error(),
				Err:     err,
			})
			continue
		}

		records = append(records, &record)
		stats.RecordsValid++
	}

	stats.TotalLines = len(elements)
	return records, stats, nil
}

// isEmptyRow checks if all fields in a row are empty or whitespace
func isEmptyRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
