// Package reconciler coordinates full comparison runs: it validates the two
// record sets, drives the matching engine, categorizes the outcome, and
// aggregates a run summary. A failure on one record never aborts the run;
// the record is excluded and reported in the run's error list.
package reconciler

import (
	"context"
	"sync"
	"time"

	"invoice-reconciliation-engine/internal/categorizer"
	"invoice-reconciliation-engine/internal/matcher"
	"invoice-reconciliation-engine/internal/models"
	"invoice-reconciliation-engine/internal/parsers"
	"invoice-reconciliation-engine/pkg/errors"
	"invoice-reconciliation-engine/pkg/logger"

	"github.com/google/uuid"
)

// RunState tracks the lifecycle of a comparison run.
type RunState string

const (
	RunStateConstructed RunState = "constructed"
	RunStateExecuting   RunState = "executing"
	RunStateCompleted   RunState = "completed"
	RunStatePartial     RunState = "partial"
)

// RecordError reports one input record that could not participate in a run.
type RecordError struct {
	RecordID string        `json:"record_id"`
	Source   models.Source `json:"source"`
	Reason   string        `json:"reason"`
}

// RecordSet is one side of a comparison: the records that loaded cleanly plus
// the entries that could not be turned into records at all. Malformed entries
// still count toward the run totals and surface in the run's error list.
type RecordSet struct {
	Records   []*models.InvoiceRecord
	Malformed []RecordError
}

// NewRecordSet builds a record set from a parsed feed, carrying the entries
// that never became records into the run's error list.
func NewRecordSet(
	records []*models.InvoiceRecord,
	stats *parsers.ParseStats,
	source models.Source,
) *RecordSet {

	set := &RecordSet{Records: records}
	if stats == nil {
		return set
	}

	for _, parseErr := range stats.Errors {
		set.Malformed = append(set.Malformed, RecordError{
			Source: source,
			Reason: parseErr.Error(),
		})
	}

	return set
}

// RunSummary aggregates counts over a finished run. Rates are in [0,1];
// MatchRate is matched over total subject records, DisputeRate is disputed
// over matched.
type RunSummary struct {
	TotalReference int     `json:"total_reference"`
	TotalSubject   int     `json:"total_subject"`
	Matched        int     `json:"matched"`
	Disputed       int     `json:"disputed"`
	MatchRate      float64 `json:"match_rate"`
	DisputeRate    float64 `json:"dispute_rate"`
}

// ComparisonRun is the complete result of one coordinated run.
type ComparisonRun struct {
	ID          string                   `json:"id"`
	Options     *matcher.MatchingOptions `json:"options"`
	State       RunState                 `json:"state"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at"`

	Matches []*matcher.MatchCandidate `json:"matches"`
	Buckets *categorizer.Buckets      `json:"buckets"`
	Summary *RunSummary               `json:"summary"`
	Errors  []RecordError             `json:"errors,omitempty"`
}

// RunProgress tracks the progress of a comparison run through its steps.
type RunProgress struct {
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
}

// ProgressCallback is called after each step of a run completes.
type ProgressCallback func(*RunProgress)

const runTotalSteps = 4 // validate, match, categorize, summarize

// BatchCoordinator runs comparisons end to end. It holds no per-run state
// beyond progress reporting, so the same coordinator can execute any number
// of runs; identical inputs and options always produce identical results.
type BatchCoordinator struct {
	engine      *matcher.MatchingEngine
	categorizer *categorizer.Categorizer
	logger      logger.Logger

	progressCallbacks []ProgressCallback
	currentProgress   *RunProgress
	progressMutex     sync.Mutex
}

// NewBatchCoordinator creates a coordinator for the given options and status
// vocabulary. Invalid options are rejected here; nil options and nil
// vocabulary select the defaults.
func NewBatchCoordinator(
	opts *matcher.MatchingOptions,
	vocab models.StatusVocabulary,
) (*BatchCoordinator, error) {

	engine, err := matcher.NewMatchingEngine(opts)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"matching_options",
			opts,
			err,
		)
	}

	log := logger.GetGlobalLogger().WithComponent("batch_coordinator")

	return &BatchCoordinator{
		engine:      engine,
		categorizer: categorizer.New(vocab),
		logger:      log,
	}, nil
}

// AddProgressCallback adds a progress callback function
func (bc *BatchCoordinator) AddProgressCallback(callback ProgressCallback) {
	bc.progressCallbacks = append(bc.progressCallbacks, callback)
}

// Run executes a comparison over two plain record slices.
func (bc *BatchCoordinator) Run(
	ctx context.Context,
	references []*models.InvoiceRecord,
	subjects []*models.InvoiceRecord,
) (*ComparisonRun, error) {

	return bc.RunSets(ctx,
		&RecordSet{Records: references},
		&RecordSet{Records: subjects},
	)
}

// RunSets executes a comparison over two record sets. Records that fail
// validation are excluded and reported; the run proceeds with the rest. On
// context cancellation the run is returned in the partial state with the
// matches established so far, together with the cancellation error.
func (bc *BatchCoordinator) RunSets(
	ctx context.Context,
	referenceSet *RecordSet,
	subjectSet *RecordSet,
) (*ComparisonRun, error) {

	run := &ComparisonRun{
		ID:        uuid.New().String(),
		Options:   bc.engine.Options(),
		State:     RunStateConstructed,
		StartedAt: time.Now().UTC(),
	}

	log := bc.logger.WithField("run_id", run.ID)
	log.WithFields(logger.Fields{
		"reference_records": len(referenceSet.Records),
		"subject_records":   len(subjectSet.Records),
	}).Info("Starting comparison run")

	bc.initializeProgress()
	run.State = RunStateExecuting

	run.Errors = append(run.Errors, referenceSet.Malformed...)
	run.Errors = append(run.Errors, subjectSet.Malformed...)

	validReferences, referenceErrors := validateRecords(referenceSet.Records, models.SourceReference)
	validSubjects, subjectErrors := validateRecords(subjectSet.Records, models.SourceSubject)
	run.Errors = append(run.Errors, referenceErrors...)
	run.Errors = append(run.Errors, subjectErrors...)
	bc.updateProgress("Validating records", 1, run.StartedAt)

	if len(run.Errors) > 0 {
		log.WithField("excluded_records", len(run.Errors)).
			Warn("Some records were excluded from matching")
	}

	outcome, matchErr := bc.engine.Match(ctx, validReferences, validSubjects)
	bc.updateProgress("Matching records", 2, run.StartedAt)

	run.Matches = outcome.Matches
	run.Buckets = bc.categorizer.Categorize(outcome)
	bc.updateProgress("Categorizing results", 3, run.StartedAt)

	run.Summary = summarize(referenceSet, subjectSet, run.Buckets)
	run.CompletedAt = time.Now().UTC()
	bc.updateProgress("Computing summary", 4, run.StartedAt)

	if matchErr != nil {
		run.State = RunStatePartial
		log.WithError(matchErr).Warn("Comparison run interrupted, returning partial results")
		return run, errors.ReconciliationError(errors.CodeRunCancelled, "matching", matchErr)
	}

	run.State = RunStateCompleted
	log.WithFields(logger.Fields{
		"matched":    run.Summary.Matched,
		"match_rate": run.Summary.MatchRate,
		"duration":   run.CompletedAt.Sub(run.StartedAt).String(),
	}).Info("Comparison run completed")

	return run, nil
}

// validateRecords filters out records that cannot participate in matching.
// Each exclusion produces a RecordError; duplicate ids within one source keep
// the first occurrence and report the rest.
func validateRecords(
	records []*models.InvoiceRecord,
	source models.Source,
) ([]*models.InvoiceRecord, []RecordError) {

	var valid []*models.InvoiceRecord
	var recordErrors []RecordError
	seen := make(map[string]bool, len(records))

	for _, record := range records {
		if record == nil {
			recordErrors = append(recordErrors, RecordError{
				Source: source,
				Reason: "record is nil",
			})
			continue
		}

		if err := record.Validate(); err != nil {
			recordErrors = append(recordErrors, RecordError{
				RecordID: record.ID,
				Source:   source,
				Reason:   err.Error(),
			})
			continue
		}

		if record.Source != source {
			recordErrors = append(recordErrors, RecordError{
				RecordID: record.ID,
				Source:   source,
				Reason:   "record source does not match its set",
			})
			continue
		}

		if seen[record.ID] {
			recordErrors = append(recordErrors, RecordError{
				RecordID: record.ID,
				Source:   source,
				Reason:   "duplicate record id",
			})
			continue
		}
		seen[record.ID] = true

		valid = append(valid, record)
	}

	return valid, recordErrors
}

// summarize computes the run summary. Totals count every input record,
// malformed and invalid ones included.
func summarize(
	referenceSet *RecordSet,
	subjectSet *RecordSet,
	buckets *categorizer.Buckets,
) *RunSummary {

	summary := &RunSummary{
		TotalReference: len(referenceSet.Records) + len(referenceSet.Malformed),
		TotalSubject:   len(subjectSet.Records) + len(subjectSet.Malformed),
		Matched:        buckets.MatchedCount(),
		Disputed:       len(buckets.MatchedDisputed),
	}

	if summary.TotalSubject > 0 {
		summary.MatchRate = float64(summary.Matched) / float64(summary.TotalSubject)
	}
	if summary.Matched > 0 {
		summary.DisputeRate = float64(summary.Disputed) / float64(summary.Matched)
	}

	return summary
}

func (bc *BatchCoordinator) initializeProgress() {
	bc.progressMutex.Lock()
	defer bc.progressMutex.Unlock()

	bc.currentProgress = &RunProgress{
		TotalSteps: runTotalSteps,
		StartTime:  time.Now().UTC(),
	}
}

func (bc *BatchCoordinator) updateProgress(step string, completed int, startedAt time.Time) {
	bc.progressMutex.Lock()
	defer bc.progressMutex.Unlock()

	bc.currentProgress.CurrentStep = step
	bc.currentProgress.CompletedSteps = completed
	bc.currentProgress.ElapsedTime = time.Since(startedAt)
	bc.currentProgress.PercentComplete = float64(completed) / float64(runTotalSteps) * 100

	for _, callback := range bc.progressCallbacks {
		callback(bc.currentProgress)
	}
}
