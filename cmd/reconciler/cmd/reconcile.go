package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"invoice-reconciliation-engine/cmd/reconciler/config"
	"invoice-reconciliation-engine/internal/models"
	"invoice-reconciliation-engine/internal/parsers"
	"invoice-reconciliation-engine/internal/reconciler"
	"invoice-reconciliation-engine/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	referenceFile string
	subjectFile   string
	vocabFile     string
	outputFormat  string
	outputFile    string
	profile       string

	amountTolerance float64
	dateTolerance   int
	fuzzyThreshold  float64
	maxCandidates   int
	concurrency     int

	showProgress bool
	showMatches  bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile subject invoice records against a reference feed",
	Long: `Reconcile compares invoice records from a subject system against a
reference system. Records are matched first on invoice and PO numbers, then
by weighted similarity across counterparty name, amount, and issue date, and
every record lands in exactly one outcome category.

This command requires:
- A reference record file (CSV or JSON)
- A subject record file (CSV or JSON)

Examples:
  # Basic reconciliation
  invoice-reconciler reconcile --reference-file erp.csv --subject-file ap.csv

  # Custom tolerances and JSON output
  invoice-reconciler reconcile --reference-file erp.csv --subject-file ap.csv \
    --amount-tolerance 0.05 --date-tolerance 5 \
    --output-format json --output-file report.json

  # Strict profile with a custom status vocabulary
  invoice-reconciler reconcile --reference-file erp.csv --subject-file ap.csv \
    --profile strict --vocab-file statuses.json`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&referenceFile, "reference-file", "r", "", "path to reference record file (required)")
	reconcileCmd.Flags().StringVarP(&subjectFile, "subject-file", "s", "", "path to subject record file (required)")

	// Vocabulary and profile
	reconcileCmd.Flags().StringVar(&vocabFile, "vocab-file", "", "path to status vocabulary JSON file")
	reconcileCmd.Flags().StringVarP(&profile, "profile", "p", "default", "matching profile: default, strict, relaxed")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Matching configuration flags; -1 keeps the profile's setting
	reconcileCmd.Flags().Float64VarP(&amountTolerance, "amount-tolerance", "a", -1, "amount tolerance in currency units")
	reconcileCmd.Flags().IntVarP(&dateTolerance, "date-tolerance", "d", -1, "date matching tolerance in days")
	reconcileCmd.Flags().Float64VarP(&fuzzyThreshold, "fuzzy-threshold", "t", -1, "minimum fuzzy match confidence (0.0-1.0)")
	reconcileCmd.Flags().IntVar(&maxCandidates, "max-candidates", -1, "max fuzzy candidates per record (0 = unlimited)")
	reconcileCmd.Flags().IntVar(&concurrency, "concurrency", 0, "fuzzy scoring workers (0 = profile default)")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "show progress indicators")
	reconcileCmd.Flags().BoolVar(&showMatches, "show-matches", true, "include matched pairs in the report")

	reconcileCmd.MarkFlagRequired("reference-file")
	reconcileCmd.MarkFlagRequired("subject-file")

	viper.BindPFlag("reference-file", reconcileCmd.Flags().Lookup("reference-file"))
	viper.BindPFlag("subject-file", reconcileCmd.Flags().Lookup("subject-file"))
	viper.BindPFlag("vocab-file", reconcileCmd.Flags().Lookup("vocab-file"))
	viper.BindPFlag("profile", reconcileCmd.Flags().Lookup("profile"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("date-tolerance", reconcileCmd.Flags().Lookup("date-tolerance"))
	viper.BindPFlag("fuzzy-threshold", reconcileCmd.Flags().Lookup("fuzzy-threshold"))
	viper.BindPFlag("max-candidates", reconcileCmd.Flags().Lookup("max-candidates"))
	viper.BindPFlag("concurrency", reconcileCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
	viper.BindPFlag("show-matches", reconcileCmd.Flags().Lookup("show-matches"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Viper values win so config files and env vars can override defaults
	referenceFile = viper.GetString("reference-file")
	subjectFile = viper.GetString("subject-file")
	vocabFile = viper.GetString("vocab-file")
	profile = viper.GetString("profile")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	amountTolerance = viper.GetFloat64("amount-tolerance")
	dateTolerance = viper.GetInt("date-tolerance")
	fuzzyThreshold = viper.GetFloat64("fuzzy-threshold")
	maxCandidates = viper.GetInt("max-candidates")
	concurrency = viper.GetInt("concurrency")
	showProgress = viper.GetBool("progress")
	showMatches = viper.GetBool("show-matches")

	if referenceFile == "" {
		return fmt.Errorf("reference-file is required")
	}
	if subjectFile == "" {
		return fmt.Errorf("subject-file is required")
	}

	if err := validateFileExists(referenceFile, "reference record file"); err != nil {
		return err
	}
	if err := validateFileExists(subjectFile, "subject record file"); err != nil {
		return err
	}
	if vocabFile != "" {
		if err := validateFileExists(vocabFile, "vocabulary file"); err != nil {
			return err
		}
	}

	validFormats := map[string]bool{"console": true, "json": true, "csv": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	if fuzzyThreshold > 1.0 {
		return fmt.Errorf("fuzzy threshold cannot exceed 1.0")
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Reference file: %s\n", referenceFile)
		fmt.Fprintf(os.Stderr, "Subject file: %s\n", subjectFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	parserConfig, err := config.CreateRecordParserConfig()
	if err != nil {
		return fmt.Errorf("failed to create record parser config: %w", err)
	}

	parser, err := parsers.NewRecordParser(parserConfig)
	if err != nil {
		return fmt.Errorf("failed to create record parser: %w", err)
	}

	referenceRecords, referenceStats, err := parser.ParseFile(referenceFile, models.SourceReference)
	if err != nil {
		return fmt.Errorf("failed to load reference records: %w", err)
	}

	subjectRecords, subjectStats, err := parser.ParseFile(subjectFile, models.SourceSubject)
	if err != nil {
		return fmt.Errorf("failed to load subject records: %w", err)
	}

	vocab, err := config.LoadStatusVocabulary(vocabFile)
	if err != nil {
		return err
	}

	opts, err := config.CreateMatchingOptions(
		profile, amountTolerance, dateTolerance, fuzzyThreshold, maxCandidates, concurrency)
	if err != nil {
		return fmt.Errorf("invalid matching options: %w", err)
	}

	coordinator, err := reconciler.NewBatchCoordinator(opts, vocab)
	if err != nil {
		return fmt.Errorf("failed to create batch coordinator: %w", err)
	}

	if showProgress {
		coordinator.AddProgressCallback(func(progress *reconciler.RunProgress) {
			fmt.Fprintf(os.Stderr, "\r[%d/%d] %s (%.1f%% complete)",
				progress.CompletedSteps, progress.TotalSteps,
				progress.CurrentStep, progress.PercentComplete)
		})
	}

	run, err := coordinator.RunSets(ctx,
		reconciler.NewRecordSet(referenceRecords, referenceStats, models.SourceReference),
		reconciler.NewRecordSet(subjectRecords, subjectStats, models.SourceSubject),
	)
	if showProgress {
		fmt.Fprintf(os.Stderr, "\n")
	}
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, showMatches)
	if err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	generator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	var writer io.Writer = os.Stdout
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer file.Close()
		writer = file
	}

	if err := generator.GenerateReport(run, writer); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	return nil
}
