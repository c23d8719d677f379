// =============================================================================
// SEPA Direct Debit Generator - Converter Module
// =============================================================================
//
// This module orchestrates the pipeline for a single member export, from
// ingestion to the written pain.008 document.
//
// CONVERSION PIPELINE:
//   1. Resolve the club profile for the file name
//   2. Ingest the export (delimited text or spreadsheet)
//   3. Map rows to member records
//   4. Run the validation pass
//   5. Build the collection document
//   6. Write the output file and the advisory log
//   7. Archive the export
//
// CONCURRENCY:
//   Each file is processed by its own Converter. Converters share only
//   read-only configuration, so RunAll processes several files at once.
//
// =============================================================================

package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/ingest"
	"github.com/clubsepa/lastschrift/internal/logging"
	"github.com/clubsepa/lastschrift/internal/sepa"
	"github.com/clubsepa/lastschrift/internal/types"
	"github.com/clubsepa/lastschrift/internal/validation"
	"github.com/clubsepa/lastschrift/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// Profile is the club profile that was applied, or "default".
	Profile string

	// OutputFile is the path to the generated XML file.
	// Empty if processing failed or output writing was disabled.
	OutputFile string

	// AdvisoryLog is the path to the advisory log, if one was written.
	AdvisoryLog string

	// XML is the generated document.
	XML string

	// Conversion holds the intermediate stages. It may be set on failure.
	Conversion *Conversion

	// Success indicates whether a document was produced.
	Success bool

	// Error contains the error if processing failed.
	Error error

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// RowsRead is the number of rows in the export, header included.
	RowsRead int

	// RecordsMapped is the number of member records after blank-row removal.
	RecordsMapped int

	// TransactionsCreated is the number of debits in the document.
	TransactionsCreated int

	// Skipped is the number of members left out of the document.
	Skipped int

	// Flagged is the number of members collected with a fallback.
	Flagged int

	// ValidationErrors and ValidationWarnings count validation problems.
	ValidationErrors   int
	ValidationWarnings int

	// ControlSum is the total collected amount.
	ControlSum decimal.Decimal

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// Options control the side effects of Run.
type Options struct {
	// RequireClean makes any validation error fatal.
	RequireClean bool

	// WriteOutput writes the document and advisory log to disk.
	WriteOutput bool

	// Archive moves the export to the archive directory on success.
	Archive bool
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of a single member export.
type Converter struct {
	inputPath  string
	mainConfig *config.MainConfig
	profiles   []*config.ClubProfile
	files      *utils.FileManager
	pipeline   *Pipeline
	options    Options
	logger     logging.Logger
}

// New creates a new Converter instance.
//
// PARAMETERS:
//   - inputPath: The path to the member export.
//   - mainConfig: The main application configuration.
//   - profiles: Club profiles, matched by file name. May be nil.
//   - options: Side effects to perform.
//
// RETURNS:
//   - A new Converter instance using a no-op logger.
func New(inputPath string, mainConfig *config.MainConfig, profiles []*config.ClubProfile, options Options) *Converter {
	return &Converter{
		inputPath:  inputPath,
		mainConfig: mainConfig,
		profiles:   profiles,
		files:      FileManagerFor(mainConfig),
		pipeline:   NewPipeline(nil),
		options:    options,
		logger:     logging.NewNop(),
	}
}

// FileManagerFor returns the file manager for the configured directories.
func FileManagerFor(mainConfig *config.MainConfig) *utils.FileManager {
	return utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.InputArchiveDir, mainConfig.LogDir)
}

// SetLogger replaces the logger.
func (c *Converter) SetLogger(logger logging.Logger) {
	c.logger = logger
	c.pipeline.Logger = logger
}

// SetPipeline replaces the pipeline, e.g. to fix the build clock.
func (c *Converter) SetPipeline(p *Pipeline) {
	c.pipeline = p
}

// SetFileManager replaces the file manager.
func (c *Converter) SetFileManager(fm *utils.FileManager) {
	c.files = fm
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the pipeline for the file.
//
// RETURNS:
//   - A Result struct containing the outcome of the processing.
func (c *Converter) Run() (result Result) {
	startTime := time.Now()
	result = Result{FilePath: c.inputPath}
	defer func() { result.Stats.ProcessingTime = time.Since(startTime) }()

	c.logger.Info("Processing file: %s", c.inputPath)

	// =========================================================================
	// STEP 1: RESOLVE PROFILE
	// =========================================================================

	club, mappingCfg, profile := c.mainConfig.Resolve(filepath.Base(c.inputPath), c.profiles)
	result.Profile = profile
	c.logger.Debug("Using profile: %s", profile)

	// =========================================================================
	// STEP 2-4: INGEST, MAP, VALIDATE
	// =========================================================================

	data, err := os.ReadFile(c.inputPath)
	if err != nil {
		result.Error = fmt.Errorf("failed to read input: %w", err)
		return result
	}

	conv, err := c.pipeline.Prepare(c.inputPath, bytes.NewReader(data), club, mappingCfg)
	result.Conversion = conv
	if conv != nil {
		result.Stats.RowsRead = len(conv.Grid)
		result.Stats.RecordsMapped = len(conv.Records)
	}
	if err != nil {
		result.Error = err
		return result
	}

	if v := conv.Validation; v != nil {
		result.Stats.ValidationErrors = v.ErrorCount
		result.Stats.ValidationWarnings = v.WarningCount
		for _, ve := range v.Errors {
			c.logger.Warn("Validation: %s", ve.Error())
		}
	}

	// =========================================================================
	// STEP 5: BUILD DOCUMENT
	// =========================================================================

	if err := c.pipeline.Generate(conv, club, c.options.RequireClean); err != nil {
		var genErr *sepa.DocumentGenerationError
		if errors.As(err, &genErr) {
			result.Stats.Skipped = len(genErr.Advisories)
			c.writeAdvisories(&result, conv, genErr.Advisories)
		}
		result.Error = err
		return result
	}

	built := conv.Build
	result.XML = built.XML
	result.Stats.TransactionsCreated = built.Transactions
	result.Stats.Skipped = built.Skipped()
	result.Stats.Flagged = len(built.Advisories) - built.Skipped()
	result.Stats.ControlSum = built.ControlSum

	c.logger.Debug("Built document with %d transaction(s), control sum %s", built.Transactions, built.ControlSum.StringFixed(2))

	// =========================================================================
	// STEP 6: WRITE OUTPUT
	// =========================================================================

	if c.options.WriteOutput {
		outputPath, err := c.files.WriteOutput(c.mainConfig.OutputName, c.inputPath, []byte(built.XML))
		if err != nil {
			result.Error = fmt.Errorf("failed to write output: %w", err)
			return result
		}
		result.OutputFile = outputPath
		c.logger.Info("Wrote output to: %s", outputPath)

		c.writeAdvisories(&result, conv, built.Advisories)
	}

	// =========================================================================
	// STEP 7: ARCHIVE
	// =========================================================================

	if c.options.Archive {
		if archived, err := c.files.ArchiveInputFile(c.inputPath); err != nil {
			c.logger.Warn("Failed to archive %s: %v", c.inputPath, err)
		} else {
			c.logger.Debug("Archived input to: %s", archived)
		}
	}

	result.Success = true
	return result
}

// writeAdvisories logs skipped and flagged records together with the
// validation problems. Failures to write are logged, never returned.
func (c *Converter) writeAdvisories(result *Result, conv *Conversion, advisories []types.Advisory) {
	if !c.options.WriteOutput {
		return
	}

	entries := AdvisoryEntries(advisories, conv.Validation)
	path, err := c.files.WriteAdvisoryLog(c.inputPath, entries)
	if err != nil {
		c.logger.Warn("Failed to write advisory log: %v", err)
		return
	}
	if path != "" {
		result.AdvisoryLog = path
		c.logger.Info("Wrote %d advisory entr(ies) to: %s", len(entries), path)
	}
}

// AdvisoryEntries converts builder advisories and validation problems into
// advisory log entries, builder advisories first.
func AdvisoryEntries(advisories []types.Advisory, v *validation.Result) []utils.AdvisoryLogEntry {
	var entries []utils.AdvisoryLogEntry
	for _, a := range advisories {
		kind := "flagged"
		if a.Skipped() {
			kind = "skipped"
		}
		entries = append(entries, utils.AdvisoryLogEntry{
			Kind:    kind,
			Record:  a.Index + 1,
			Row:     a.Row,
			Name:    a.Name,
			Code:    string(a.Code),
			Message: a.Message,
		})
	}

	if v != nil {
		for _, ve := range v.Errors {
			entries = append(entries, utils.AdvisoryLogEntry{
				Kind:    "validation",
				Record:  ve.Index + 1,
				Row:     ve.Row,
				Code:    ve.Rule,
				Message: fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message),
			})
		}
	}
	return entries
}

// =============================================================================
// DIRECTORY MODE
// =============================================================================

// Supported reports whether a file name has an accepted export extension.
func Supported(name string) bool {
	_, err := ingest.FormatFromFilename(name)
	return err == nil
}

// RunAll processes files concurrently, at most mainConfig.MaxConcurrency at
// a time. Results are returned in input order. Unless ContinueOnError is
// set, files not yet started are skipped after the first failure and carry
// context.Canceled.
func RunAll(ctx context.Context, files []string, mainConfig *config.MainConfig, profiles []*config.ClubProfile, options Options, logger logging.Logger) []Result {
	if logger == nil {
		logger = logging.NewNop()
	}

	limit := mainConfig.MaxConcurrency
	if limit < 1 {
		limit = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(files))
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for i, file := range files {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = Result{FilePath: file, Error: ctx.Err()}
			continue
		}

		wg.Add(1)
		go func(i int, file string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				results[i] = Result{FilePath: file, Error: err}
				return
			}

			conv := New(file, mainConfig, profiles, options)
			conv.SetLogger(logger)
			results[i] = conv.Run()

			if !results[i].Success && !mainConfig.ContinueOnError {
				cancel()
			}
		}(i, file)
	}

	wg.Wait()
	return results
}

// Summarize aggregates results for the summary log.
func Summarize(results []Result, start, end time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime:  start,
		EndTime:    end,
		TotalFiles: len(results),
		ControlSum: decimal.Zero,
	}

	for _, r := range results {
		summary.TotalRecords += r.Stats.RecordsMapped
		summary.ValidationProblems += r.Stats.ValidationErrors + r.Stats.ValidationWarnings

		if !r.Success {
			summary.FailedFiles++
			msg := "unknown error"
			if r.Error != nil {
				msg = r.Error.Error()
			}
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{InputFile: r.FilePath, ErrorMessage: msg})
			continue
		}

		summary.SuccessfulFiles++
		summary.TotalTransactions += r.Stats.TransactionsCreated
		summary.TotalSkipped += r.Stats.Skipped
		summary.ControlSum = summary.ControlSum.Add(r.Stats.ControlSum)
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:    r.FilePath,
			OutputFile:   r.OutputFile,
			AdvisoryLog:  r.AdvisoryLog,
			Profile:      r.Profile,
			Records:      r.Stats.RecordsMapped,
			Transactions: r.Stats.TransactionsCreated,
			Skipped:      r.Stats.Skipped,
			ControlSum:   r.Stats.ControlSum,
			ProcessTime:  r.Stats.ProcessingTime,
		})
	}

	return summary
}
