// =============================================================================
// SEPA Direct Debit Generator - Generate Command
// =============================================================================
//
// This file defines the 'generate' command, which turns member exports into
// pain.008 collection files.
//
// COMMAND USAGE:
//   lastschrift generate [flags]
//
// FLAGS:
//   --file          : Process a single export
//   --dir           : Process every export in a directory (default input_dir)
//   --stdout        : Print the XML instead of writing a file (with --file)
//   --require-clean : Abort when the validation pass reports errors
//   --dry-run       : Run the pipeline without writing or archiving anything
//
// PROCESSING PIPELINE:
//   1. Load configuration and club profiles
//   2. Discover exports (directory mode)
//   3. For each export (concurrently in directory mode):
//      a. Ingest and map the rows
//      b. Validate the records
//      c. Build the document
//      d. Write the output file and advisory log
//   4. Archive processed exports
//   5. Write the summary log
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/converter"
	"github.com/clubsepa/lastschrift/internal/logging"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	generateFile         string
	generateDir          string
	generateStdout       bool
	generateRequireClean bool
	generateDryRun       bool
)

// =============================================================================
// GENERATE COMMAND DEFINITION
// =============================================================================

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate SEPA direct debit XML from member exports",
	Long: `The generate command reads member exports, maps their columns as configured,
validates every member and writes one pain.008.001.02 file per export.

Members without a usable fee, without a name that can be written, or whose
mandate id would collide with another member's are left out and listed in an
advisory log next to the summary. Members whose mandate date cannot be read are collected with
the build date as signature date and are listed as well.

With --file a single export is processed. Otherwise every .csv, .txt, .xlsx,
.xlsm and .xls file in the input directory is processed concurrently.

On success:
  - The XML is placed in the output directory
  - The export is moved to the input archive (archive_inputs: true)
  - A summary is written to the log directory (directory mode)

On error:
  - The export remains where it is
  - Other exports are still processed when continue_on_error is set`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runGenerate(cmd)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVar(&generateFile, "file", "", "Path to a single member export")
	generateCmd.Flags().StringVar(&generateDir, "dir", "", "Directory of member exports (default is input_dir)")
	generateCmd.Flags().BoolVar(&generateStdout, "stdout", false, "Print the XML to standard output instead of writing a file (requires --file)")
	generateCmd.Flags().BoolVar(&generateRequireClean, "require-clean", false, "Abort when the validation pass reports errors")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Run the pipeline without writing or archiving files")

	generateCmd.MarkFlagsMutuallyExclusive("file", "dir")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runGenerate(cmd *cobra.Command) error {
	if generateStdout && generateFile == "" {
		return fmt.Errorf("--stdout requires --file")
	}

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	mainConfig, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := newLogger(mainConfig, logging.FormatConsole)
	if err != nil {
		return err
	}
	defer logger.Sync()

	profiles, err := config.LoadProfiles(mainConfig.ProfilesDir)
	if err != nil {
		return fmt.Errorf("failed to load club profiles: %w", err)
	}
	logger.Debug("Loaded %d club profile(s)", len(profiles))

	write := !generateDryRun && !generateStdout
	if write {
		if err := mainConfig.EnsureDirs(); err != nil {
			return err
		}
	}

	options := converter.Options{
		RequireClean: generateRequireClean,
		WriteOutput:  write,
		Archive:      write && mainConfig.ArchiveInputs,
	}

	if generateFile != "" {
		return generateSingle(cmd, mainConfig, profiles, options, logger)
	}
	return generateDirectory(cmd, mainConfig, profiles, options, logger, write)
}

// generateSingle processes one export.
func generateSingle(cmd *cobra.Command, mainConfig *config.MainConfig, profiles []*config.ClubProfile, options converter.Options, logger logging.Logger) error {
	conv := converter.New(generateFile, mainConfig, profiles, options)
	conv.SetLogger(logger)
	result := conv.Run()

	report := cmd.OutOrStdout()
	if generateStdout {
		report = cmd.ErrOrStderr()
	}

	if !result.Success {
		printFailure(report, result)
		return errProblemsFound
	}

	if generateStdout {
		if _, err := io.WriteString(cmd.OutOrStdout(), result.XML); err != nil {
			return err
		}
	}

	printSuccess(report, result)
	return nil
}

// generateDirectory processes every export in the directory concurrently.
func generateDirectory(cmd *cobra.Command, mainConfig *config.MainConfig, profiles []*config.ClubProfile, options converter.Options, logger logging.Logger, write bool) error {
	startTime := time.Now()
	out := cmd.OutOrStdout()

	dirConfig := *mainConfig
	if generateDir != "" {
		dirConfig.InputDir = generateDir
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	files := converter.FileManagerFor(&dirConfig)
	inputFiles, err := files.DiscoverInputFiles(converter.Supported)
	if err != nil {
		return fmt.Errorf("failed to discover input files: %w", err)
	}

	if len(inputFiles) == 0 {
		fmt.Fprintf(out, "No member exports found in %s.\n", dirConfig.InputDir)
		return nil
	}
	logger.Info("Found %d file(s) to process", len(inputFiles))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	results := converter.RunAll(cmd.Context(), inputFiles, &dirConfig, profiles, options, logger)

	// =========================================================================
	// STEP 4: COLLECT RESULTS AND WRITE SUMMARY
	// =========================================================================

	summary := converter.Summarize(results, startTime, time.Now())
	for _, result := range results {
		if result.Success {
			printSuccess(out, result)
		} else {
			printFailure(out, result)
		}
	}

	fmt.Fprintln(out, "\n=== Processing Complete ===")
	fmt.Fprintf(out, "Total files:     %d\n", summary.TotalFiles)
	fmt.Fprintf(out, "Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Fprintf(out, "Errors:          %d\n", summary.FailedFiles)
	fmt.Fprintf(out, "Transactions:    %d\n", summary.TotalTransactions)
	fmt.Fprintf(out, "Skipped members: %d\n", summary.TotalSkipped)
	fmt.Fprintf(out, "Control sum:     %s EUR\n", summary.ControlSum.StringFixed(2))
	fmt.Fprintf(out, "Time elapsed:    %s\n", summary.EndTime.Sub(summary.StartTime))

	if write {
		path, err := files.WriteSummaryLog(summary)
		if err != nil {
			logger.Warn("Failed to write summary: %v", err)
		} else {
			fmt.Fprintf(out, "Summary:         %s\n", path)
		}
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

func printSuccess(w io.Writer, result converter.Result) {
	target := result.OutputFile
	if target == "" {
		target = "(not written)"
	}
	fmt.Fprintf(w, "  ✓ %s -> %s: %d debit(s), %s EUR, %d skipped\n",
		filepath.Base(result.FilePath), target,
		result.Stats.TransactionsCreated, result.Stats.ControlSum.StringFixed(2), result.Stats.Skipped)
	if result.AdvisoryLog != "" {
		fmt.Fprintf(w, "    advisories: %s\n", result.AdvisoryLog)
	}
}

func printFailure(w io.Writer, result converter.Result) {
	fmt.Fprintf(w, "  ✗ %s: %v\n", filepath.Base(result.FilePath), result.Error)
	if result.AdvisoryLog != "" {
		fmt.Fprintf(w, "    advisories: %s\n", result.AdvisoryLog)
	}
}
