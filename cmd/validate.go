// =============================================================================
// SEPA Direct Debit Generator - Validate Command
// =============================================================================
//
// This file defines the 'validate' command. It runs the pipeline up to the
// validation pass and prints what generate would collect, without writing
// anything.
//
// COMMAND USAGE:
//   lastschrift validate --file mitglieder.csv
//
// OUTPUT:
//   1. Club identifier check (IBAN, BIC, Creditor Identifier)
//   2. Column labels and the fields mapped to them
//   3. Record preview: row, name, IBAN, mandate reference, date, fee
//   4. Validation problems
//
// EXIT STATUS:
//   1 if the club configuration is invalid, the export cannot be read or
//   mapped, or any record has an error (with --strict, also a warning).
//
// =============================================================================

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/clubsepa/lastschrift/internal/config"
	"github.com/clubsepa/lastschrift/internal/converter"
	"github.com/clubsepa/lastschrift/internal/identifier"
	"github.com/clubsepa/lastschrift/internal/logging"
	"github.com/clubsepa/lastschrift/internal/mapping"
	"github.com/clubsepa/lastschrift/internal/validation"
)

var (
	validateFile   string
	validateStrict bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a member export and the club configuration",
	Long: `The validate command reads a member export with the configured mapping and
prints the club identifier check, the column labels, a preview of every
member record and the validation problems. Nothing is written.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cmd)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVar(&validateFile, "file", "", "Path to the member export")
	validateCmd.Flags().BoolVar(&validateStrict, "strict", false, "Treat warnings as errors")
	validateCmd.MarkFlagRequired("file")
}

func runValidate(cmd *cobra.Command) error {
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

	club, mappingCfg, profile := mainConfig.Resolve(filepath.Base(validateFile), profiles)
	out := cmd.OutOrStdout()
	failed := false

	fmt.Fprintf(out, "=== %s (profile: %s) ===\n\n", filepath.Base(validateFile), profile)

	// =========================================================================
	// CLUB IDENTIFIERS
	// =========================================================================

	fmt.Fprintln(out, "Club configuration:")
	if err := club.Validate(); err != nil {
		failed = true
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			for _, p := range cfgErr.Problems {
				fmt.Fprintf(out, "  ✗ %s: %s\n", p.Field, p.Message)
			}
		} else {
			fmt.Fprintf(out, "  ✗ %v\n", err)
		}
	} else {
		fmt.Fprintf(out, "  ✓ %s, %s, %s\n", club.Name, identifier.FormatIBAN(club.IBAN), club.CreditorID)
	}
	fmt.Fprintln(out)

	// =========================================================================
	// EXPORT
	// =========================================================================

	data, err := os.ReadFile(validateFile)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	pipeline := converter.NewPipeline(logger)
	if validateStrict {
		pipeline.Validator = validation.NewValidatorWithOptions(validation.ValidationOptions{TreatWarningsAsErrors: true})
	}

	conv, err := pipeline.Prepare(validateFile, bytes.NewReader(data), club, mappingCfg)
	if conv != nil {
		printColumns(out, conv.Labels, conv.Mapping)
	}
	if err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return errProblemsFound
	}

	printRecords(out, conv, club)

	fmt.Fprintln(out, validation.FormatErrors(conv.Validation.Errors))

	if failed || !conv.Validation.IsValid() {
		return errProblemsFound
	}
	return nil
}

func printColumns(w io.Writer, labels []string, fm mapping.FieldMapping) {
	byColumn := make(map[int]mapping.Field)
	for field, col := range fm.Indexes() {
		byColumn[col] = field
	}

	fmt.Fprintln(w, "Columns:")
	for i, label := range labels {
		if field, ok := byColumn[i]; ok {
			fmt.Fprintf(w, "  %2d  %-30s -> %s\n", i, label, field)
		} else {
			fmt.Fprintf(w, "  %2d  %s\n", i, label)
		}
	}
	if missing := fm.Missing(); len(missing) > 0 {
		fmt.Fprintf(w, "  missing: %v\n", missing)
	}
	fmt.Fprintln(w)
}

func printRecords(w io.Writer, conv *converter.Conversion, club config.OriginatorConfig) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tNAME\tIBAN\tMANDATE\tSIGNED\tFEE")

	total := decimal.Zero
	collectable := 0
	for _, rec := range conv.Records {
		fee := rec.EffectiveFee(club.DefaultFee).Round(2)
		feeText := fee.StringFixed(2)
		if fee.IsPositive() {
			total = total.Add(fee)
			collectable++
		} else {
			feeText += " (skipped)"
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.Row,
			rec.DisplayName(),
			identifier.FormatIBAN(rec.IBAN),
			rec.DisplayMandateReference(club.MandateReferencePrefix),
			rec.MandateDate,
			feeText,
		)
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d record(s), %d collectable, total %s EUR\n\n", len(conv.Records), collectable, total.StringFixed(2))
}
