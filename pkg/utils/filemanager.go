// =============================================================================
// SEPA Direct Debit Generator - File Manager Utility
// =============================================================================
//
// This module provides file management utilities for the generator:
//   - Input discovery in directory mode
//   - Output file naming and collision-free writes
//   - Input archival after a successful run
//   - Advisory and summary logs
//
// ARCHIVAL STRATEGY:
//   - Member exports are moved to input_archive after a document was written
//   - Failed exports remain in their original location
//   - Advisory logs are written next to the summary in the log directory
//
// =============================================================================

package utils

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	logTimeLayout = "2006-01-02 15:04:05"
	fileTimeStamp = "20060102_150405"
	separator     = "================================================================================\n"
	rule          = "--------------------------------------------------------------------------------\n"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the generator.
type FileManager struct {
	// InputDir is the directory scanned for member exports.
	InputDir string

	// OutputDir is the directory where XML documents are placed.
	OutputDir string

	// InputArchiveDir is the directory for archived exports.
	InputArchiveDir string

	// LogDir is the directory for advisory and summary logs.
	LogDir string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2024/01/15/members.csv
	UseTimestampSubdirs bool

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// NewFileManager creates a new FileManager with the specified directories.
func NewFileManager(inputDir, outputDir, inputArchiveDir, logDir string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		OutputDir:       outputDir,
		InputArchiveDir: inputArchiveDir,
		LogDir:          logDir,
	}
}

func (fm *FileManager) now() time.Time {
	if fm.Now != nil {
		return fm.Now()
	}
	return time.Now()
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the regular files in the input directory that
// accept reports as processable, sorted by name.
//
// PARAMETERS:
//   - accept: Decides by file name. Nil accepts every file.
//
// RETURNS:
//   - The matching file paths.
//   - An error if the directory cannot be read.
func (fm *FileManager) DiscoverInputFiles(accept func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if accept != nil && !accept(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(fm.InputDir, entry.Name()))
	}

	sort.Strings(files)
	return files, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

// WriteOutput writes data under OutputDir using a name generated from
// format. When the name is taken, "-2", "-3", ... is appended before the
// extension, so concurrent runs never overwrite each other.
//
// RETURNS:
//   - The path that was written.
//   - An error if writing fails.
func (fm *FileManager) WriteOutput(format, original string, data []byte) (string, error) {
	name := GenerateOutputFileName(format, fm.now(), map[string]string{"original": original})
	return WriteExclusive(filepath.Join(fm.OutputDir, name), data)
}

// WriteExclusive creates path without replacing an existing file.
func WriteExclusive(path string, data []byte) (string, error) {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)

	candidate := path
	for n := 2; ; n++ {
		f, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			candidate = fmt.Sprintf("%s-%d%s", base, n, ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}

		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close %s: %w", candidate, err)
		}
		return candidate, nil
	}
}

// GenerateOutputFileName expands the placeholders of an output name.
//
// PARAMETERS:
//   - format: The name template.
//     Placeholders:
//     {date}      - Build date (YYYY-MM-DD)
//     {timestamp} - Build time (YYYYMMDD_HHMMSS)
//     {uuid}      - A random UUID
//     {original}  - Input file name without extension
//   - now: The build time.
//   - params: Additional placeholder values, keyed without braces.
//
// RETURNS:
//   - The generated file name, always ending in ".xml".
//
// EXAMPLE:
//
//	format: "{original}-{date}.xml"
//	params: {"original": "members.csv"}
//	output: "members-2024-01-15.xml"
func GenerateOutputFileName(format string, now time.Time, params map[string]string) string {
	replacements := map[string]string{
		"{date}":      now.Format("2006-01-02"),
		"{timestamp}": now.Format(fileTimeStamp),
		"{original}":  "",
	}

	for key, value := range params {
		if key == "original" {
			value = strings.TrimSuffix(filepath.Base(value), filepath.Ext(value))
		}
		replacements["{"+key+"}"] = value
	}

	result := format
	for placeholder, value := range replacements {
		result = strings.ReplaceAll(result, placeholder, value)
	}
	// Each occurrence gets its own id.
	for strings.Contains(result, "{uuid}") {
		result = strings.Replace(result, "{uuid}", uuid.NewString(), 1)
	}

	if !strings.HasSuffix(strings.ToLower(result), ".xml") {
		result += ".xml"
	}

	return result
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves an export to the archive directory.
//
// RETURNS:
//   - The path to the archived file.
//   - An error if archival fails.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	archivePath := fm.getArchivePath(fm.InputArchiveDir, filePath)

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func (fm *FileManager) getArchivePath(archiveDir, filePath string) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		now := fm.now()
		return filepath.Join(
			archiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}

	return filepath.Join(archiveDir, fileName)
}

// =============================================================================
// ADVISORY LOG
// =============================================================================

// AdvisoryLogEntry is a single record-level problem of one export.
type AdvisoryLogEntry struct {
	// Kind is "skipped", "flagged" or "validation".
	Kind string

	// Record is the 1-based record number.
	Record int

	// Row is the 1-based source row.
	Row int

	Name    string
	Code    string
	Message string
}

// WriteAdvisoryLog writes the advisories of one export to LogDir.
//
// PARAMETERS:
//   - inputFile: The export the entries belong to.
//   - entries: The entries to write.
//
// RETURNS:
//   - The path to the log, or "" when there was nothing to write.
//   - An error if writing fails.
func (fm *FileManager) WriteAdvisoryLog(inputFile string, entries []AdvisoryLogEntry) (string, error) {
	if len(entries) == 0 {
		return "", nil
	}

	now := fm.now()
	original := strings.TrimSuffix(filepath.Base(inputFile), filepath.Ext(inputFile))
	logPath := filepath.Join(fm.LogDir, fmt.Sprintf("advisories_%s_%s.txt", original, now.Format(fileTimeStamp)))

	var b strings.Builder
	fmt.Fprintf(&b, "SEPA Direct Debit Generator - Advisory Log\n"+
		"Input:     %s\n"+
		"Generated: %s\n"+
		"Entries:   %d\n"+
		separator+"\n",
		inputFile, now.Format(logTimeLayout), len(entries))

	for i, entry := range entries {
		fmt.Fprintf(&b, "Advisory #%d\n", i+1)
		fmt.Fprintf(&b, "  Kind:    %s\n", entry.Kind)
		fmt.Fprintf(&b, "  Record:  %d\n", entry.Record)
		if entry.Row > 0 {
			fmt.Fprintf(&b, "  Row:     %d\n", entry.Row)
		}
		if entry.Name != "" {
			fmt.Fprintf(&b, "  Member:  %s\n", entry.Name)
		}
		if entry.Code != "" {
			fmt.Fprintf(&b, "  Code:    %s\n", entry.Code)
		}
		fmt.Fprintf(&b, "  Message: %s\n\n", entry.Message)
	}
	b.WriteString(separator + "End of Advisory Log\n")

	path, err := WriteExclusive(logPath, []byte(b.String()))
	if err != nil {
		return "", fmt.Errorf("failed to write advisory log: %w", err)
	}
	return path, nil
}

// =============================================================================
// PROCESSING SUMMARY
// =============================================================================

// ProcessingSummary contains summary information about a processing run.
type ProcessingSummary struct {
	StartTime          time.Time
	EndTime            time.Time
	TotalFiles         int
	SuccessfulFiles    int
	FailedFiles        int
	TotalRecords       int
	TotalTransactions  int
	TotalSkipped       int
	ValidationProblems int
	ControlSum         decimal.Decimal
	ProcessedFiles     []ProcessedFileInfo
	FailedFilesList    []FailedFileInfo
}

// ProcessedFileInfo contains information about a successfully processed file.
type ProcessedFileInfo struct {
	InputFile    string
	OutputFile   string
	AdvisoryLog  string
	Profile      string
	Records      int
	Transactions int
	Skipped      int
	ControlSum   decimal.Decimal
	ProcessTime  time.Duration
}

// FailedFileInfo contains information about a failed file.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a processing summary to LogDir.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func (fm *FileManager) WriteSummaryLog(summary ProcessingSummary) (string, error) {
	summaryPath := filepath.Join(fm.LogDir, fmt.Sprintf("processing_summary_%s.txt", fm.now().Format(fileTimeStamp)))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	duration := summary.EndTime.Sub(summary.StartTime)
	fmt.Fprintf(writer, "SEPA Direct Debit Generator - Processing Summary\n"+
		separator+"\n"+
		"Run Information:\n"+
		"  Start Time:     %s\n"+
		"  End Time:       %s\n"+
		"  Duration:       %s\n\n"+
		"Statistics:\n"+
		"  Total Files:         %d\n"+
		"  Successful:          %d\n"+
		"  Failed:              %d\n"+
		"  Total Records:       %d\n"+
		"  Total Transactions:  %d\n"+
		"  Skipped Members:     %d\n"+
		"  Validation Problems: %d\n"+
		"  Control Sum:         %s EUR\n\n",
		summary.StartTime.Format(logTimeLayout),
		summary.EndTime.Format(logTimeLayout),
		duration.String(),
		summary.TotalFiles,
		summary.SuccessfulFiles,
		summary.FailedFiles,
		summary.TotalRecords,
		summary.TotalTransactions,
		summary.TotalSkipped,
		summary.ValidationProblems,
		summary.ControlSum.StringFixed(2))

	if len(summary.ProcessedFiles) > 0 {
		writer.WriteString("Successful Files:\n" + rule)
		for _, pf := range summary.ProcessedFiles {
			fmt.Fprintf(writer, "  Input:        %s\n", pf.InputFile)
			fmt.Fprintf(writer, "  Output:       %s\n", pf.OutputFile)
			fmt.Fprintf(writer, "  Profile:      %s\n", pf.Profile)
			fmt.Fprintf(writer, "  Records:      %d\n", pf.Records)
			fmt.Fprintf(writer, "  Transactions: %d\n", pf.Transactions)
			fmt.Fprintf(writer, "  Skipped:      %d\n", pf.Skipped)
			fmt.Fprintf(writer, "  Control Sum:  %s EUR\n", pf.ControlSum.StringFixed(2))
			if pf.AdvisoryLog != "" {
				fmt.Fprintf(writer, "  Advisories:   %s\n", pf.AdvisoryLog)
			}
			fmt.Fprintf(writer, "  Process Time: %s\n\n", pf.ProcessTime.String())
		}
	}

	if len(summary.FailedFilesList) > 0 {
		writer.WriteString("Failed Files:\n" + rule)
		for _, ff := range summary.FailedFilesList {
			fmt.Fprintf(writer, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(writer, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	writer.WriteString(separator + "End of Summary\n")

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}

	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
