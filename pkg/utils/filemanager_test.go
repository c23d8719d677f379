package utils_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubsepa/lastschrift/pkg/utils"
)

var fixedNow = time.Date(2024, 1, 15, 14, 30, 22, 0, time.UTC)

func newManager(t *testing.T) *utils.FileManager {
	t.Helper()
	root := t.TempDir()
	fm := utils.NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "archive"),
		filepath.Join(root, "logs"),
	)
	fm.Now = func() time.Time { return fixedNow }
	for _, dir := range []string{fm.InputDir, fm.OutputDir, fm.LogDir} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	return fm
}

func TestGenerateOutputFileName(t *testing.T) {
	tests := []struct {
		format string
		params map[string]string
		want   string
	}{
		{"sepa-lastschrift-{date}.xml", nil, "sepa-lastschrift-2024-01-15.xml"},
		{"{original}-{timestamp}", map[string]string{"original": "/in/members.csv"}, "members-20240115_143022.xml"},
		{"run.XML", nil, "run.XML"},
		{"{original}.xml", nil, ".xml"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.want, utils.GenerateOutputFileName(tt.format, fixedNow, tt.params))
		})
	}
}

func TestGenerateOutputFileName_UUID(t *testing.T) {
	name := utils.GenerateOutputFileName("{uuid}_{uuid}", fixedNow, nil)
	parts := strings.Split(strings.TrimSuffix(name, ".xml"), "_")
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 36)
	assert.NotEqual(t, parts[0], parts[1])
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newManager(t)
	for _, name := range []string{"b.csv", "a.xlsx", "notes.md", ".hidden.csv"} {
		require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "sub.csv"), 0755))

	files, err := fm.DiscoverInputFiles(func(name string) bool {
		return !strings.HasSuffix(name, ".md")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(fm.InputDir, "a.xlsx"),
		filepath.Join(fm.InputDir, "b.csv"),
	}, files)

	_, err = utils.NewFileManager(filepath.Join(t.TempDir(), "missing"), "", "", "").DiscoverInputFiles(nil)
	assert.Error(t, err)
}

func TestWriteOutput_NeverOverwrites(t *testing.T) {
	fm := newManager(t)

	first, err := fm.WriteOutput("sepa-{date}.xml", "members.csv", []byte("one"))
	require.NoError(t, err)
	second, err := fm.WriteOutput("sepa-{date}.xml", "members.csv", []byte("two"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fm.OutputDir, "sepa-2024-01-15.xml"), first)
	assert.Equal(t, filepath.Join(fm.OutputDir, "sepa-2024-01-15-2.xml"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestArchiveInputFile(t *testing.T) {
	fm := newManager(t)
	fm.UseTimestampSubdirs = true
	src := filepath.Join(fm.InputDir, "members.csv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0644))

	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "2024", "01", "15", "members.csv"), archived)
	assert.False(t, utils.FileExists(src))
	assert.True(t, utils.FileExists(archived))
}

func TestWriteAdvisoryLog(t *testing.T) {
	fm := newManager(t)

	path, err := fm.WriteAdvisoryLog("members.csv", nil)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = fm.WriteAdvisoryLog("in/members.csv", []utils.AdvisoryLogEntry{
		{Kind: "skipped", Record: 2, Row: 3, Name: "Max Muster", Code: "fee_unresolved", Message: "no usable fee, member skipped"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.LogDir, "advisories_members_20240115_143022.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Member:  Max Muster")
	assert.Contains(t, string(data), "Code:    fee_unresolved")
	assert.Contains(t, string(data), "Entries:   1")
}

func TestWriteSummaryLog(t *testing.T) {
	fm := newManager(t)

	path, err := fm.WriteSummaryLog(utils.ProcessingSummary{
		StartTime:         fixedNow,
		EndTime:           fixedNow.Add(2 * time.Second),
		TotalFiles:        2,
		SuccessfulFiles:   1,
		FailedFiles:       1,
		TotalTransactions: 3,
		ControlSum:        decimal.RequireFromString("37.5"),
		ProcessedFiles:    []utils.ProcessedFileInfo{{InputFile: "a.csv", OutputFile: "a.xml", Profile: "default", Transactions: 3}},
		FailedFilesList:   []utils.FailedFileInfo{{InputFile: "b.csv", ErrorMessage: "boom"}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Duration:       2s")
	assert.Contains(t, text, "Control Sum:         37.50 EUR")
	assert.Contains(t, text, "Input:        a.csv")
	assert.Contains(t, text, "Error: boom")
}
