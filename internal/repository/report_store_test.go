package repository

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxr-report-server/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestFileReportStore_SaveRoundTrip(t *testing.T) {
	store := NewFileReportStore(t.TempDir(), testLogger())

	individualPath, masterPath, err := store.Save("chest.jpg", "No significant abnormality.")
	require.NoError(t, err)
	require.FileExists(t, individualPath)
	require.FileExists(t, masterPath)

	report, err := store.Load(individualPath)
	require.NoError(t, err)
	assert.Equal(t, "chest.jpg", report.DataName)
	assert.Equal(t, "No significant abnormality.", report.ReportContent)

	// The human-readable timestamp and the epoch must describe the same
	// second in local time.
	parsed, err := time.ParseInLocation("2006-01-02 15:04:05", report.CreatedAtStr, time.Local)
	require.NoError(t, err)
	assert.Equal(t, report.CreatedAt, parsed.Unix())
}

func TestFileReportStore_IndexAccumulates(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(dir, testLogger())

	_, _, err := store.Save("a.jpg", "report a")
	require.NoError(t, err)
	_, masterPath, err := store.Save("b.jpg", "report b")
	require.NoError(t, err)

	data, err := os.ReadFile(masterPath)
	require.NoError(t, err)

	var reports []domain.Report
	require.NoError(t, json.Unmarshal(data, &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "a.jpg", reports[0].DataName)
	assert.Equal(t, "b.jpg", reports[1].DataName)
}

func TestFileReportStore_GetRecent(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(dir, testLogger())

	// Write the index directly so created_at values differ.
	reports := []domain.Report{
		{DataName: "old.jpg", ReportContent: "old", CreatedAt: 100},
		{DataName: "new.jpg", ReportContent: "new", CreatedAt: 300},
		{DataName: "mid.jpg", ReportContent: "mid", CreatedAt: 200},
	}
	writeIndex(t, dir, reports)

	recent, err := store.GetRecent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "new.jpg", recent[0].DataName)
	assert.Equal(t, "mid.jpg", recent[1].DataName)
}

func TestFileReportStore_GetRecent_TiesKeepInsertionOrder(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(dir, testLogger())

	writeIndex(t, dir, []domain.Report{
		{DataName: "first.jpg", CreatedAt: 100},
		{DataName: "second.jpg", CreatedAt: 100},
	})

	recent, err := store.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "first.jpg", recent[0].DataName)
	assert.Equal(t, "second.jpg", recent[1].DataName)
}

func TestFileReportStore_MissingIndexIsEmpty(t *testing.T) {
	store := NewFileReportStore(t.TempDir(), testLogger())

	recent, err := store.GetRecent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestFileReportStore_CorruptIndexStartsFresh(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(dir, testLogger())
	require.NoError(t, os.WriteFile(filepath.Join(dir, masterIndexName), []byte("{not json"), 0o644))

	_, masterPath, err := store.Save("a.jpg", "report a")
	require.NoError(t, err)

	data, err := os.ReadFile(masterPath)
	require.NoError(t, err)
	var reports []domain.Report
	require.NoError(t, json.Unmarshal(data, &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "a.jpg", reports[0].DataName)
}

func TestFileReportStore_SingleObjectIndexIsWrapped(t *testing.T) {
	dir := t.TempDir()
	store := NewFileReportStore(dir, testLogger())

	legacy := domain.Report{DataName: "legacy.jpg", ReportContent: "legacy", CreatedAt: 50}
	data, err := json.Marshal(legacy)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, masterIndexName), data, 0o644))

	_, _, err = store.Save("a.jpg", "report a")
	require.NoError(t, err)

	recent, err := store.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "legacy.jpg", recent[1].DataName)
}

func TestFileReportStore_LoadMissingFile(t *testing.T) {
	store := NewFileReportStore(t.TempDir(), testLogger())

	_, err := store.Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func writeIndex(t *testing.T, dir string, reports []domain.Report) {
	t.Helper()
	data, err := json.Marshal(reports)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, masterIndexName), data, 0o644))
}
