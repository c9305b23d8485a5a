package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livability-pipeline/models"
	"livability-pipeline/pipeline"
	"livability-pipeline/services"
	"livability-pipeline/storage"
	"livability-pipeline/utils"
)

func seededCache(t *testing.T) *storage.FileCache {
	t.Helper()
	ctx := context.Background()
	cache, err := storage.OpenFileCache(ctx, filepath.Join(t.TempDir(), "cache"), false, utils.NewNopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	rec := models.NewLivabilityRecord()
	zip := "10001"
	overall := 62
	housing := 45
	rec.ZipCode = &zip
	rec.OverallScore = &overall
	rec.Categories["housing"] = &housing
	require.NoError(t, cache.Put(ctx, "10001", rec, ""))
	return cache
}

func writeBase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Result.csv")
	content := "Address,city,zip_code\n1 A St,New York,10001.0\n2 B St,Boston,02134\n3 C St,New York,10001\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMergeFilesIsIdempotent(t *testing.T) {
	cache := seededCache(t)
	base := writeBase(t)
	out := filepath.Join(t.TempDir(), "merged.csv")
	ctx := context.Background()

	stats, err := mergeFiles(ctx, cache, base, "zip_code", out, utils.NewNopLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Rows)
	assert.Equal(t, 2, stats.MatchedRows)
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 1, stats.KeysWithData)

	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, err = mergeFiles(ctx, cache, out, "zip_code", out, utils.NewNopLogger())
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	merged, err := storage.ReadTable(out)
	require.NoError(t, err)
	scores := merged.Column(models.ColOverallScore)
	assert.Equal(t, []string{"62", "", "62"}, scores)
	assert.Equal(t, []string{"45", "", "45"}, merged.Column(models.CategoryColumn("housing")))
}

func TestMissingKeys(t *testing.T) {
	cache := seededCache(t)
	base, err := storage.ReadTable(writeBase(t))
	require.NoError(t, err)

	missing, err := missingKeys(context.Background(), cache, base, "zip_code")
	require.NoError(t, err)
	assert.Equal(t, []string{"02134"}, missing)

	_, err = missingKeys(context.Background(), cache, base, "postcode")
	assert.Error(t, err)
}

func TestWriteCoverageReport(t *testing.T) {
	cache := seededCache(t)
	dir := t.TempDir()
	merged := filepath.Join(dir, "merged.csv")
	_, err := mergeFiles(context.Background(), cache, writeBase(t), "zip_code", merged, utils.NewNopLogger())
	require.NoError(t, err)

	reportPath := filepath.Join(dir, "missing_livability_report.json")
	report, err := writeCoverageReport(merged, "zip_code", []string{"Address", "city", "zip_code", "latitude"},
		reportPath, utils.NewNopLogger())
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalRecords)
	assert.Equal(t, 1, report.MissingLivabilityScore)
	assert.Equal(t, 33.33, report.PercentageMissing)
	assert.Equal(t, 62.0, report.AverageOverallScore)
	require.Len(t, report.Records, 1)
	assert.Equal(t, map[string]string{"Address": "2 B St", "city": "Boston", "zip_code": "02134"}, report.Records[0])
	assert.Equal(t, []services.ScoredKey{{Key: "10001", Score: 62}}, report.TopScored)

	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"missing_livability_score": 1`)
}

func TestReportRunTreatsInterruptAsResumable(t *testing.T) {
	logger = utils.NewNopLogger()
	summary := &pipeline.Summary{RunID: "r1", Interrupted: true}

	assert.NoError(t, reportRun(summary, context.Canceled))

	perr := &pipeline.PersistenceError{Op: "checkpoint", Err: errors.New("disk full")}
	assert.ErrorIs(t, reportRun(summary, perr), perr)
	assert.NoError(t, reportRun(nil, nil))
}

type memRecordWriter struct {
	entries []*models.CacheEntry
}

func (w *memRecordWriter) Write(entries []*models.CacheEntry) error {
	w.entries = append(w.entries, entries...)
	return nil
}

func (w *memRecordWriter) Close() error { return nil }

func TestSyncRecords(t *testing.T) {
	logger = utils.NewNopLogger()
	cache := seededCache(t)
	w := &memRecordWriter{}

	n, err := syncRecords(context.Background(), cache, w)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, w.entries, 1)
	assert.Equal(t, "10001", w.entries[0].Identifier)
	assert.Equal(t, 62, *w.entries[0].OverallScore)
	assert.False(t, w.entries[0].RetrievedAt.IsZero())
}
