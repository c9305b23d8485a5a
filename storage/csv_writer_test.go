package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livability-pipeline/models"
)

func testRow(id string) *models.OutputRow {
	return &models.OutputRow{
		Identifier:  id,
		Values:      map[string]string{models.ColZipCode: id, models.ColOverallScore: "50"},
		Source:      models.SourceGateway,
		ProcessedAt: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}
}

func countLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestCSVWriterHeaderOnlyOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "output.csv")
	cols := models.OutputColumns()

	w, err := NewCSVWriter(path, cols)
	require.NoError(t, err)
	require.NoError(t, w.WriteRows([]*models.OutputRow{testRow("111")}))
	require.NoError(t, w.WriteRows([]*models.OutputRow{testRow("222")}))
	require.NoError(t, w.Close())

	// a second run appends without repeating the header
	w, err = NewCSVWriter(path, cols)
	require.NoError(t, err)
	require.NoError(t, w.WriteRows([]*models.OutputRow{testRow("333")}))
	require.NoError(t, w.Close())

	lines := countLines(t, path)
	require.Len(t, lines, 4)
	assert.Equal(t, strings.Join(cols, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[3], "333,333,50"))
}

func TestCSVWriterNoRowsNoHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.csv")
	w, err := NewCSVWriter(path, models.OutputColumns())
	require.NoError(t, err)
	require.NoError(t, w.WriteRows(nil))
	require.NoError(t, w.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestCSVWriterRejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1,2\n"), 0644))

	_, err := NewCSVWriter(path, models.OutputColumns())
	assert.Error(t, err)
}
