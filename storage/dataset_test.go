package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livability-pipeline/models"
)

func TestReadCSVTrimsHeaderAndPadsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "base.csv")
	content := "\ufeffAddress, zip_code ,city\n1 A St,10001.0,New York\n2 B St,02134\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	tb, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Address", "zip_code", "city"}, tb.Header)
	require.Len(t, tb.Rows, 2)
	assert.Equal(t, []string{"2 B St", "02134", ""}, tb.Rows[1])
}

func TestWriteTableCSVAndXLSX(t *testing.T) {
	dir := t.TempDir()
	tb := models.NewTable(
		[]string{"zip_code", models.ColOverallScore},
		[][]string{{"10001", "62"}, {"02134", ""}},
	)

	for _, name := range []string{"merged.csv", "merged.xlsx"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteTable(path, tb), name)

		got, err := ReadTable(path)
		require.NoError(t, err, name)
		assert.Equal(t, tb.Header, got.Header, name)
		assert.Equal(t, tb.Rows, got.Rows, name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files are renamed away")
}

func TestReadTableUnsupported(t *testing.T) {
	_, err := ReadTable("data.parquet")
	assert.Error(t, err)
}

func TestLoadIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	content := "name,zip_code\na,10001.0\nb,10002\nc,10001\nd,\ne, 10003 \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	ids, err := LoadIdentifiers(path, "zip_code")
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "10002", "10003"}, ids)

	_, err = LoadIdentifiers(path, "postcode")
	assert.Error(t, err)
}

func TestLoadIdentifiersEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.csv")
	require.NoError(t, os.WriteFile(path, []byte("zip_code\n\n"), 0644))

	_, err := LoadIdentifiers(path, "zip_code")
	assert.Error(t, err)
}
