package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"livability-pipeline/models"
)

// ReadTable loads a CSV or XLSX file (chosen by extension). The first row is
// the header.
func ReadTable(path string) (*models.Table, error) {
	var records [][]string
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		records, err = readXLSX(path)
	case ".csv", "":
		records, err = readCSV(path)
	default:
		return nil, eris.Errorf("dataset: unsupported file type %q", ext)
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, eris.Errorf("dataset: %s has no header row", path)
	}

	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return models.NewTable(header, records[1:]), nil
}

// WriteTable atomically replaces path with t in CSV or XLSX form.
func WriteTable(path string, t *models.Table) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx":
		return writeXLSX(path, t)
	case ".csv", "":
		return writeCSV(path, t)
	default:
		return eris.Errorf("dataset: unsupported file type %q", ext)
	}
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	return records, nil
}

func writeCSV(path string, t *models.Table) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return eris.Wrap(err, "dataset: write header")
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "dataset: write rows")
	}
	return writeFileAtomic(path, buf.Bytes(), 0644)
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, eris.Errorf("dataset: %s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read sheet %s", sheets[0])
	}
	return rows, nil
}

func writeXLSX(path string, t *models.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return eris.Wrap(err, "dataset: stream writer")
	}

	writeRow := func(rowNum int, values []string) error {
		cell, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return err
		}
		row := make([]interface{}, len(values))
		for i, v := range values {
			row[i] = v
		}
		return sw.SetRow(cell, row)
	}

	if err := writeRow(1, t.Header); err != nil {
		return eris.Wrap(err, "dataset: write header")
	}
	for i, r := range t.Rows {
		if err := writeRow(i+2, r); err != nil {
			return eris.Wrapf(err, "dataset: write row %d", i+2)
		}
	}
	if err := sw.Flush(); err != nil {
		return eris.Wrap(err, "dataset: flush sheet")
	}

	// excelize picks the format from the extension, so the temp file keeps it.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return eris.Wrapf(err, "dataset: create dir %s", dir)
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%d.tmp.xlsx", filepath.Base(path), os.Getpid()))
	if err := f.SaveAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "dataset: save %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "dataset: rename into %s", path)
	}
	return nil
}
