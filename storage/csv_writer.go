package storage

import (
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rotisserie/eris"

	"livability-pipeline/models"
)

// CSVWriter appends output rows to a CSV file. The header is written only
// when the file has no content yet; an existing file must carry the same
// header. It is safe for concurrent use.
type CSVWriter struct {
	mu            sync.Mutex
	columns       []string
	file          *os.File
	writer        *csv.Writer
	headerWritten bool
}

// NewCSVWriter opens path for appending. Intermediate directories are
// created automatically.
func NewCSVWriter(path string, columns []string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, eris.Wrap(err, "csv: create output dir")
	}

	existing, err := readHeader(path)
	if err != nil {
		return nil, err
	}
	if existing != nil && !slices.Equal(existing, columns) {
		return nil, eris.Errorf("csv: %s has a different header; move it aside or point output elsewhere", path)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open file %q", path)
	}

	return &CSVWriter{
		columns:       columns,
		file:          f,
		writer:        csv.NewWriter(f),
		headerWritten: existing != nil,
	}, nil
}

// WriteRows appends rows and syncs them to disk.
func (c *CSVWriter) WriteRows(rows []*models.OutputRow) error {
	if len(rows) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.headerWritten {
		if err := c.writer.Write(c.columns); err != nil {
			return eris.Wrap(err, "csv: write header")
		}
		c.headerWritten = true
	}

	for _, r := range rows {
		if err := c.writer.Write(r.Strings(c.columns)); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}

	c.writer.Flush()
	if err := c.writer.Error(); err != nil {
		return eris.Wrap(err, "csv: flush")
	}
	return eris.Wrap(c.file.Sync(), "csv: sync")
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer.Flush()
	return c.file.Close()
}

// readHeader returns the first record of path, or nil when the file is
// missing or empty.
func readHeader(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csv: open %s", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "csv: read header of %s", path)
	}
	return header, nil
}
