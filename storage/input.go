package storage

import (
	"github.com/rotisserie/eris"

	"livability-pipeline/models"
)

// LoadIdentifiers reads the identifier column of a CSV or XLSX file,
// normalizes the values and removes duplicates while keeping order.
func LoadIdentifiers(path, column string) ([]string, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	if t.ColumnIndex(column) < 0 {
		return nil, eris.Errorf("input: column %q not found in %s", column, path)
	}

	ids := models.UniqueIDs(t.Column(column))
	if len(ids) == 0 {
		return nil, eris.Errorf("input: no identifiers in column %q of %s", column, path)
	}
	return ids, nil
}
