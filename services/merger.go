package services

import (
	"github.com/rotisserie/eris"

	"livability-pipeline/models"
	"livability-pipeline/utils"
)

// MergeStats summarises one merge.
type MergeStats struct {
	Rows         int
	MatchedRows  int
	Keys         int
	KeysWithData int
}

// Merger joins cached records onto a wide dataset.
type Merger struct {
	logger *utils.Logger
}

// NewMerger creates a Merger with the given logger.
func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge returns a copy of base where every row whose joinColumn value has a
// record gets its livability columns overwritten. Rows without a record keep
// their current values. All livability columns exist on every row afterwards.
func (m *Merger) Merge(base *models.Table, joinColumn string, records map[string]*models.LivabilityRecord) (*models.Table, *MergeStats, error) {
	if base.ColumnIndex(joinColumn) < 0 {
		return nil, nil, eris.Errorf("merge: join column %q not found", joinColumn)
	}

	out := base.Clone()
	cols := models.LivabilityColumns()
	idx := make([]int, len(cols))
	for i, c := range cols {
		idx[i] = out.EnsureColumn(c)
	}
	keyIdx := out.ColumnIndex(joinColumn)

	stats := &MergeStats{Rows: len(out.Rows)}
	keys := make(map[string]bool)
	flat := make(map[string]map[string]string)

	for _, row := range out.Rows {
		key := models.NormalizeID(row[keyIdx])
		if key == "" {
			continue
		}
		rec, ok := records[key]
		keys[key] = ok
		if !ok || rec == nil {
			continue
		}

		values, seen := flat[key]
		if !seen {
			values = Flatten(key, rec)
			flat[key] = values
		}
		for i, c := range cols {
			row[idx[i]] = values[c]
		}
		stats.MatchedRows++
	}

	stats.Keys = len(keys)
	for _, has := range keys {
		if has {
			stats.KeysWithData++
		}
	}

	m.logger.Info("[merger] Merged %d/%d rows (%d/%d keys with data)",
		stats.MatchedRows, stats.Rows, stats.KeysWithData, stats.Keys)
	return out, stats, nil
}

// JoinKeys returns the distinct normalized join keys of a table in row order.
func JoinKeys(t *models.Table, joinColumn string) ([]string, error) {
	col := t.Column(joinColumn)
	if col == nil && t.ColumnIndex(joinColumn) < 0 {
		return nil, eris.Errorf("merge: join column %q not found", joinColumn)
	}
	return models.UniqueIDs(col), nil
}
