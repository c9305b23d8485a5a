package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livability-pipeline/models"
)

func sampleBase() *models.Table {
	return models.NewTable(
		[]string{"Address", "city", "zip_code"},
		[][]string{
			{"1 A St", "New York", "10001.0"},
			{"2 B St", "Boston", "02134"},
			{"3 C St", "New York", "10001"},
			{"4 D St", "Nowhere", ""},
		},
	)
}

func sampleRecords(t *testing.T) map[string]*models.LivabilityRecord {
	p := NewParser(newTestLogger())
	return map[string]*models.LivabilityRecord{
		"10001": p.Parse(loadReport(t, "report_10001.txt")),
	}
}

func TestMergeFillsMatchedRows(t *testing.T) {
	m := NewMerger(newTestLogger())
	out, stats, err := m.Merge(sampleBase(), "zip_code", sampleRecords(t))
	require.NoError(t, err)

	score := out.Column(models.ColOverallScore)
	assert.Equal(t, []string{"62", "", "62", ""}, score)
	assert.Equal(t, []string{"45", "", "45", ""}, out.Column("housing_score"))

	assert.Equal(t, 4, stats.Rows)
	assert.Equal(t, 2, stats.MatchedRows)
	assert.Equal(t, 2, stats.Keys)
	assert.Equal(t, 1, stats.KeysWithData)
}

func TestMergeAddsEveryColumn(t *testing.T) {
	m := NewMerger(newTestLogger())
	out, _, err := m.Merge(sampleBase(), "zip_code", nil)
	require.NoError(t, err)

	for _, col := range models.LivabilityColumns() {
		assert.GreaterOrEqual(t, out.ColumnIndex(col), 0, "column %s", col)
	}
	for _, row := range out.Rows {
		assert.Len(t, row, len(out.Header))
	}
}

func TestMergeLeavesUnmatchedValues(t *testing.T) {
	base := sampleBase()
	idx := base.EnsureColumn(models.ColOverallScore)
	base.Rows[1][idx] = "71"

	m := NewMerger(newTestLogger())
	out, _, err := m.Merge(base, "zip_code", sampleRecords(t))
	require.NoError(t, err)

	assert.Equal(t, "71", out.Rows[1][idx], "rows without a record keep existing values")
}

func TestMergeDoesNotMutateBase(t *testing.T) {
	base := sampleBase()
	before := base.Clone()

	m := NewMerger(newTestLogger())
	_, _, err := m.Merge(base, "zip_code", sampleRecords(t))
	require.NoError(t, err)

	if diff := cmp.Diff(before, base); diff != "" {
		t.Errorf("base mutated (-before +after):\n%s", diff)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	m := NewMerger(newTestLogger())
	records := sampleRecords(t)

	once, _, err := m.Merge(sampleBase(), "zip_code", records)
	require.NoError(t, err)
	twice, _, err := m.Merge(once, "zip_code", records)
	require.NoError(t, err)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("merge not idempotent (-once +twice):\n%s", diff)
	}
}

func TestMergeIsOrderIndependent(t *testing.T) {
	m := NewMerger(newTestLogger())
	base := sampleBase()
	reversed := base.Clone()
	for i, j := 0, len(reversed.Rows)-1; i < j; i, j = i+1, j-1 {
		reversed.Rows[i], reversed.Rows[j] = reversed.Rows[j], reversed.Rows[i]
	}

	a, _, err := m.Merge(base, "zip_code", sampleRecords(t))
	require.NoError(t, err)
	b, _, err := m.Merge(reversed, "zip_code", sampleRecords(t))
	require.NoError(t, err)

	byAddress := func(tb *models.Table) map[string][]string {
		out := make(map[string][]string)
		for _, r := range tb.Rows {
			out[r[0]] = r
		}
		return out
	}
	if diff := cmp.Diff(byAddress(a), byAddress(b)); diff != "" {
		t.Errorf("row order changed merge result:\n%s", diff)
	}
}

func TestMergeMissingJoinColumn(t *testing.T) {
	m := NewMerger(newTestLogger())
	_, _, err := m.Merge(sampleBase(), "postcode", nil)
	assert.Error(t, err)
}

func TestJoinKeys(t *testing.T) {
	keys, err := JoinKeys(sampleBase(), "zip_code")
	require.NoError(t, err)
	assert.Equal(t, []string{"10001", "02134"}, keys)

	_, err = JoinKeys(sampleBase(), "postcode")
	assert.Error(t, err)
}
