package services

import (
	"strconv"
	"strings"
	"time"

	"livability-pipeline/models"
)

var raceColumnByLabel = func() map[string]string {
	m := make(map[string]string, len(models.RaceColumns))
	for _, rc := range models.RaceColumns {
		m[rc.Label] = rc.Column
	}
	return m
}()

// Flatten projects a record onto the fixed livability columns plus zip_code.
// Null values become empty strings; race labels outside the fixed set are
// dropped so the column set never changes.
func Flatten(id string, rec *models.LivabilityRecord) map[string]string {
	out := make(map[string]string, len(models.LivabilityColumns())+1)
	for _, col := range models.LivabilityColumns() {
		out[col] = ""
	}
	out[models.ColZipCode] = id
	if rec == nil {
		return out
	}

	out[models.ColZipCode] = rec.ResolvedZip(id)
	out[models.ColOverallScore] = formatInt(rec.OverallScore)
	for _, c := range models.Categories {
		out[models.CategoryColumn(c)] = formatInt(rec.Categories[c])
	}
	if p := rec.Demographics.TotalPopulation; p != nil {
		out[models.ColPopulation] = strconv.FormatInt(*p, 10)
	}
	for label, value := range rec.Demographics.RaceEthnicity {
		if col, ok := raceColumnByLabel[columnFragment(label)]; ok {
			out[col] = value
		}
	}
	return out
}

// NewRecordRow builds the output row for a successfully handled identifier.
func NewRecordRow(id string, rec *models.LivabilityRecord, source models.RowSource, at time.Time) *models.OutputRow {
	return &models.OutputRow{
		Identifier:  id,
		Values:      Flatten(id, rec),
		Source:      source,
		ProcessedAt: at,
	}
}

// NewErrorRow builds the error-flagged output row for a failed identifier.
func NewErrorRow(id string, err error, at time.Time) *models.OutputRow {
	return &models.OutputRow{
		Identifier:  id,
		Values:      map[string]string{models.ColZipCode: id},
		Source:      models.SourceError,
		Error:       err.Error(),
		ProcessedAt: at,
	}
}

func columnFragment(label string) string {
	s := strings.ToLower(strings.TrimSpace(label))
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, "/", "_")
}

func formatInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
