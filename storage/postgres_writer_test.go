package storage

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livability-pipeline/models"
)

func TestBuildUpsert(t *testing.T) {
	zip := "10001"
	score := 62
	pop := int64(21102)
	at := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	first := &models.CacheEntry{Identifier: "10001", RetrievedAt: at, LivabilityRecord: *models.NewLivabilityRecord()}
	first.ZipCode = &zip
	first.OverallScore = &score
	first.Demographics.TotalPopulation = &pop
	first.Demographics.RaceEthnicity["White"] = "45%"
	second := &models.CacheEntry{Identifier: "10002", RetrievedAt: at, LivabilityRecord: *models.NewLivabilityRecord()}

	query, args, err := buildUpsert([]*models.CacheEntry{first, second})
	require.NoError(t, err)

	assert.Contains(t, query, "($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)")
	assert.Contains(t, query, "($14,")
	assert.Contains(t, query, "$26)")
	assert.True(t, strings.Contains(query, "ON CONFLICT (identifier) DO UPDATE"))
	require.Len(t, args, 2*pgColumnsPerRow)

	assert.Equal(t, "10001", args[0])
	assert.Equal(t, sql.NullString{String: "10001", Valid: true}, args[1])
	assert.Equal(t, sql.NullInt64{Int64: 62, Valid: true}, args[2])
	assert.Equal(t, sql.NullInt64{}, args[3], "housing score is null")
	assert.Equal(t, sql.NullInt64{Int64: 21102, Valid: true}, args[10])
	assert.JSONEq(t, `{"White":"45%"}`, args[11].(string))
	assert.Equal(t, sql.NullString{}, args[pgColumnsPerRow+1])
}
