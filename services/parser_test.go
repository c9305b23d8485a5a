package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"livability-pipeline/models"
	"livability-pipeline/utils"
)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

func loadReport(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestParseFullReport(t *testing.T) {
	p := NewParser(newTestLogger())
	rec := p.Parse(loadReport(t, "report_10001.txt"))

	require.NotNil(t, rec.ZipCode)
	assert.Equal(t, "10001", *rec.ZipCode)
	require.NotNil(t, rec.OverallScore)
	assert.Equal(t, 62, *rec.OverallScore)

	want := map[string]int{
		"housing":        45,
		"neighborhood":   78,
		"transportation": 80,
		"environment":    51,
		"health":         60,
		"engagement":     57,
		"opportunity":    63,
	}
	for c, score := range want {
		require.NotNil(t, rec.Categories[c], "category %s", c)
		assert.Equal(t, score, *rec.Categories[c], "category %s", c)
	}

	require.NotNil(t, rec.Demographics.TotalPopulation)
	assert.Equal(t, int64(21102), *rec.Demographics.TotalPopulation)

	race := rec.Demographics.RaceEthnicity
	assert.Equal(t, "45%", race["White"])
	assert.Equal(t, "20%", race["Hispanic_Latino"])
	assert.Equal(t, "15%", race["Asian American"])
	assert.Equal(t, "<1%", race["Hawaiian"])
	assert.Equal(t, "9%", race["of the population with a disability"])
	assert.NotContains(t, race, "Population")
}

func TestParseInlineExample(t *testing.T) {
	p := NewParser(newTestLogger())
	rec := p.Parse("... Zip Code 10001 ... Overall Livability Score ... is 62 ...")

	require.NotNil(t, rec.ZipCode)
	assert.Equal(t, "10001", *rec.ZipCode)
	require.NotNil(t, rec.OverallScore)
	assert.Equal(t, 62, *rec.OverallScore)
}

func TestParseIsTotal(t *testing.T) {
	p := NewParser(newTestLogger())
	inputs := []string{
		"",
		"\n\n\n",
		"random text with no labels",
		"Zip Code\nOverall Livability Score is",
		"Housing\n0\n100\n",
		strings.Repeat("Population: ,,,", 50),
		"\x00\xff\xfe binary",
	}
	for _, in := range inputs {
		rec := p.Parse(in)
		require.NotNil(t, rec, "input %q", in)
		assert.Len(t, rec.Categories, len(models.Categories), "input %q", in)
		for _, c := range models.Categories {
			_, ok := rec.Categories[c]
			assert.True(t, ok, "category %s missing for input %q", c, in)
		}
		assert.NotNil(t, rec.Demographics.RaceEthnicity)
	}
}

func TestParseCategoryRequiresScaleMarker(t *testing.T) {
	p := NewParser(newTestLogger())
	rec := p.Parse("Housing\nAffordability and access\n45\nNeighborhood\nAccess\n0\n100\n70\n")

	assert.Nil(t, rec.Categories["housing"])
	require.NotNil(t, rec.Categories["neighborhood"])
	assert.Equal(t, 70, *rec.Categories["neighborhood"])
}

func TestParseCategoryCaseInsensitive(t *testing.T) {
	p := NewParser(newTestLogger())
	rec := p.Parse("HOUSING\nAffordability\n0\n100\n33\n")

	require.NotNil(t, rec.Categories["housing"])
	assert.Equal(t, 33, *rec.Categories["housing"])
}

func TestParseHandlesCRLF(t *testing.T) {
	p := NewParser(newTestLogger())
	text := strings.ReplaceAll(loadReport(t, "report_10001.txt"), "\n", "\r\n")
	rec := p.Parse(text)

	require.NotNil(t, rec.Categories["health"])
	assert.Equal(t, 60, *rec.Categories["health"])
	require.NotNil(t, rec.Demographics.TotalPopulation)
}

func TestParseScoreOutOfRange(t *testing.T) {
	tests := []struct {
		raw  string
		want *int
	}{
		{"0", intp(0)},
		{"100", intp(100)},
		{"101", nil},
		{"99999999999999999999", nil},
	}
	for _, tt := range tests {
		got := parseScore(tt.raw)
		assert.Equal(t, tt.want, got, "parseScore(%q)", tt.raw)
	}
}

func intp(n int) *int { return &n }
