package services

import (
	"regexp"
	"strconv"
	"strings"

	"livability-pipeline/models"
	"livability-pipeline/utils"
)

var (
	// zipRegexp captures the digits after the "Zip Code" heading
	zipRegexp = regexp.MustCompile(`Zip Code\s+(\d+)`)
	// overallRegexp captures the first number after "Overall Livability Score ... is"
	overallRegexp = regexp.MustCompile(`(?s)Overall Livability Score.*?is\s+(\d+)`)
	// populationRegexp captures a thousands-separated count after "Population:"
	populationRegexp = regexp.MustCompile(`Population:\s*(\d[\d,]*)`)
	// raceRegexp captures "<Label>: <value>%" pairs, value on the same or next line
	raceRegexp = regexp.MustCompile(`([A-Za-z /]+):[ \t]*\n?[ \t]*([\d<.]+%)`)

	categoryRegexps = buildCategoryRegexps()
)

// buildCategoryRegexps matches a category heading line, one description line,
// the "0" and "100" scale markers, then the score.
func buildCategoryRegexps() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(models.Categories))
	for _, c := range models.Categories {
		out[c] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(c) +
			`[ \t]*\n[^\n]*\n[ \t]*0[ \t]*\n[ \t]*100[ \t]*\n[ \t]*(\d+)`)
	}
	return out
}

// Parser turns report text into LivabilityRecords.
type Parser struct {
	logger *utils.Logger
}

// NewParser creates a Parser with the given logger.
func NewParser(logger *utils.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse extracts a record from raw report text. It never fails: fields that
// cannot be found stay nil, and every category key is always present.
func (p *Parser) Parse(text string) *models.LivabilityRecord {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	rec := models.NewLivabilityRecord()

	if m := zipRegexp.FindStringSubmatch(text); m != nil {
		zip := m[1]
		rec.ZipCode = &zip
	}

	if m := overallRegexp.FindStringSubmatch(text); m != nil {
		rec.OverallScore = parseScore(m[1])
	}

	for c, re := range categoryRegexps {
		if m := re.FindStringSubmatch(text); m != nil {
			rec.Categories[c] = parseScore(m[1])
		}
	}

	if m := populationRegexp.FindStringSubmatch(text); m != nil {
		if n, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64); err == nil && n >= 0 {
			rec.Demographics.TotalPopulation = &n
		}
	}

	for _, m := range raceRegexp.FindAllStringSubmatch(text, -1) {
		label := normaliseLabel(m[1])
		if label == "" {
			continue
		}
		rec.Demographics.RaceEthnicity[label] = m[2]
	}

	if p.logger != nil {
		p.logger.Debug("[parser] zip=%s overall=%s categories=%d race=%d",
			strPtr(rec.ZipCode), intPtr(rec.OverallScore), countScores(rec), len(rec.Demographics.RaceEthnicity))
	}
	return rec
}

// parseScore keeps only values on the 0-100 scale.
func parseScore(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 100 {
		return nil
	}
	return &n
}

// normaliseLabel trims a race/ethnicity label and replaces "/" so it can be
// used as a column fragment.
func normaliseLabel(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "_")
}

func countScores(r *models.LivabilityRecord) int {
	n := 0
	for _, v := range r.Categories {
		if v != nil {
			n++
		}
	}
	return n
}

func strPtr(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func intPtr(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}
