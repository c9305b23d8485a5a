package models

import "time"

// RaceColumns are the fixed race/ethnicity output columns, keyed by the
// normalized report label they are filled from.
var RaceColumns = []struct {
	Label  string
	Column string
}{
	{"american", "race_american"},
	{"asian_american", "race_asian_american"},
	{"hispanic_latino", "race_hispanic_latino"},
	{"white", "race_white"},
	{"american_indian_alaska_native", "race_american_indian_alaska_native"},
	{"hawaiian", "race_hawaiian"},
	{"two_or_more_races", "race_two_or_more_races"},
	{"some_other_race", "race_some_other_race"},
	{"of_the_population_with_a_disability", "race_of_the_population_with_a_disability"},
	{"of_the_population_with_income_below_poverty", "race_of_the_population_with_income_below_poverty"},
}

const (
	ColIdentifier    = "identifier"
	ColZipCode       = "zip_code"
	ColOverallScore  = "overall_livability_score"
	ColPopulation    = "total_population"
	ColSource        = "source"
	ColError         = "error"
	ColProcessedDate = "processed_date"
)

// RowSource says where the record behind an output row came from.
type RowSource string

const (
	SourceGateway RowSource = "gateway"
	SourceCache   RowSource = "cache"
	SourceError   RowSource = "error"
)

// CategoryColumn returns the output column for a category score.
func CategoryColumn(category string) string { return category + "_score" }

// LivabilityColumns are the record-derived columns written by both the batch
// output and the dataset merger.
func LivabilityColumns() []string {
	cols := []string{ColOverallScore}
	for _, c := range Categories {
		cols = append(cols, CategoryColumn(c))
	}
	cols = append(cols, ColPopulation)
	for _, rc := range RaceColumns {
		cols = append(cols, rc.Column)
	}
	return cols
}

// OutputColumns is the header of the batch output dataset.
func OutputColumns() []string {
	cols := []string{ColIdentifier, ColZipCode}
	cols = append(cols, LivabilityColumns()...)
	return append(cols, ColSource, ColError, ColProcessedDate)
}

// OutputRow is one appended line of the batch output dataset.
type OutputRow struct {
	Identifier  string
	Values      map[string]string
	Source      RowSource
	Error       string
	ProcessedAt time.Time
}

// Strings projects the row onto columns. Missing values are empty.
func (r *OutputRow) Strings(columns []string) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		switch col {
		case ColIdentifier:
			out[i] = r.Identifier
		case ColSource:
			out[i] = string(r.Source)
		case ColError:
			out[i] = r.Error
		case ColProcessedDate:
			out[i] = r.ProcessedAt.Format("2006-01-02T15:04:05.000000")
		default:
			out[i] = r.Values[col]
		}
	}
	return out
}
