package models

import "time"

// Categories is the fixed, ordered set of livability categories scored in a report.
var Categories = []string{
	"housing",
	"neighborhood",
	"transportation",
	"environment",
	"health",
	"engagement",
	"opportunity",
}

// LivabilityRecord is the structured form of one livability report.
// JSON field names match the files written by the legacy scraper so older
// cache files decode without conversion.
type LivabilityRecord struct {
	ZipCode      *string         `json:"zip_code"`
	OverallScore *int            `json:"overall_livability_score"`
	Categories   map[string]*int `json:"categories"`
	Demographics Demographics    `json:"demographics"`
}

// Demographics holds the population breakdown of a report.
type Demographics struct {
	TotalPopulation *int64            `json:"total_population,omitempty"`
	RaceEthnicity   map[string]string `json:"race_ethnicity"`
}

// NewLivabilityRecord returns an empty record with every category key present.
func NewLivabilityRecord() *LivabilityRecord {
	r := &LivabilityRecord{
		Categories:   make(map[string]*int, len(Categories)),
		Demographics: Demographics{RaceEthnicity: make(map[string]string)},
	}
	for _, c := range Categories {
		r.Categories[c] = nil
	}
	return r
}

// Normalize fills in any missing category keys and nil maps. Records decoded
// from disk go through this so downstream flattening never sees a gap.
func (r *LivabilityRecord) Normalize() {
	if r.Categories == nil {
		r.Categories = make(map[string]*int, len(Categories))
	}
	for _, c := range Categories {
		if _, ok := r.Categories[c]; !ok {
			r.Categories[c] = nil
		}
	}
	if r.Demographics.RaceEthnicity == nil {
		r.Demographics.RaceEthnicity = make(map[string]string)
	}
}

// ResolvedZip returns the zip code found in the report, falling back to the
// identifier the report was requested for.
func (r *LivabilityRecord) ResolvedZip(id string) string {
	if r.ZipCode != nil && *r.ZipCode != "" {
		return *r.ZipCode
	}
	return id
}

// CacheEntry is one stored snapshot of a record.
type CacheEntry struct {
	Identifier  string    `json:"identifier"`
	RetrievedAt time.Time `json:"retrieved_at"`
	LivabilityRecord
	RawText string `json:"raw_text,omitempty"`
}
