package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"livability-pipeline/models"
	"livability-pipeline/utils"
)

// ProgressReport is the processed/failed/remaining view of a checkpoint
// against an identifier list.
type ProgressReport struct {
	Total       int
	Processed   int
	Failed      int
	Remaining   int
	Percentage  float64
	LastUpdated time.Time
	FailedIDs   []string
}

// ScoredKey is one join key with its overall livability score.
type ScoredKey struct {
	Key   string `json:"key"`
	Score int    `json:"score"`
}

// CoverageReport lists dataset rows that still lack an overall livability
// score.
type CoverageReport struct {
	GeneratedAt            time.Time           `json:"generated_at"`
	TotalRecords           int                 `json:"total_records"`
	MissingLivabilityScore int                 `json:"missing_livability_score"`
	PercentageMissing      float64             `json:"percentage_missing"`
	AverageOverallScore    float64             `json:"average_overall_score"`
	TopScored              []ScoredKey         `json:"top_scored"`
	Records                []map[string]string `json:"records"`
}

// InsightService computes and renders progress and coverage reports.
type InsightService struct {
	logger *utils.Logger
}

// NewInsightService creates an InsightService with the given logger.
func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Progress computes counts for ids. Only ids in the list are counted, so a
// checkpoint shared across input files never yields negative remainders.
func (s *InsightService) Progress(state *models.CheckpointState, ids []string) *ProgressReport {
	r := &ProgressReport{Total: len(ids), LastUpdated: state.LastUpdated}
	for _, id := range ids {
		switch {
		case state.IsProcessed(id):
			r.Processed++
		case state.IsFailed(id):
			r.Failed++
			r.FailedIDs = append(r.FailedIDs, id)
		}
	}
	r.Remaining = r.Total - r.Processed
	if r.Total > 0 {
		r.Percentage = round2(float64(r.Processed) / float64(r.Total) * 100)
	}
	sort.Strings(r.FailedIDs)
	return r
}

// Coverage builds the missing-score report for a merged dataset. keyColumn
// names the join key used for the score ranking; columns selects which
// fields are copied into each missing record (absent columns are skipped).
func (s *InsightService) Coverage(t *models.Table, keyColumn string, columns []string) *CoverageReport {
	report := &CoverageReport{
		GeneratedAt:  time.Now(),
		TotalRecords: len(t.Rows),
		Records:      make([]map[string]string, 0),
	}

	scoreIdx := t.ColumnIndex(models.ColOverallScore)
	keyIdx := t.ColumnIndex(keyColumn)

	var picked []int
	for _, c := range columns {
		if i := t.ColumnIndex(c); i >= 0 {
			picked = append(picked, i)
		}
	}

	best := make(map[string]int)
	var total, scored int
	for _, row := range t.Rows {
		raw := ""
		if scoreIdx >= 0 {
			raw = strings.TrimSpace(row[scoreIdx])
		}
		score, err := strconv.ParseFloat(raw, 64)
		if raw == "" || err != nil || math.IsNaN(score) {
			rec := make(map[string]string, len(picked))
			for _, i := range picked {
				rec[t.Header[i]] = row[i]
			}
			report.Records = append(report.Records, rec)
			continue
		}

		total += int(score)
		scored++
		if keyIdx >= 0 {
			key := models.NormalizeID(row[keyIdx])
			if key != "" {
				best[key] = int(score)
			}
		}
	}

	report.MissingLivabilityScore = len(report.Records)
	if report.TotalRecords > 0 {
		report.PercentageMissing = round2(float64(report.MissingLivabilityScore) / float64(report.TotalRecords) * 100)
	}
	if scored > 0 {
		report.AverageOverallScore = round2(float64(total) / float64(scored))
	}

	for k, v := range best {
		report.TopScored = append(report.TopScored, ScoredKey{Key: k, Score: v})
	}
	sort.Slice(report.TopScored, func(i, j int) bool {
		if report.TopScored[i].Score != report.TopScored[j].Score {
			return report.TopScored[i].Score > report.TopScored[j].Score
		}
		return report.TopScored[i].Key < report.TopScored[j].Key
	})
	if len(report.TopScored) > 5 {
		report.TopScored = report.TopScored[:5]
	}

	s.logger.Info("[insights] %d/%d rows missing overall score (%.2f%%)",
		report.MissingLivabilityScore, report.TotalRecords, report.PercentageMissing)
	return report
}

// PrintProgress renders a progress report.
func (s *InsightService) PrintProgress(w io.Writer, r *ProgressReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("PROGRESS REPORT")
	t.AppendRows([]table.Row{
		{"Total identifiers", r.Total},
		{"Processed", fmt.Sprintf("%d (%.1f%%)", r.Processed, r.Percentage)},
		{"Failed", r.Failed},
		{"Remaining", r.Remaining},
		{"Last updated", formatUpdated(r.LastUpdated)},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(r.FailedIDs) > 0 {
		fmt.Fprintf(w, "  Failed identifiers: %s\n", strings.Join(r.FailedIDs, ", "))
		fmt.Fprintf(w, "  Re-run to retry failed identifiers.\n")
	}
}

// PrintCoverage renders the headline numbers of a coverage report.
func (s *InsightService) PrintCoverage(w io.Writer, r *CoverageReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("LIVABILITY COVERAGE")
	t.AppendRows([]table.Row{
		{"Total records", r.TotalRecords},
		{"Missing overall score", r.MissingLivabilityScore},
		{"Percentage missing", fmt.Sprintf("%.2f%%", r.PercentageMissing)},
		{"Average overall score", fmt.Sprintf("%.2f", r.AverageOverallScore)},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(r.TopScored) == 0 {
		return
	}
	top := table.NewWriter()
	top.SetOutputMirror(w)
	top.SetTitle("Top scored")
	top.AppendHeader(table.Row{"#", "Key", "Score"})
	for i, k := range r.TopScored {
		top.AppendRow(table.Row{i + 1, k.Key, k.Score})
	}
	top.SetStyle(table.StyleRounded)
	top.Render()
}

func formatUpdated(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format(time.RFC3339)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
