package main

import (
	"os"

	"github.com/spf13/cobra"

	"livability-pipeline/services"
	"livability-pipeline/storage"
	"livability-pipeline/utils"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Report merged rows that still lack a livability score",
	Long: `Reads the merged dataset and writes a JSON report of every row whose
overall livability score is missing, with summary statistics and the best
scored join keys.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := writeCoverageReport(cfg.Merge.MergeOutput(), cfg.Merge.JoinColumn,
			cfg.Report.Columns, cfg.Report.Path, logger)
		if err != nil {
			return err
		}
		services.NewInsightService(logger).PrintCoverage(os.Stdout, report)
		return nil
	},
}

func init() {
	f := reportCmd.Flags()
	f.String("report-path", "", "where to write the JSON report")
	bindFlags(f.Lookup, map[string]string{"report.path": "report-path"})
}

func writeCoverageReport(datasetPath, keyColumn string, columns []string, outPath string, logger *utils.Logger) (*services.CoverageReport, error) {
	t, err := storage.ReadTable(datasetPath)
	if err != nil {
		return nil, err
	}
	report := services.NewInsightService(logger).Coverage(t, keyColumn, columns)
	if err := storage.WriteJSON(outPath, report); err != nil {
		return nil, err
	}
	logger.Info("Coverage report written to %s", outPath)
	return report, nil
}
