package worker

import (
	"github.com/dkarlovi/babelshot/internal/models"
)

// ReportToJSONB flattens the terminal per-task outcomes for the batch's
// results column. Every requested task keeps its slot, success or failure,
// so the served report never drops one.
func ReportToJSONB(report *models.BatchReport) models.JSONB {
	if report == nil {
		return nil
	}

	j := models.JSONB{
		"successful": report.Successful,
		"failed":     report.Failed,
		"results":    report.Results,
	}
	if len(report.TranslationDegraded) > 0 {
		j["translationDegraded"] = report.TranslationDegraded
	}
	return j
}
