package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/garyjia/claims-intake/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sheetName = "Manager Review"

var headers = []string{
	"Intake ID", "Form Type", "Veteran File Number", "User ID",
	"Started At", "Completed At", "Status", "Error Code", "Cancel Reason", "Cancel Other",
}

// Exporter writes the manager-review queue to an Excel workbook.
// Intake managers consume these exports in their weekly triage.
type Exporter struct {
	outputDir string
	logger    *zap.Logger
}

// NewExporter creates a new report exporter.
func NewExporter(outputDir string, logger *zap.Logger) *Exporter {
	return &Exporter{
		outputDir: outputDir,
		logger:    logger,
	}
}

// Export writes one row per flagged intake and returns the path of the
// generated workbook.
func (e *Exporter) Export(intakes []*models.Intake, generatedAt time.Time) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return "", fmt.Errorf("failed to build header cell name: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			return "", fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, in := range intakes {
		row := i + 2
		values := []interface{}{
			in.ID,
			string(in.Type),
			in.VeteranFileNumber,
			in.UserID,
			formatTime(in.StartedAt),
			formatTime(in.CompletedAt),
			string(in.CompletionStatus),
			in.ErrorCode,
			in.CancelReason,
			in.CancelOther,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return "", fmt.Errorf("failed to build cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return "", fmt.Errorf("failed to write intake row: %w", err)
			}
		}
	}

	outputPath := filepath.Join(e.outputDir,
		fmt.Sprintf("manager_review_%s.xlsx", generatedAt.Format("20060102_150405")))
	if err := f.SaveAs(outputPath); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	e.logger.Info("Manager review report exported",
		zap.String("path", outputPath),
		zap.Int("intakes", len(intakes)))
	return outputPath, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
