package export

import (
	"bytes"
	"fmt"
	"time"

	"timed-quiz-service/internal/domain"

	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding exported results.
const SheetName = "Results"

// ContentType is the MIME type of the exported workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var resultHeaders = []string{
	"Rank", "User", "User ID", "Quiz", "Category", "Score", "Total", "Percentage", "Status", "Time Taken (s)", "Submitted At",
}

// ResultsWorkbook renders results, in the order given, as an .xlsx workbook.
// Rank is the 1-based row position, so callers pass leaderboard order.
func ResultsWorkbook(results []domain.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}

	for i, header := range resultHeaders {
		if err := setCell(f, i, 1, header); err != nil {
			return nil, err
		}
	}

	for rowIndex, r := range results {
		row := []interface{}{
			rowIndex + 1,
			r.UserName,
			r.UserID,
			r.QuizTitle,
			r.Category,
			r.Score,
			r.Total,
			r.Percentage,
			string(r.Verdict),
			timeTaken(r.TimeTaken),
			r.CreatedAt.UTC().Format(time.RFC3339),
		}
		for colIndex, value := range row {
			if err := setCell(f, colIndex, rowIndex+2, value); err != nil {
				return nil, err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	return f.SetCellValue(SheetName, cell, value)
}

func timeTaken(seconds *int) interface{} {
	if seconds == nil {
		return ""
	}
	return *seconds
}
