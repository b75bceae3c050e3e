package render

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/MimeLyc/study-assistant/internal/jobs"
)

// ExportXLSX returns a workbook with one sheet per result section. Rows keep
// backend order.
func ExportXLSX(result *jobs.Result, labels *Labels) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("no result to export")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	summary := labels.T("Summary")
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := make([][]any, 0, len(result.BulletPoints))
	for _, bp := range result.BulletPoints {
		rows = append(rows, []any{bp.Point, bp.ImportanceLevel})
	}
	if err := writeSheet(f, summary, []string{labels.T("Point"), labels.T("Importance")}, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(summary, "A", "A", 80)
	_ = f.SetColWidth(summary, "B", "B", 14)

	quiz := labels.T("Quiz")
	rows = rows[:0]
	for _, q := range result.QuizQuestions {
		rows = append(rows, []any{q.Question, q.OptionA, q.OptionB, q.OptionC, q.OptionD, q.CorrectAnswer, q.Explanation})
	}
	headers := []string{
		labels.T("Question"),
		labels.T("Option A"), labels.T("Option B"), labels.T("Option C"), labels.T("Option D"),
		labels.T("Correct answer"),
		labels.T("Explanation"),
	}
	if err := writeSheet(f, quiz, headers, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(quiz, "A", "A", 60)
	_ = f.SetColWidth(quiz, "B", "E", 28)
	_ = f.SetColWidth(quiz, "F", "F", 16)
	_ = f.SetColWidth(quiz, "G", "G", 60)

	cards := labels.T("Flashcards")
	rows = rows[:0]
	for _, fc := range result.Flashcards {
		rows = append(rows, []any{fc.Front, fc.Back, fc.Category})
	}
	if err := writeSheet(f, cards, []string{labels.T("Front"), labels.T("Back"), labels.T("Category")}, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(cards, "A", "B", 50)
	_ = f.SetColWidth(cards, "C", "C", 20)

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any) error {
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("create sheet %s: %w", sheet, err)
		}
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return nil
}
