// Package report renders course progress as an XLSX workbook.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

// Sheet is the name of the progress worksheet.
const Sheet = "Progress"

// ContentType is the MIME type of the workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var fixedHeaders = []string{"User ID", "Started", "Completed", "Total", "Overall %"}

// ProgressWorkbook builds a workbook with one row per enrolled user and one
// column per chapter of the live course tree. Users without a record show
// as not started.
func ProgressWorkbook(c *course.Course, records []progress.Record) (*excelize.File, error) {
	byUser := make(map[string]*progress.Record, len(records))
	for i := range records {
		byUser[records[i].UserID] = &records[i]
	}

	type column struct{ chapterID, label string }
	var chapters []column
	for _, s := range c.Sections {
		for _, ch := range s.Chapters {
			chapters = append(chapters, column{ch.ChapterID, s.SectionTitle + " / " + ch.Title})
		}
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", Sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, 0, len(fixedHeaders)+len(chapters))
	for _, h := range fixedHeaders {
		header = append(header, h)
	}
	for _, col := range chapters {
		header = append(header, col.label)
	}
	if err := f.SetSheetRow(Sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, e := range c.Enrollments {
		rec, started := byUser[e.UserID]
		if !started {
			rec = &progress.Record{UserID: e.UserID}
		}
		done := completedChapters(rec)

		completed := 0
		cells := make([]any, 0, len(chapters))
		for _, col := range chapters {
			if done[col.chapterID] {
				completed++
				cells = append(cells, "Yes")
			} else {
				cells = append(cells, "")
			}
		}

		row := []any{e.UserID, yesNo(started), completed, len(chapters), progress.Overall(c, rec)}
		row = append(row, cells...)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(Sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row for %s: %w", e.UserID, err)
		}
	}

	if err := styleHeader(f, len(header)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Write renders the workbook for c to w.
func Write(w io.Writer, c *course.Course, records []progress.Record) error {
	f, err := ProgressWorkbook(c, records)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func styleHeader(f *excelize.File, columns int) error {
	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(columns, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(Sheet, "A1", last, style)
}

func completedChapters(r *progress.Record) map[string]bool {
	done := make(map[string]bool)
	for _, s := range r.Sections {
		for _, ch := range s.Chapters {
			if ch.Completed {
				done[ch.ChapterID] = true
			}
		}
	}
	return done
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
