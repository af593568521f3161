package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// sheetWriter appends rows to the sheets of one workbook.
type sheetWriter struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

func newSheetWriter() *sheetWriter {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		bold = 0
	}
	return &sheetWriter{file: f, bold: bold}
}

// addSheet starts a new sheet; the first call renames the default one.
func (w *sheetWriter) addSheet(name string) error {
	if len(name) > 31 {
		name = name[:31]
	}
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet: %w", err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

func (w *sheetWriter) header(columns ...string) error {
	row := make([]interface{}, len(columns))
	for i, c := range columns {
		row[i] = c
	}
	if err := w.write(row); err != nil {
		return err
	}
	if w.bold != 0 {
		start, _ := excelize.CoordinatesToCellName(1, w.row-1)
		end, _ := excelize.CoordinatesToCellName(len(columns), w.row-1)
		_ = w.file.SetCellStyle(w.sheet, start, end, w.bold)
	}
	return nil
}

func (w *sheetWriter) write(row []interface{}) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &row); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

func (w *sheetWriter) skip() {
	w.row++
}

func (w *sheetWriter) save(out io.Writer) error {
	return w.file.Write(out)
}

func (w *sheetWriter) close() error {
	return w.file.Close()
}
