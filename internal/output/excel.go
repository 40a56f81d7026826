package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// ExcelSink writes records to a single worksheet with a bold header row.
// The workbook is built in memory and saved on Close; Flush is a no-op
// because excelize does not support incremental saves of an open workbook.
type ExcelSink struct {
	file   *excelize.File
	path   string
	sheet  string
	row    int
	closed bool
}

// NewExcelSink creates the workbook and header row.
func NewExcelSink(path, sheet string) (*ExcelSink, error) {
	if path == "" {
		return nil, fmt.Errorf("Excel output file is required")
	}
	if sheet == "" {
		sheet = "Records"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file := excelize.NewFile()
	index, err := file.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}
	file.SetActiveSheet(index)
	if sheet != "Sheet1" {
		if err := file.DeleteSheet("Sheet1"); err != nil {
			return nil, fmt.Errorf("failed to drop default sheet: %w", err)
		}
	}

	s := &ExcelSink{file: file, path: path, sheet: sheet, row: 1}
	if err := s.writeHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ExcelSink) writeHeader() error {
	styleID, err := s.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, name := range records.FieldOrder {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := s.file.SetCellValue(s.sheet, cell, name); err != nil {
			return fmt.Errorf("failed to write header cell: %w", err)
		}
		if err := s.file.SetCellStyle(s.sheet, cell, cell, styleID); err != nil {
			return fmt.Errorf("failed to style header cell: %w", err)
		}
	}
	return nil
}

// Write appends one record row.
func (s *ExcelSink) Write(record *records.MergedRecord) error {
	s.row++
	row := record.Row()
	for i, name := range records.FieldOrder {
		cell, err := excelize.CoordinatesToCellName(i+1, s.row)
		if err != nil {
			return fmt.Errorf("failed to compute cell: %w", err)
		}
		if err := s.file.SetCellValue(s.sheet, cell, row[name]); err != nil {
			return fmt.Errorf("failed to write cell: %w", err)
		}
	}
	return nil
}

// Flush is a no-op; the workbook is saved once on Close.
func (s *ExcelSink) Flush() error {
	return nil
}

// Close applies the auto filter and saves the workbook.
func (s *ExcelSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.row > 1 {
		lastCol, err := excelize.ColumnNumberToName(len(records.FieldOrder))
		if err == nil {
			rangeRef := fmt.Sprintf("A1:%s%d", lastCol, s.row)
			if err := s.file.AutoFilter(s.sheet, rangeRef, nil); err != nil {
				s.file.Close()
				return fmt.Errorf("failed to set auto filter: %w", err)
			}
		}
	}

	if err := s.file.SaveAs(s.path); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return s.file.Close()
}
