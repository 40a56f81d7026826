package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// CSVSink streams records to a CSV file with the canonical column layout.
type CSVSink struct {
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewCSVSink creates the output file (and its directory) and writes the
// header row immediately so even an empty run leaves a valid file.
func NewCSVSink(path string) (*CSVSink, error) {
	if path == "" {
		return nil, fmt.Errorf("CSV output file is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(records.FieldOrder); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	return &CSVSink{file: file, writer: writer}, nil
}

// Write appends one record row.
func (s *CSVSink) Write(record *records.MergedRecord) error {
	row := record.Row()
	values := make([]string, len(records.FieldOrder))
	for i, name := range records.FieldOrder {
		values[i] = row[name]
	}
	if err := s.writer.Write(values); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	return nil
}

// Flush forces buffered rows to disk.
func (s *CSVSink) Flush() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return s.file.Sync()
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return s.file.Close()
}
