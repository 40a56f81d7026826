package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mpetrenko/RecordHarvester/pkg/records"
)

// JSONLSink streams records as one JSON object per line. Unlike the tabular
// sinks it carries the merge provenance (sources, conflicts, sightings).
type JSONLSink struct {
	file   *os.File
	buf    *bufio.Writer
	enc    *json.Encoder
	closed bool
}

// NewJSONLSink creates the output file and its directory.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" {
		return nil, fmt.Errorf("JSONL output file is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create JSONL file: %w", err)
	}

	buf := bufio.NewWriter(file)
	return &JSONLSink{file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Write appends one record line.
func (s *JSONLSink) Write(record *records.MergedRecord) error {
	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return nil
}

// Flush forces buffered lines to disk.
func (s *JSONLSink) Flush() error {
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush JSONL: %w", err)
	}
	return s.file.Sync()
}

// Close flushes and closes the file.
func (s *JSONLSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.buf.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to flush JSONL: %w", err)
	}
	return s.file.Close()
}
