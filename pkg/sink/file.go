package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"igleads/pkg/models"
	"igleads/pkg/storage"
)

// CSVSink appends one row per lead and flushes after every row, so a crash
// loses at most the lead being written
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	closed bool
}

// NewCSVSink opens name in the storage directory for appending. The header
// is written only when the file is new.
func NewCSVSink(store *storage.Manager, name string) (*CSVSink, error) {
	f, empty, err := store.Open(name)
	if err != nil {
		return nil, err
	}

	s := &CSVSink{file: f, writer: csv.NewWriter(f)}
	if empty {
		if err := s.write(Columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	return s, nil
}

func (s *CSVSink) Emit(_ context.Context, lead models.ClassifiedLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.write(Row(lead)); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	return nil
}

func (s *CSVSink) write(record []string) error {
	if err := s.writer.Write(record); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.writer.Flush()
	flushErr := s.writer.Error()
	if err := s.file.Close(); err != nil {
		return err
	}
	return flushErr
}

// JSONLSink writes one JSON object per line
type JSONLSink struct {
	mu     sync.Mutex
	file   *os.File
	enc    *json.Encoder
	closed bool
}

// NewJSONLSink opens name in the storage directory for appending
func NewJSONLSink(store *storage.Manager, name string) (*JSONLSink, error) {
	f, _, err := store.Open(name)
	if err != nil {
		return nil, err
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLSink{file: f, enc: enc}, nil
}

func (s *JSONLSink) Emit(_ context.Context, lead models.ClassifiedLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.enc.Encode(lead); err != nil {
		return fmt.Errorf("failed to write JSON line: %w", err)
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// ExportBatch writes leads as a complete CSV file in one atomic step
func ExportBatch(store *storage.Manager, name string, leads []models.ClassifiedLead) error {
	return store.WriteAtomic(name, func(w io.Writer) error {
		return WriteCSV(w, leads)
	})
}

// WriteCSV writes the header and one row per lead to w
func WriteCSV(w io.Writer, leads []models.ClassifiedLead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, lead := range leads {
		if err := cw.Write(Row(lead)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
