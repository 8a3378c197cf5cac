package events

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/oshokin/homee/internal/domain/home"
)

// csvHeader is the first row of every activity log.
//
//nolint:gochecknoglobals // Read-only column list.
var csvHeader = []string{"timestamp", "datetime_utc", "kind", "source", "id", "detail"}

const (
	csvFilePermissions = 0o644
	csvDirPermissions  = 0o755
)

// CSVWriter appends events to a CSV activity log.
type CSVWriter struct {
	// path is the filesystem location of the log.
	path string
	// mu serializes file access between the dispatcher and dashboard export/clear.
	mu sync.Mutex
}

// NewCSVWriter creates a writer for path. The file is created on first write.
func NewCSVWriter(path string) *CSVWriter {
	return &CSVWriter{
		path: filepath.Clean(path),
	}
}

// Name implements Writer.
func (w *CSVWriter) Name() string {
	return "csv"
}

// Path returns the log location.
func (w *CSVWriter) Path() string {
	return w.path
}

// Write appends ev, writing the header first when the file is new or empty.
func (w *CSVWriter) Write(_ context.Context, ev home.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), csvDirPermissions); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, csvFilePermissions)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	cw := csv.NewWriter(f)

	if info.Size() == 0 {
		_ = cw.Write(csvHeader)
	}

	_ = cw.Write(record(ev))
	cw.Flush()

	if err = cw.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write log row: %w", err)
	}

	if err = f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}

	return nil
}

// Export copies the log to dst. A missing or empty log exports just the header.
func (w *CSVWriter) Export(dst io.Writer) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.Open(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return writeHeader(dst)
	}

	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat log file: %w", err)
	}

	if info.Size() == 0 {
		return writeHeader(dst)
	}

	if _, err = io.Copy(dst, f); err != nil {
		return fmt.Errorf("copy log file: %w", err)
	}

	return nil
}

// Truncate removes every row, keeping the file in place.
func (w *CSVWriter) Truncate() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := os.Truncate(w.path, 0)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("truncate log file: %w", err)
	}

	return nil
}

func writeHeader(dst io.Writer) error {
	cw := csv.NewWriter(dst)
	_ = cw.Write(csvHeader)
	cw.Flush()

	return cw.Error()
}

func record(ev home.Event) []string {
	ts := ev.Timestamp.UTC()

	return []string{
		strconv.FormatInt(ts.Unix(), 10),
		ts.Format(time.RFC3339),
		string(ev.Kind),
		ev.Source,
		ev.ID,
		ev.Detail(),
	}
}
