// Package batch reads the JSON action file and writes the CSV result file.
package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/devplatform/edir-lifecycle/internal/models"
)

// Read decodes a batch document
func Read(r io.Reader) ([]models.ActionRequest, error) {
	var doc models.Batch
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}
	if doc.UserActions == nil {
		return nil, fmt.Errorf("failed to parse batch: missing \"useractions\" list")
	}
	return doc.UserActions, nil
}

// ReadFile opens and decodes a batch file
func ReadFile(path string) ([]models.ActionRequest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Writer streams outcomes as CSV rows. Every row is flushed immediately so
// the file reflects completed actions even if the run is interrupted.
type Writer struct {
	w *csv.Writer
}

// NewWriter writes the header row and returns a writer for outcomes
func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"action", "username", "result"}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &Writer{w: cw}, nil
}

// Write records one outcome
func (w *Writer) Write(o *models.Outcome) error {
	if err := w.w.Write([]string{o.Action, o.Username, o.Result()}); err != nil {
		return fmt.Errorf("failed to write result row: %w", err)
	}
	w.w.Flush()
	return w.w.Error()
}
