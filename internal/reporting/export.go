package reporting

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Output file names written by WriteFiles.
const (
	FileMarkdown   = "report.md"
	FileOperations = "operations.csv"
	FileActivity   = "activity.csv"
	FileWorkbook   = "report.xlsx"
)

// WriteFiles writes every report format into dir and returns the paths
// written.
func WriteFiles(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	writers := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FileMarkdown, func(w io.Writer) error {
			_, err := io.WriteString(w, RenderMarkdown(r))
			return err
		}},
		{FileOperations, func(w io.Writer) error { return WriteOperationsCSV(w, r.Operations) }},
		{FileActivity, func(w io.Writer) error { return WriteActivityCSV(w, r.Activity) }},
		{FileWorkbook, func(w io.Writer) error { return WriteXLSX(w, r) }},
	}

	paths := make([]string, 0, len(writers))
	for _, wr := range writers {
		var buf bytes.Buffer
		if err := wr.write(&buf); err != nil {
			return paths, fmt.Errorf("render %s: %w", wr.name, err)
		}
		path := filepath.Join(dir, wr.name)
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
