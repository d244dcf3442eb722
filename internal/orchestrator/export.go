package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// ExportFormat represents supported export formats
type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
)

// ResultExport is an ingestion result with per-source counts for export
type ResultExport struct {
	SourceID   string   `json:"source_id"`
	Kind       string   `json:"kind"`
	Title      string   `json:"title"`
	ChunkCount int      `json:"chunk_count"`
	CharCount  int      `json:"char_count"`
	Chunks     []string `json:"chunks"`
}

// ExportResults writes ingestion results in the given format
func ExportResults(results []IngestResult, format string, writer io.Writer) error {
	exportFormat := ExportFormat(strings.ToLower(format))
	if exportFormat != FormatJSON {
		return fmt.Errorf("unsupported export format: %s (supported: json)", format)
	}

	exports := make([]ResultExport, len(results))
	for i, r := range results {
		exports[i] = summarizeResult(r)
	}
	return exportJSON(exports, writer)
}

func summarizeResult(r IngestResult) ResultExport {
	chars := 0
	for _, c := range r.Content {
		chars += utf8.RuneCountInString(c)
	}
	chunks := r.Content
	if chunks == nil {
		chunks = []string{}
	}
	return ResultExport{
		SourceID:   r.SourceID,
		Kind:       r.Kind,
		Title:      r.Title,
		ChunkCount: len(r.Content),
		CharCount:  chars,
		Chunks:     chunks,
	}
}

// exportJSON writes results as indented JSON
func exportJSON(exports []ResultExport, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(exports)
}
