package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"tocscan/selection"
	"tocscan/toc"
)

// OutputFile is the complete JSON output structure
type OutputFile struct {
	ReportingEntityName string            `json:"reporting_entity_name"`
	ReportingEntityType string            `json:"reporting_entity_type"`
	LastUpdatedOn       string            `json:"last_updated_on"`
	ExtractedAt         string            `json:"extracted_at"`
	TotalFiles          int               `json:"total_files"`
	Files               []selection.Entry `json:"files"`
}

// WriteJSON writes entries and the TOC metadata as an indented JSON document.
func WriteJSON(w io.Writer, meta toc.Metadata, entries []selection.Entry) error {
	if entries == nil {
		entries = []selection.Entry{}
	}
	output := OutputFile{
		ReportingEntityName: meta.ReportingEntityName,
		ReportingEntityType: meta.ReportingEntityType,
		LastUpdatedOn:       meta.LastUpdatedOn,
		ExtractedAt:         time.Now().UTC().Format(time.RFC3339),
		TotalFiles:          len(entries),
		Files:               entries,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
