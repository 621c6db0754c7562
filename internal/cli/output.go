// Package cli provides the HTTP client and output formatting used by the notecanvas command.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/hyperjump/notecanvas/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRelatedResults writes related notes to w in the given format.
func WriteRelatedResults(w io.Writer, response *models.RelatedResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		fmt.Fprintf(w, "No related notes (%dms)\n", response.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "\nFound %d related notes in %dms\n\n", len(response.Results), response.QueryTime)
	for i, r := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s  (similarity %.4f)\n", i+1, r.ID, r.Similarity)
		fmt.Fprintf(w, "%s\n\n", r.Preview)
	}
	return nil
}

// WriteNotes writes a list of notes to w in the given format.
func WriteNotes(w io.Writer, list *models.NoteList, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, list)
	}
	fmt.Fprintf(w, "%d of %d notes\n", len(list.Notes), list.Total)
	for _, n := range list.Notes {
		label := ""
		if n.SourceLabel != "" {
			label = " [" + n.SourceLabel + "]"
		}
		fmt.Fprintf(w, "%s%s  %s\n", n.ID, label, utils.Truncate(n.Text, 60))
	}
	return nil
}

// WriteStatus writes server status to w in the given format.
func WriteStatus(w io.Writer, status *models.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	fmt.Fprintf(w, "notes:          %d   # notes in the pool\n", status.Notes)
	fmt.Fprintf(w, "cache_entries:  %d   # cached candidate embeddings\n", status.CacheEntries)
	if status.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		fmt.Fprintf(w, "provider:       %s\n", status.Config.Provider)
		if status.Config.Model != "" {
			fmt.Fprintf(w, "model:          %s\n", status.Config.Model)
		}
		if status.Config.Dimensions > 0 {
			fmt.Fprintf(w, "embedding_dims: %d\n", status.Config.Dimensions)
		}
		fmt.Fprintf(w, "default_k:      %d\n", status.Config.DefaultK)
	}
	return nil
}
