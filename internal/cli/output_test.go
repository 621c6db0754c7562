package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/notecanvas/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"compact", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v, wantErr=%v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWriteRelatedResults_Text(t *testing.T) {
	resp := &models.RelatedResponse{
		Results: []*models.RankedResult{
			{ID: "b", Text: "A fast fox jumps", Preview: "A fast fox jumps...", Similarity: 0.5},
			{ID: "c", Text: "cooking", Preview: "cooking...", Similarity: 0.1},
		},
		QueryTime: 12,
	}
	var buf bytes.Buffer
	if err := WriteRelatedResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 related notes in 12ms", "1. b  (similarity 0.5000)", "A fast fox jumps...", "2. c"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRelatedResults_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRelatedResults(&buf, &models.RelatedResponse{Results: []*models.RankedResult{}}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No related notes") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteRelatedResults_JSON(t *testing.T) {
	resp := &models.RelatedResponse{
		Results:   []*models.RankedResult{{ID: "b", Preview: "x...", Similarity: 0.25}},
		QueryTime: 3,
	}
	var buf bytes.Buffer
	if err := WriteRelatedResults(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.RelatedResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded.Results) != 1 || decoded.Results[0].ID != "b" || decoded.QueryTime != 3 {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestWriteNotes_Text(t *testing.T) {
	list := &models.NoteList{
		Notes: []*models.ContentItem{
			{ID: "n1", Text: "short note", SourceLabel: "inbox"},
			{ID: "n2", Text: strings.Repeat("long ", 30)},
		},
		Total: 5,
	}
	var buf bytes.Buffer
	if err := WriteNotes(&buf, list, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 of 5 notes") {
		t.Errorf("missing header:\n%s", out)
	}
	if !strings.Contains(out, "n1 [inbox]  short note") {
		t.Errorf("missing labelled note:\n%s", out)
	}
	if !strings.Contains(out, "...") {
		t.Errorf("long note should be truncated:\n%s", out)
	}
}

func TestWriteStatus_Text(t *testing.T) {
	status := &models.StatusResponse{
		Notes:        4,
		CacheEntries: 2,
		Config:       &models.StatusConfig{Provider: "mock", Dimensions: 16, DefaultK: 3},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, status, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"notes:          4", "cache_entries:  2", "provider:       mock", "embedding_dims: 16", "default_k:      3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "model:") {
		t.Errorf("empty model should be omitted:\n%s", out)
	}
}
