package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/hyperjump/notecanvas/internal/related"
	"go.uber.org/zap"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after text are moved first",
			args:     []string{"the quick brown fox", "-k", "5"},
			expected: []string{"-k", "5", "the quick brown fox"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "5", "the quick brown fox"},
			expected: []string{"-k", "5", "the quick brown fox"},
		},
		{
			name:     "text only returns unchanged",
			args:     []string{"the quick brown fox"},
			expected: []string{"the quick brown fox"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"one", "two", "-label", "inbox"},
			expected: []string{"-label", "inbox", "one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"fox"}, "fox"},
		{"multiple words", []string{"quick", "fox"}, "quick fox"},
		{"single quoted phrase", []string{"quick fox"}, "quick fox"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinArgs(tt.args); got != tt.expected {
				t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestReadCandidates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "candidates.json")
	content := `[{"id":"a","text":"The quick brown fox"},{"id":"b","text":"A fast fox jumps"}]`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	got, err := readCandidates(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []models.ContentItem{{ID: "a", Text: "The quick brown fox"}, {ID: "b", Text: "A fast fox jumps"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("readCandidates() = %+v, want %+v", got, want)
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`null`), 0600); err != nil {
		t.Fatal(err)
	}
	got, err = readCandidates(empty)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("null candidates should become an empty slice, got %v", got)
	}

	if _, err := readCandidates(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
storage:
  database_path: "./notes.db"
embedding:
  provider: mock
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_resolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Embedding.APIKey != "sk-from-env" {
		t.Errorf("api key = %q, want it from the environment", cfg.Embedding.APIKey)
	}
}

func TestInitializeComponents_Mock(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./notes.db"
  bleve_index_path: "./bleve"
embedding:
  provider: mock
  dimensions: 16
cache:
  capacity: 10
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	c, err := initializeComponents(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("initializeComponents: %v", err)
	}
	defer c.Close()

	if c.Cache == nil || c.Finder == nil || c.Indexer == nil {
		t.Fatalf("components not wired: %+v", c)
	}
	ctx := context.Background()
	if _, err := c.Indexer.AddNote(ctx, &models.NoteInput{ID: "a", Text: "quick brown fox"}); err != nil {
		t.Fatal(err)
	}
	pool, err := c.Storage.AllNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Finder.FindRelated(ctx, "a fox", pool, related.Options{K: 3, UseCache: true}); err != nil {
		t.Fatalf("FindRelated: %v", err)
	}
	if c.Cache.Len() != 1 {
		t.Errorf("cache entries = %d, want 1", c.Cache.Len())
	}
	families, err := c.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) == 0 {
		t.Error("expected metrics to be registered")
	}
}
