// Package main is the notecanvas CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/notecanvas/internal/cli"
	"github.com/hyperjump/notecanvas/internal/config"
	"github.com/hyperjump/notecanvas/internal/embedding"
	"github.com/hyperjump/notecanvas/internal/indexer"
	"github.com/hyperjump/notecanvas/internal/keyword"
	"github.com/hyperjump/notecanvas/internal/metrics"
	"github.com/hyperjump/notecanvas/internal/models"
	"github.com/hyperjump/notecanvas/internal/related"
	"github.com/hyperjump/notecanvas/internal/server"
	"github.com/hyperjump/notecanvas/internal/storage"
	"github.com/hyperjump/notecanvas/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/notecanvas/config.yaml"
	defaultServerURL  = "http://localhost:8080"
	// poolLimit is the most notes fetched when the server pool is used as candidates.
	poolLimit = 500
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				cfg.ResolveAPIKey()
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	cfg.ResolveAPIKey()
	return cfg, path, nil
}

func main() {
	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "related":
		runRelated()
	case "add":
		runAdd()
	case "list":
		runList()
	case "find":
		runFind()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("notecanvas version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("provider", cfg.Embedding.Provider),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	srv := server.NewServer(
		components.Finder,
		components.Indexer,
		components.Storage,
		components.KeywordIndex,
		cfg,
		logger,
		server.WithCache(components.Cache),
		server.WithGatherer(components.Registry),
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument, so "notecanvas related \"some text\" -k 5" would
// otherwise leave -k unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word text works with or without quotes.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// readCandidates reads a JSON array of notes from path ("-" for stdin).
func readCandidates(path string) ([]models.ContentItem, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read candidates: %w", err)
	}
	var candidates []models.ContentItem
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil, fmt.Errorf("parse candidates: %w", err)
	}
	if candidates == nil {
		candidates = []models.ContentItem{}
	}
	return candidates, nil
}

func printRelatedUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: notecanvas related [flags] <source text>\n")
	fmt.Fprintf(fs.Output(), "       notecanvas related --note <id> [flags]\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Candidates come from --candidates (a JSON array of {"id","text"} objects, "-" for stdin)
or, when omitted, from the notes stored on the server.

Examples:
  notecanvas related the quick brown fox
  notecanvas related --note 3f2a9c1e
  notecanvas related --candidates notes.json --k 5 "meeting notes"
`)
}

func runRelated() {
	fs := flag.NewFlagSet("related", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	noteID := fs.String("note", "", "use the stored note with this id as the source")
	candidatesPath := fs.String("candidates", "", "JSON file of candidate notes (\"-\" for stdin)")
	k := fs.Int("k", 0, "number of results (0 = server default)")
	noCache := fs.Bool("no-cache", false, "do not reuse cached candidate embeddings")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printRelatedUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format := parseFormat(*outputFormat)
	client := cli.NewClient(*serverURL)
	ctx := context.Background()

	var (
		response *models.RelatedResponse
		err      error
	)
	if *noteID != "" {
		response, err = client.NoteRelated(ctx, *noteID, *k)
	} else {
		source := joinArgs(fs.Args())
		if source == "" {
			printRelatedUsage(fs)
			os.Exit(1)
		}
		query := &models.RelatedQuery{SourceText: source, K: *k}
		if *noCache {
			useCache := false
			query.UseCache = &useCache
		}
		if *candidatesPath != "" {
			query.Candidates, err = readCandidates(*candidatesPath)
		} else {
			query.Candidates, err = serverPool(ctx, client)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Loading candidates failed: %v\n", err)
			os.Exit(1)
		}
		response, err = client.Related(ctx, query)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Related search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRelatedResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func serverPool(ctx context.Context, client *cli.Client) ([]models.ContentItem, error) {
	list, err := client.ListNotes(ctx, 0, poolLimit)
	if err != nil {
		return nil, err
	}
	candidates := make([]models.ContentItem, 0, len(list.Notes))
	for _, n := range list.Notes {
		candidates = append(candidates, models.ContentItem{ID: n.ID, Text: n.Text})
	}
	return candidates, nil
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	id := fs.String("id", "", "note id (generated when empty)")
	label := fs.String("label", "", "source label")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	text := joinArgs(fs.Args())
	if text == "" {
		fmt.Println("Usage: notecanvas add [flags] <text>")
		os.Exit(1)
	}
	note, err := cli.NewClient(*serverURL).AddNote(context.Background(), &models.NoteInput{
		ID:          *id,
		Text:        text,
		SourceLabel: *label,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Note added: %s\n", note.ID)
}

func runList() {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	offset := fs.Int("offset", 0, "number of notes to skip")
	limit := fs.Int("limit", 20, "number of notes")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	list, err := cli.NewClient(*serverURL).ListNotes(context.Background(), *offset, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteNotes(os.Stdout, list, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runFind() {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := joinArgs(fs.Args())
	if query == "" {
		fmt.Println("Usage: notecanvas find [flags] <query>")
		os.Exit(1)
	}
	format := parseFormat(*outputFormat)
	client := cli.NewClient(*serverURL)
	ctx := context.Background()

	list, err := client.SearchNotes(ctx, query, *limit, *fuzzy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Find failed: %v\n", err)
		os.Exit(1)
	}
	// Auto-retry with fuzzy if nothing matched
	if !*fuzzy && len(list.Notes) == 0 {
		if fuzzyList, fuzzyErr := client.SearchNotes(ctx, query, *limit, true); fuzzyErr == nil && len(fuzzyList.Notes) > 0 {
			list = fuzzyList
		}
	}
	if err := cli.WriteNotes(os.Stdout, list, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: notecanvas delete [flags] <note-id>")
		os.Exit(1)
	}
	id := fs.Arg(0)
	if err := cli.NewClient(*serverURL).DeleteNote(context.Background(), id); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Note deleted: %s\n", id)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := parseFormat(*outputFormat)
	var status *models.StatusResponse
	if *serverURL != "" {
		res, err := cli.NewClient(*serverURL).Status(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	} else {
		res, err := directStatus(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// directStatus reads the note count straight from the database. Only safe when
// the server is not running, since the server holds the database open.
func directStatus(configPath string) (*models.StatusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	count, err := store.CountNotes(context.Background())
	if err != nil {
		return nil, err
	}
	return &models.StatusResponse{
		Notes: count,
		Config: &models.StatusConfig{
			Provider:   cfg.Embedding.Provider,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			DefaultK:   cfg.Related.DefaultK,
		},
	}, nil
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	KeywordIndex keyword.KeywordIndex
	Embedder     embedding.Embedder
	Cache        *embedding.Cache
	Registry     *prometheus.Registry
	Finder       *related.Finder
	Indexer      *indexer.Indexer
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Registry: prometheus.NewRegistry()}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	c.Indexer = indexer.NewIndexer(store, keywordIndex, indexer.WithLogger(logger))
	if n, err := c.Indexer.Reindex(context.Background()); err != nil {
		logger.Warn("keyword reindex failed", zap.Error(err))
	} else if n > 0 {
		logger.Info("keyword index rebuilt", zap.Int("notes", n))
	}

	m := metrics.New(c.Registry)
	embedder, err := embedding.NewFromConfig(cfg, embedding.WithLogger(logger), embedding.WithMetrics(m))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	if cfg.Cache.EnabledOrDefault() {
		c.Cache = embedding.NewCache(cfg.Cache.Capacity)
	}
	c.Finder = related.NewFinder(embedder, c.Cache, &cfg.Related,
		related.WithLogger(logger),
		related.WithMetrics(m),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`notecanvas - Related-note search for a canvas of notes

Usage:
  notecanvas server [flags]             Start the HTTP server
  notecanvas related [flags] <text>     Find notes related to text
  notecanvas related --note <id>        Find notes related to a stored note
  notecanvas add [flags] <text>         Add a note
  notecanvas list [flags]               List stored notes, newest first
  notecanvas find [flags] <query>       Keyword search over stored notes
  notecanvas delete [flags] <id>        Delete a note
  notecanvas status [flags]             Show note pool and cache status
  notecanvas version                    Show version
  notecanvas help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/notecanvas/config.yaml)
  --debug            Enable debug logging

Related Flags:
  --server string      Server URL (default: http://localhost:8080)
  --note string        Use a stored note as the source
  --candidates string  JSON file of candidate notes ("-" for stdin); default is the stored notes
  --k int              Number of results (default from server config)
  --no-cache           Do not reuse cached candidate embeddings
  --output string      Output format: text or json (default: text)

Add Flags:
  --id string        Note id (generated when empty)
  --label string     Source label

List Flags:
  --offset int       Notes to skip (default: 0)
  --limit int        Notes per page (default: 20)

Find Flags:
  --limit int        Number of results (default: 10)
  --fuzzy            Enable fuzzy matching for typo tolerance

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL. Use empty (--server "") for direct storage.
  --output string    Output format: text or json (default: text)

The OpenAI key is read from embedding.api_key or OPENAI_API_KEY (a .env file in
the working directory is loaded at startup).

Examples:
  notecanvas server
  notecanvas add --label inbox "Call the bakery about the cake"
  notecanvas related the quick brown fox
  notecanvas related --note 3f2a9c1e --output json
  notecanvas find --fuzzy bakrey
  notecanvas status --output json`)
}
