package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/bead-tracker/internal/backend"
	"github.com/zombor/bead-tracker/internal/extraction"
	"github.com/zombor/bead-tracker/internal/inbox"
	"github.com/zombor/bead-tracker/internal/legend"
	"github.com/zombor/bead-tracker/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// a missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env", "error", err)
	}

	fs := ff.NewFlagSet("bead-legend")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		dbPath        = fs.StringLong("db", "bead-legend.db", "Database file path")
		storagePath   = fs.StringLong("storage", "./legends", "Storage directory path")
		engine        = fs.StringLong("engine", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		tesseractLang = fs.StringLong("tesseract-lang", "eng", "Tesseract language")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL     = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel   = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		ocrTimeout    = fs.DurationLong("ocr-timeout", 60*time.Second, "Timeout for each OCR pass (0 disables)")
		backendURL    = fs.StringLong("backend-url", "", "Bead project tracker API base URL, e.g. http://localhost:3000/api (optional)")
		watchDir      = fs.StringLong("watch-dir", "", "Directory to watch for new legend images (optional)")
		authUser      = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass      = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		debug         = fs.BoolLong("debug", "Enable debug logging")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("BEAD_LEGEND"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	open, err := newOpener(*engine, *tesseractLang, *geminiKey, *geminiModel, *ollamaURL, *ollamaModel)
	if err != nil {
		slog.Error("Failed to configure OCR engine", "error", err)
		os.Exit(1)
	}
	extractor := legend.NewExtractor(open, *ocrTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A positional image runs a single extraction and prints the result
	if args := fs.GetArgs(); len(args) > 0 {
		if err := extractOnce(ctx, extractor, args[0]); err != nil {
			slog.Error("Extraction failed", "file", args[0], "error", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, extractor, config{
		port:        *port,
		dbPath:      *dbPath,
		storagePath: *storagePath,
		backendURL:  *backendURL,
		watchDir:    *watchDir,
		auth:        extraction.BasicAuth{Username: *authUser, Password: *authPass},
	}); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}

type config struct {
	port        int
	dbPath      string
	storagePath string
	backendURL  string
	watchDir    string
	auth        extraction.BasicAuth
}

// newOpener picks the OCR engine
func newOpener(engine, tesseractLang, geminiKey, geminiModel, ollamaURL, ollamaModel string) (scanning.Opener, error) {
	switch engine {
	case "tesseract":
		slog.Info("Using Tesseract", "language", tesseractLang)
		return scanning.TesseractOpener(tesseractLang), nil
	case "gemini":
		apiKey := geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Using Gemini", "model", geminiModel)
		return scanning.GeminiOpener(apiKey, geminiModel), nil
	case "ollama":
		slog.Info("Using Ollama", "url", ollamaURL, "model", ollamaModel)
		return scanning.OllamaOpener(ollamaURL, ollamaModel), nil
	}
	return nil, fmt.Errorf("invalid engine %q, valid: tesseract, gemini or ollama", engine)
}

// extractOnce reads one image file and writes its colour list to stdout as JSON
func extractOnce(ctx context.Context, extractor *legend.Extractor, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := legend.Decode(data, scanning.ContentTypeFromExt(filepath.Ext(path)))
	if err != nil {
		return err
	}
	result, err := extractor.Extract(ctx, img)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Colors []extraction.Color `json:"colors"`
	}{Colors: extraction.Swatches(result.Colors)})
}

// serve runs the HTTP API, and the inbox watcher when configured, until ctx ends
func serve(ctx context.Context, extractor *legend.Extractor, cfg config) error {
	slog.Info("Initializing database...")
	db, err := extraction.NewBoltDB(cfg.dbPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	slog.Info("Initializing storage...")
	store, err := extraction.NewLocalStorage(cfg.storagePath)
	if err != nil {
		return fmt.Errorf("initializing storage: %w", err)
	}

	var tracker extraction.Backend
	if cfg.backendURL != "" {
		slog.Info("Using project tracker", "url", cfg.backendURL)
		tracker = backend.NewClient(cfg.backendURL, nil)
	}

	service := extraction.NewService(db, extractor, store, tracker)
	server := extraction.NewServer(service, cfg.auth)
	if cfg.auth.Username != "" || cfg.auth.Password != "" {
		slog.Info("Basic auth enabled", "user", cfg.auth.Username)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx, fmt.Sprintf(":%d", cfg.port))
	})

	if cfg.watchDir != "" {
		watcher := inbox.NewWatcher(cfg.watchDir, func(ctx context.Context, path string) error {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			contentType := scanning.ContentTypeFromExt(filepath.Ext(path))
			_, err = service.ProcessLegend(ctx, filepath.Base(path), data, contentType, nil)
			return err
		})
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	return g.Wait()
}
