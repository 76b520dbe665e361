// Package main is the titlenorm CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/titlenorm/internal/cli"
	"github.com/hyperjump/titlenorm/internal/config"
	"github.com/hyperjump/titlenorm/internal/extract"
	"github.com/hyperjump/titlenorm/internal/metrics"
	"github.com/hyperjump/titlenorm/internal/models"
	"github.com/hyperjump/titlenorm/internal/server"
	"github.com/hyperjump/titlenorm/internal/storage"
	"github.com/hyperjump/titlenorm/internal/watcher"
	"github.com/hyperjump/titlenorm/pkg/standardizer"
	"github.com/hyperjump/titlenorm/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/titlenorm/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// When the default path does not exist either, built-in defaults are returned with an
// empty resolved path. Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		runServer(args)
		return
	case "match":
		err = runMatch(args, os.Stdin, os.Stdout)
	case "standardize":
		err = runStandardize(args, os.Stdin, os.Stdout)
	case "lookup":
		err = runLookup(args, os.Stdout)
	case "build":
		err = runBuild(args, os.Stdout)
	case "history":
		err = runHistory(args, os.Stdout)
	case "status":
		err = runStatus(args, os.Stdout)
	case "config":
		err = runConfig(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("titlenorm version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage(os.Stdout)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "titlenorm match nurse -output json" would
// otherwise leave -output unparsed.
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

// joinArgs joins positional args with spaces so multi-word titles work the same with or
// without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// collectQueries returns the queries for match and standardize: one per positional
// argument, the contents of file when set, or stdin lines when neither is given.
func collectQueries(args []string, file string, stdin io.Reader) ([]string, error) {
	if file != "" {
		if len(args) > 0 {
			return nil, fmt.Errorf("use either -file or query arguments, not both")
		}
		return extract.NewExtractor().ExtractQueries(file)
	}
	var queries []string
	for _, a := range args {
		if q := strings.TrimSpace(a); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) > 0 || stdin == nil {
		return queries, nil
	}
	data, err := io.ReadAll(stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return extract.SplitLines(string(data)), nil
}

// components holds the in-process services a command needs.
type components struct {
	std     *standardizer.Standardizer
	history storage.History
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (c *components) Close() {
	if c.history != nil {
		_ = c.history.Close()
	}
	_ = c.logger.Sync()
}

func initializeComponents(cfg *config.Config, debug bool) (*components, error) {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c := &components{logger: logger}
	if cfg.Metrics.Enabled {
		c.metrics = metrics.New()
	}
	if cfg.History.Enabled {
		h, err := storage.NewSQLiteHistory(cfg.History.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize history: %w", err)
		}
		c.history = h
	}
	opts := standardizer.OptionsFromConfig(cfg)
	opts.Logger = logger
	opts.Metrics = c.metrics
	opts.History = c.history
	c.std = standardizer.New(opts)
	return c, nil
}

func openLocal(configPath string) (*config.Config, *components, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	c, err := initializeComponents(cfg, cfg.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, c, nil
}

func runServer(args []string) {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (index loads, reloads, watcher events, requests)")
	_ = fs.Parse(args)

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	c, err := initializeComponents(cfg, debugMode)
	if err != nil {
		fmt.Printf("Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()
	logger := c.logger

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("catalog", cfg.Catalog.Path),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.std.Reload(ctx); err != nil {
		logger.Fatal("Failed to load index", zap.Error(err))
	}
	st := c.std.Status()
	logger.Info("index ready",
		zap.Int("documents", st.Documents),
		zap.Int("terms", st.Terms),
		zap.String("index_path", st.IndexPath))

	if cfg.Catalog.Watch {
		if err := startCatalogWatcher(ctx, cfg.Catalog.Path, c.std, logger, debugMode); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(c.std, c.metrics, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// startCatalogWatcher reloads the standardizer whenever the catalog file changes. The
// bundled catalog cannot change, so an empty path is rejected.
func startCatalogWatcher(ctx context.Context, path string, std *standardizer.Standardizer, logger *zap.Logger, debug bool) error {
	if path == "" {
		return fmt.Errorf("catalog.watch requires catalog.path")
	}
	if !watcher.IsCatalogFile(path) {
		return fmt.Errorf("unsupported catalog file %q", path)
	}
	opts := []watcher.WatcherOption{}
	if debug {
		opts = append(opts, watcher.WithLogger(logger))
	}
	w, err := watcher.NewWatcher([]string{path}, func(p string) {
		logger.Info("catalog changed, reloading", zap.String("path", p))
		if err := std.Reload(ctx); err != nil {
			logger.Warn("catalog reload failed; keeping previous index", zap.Error(err))
		}
	}, opts...)
	if err != nil {
		return err
	}
	return w.Start(ctx)
}

func printMatchUsage(fs *flag.FlagSet, name string) {
	fmt.Fprintf(fs.Output(), "Usage: titlenorm %s [flags] [query ...]\n\n", name)
	fmt.Fprintf(fs.Output(), "Each argument is one query. With -file, queries are read from a document (one per line,\nparagraph or cell). With neither, queries are read from stdin, one per line.\n\n")
	fs.PrintDefaults()
}

func runMatch(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = match in-process)")
	file := fs.String("file", "", "read queries from a document (.txt, .csv, .pdf, .docx, .xlsx, .ods, .pptx, .odp, .odt, .rtf)")
	outputFormat := fs.String("output", "text", "output format: text, compact (\"<title> - <classification>\"), or json")
	record := fs.Bool("record", false, "store the batch in the match history")
	fs.Usage = func() { printMatchUsage(fs, "match") }
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if *serverURL != "" {
		client := cli.NewClient(*serverURL)
		var resp *models.MatchResponse
		if *file != "" && fs.NArg() == 0 {
			resp, err = client.MatchFile(ctx, *file, *record)
		} else {
			queries, qerr := collectQueries(fs.Args(), *file, stdin)
			if qerr != nil {
				return qerr
			}
			resp, err = client.Match(ctx, &models.MatchRequest{Queries: queries, Record: *record, Source: "cli"})
		}
		if err != nil {
			return fmt.Errorf("match failed: %w", err)
		}
		return cli.WriteMatchResults(stdout, resp, format)
	}

	queries, err := collectQueries(fs.Args(), *file, stdin)
	if err != nil {
		return err
	}
	req := models.MatchRequest{Queries: queries, Record: *record, Source: "cli"}
	if *file != "" {
		req.Source = "file:" + filepath.Base(*file)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	_, c, err := openLocal(*configPath)
	if err != nil {
		return err
	}
	defer c.Close()

	start := time.Now()
	results, err := c.std.Match(ctx, req.Queries)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}
	resp := &models.MatchResponse{Results: results}
	if req.Record {
		run, err := c.std.Record(ctx, req.Source, results)
		if err != nil {
			return fmt.Errorf("record failed: %w", err)
		}
		resp.RunID = run.ID
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return cli.WriteMatchResults(stdout, resp, format)
}

func runStandardize(args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("standardize", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = match in-process)")
	file := fs.String("file", "", "read queries from a document")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printMatchUsage(fs, "standardize") }
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	queries, err := collectQueries(fs.Args(), *file, stdin)
	if err != nil {
		return err
	}
	req := models.MatchRequest{Queries: queries}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	var values []string
	if *serverURL != "" {
		values, err = cli.NewClient(*serverURL).Standardize(ctx, queries)
	} else {
		_, c, openErr := openLocal(*configPath)
		if openErr != nil {
			return openErr
		}
		defer c.Close()
		values, err = c.std.Standardize(ctx, queries)
	}
	if err != nil {
		return fmt.Errorf("standardize failed: %w", err)
	}
	return cli.WriteStandardized(stdout, values, format)
}

func runLookup(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = in-process)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	title := joinArgs(fs.Args())
	if title == "" {
		return fmt.Errorf("usage: titlenorm lookup [flags] <title>")
	}

	var lookup *models.LookupResponse
	if *serverURL != "" {
		lookup, err = cli.NewClient(*serverURL).Lookup(context.Background(), title)
		if err != nil {
			return fmt.Errorf("lookup failed: %w", err)
		}
	} else {
		_, c, err := openLocal(*configPath)
		if err != nil {
			return err
		}
		defer c.Close()
		classification, code, known := c.std.Lookup(title)
		lookup = &models.LookupResponse{Title: title, Classification: classification, Code: code, Known: known}
		if !known {
			for _, sg := range c.std.Suggest(title, standardizer.DefaultSuggestions) {
				lookup.DidYouMean = append(lookup.DidYouMean, sg.Title)
			}
		}
	}
	return cli.WriteLookup(stdout, lookup, format)
}

func runBuild(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "ask a running server to reload instead of building in-process")
	force := fs.Bool("force", true, "rebuild even when the cached index matches the catalog")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var st *models.IndexStatus
	if *serverURL != "" {
		st, err = cli.NewClient(*serverURL).Reload(ctx, *force)
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
	} else {
		_, c, err := openLocal(*configPath)
		if err != nil {
			return err
		}
		defer c.Close()
		if *force {
			err = c.std.Rebuild(ctx)
		} else {
			err = c.std.Reload(ctx)
		}
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		status := c.std.Status()
		st = &status
	}
	return cli.WriteStatus(stdout, st, format)
}

func runStatus(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = load the index in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}

	var st *models.IndexStatus
	if *serverURL != "" {
		st, err = cli.NewClient(*serverURL).Status(context.Background())
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
	} else {
		_, c, err := openLocal(*configPath)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.std.Reload(context.Background()); err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		status := c.std.Status()
		st = &status
	}
	return cli.WriteStatus(stdout, st, format)
}

func runHistory(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the history database directly)")
	offset := fs.Int("offset", 0, "runs to skip")
	limit := fs.Int("limit", 20, "runs to list")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	if err := fs.Parse(argsReorder(args)); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		return err
	}
	runID := joinArgs(fs.Args())
	ctx := context.Background()

	if *serverURL != "" {
		client := cli.NewClient(*serverURL)
		if runID != "" {
			run, err := client.Run(ctx, runID)
			if err != nil {
				return fmt.Errorf("history failed: %w", err)
			}
			return cli.WriteMatchResults(stdout, &models.MatchResponse{RunID: run.ID, Results: run.Results}, format)
		}
		list, err := client.Runs(ctx, *offset, *limit)
		if err != nil {
			return fmt.Errorf("history failed: %w", err)
		}
		return cli.WriteRuns(stdout, list, format)
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled; set history.enabled in the config")
	}
	h, err := storage.NewSQLiteHistory(cfg.History.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer h.Close()

	if runID != "" {
		run, err := h.GetRun(ctx, runID)
		if err != nil {
			return fmt.Errorf("history failed: %w", err)
		}
		return cli.WriteMatchResults(stdout, &models.MatchResponse{RunID: run.ID, Results: run.Results}, format)
	}
	runs, err := h.ListRuns(ctx, *offset, *limit)
	if err != nil {
		return fmt.Errorf("history failed: %w", err)
	}
	total, err := h.CountRuns(ctx)
	if err != nil {
		return fmt.Errorf("history failed: %w", err)
	}
	return cli.WriteRuns(stdout, &models.RunList{Runs: runs, Total: total}, format)
}

func runConfig(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	write := fs.String("write", "", "write the effective configuration to this path instead of printing it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *write != "" {
		if err := config.Save(*write, cfg); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Config written: %s\n", *write)
		return nil
	}
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `titlenorm - Job title standardization with TF-IDF cosine matching

Usage:
  titlenorm server [flags]               Start the HTTP server
  titlenorm match [flags] [query ...]    Match titles to the catalog
  titlenorm standardize [flags] [query]  Print "<title> - <classification>" per query
  titlenorm lookup [flags] <title>       Show the classification of a catalog title
  titlenorm build [flags]                Build (or rebuild) the cached index
  titlenorm history [flags] [run-id]     List recorded match runs, or show one
  titlenorm status [flags]               Show index status
  titlenorm config [flags]               Print or write the effective configuration
  titlenorm version                      Show version
  titlenorm help                         Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/titlenorm/config.yaml,
                     or ./config.yaml when present; built-in defaults when neither exists)
  --server string    Server URL; empty runs in-process
  --output string    Output format: text, compact, or json (default: text)

Match Flags:
  --file string      Read queries from a document
  --record           Store the batch in the match history

Build Flags:
  --force            Rebuild even if the cached index is current (default: true)

Examples:
  titlenorm server --debug
  titlenorm match "Sr. Software Engineer" "RN"
  titlenorm match --file applicants.xlsx --output json
  cat titles.txt | titlenorm standardize
  titlenorm lookup Charge Nurse
  titlenorm build --force=false
  titlenorm history --server http://localhost:8080`)
}
