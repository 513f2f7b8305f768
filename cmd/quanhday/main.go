// Package main is the quanhday CLI entry point.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/quanhday/internal/catalog"
	"github.com/hyperjump/quanhday/internal/chat"
	"github.com/hyperjump/quanhday/internal/cli"
	"github.com/hyperjump/quanhday/internal/config"
	"github.com/hyperjump/quanhday/internal/geocode"
	"github.com/hyperjump/quanhday/internal/intent"
	"github.com/hyperjump/quanhday/internal/keyword"
	"github.com/hyperjump/quanhday/internal/models"
	"github.com/hyperjump/quanhday/internal/orchestrator"
	"github.com/hyperjump/quanhday/internal/search"
	"github.com/hyperjump/quanhday/internal/server"
	"github.com/hyperjump/quanhday/internal/storage"
	"github.com/hyperjump/quanhday/internal/watcher"
	"github.com/hyperjump/quanhday/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var version = "dev"

const defaultConfigPath = "/usr/local/etc/quanhday/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; values in it are picked up by config.ApplyEnv
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "nearby":
		runNearby()
	case "live":
		runLive()
	case "upcoming":
		runUpcoming()
	case "parse":
		runParse()
	case "search":
		runSearch()
	case "chat":
		runChat()
	case "get":
		runGet()
	case "import":
		runImport()
	case "find":
		runFind()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("quanhday version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// reorderArgs moves any flags (and their values) that appear after positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops
// at the first non-flag argument, so "quanhday search quán cafe --lat 21" would
// otherwise leave --lat unparsed.
func reorderArgs(args []string) []string {
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

func parseFormat(s string) (cli.OutputFormat, error) {
	switch s {
	case "text", "":
		return cli.OutputText, nil
	case "json":
		return cli.OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json: %w", s, models.ErrInvalidArgument)
	}
}

// parseCoordinate parses --lat/--lng. Both empty returns nil; one without the other is invalid.
func parseCoordinate(lat, lng string) (*models.Coordinate, error) {
	if lat == "" && lng == "" {
		return nil, nil
	}
	if lat == "" || lng == "" {
		return nil, fmt.Errorf("--lat and --lng must be given together: %w", models.ErrInvalidArgument)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", lat, models.ErrInvalidArgument)
	}
	lo, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", lng, models.ErrInvalidArgument)
	}
	c := &models.Coordinate{Latitude: la, Longitude: lo}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// commonFlags are shared by the query subcommands.
type commonFlags struct {
	config *string
	format *string
	debug  *bool
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		config: fs.String("config", defaultConfigPath, "config file path"),
		format: fs.String("format", "text", "output format: text or json"),
		debug:  fs.Bool("debug", false, "enable debug logging"),
	}
}

type coordFlags struct {
	lat *string
	lng *string
}

func addCoordFlags(fs *flag.FlagSet) coordFlags {
	return coordFlags{
		lat: fs.String("lat", "", "latitude (default: location.latitude from config)"),
		lng: fs.String("lng", "", "longitude (default: location.longitude from config)"),
	}
}

// resolve returns the flag coordinate, else the configured device location.
func (c coordFlags) resolve(ctx context.Context, locator geocode.Locator) (*models.Coordinate, error) {
	coord, err := parseCoordinate(*c.lat, *c.lng)
	if err != nil || coord != nil {
		return coord, err
	}
	return locator.CurrentCoordinate(ctx)
}

// session bundles what a direct (non-server) subcommand needs.
type session struct {
	cfg        *config.Config
	format     cli.OutputFormat
	logger     *zap.Logger
	components *Components
}

func openSession(common commonFlags) *session {
	format, err := parseFormat(*common.format)
	if err != nil {
		fatalf("%v", err)
	}
	cfg, _, err := loadConfig(*common.config)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *common.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		_ = logger.Sync()
		fatalf("Failed to initialize: %v", err)
	}
	return &session{cfg: cfg, format: format, logger: logger, components: components}
}

func (s *session) Close() {
	s.components.Close()
	_ = s.logger.Sync()
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (catalog changes, store queries, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.String("store", cfg.Storage.Driver),
		zap.Bool("debug", debugMode),
	)

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Storage.KeywordIndexPath != "" {
		n, err := components.Keyword.Sync(ctx, components.Store)
		if err != nil {
			logger.Warn("keyword index sync failed", zap.Error(err))
		} else {
			logger.Info("keyword index synced", zap.Int("entries", n))
		}
	}

	watchSvc := watcher.New(components.Importer, &cfg.Catalog, watcher.WithLogger(logger))
	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if cfg.Catalog.Watch {
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}
	stats := watchSvc.Sync()
	logger.Info("catalog synced",
		zap.Int("files", stats.Files),
		zap.Int("locations", stats.Locations),
		zap.Int("events", stats.Events),
		zap.Int("rejected", stats.Rejected))

	deps := server.Dependencies{
		Nearby:    components.Engine,
		Parser:    components.Parser,
		Searcher:  components.Orchestrator,
		Assistant: components.Assistant,
		Keyword:   components.Keyword,
		Locator:   components.Locator,
		Store:     components.Store,
	}
	if components.Geocoder != nil {
		deps.Geocoder = components.Geocoder
	}
	if cfg.Catalog.Watch {
		deps.Watch = watchSvc
	}
	srv := server.NewServer(deps, cfg, resolvedConfigPath, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	watchSvc.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runNearby() {
	fs := flag.NewFlagSet("nearby", flag.ExitOnError)
	common := addCommonFlags(fs)
	coord := addCoordFlags(fs)
	collection := fs.String("collection", models.CollectionLocations, "collection to search: locations or events")
	radius := fs.Float64("radius", 0, "search radius in km (default: search.default_radius_km)")
	category := fs.String("category", "", "exact category to match")
	_ = fs.Parse(os.Args[2:])

	s := openSession(common)
	defer s.Close()
	ctx := context.Background()
	center, err := coord.resolve(ctx, s.components.Locator)
	if err != nil {
		fatalf("Location unavailable: %v", err)
	}
	results, err := s.components.Engine.FindNearby(ctx, *collection, *center, *radius, *category)
	if err != nil {
		fatalf("Nearby search failed: %v", err)
	}
	if err := cli.WriteResults(os.Stdout, results, s.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runLive() {
	fs := flag.NewFlagSet("live", flag.ExitOnError)
	common := addCommonFlags(fs)
	coord := addCoordFlags(fs)
	radius := fs.Float64("radius", 0, "search radius in km (default: search.default_radius_km)")
	category := fs.String("category", "", "exact category to match")
	_ = fs.Parse(os.Args[2:])

	s := openSession(common)
	defer s.Close()
	ctx := context.Background()
	center, err := coord.resolve(ctx, s.components.Locator)
	if err != nil {
		fatalf("Location unavailable: %v", err)
	}
	results, err := s.components.Engine.LiveEventsNearby(ctx, *center, *radius, *category)
	if err != nil {
		fatalf("Live events search failed: %v", err)
	}
	if err := cli.WriteResults(os.Stdout, results, s.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runUpcoming() {
	fs := flag.NewFlagSet("upcoming", flag.ExitOnError)
	common := addCommonFlags(fs)
	limit := fs.Int("limit", 0, "number of events (default: search.upcoming_limit)")
	_ = fs.Parse(os.Args[2:])

	s := openSession(common)
	defer s.Close()
	events, err := s.components.Engine.UpcomingEvents(context.Background(), *limit)
	if err != nil {
		fatalf("Upcoming events failed: %v", err)
	}
	if err := cli.WriteEvents(os.Stdout, events, s.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runParse() {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	text := joinArgs(fs.Args())
	if text == "" {
		fatalf("Usage: quanhday parse [flags] <text>")
	}
	f, err := parseFormat(*format)
	if err != nil {
		fatalf("%v", err)
	}
	if err := cli.WriteIntent(os.Stdout, intent.NewParser().Parse(text), f); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	common := addCommonFlags(fs)
	coord := addCoordFlags(fs)
	serverURL := fs.String("server", "", "server URL; empty uses direct store access")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	text := joinArgs(fs.Args())
	if text == "" {
		fatalf("Usage: quanhday search [flags] <text>")
	}

	if *serverURL != "" {
		format, err := parseFormat(*common.format)
		if err != nil {
			fatalf("%v", err)
		}
		c, err := parseCoordinate(*coord.lat, *coord.lng)
		if err != nil {
			fatalf("%v", err)
		}
		outcome, err := searchViaHTTP(*serverURL, text, c)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
		if err := cli.WriteOutcome(os.Stdout, outcome, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	s := openSession(common)
	defer s.Close()
	ctx := context.Background()
	c, err := coord.resolve(ctx, s.components.Locator)
	if err != nil && !errors.Is(err, models.ErrPermissionDenied) {
		fatalf("%v", err)
	}
	in := s.components.Parser.Parse(text)
	outcome := s.components.Orchestrator.HandleSearchIntent(ctx, in, c)
	if err := cli.WriteOutcome(os.Stdout, outcome, s.format); err != nil {
		fatalf("Output failed: %v", err)
	}
	if !outcome.Success {
		s.Close()
		os.Exit(1)
	}
}

type searchRequest struct {
	Text      string   `json:"text"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lng,omitempty"`
}

type searchReply struct {
	*models.SearchOutcome
	Error string `json:"error,omitempty"`
}

func searchViaHTTP(serverURL, text string, c *models.Coordinate) (*models.SearchOutcome, error) {
	req := searchRequest{Text: text}
	if c != nil {
		req.Latitude, req.Longitude = &c.Latitude, &c.Longitude
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	reply := searchReply{SearchOutcome: &models.SearchOutcome{}}
	if err := json.Unmarshal(b, &reply); err != nil || reply.Message == "" {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if reply.Error != "" {
		reply.Err = errors.New(reply.Error)
	}
	return reply.SearchOutcome, nil
}

func runChat() {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	common := addCommonFlags(fs)
	coord := addCoordFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	s := openSession(common)
	defer s.Close()
	ctx := context.Background()
	c, err := coord.resolve(ctx, s.components.Locator)
	if err != nil && !errors.Is(err, models.ErrPermissionDenied) {
		fatalf("%v", err)
	}
	sessionID := "cli"

	send := func(message string) {
		reply, err := s.components.Assistant.Send(ctx, sessionID, message, c)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Chat failed: %v\n", err)
			return
		}
		if err := cli.WriteReply(os.Stdout, reply, s.format); err != nil {
			fatalf("Output failed: %v", err)
		}
	}

	if msg := joinArgs(fs.Args()); msg != "" {
		send(msg)
		return
	}
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return
		case "/reset":
			s.components.Assistant.Reset(sessionID)
		default:
			send(line)
		}
		fmt.Print("> ")
	}
}

func runGet() {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 2 {
		fatalf("Usage: quanhday get [flags] <locations|events> <id>")
	}
	collection, id := fs.Arg(0), fs.Arg(1)

	s := openSession(common)
	defer s.Close()
	ctx := context.Background()
	switch collection {
	case models.CollectionLocations:
		l, err := s.components.Engine.GetLocation(ctx, id)
		if err != nil {
			fatalf("Lookup failed: %v", err)
		}
		if l == nil {
			fatalf("Location not found: %s", id)
		}
		if err := cli.WriteLocation(os.Stdout, l, s.format); err != nil {
			fatalf("Output failed: %v", err)
		}
	case models.CollectionEvents:
		ev, err := s.components.Engine.GetEvent(ctx, id)
		if err != nil {
			fatalf("Lookup failed: %v", err)
		}
		if ev == nil {
			fatalf("Event not found: %s", id)
		}
		if err := cli.WriteEvent(os.Stdout, ev, s.format); err != nil {
			fatalf("Output failed: %v", err)
		}
	default:
		fatalf("Unknown collection %q; use locations or events", collection)
	}
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fatalf("Usage: quanhday import [flags] <file-or-directory>...")
	}

	s := openSession(common)
	defer s.Close()
	ctx := context.Background()
	total := &catalog.Stats{}
	failed := false
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fatalf("Failed to stat path: %v", err)
		}
		var stats *catalog.Stats
		if info.IsDir() {
			stats, err = s.components.Importer.ImportDirectory(ctx, path, s.cfg.Catalog.Extensions, s.cfg.Catalog.RecursiveOrDefault())
		} else {
			// an explicitly named file is imported whatever its extension
			stats, err = s.components.Importer.ImportFile(ctx, path)
		}
		total.Add(stats)
		if err != nil {
			failed = true
			fmt.Fprintf(os.Stderr, "Import %s: %v\n", path, err)
		}
	}
	if err := cli.WriteImport(os.Stdout, total, s.format); err != nil {
		fatalf("Output failed: %v", err)
	}
	if failed {
		s.Close()
		os.Exit(1)
	}
}

func runFind() {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	common := addCommonFlags(fs)
	collection := fs.String("collection", "", "restrict to locations or events")
	limit := fs.Int("limit", 10, "number of matches")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	text := joinArgs(fs.Args())
	if text == "" {
		fatalf("Usage: quanhday find [flags] <text>")
	}

	s := openSession(common)
	defer s.Close()
	res, err := s.components.Keyword.Search(context.Background(), text, *collection, *limit)
	if err != nil {
		fatalf("Find failed: %v", err)
	}
	if err := cli.WriteFind(os.Stdout, res, s.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Locations      int    `json:"locations"`
	Events         int    `json:"events"`
	DiskUsageBytes int64  `json:"disk_usage_bytes"`
	KeywordEntries uint64 `json:"keyword_entries"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	common := addCommonFlags(fs)
	serverURL := fs.String("server", "", "server URL; empty uses direct store access")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		format, err := parseFormat(*common.format)
		if err != nil {
			fatalf("%v", err)
		}
		status, err := statusViaHTTP(*serverURL)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
		stats := &storage.Stats{Locations: status.Locations, Events: status.Events, DiskBytes: status.DiskUsageBytes}
		if err := cli.WriteStats(os.Stdout, stats, status.KeywordEntries, format); err != nil {
			fatalf("Output failed: %v", err)
		}
		return
	}

	s := openSession(common)
	defer s.Close()
	stats, err := storage.CollectStats(context.Background(), s.components.Store, s.cfg.Storage.DatabasePath, s.cfg.Storage.KeywordIndexPath)
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	entries, _ := s.components.Keyword.DocCount()
	if err := cli.WriteStats(os.Stdout, stats, entries, s.format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// runConfig prints the effective configuration, or manages catalog directories on a running server.
func runConfig() {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL for catalog subcommands")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	switch fs.Arg(0) {
	case "", "show":
		cfg, resolved, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		fmt.Printf("# %s\n", resolved)
		if err := writeConfig(os.Stdout, cfg); err != nil {
			fatalf("Output failed: %v", err)
		}
	case "catalog":
		if err := catalogDirectories(*serverURL, fs.Args()[1:]); err != nil {
			fatalf("%v", err)
		}
	default:
		fatalf("Usage: quanhday config [show | catalog <list|add|remove> [path]]")
	}
}

// writeConfig writes cfg as YAML with secrets masked.
func writeConfig(w io.Writer, cfg *config.Config) error {
	masked := *cfg
	if masked.Chat.APIKey != "" {
		masked.Chat.APIKey = "********"
	}
	if masked.Storage.Redis.Password != "" {
		masked.Storage.Redis.Password = "********"
	}
	if masked.Storage.Postgres.URL != "" {
		if u, err := url.Parse(masked.Storage.Postgres.URL); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				u.User = url.UserPassword(u.User.Username(), "********")
				masked.Storage.Postgres.URL = u.String()
			}
		}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&masked); err != nil {
		return err
	}
	return enc.Close()
}

func catalogDirectories(serverURL string, args []string) error {
	endpoint := serverURL + "/api/v1/catalog/directories"
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		resp, err := http.Get(endpoint)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("list failed (%d): %s", resp.StatusCode, string(b))
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("parse failed: %w", err)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	case "add":
		if len(args) < 2 {
			return errors.New("usage: quanhday config catalog add <path>")
		}
		path, _ := filepath.Abs(args[1])
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("add failed (%d): %s", resp.StatusCode, string(b))
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if len(args) < 2 {
			return errors.New("usage: quanhday config catalog remove <path>")
		}
		path, _ := filepath.Abs(args[1])
		req, _ := http.NewRequest(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("remove failed (%d): %s", resp.StatusCode, string(b))
		}
		fmt.Printf("Removed: %s\n", path)
	default:
		return fmt.Errorf("unknown catalog subcommand: %s", sub)
	}
	return nil
}

// Components holds initialized services.
type Components struct {
	Store        storage.Store
	Keyword      *keyword.BleveIndex
	Engine       *search.Engine
	Parser       *intent.Parser
	Orchestrator *orchestrator.Orchestrator
	Assistant    *chat.Assistant
	Importer     *catalog.Importer
	Geocoder     *geocode.Nominatim
	Locator      geocode.Locator
}

func (c *Components) Close() {
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath, keyword.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	if cfg.Storage.KeywordIndexPath == "" {
		// a memory-only index starts empty
		if _, err := keywordIndex.Sync(ctx, store); err != nil {
			logger.Warn("keyword index sync failed", zap.Error(err))
		}
	}

	engine := search.NewEngine(store, &cfg.Search, search.WithLogger(logger))
	parser := intent.NewParser(intent.WithDefaultRadius(cfg.Search.DefaultRadiusKm))
	orch := orchestrator.New(engine, &cfg.Search, orchestrator.WithLogger(logger))

	c := &Components{
		Store:        store,
		Keyword:      keywordIndex,
		Engine:       engine,
		Parser:       parser,
		Orchestrator: orch,
		Importer:     catalog.NewImporter(store, catalog.WithLogger(logger), catalog.WithKeywordIndex(keywordIndex)),
		Locator:      geocode.StaticLocator{Coordinate: cfg.Location.Coordinate()},
	}

	var describer chat.Describer = geocode.RawDescriber{}
	if cfg.Geocode.EnabledOrDefault() {
		c.Geocoder = geocode.NewNominatim(&cfg.Geocode, geocode.WithLogger(logger))
		describer = c.Geocoder
	}

	backend, err := chat.NewBackend(&cfg.Chat)
	if err != nil {
		logger.Warn("chat backend unavailable, replies fall back to search results",
			zap.String("backend", cfg.Chat.Backend), zap.Error(err))
		backend = chat.OfflineBackend{}
	}
	c.Assistant = chat.NewAssistant(backend, parser, orch,
		chat.WithLogger(logger),
		chat.WithSystemPrompt(cfg.Chat.SystemPrompt),
		chat.WithHistoryTurns(cfg.Chat.HistoryTurns),
		chat.WithDescriber(describer),
	)
	return c, nil
}

func printUsage() {
	fmt.Println(`quanhday - Find places and events around you

Usage:
  quanhday server [flags]                    Start the HTTP server
  quanhday nearby [flags]                    List locations or events within a radius
  quanhday live [flags]                      List events happening now nearby
  quanhday upcoming [flags]                  List events that have not started yet
  quanhday parse <text>                      Show the intent parsed from Vietnamese text
  quanhday search [flags] <text>             Parse text and search around you
  quanhday chat [flags] [message]            Talk to the assistant (interactive without a message)
  quanhday get [flags] <locations|events> <id>   Show one location or event
  quanhday import [flags] <path>...          Import catalog files or directories
  quanhday find [flags] <text>               Keyword lookup by name or description
  quanhday status [flags]                    Show store and index counts
  quanhday config [show | catalog ...]       Show config or manage catalog directories
  quanhday version                           Show version
  quanhday help                              Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/quanhday/config.yaml)
  --format string    Output format: text or json (default: text)
  --debug            Enable debug logging

Location Flags (nearby, live, search, chat):
  --lat, --lng       Coordinate to search around (default: location.* from config)
  --radius float     Radius in km (default: search.default_radius_km)
  --category string  Exact category to match

Examples:
  quanhday server
  quanhday nearby --lat 21.0285 --lng 105.8542 --radius 2 --category "Quán Cafe"
  quanhday live --lat 21.0285 --lng 105.8542
  quanhday upcoming --limit 5
  quanhday parse "tìm quán cafe gần đây trong 5km"
  quanhday search --lat 21.0285 --lng 105.8542 "có sự kiện âm nhạc nào không"
  quanhday chat "gợi ý quán ăn gần tôi"
  quanhday import ./catalog
  quanhday find --collection locations "phở"
  quanhday status --format json
  quanhday config catalog add /path/to/catalog`)
}
