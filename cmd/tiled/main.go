// tiled serves tile documents over HTTP for a local rendering surface.
//
// Each container named on the command line, a local path or an
// http(s) URL, is opened, indexed, and registered under an authority
// derived from its name. Resources are then available at
// http://<listen>/<authority>/<path>.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"
	"golang.org/x/sync/errgroup"

	"github.com/tiledocs/tile"
	"github.com/tiledocs/tile/httpserve"
)

type config struct {
	Listen   string `json:"listen"`
	Verify   bool   `json:"verify"`
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "tiled: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("tiled", pflag.ContinueOnError)
	listen := flags.String("listen", "127.0.0.1:8537", "address to serve tile resources on")
	configPath := flags.String("config", "", "optional JSONC config file")
	logLevel := flags.String("log-level", "info", "log level (debug, info, warn, error)")
	logJSON := flags.Bool("log-json", false, "log JSON instead of text on stderr")
	logFile := flags.String("log-file", "", "also append JSON logs to this file")
	verify := flags.Bool("verify", false, "verify block digests against their content identifiers")
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: tiled [flags] <container>...\n\n")
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("no container files given")
	}

	cfg := config{Listen: *listen, Verify: *verify, LogLevel: *logLevel, LogFile: *logFile}
	if *configPath != "" {
		if err := loadConfig(*configPath, &cfg); err != nil {
			return err
		}
		// Flags set explicitly win over the config file.
		if flags.Changed("listen") {
			cfg.Listen = *listen
		}
		if flags.Changed("verify") {
			cfg.Verify = *verify
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = *logLevel
		}
		if flags.Changed("log-file") {
			cfg.LogFile = *logFile
		}
	}

	logger, closeLog, err := newLogger(cfg, *logJSON)
	if err != nil {
		return err
	}
	defer closeLog()

	registry := tile.NewRegistry(
		tile.WithRegistryLogger(logger),
		tile.WithOpenedFunc(func(ev tile.Opened) {
			logger.Info("tile opened",
				"authority", ev.Authority,
				"name", ev.Manifest.Name,
				"resources", len(ev.Manifest.Resources))
		}),
	)
	defer registry.Close()

	tileOpts := []tile.Option{tile.WithLogger(logger)}
	if cfg.Verify {
		tileOpts = append(tileOpts, tile.WithVerify(true))
	}

	for _, arg := range flags.Args() {
		authority, err := openTile(registry, arg, tileOpts)
		if err != nil {
			return fmt.Errorf("open %s: %w", arg, err)
		}
		logger.Info("serving tile", "source", arg,
			"url", fmt.Sprintf("http://%s/%s/", cfg.Listen, authority))
	}

	server := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpserve.NewHandler(registry, httpserve.WithLogger(logger)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// openTile opens arg as a URL when it looks like one, a local file
// otherwise, and registers it under a derived authority.
func openTile(registry *tile.Registry, arg string, opts []tile.Option) (string, error) {
	if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
		source, err := httpserve.NewSource(arg)
		if err != nil {
			return "", err
		}
		t, err := tile.New(source, opts...)
		if err != nil {
			return "", err
		}
		return registry.RegisterUnique(tile.DeriveAuthority(urlStem(arg)), t)
	}
	authority, _, err := registry.OpenFile(arg, opts...)
	return authority, err
}

// urlStem extracts the path component of a URL for authority derivation.
func urlStem(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return "tile"
	}
	return u.Path
}

// loadConfig reads a JSONC config file over the current values.
func loadConfig(path string, cfg *config) error {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func newLogger(cfg config, logJSON bool) (*slog.Logger, func(), error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var stderrHandler slog.Handler
	if logJSON {
		stderrHandler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		stderrHandler = slog.NewTextHandler(os.Stderr, opts)
	}

	handler := stderrHandler
	closeLog := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec // User-provided path is intentional
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		handler = slogmulti.Fanout(stderrHandler, slog.NewJSONHandler(f, opts))
		closeLog = func() { f.Close() }
	}
	return slog.New(handler), closeLog, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
