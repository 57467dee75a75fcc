package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/dgnsrekt/inspector_proxy/internal/capture"
	"github.com/dgnsrekt/inspector_proxy/internal/config"
	"github.com/dgnsrekt/inspector_proxy/internal/netutil"
	"github.com/dgnsrekt/inspector_proxy/internal/relay"
	"github.com/dgnsrekt/inspector_proxy/internal/server"
	"github.com/dgnsrekt/inspector_proxy/internal/storage"
	"gopkg.in/natefinch/lumberjack.v2"
)

// CLI flags. Defaults come from the environment via kong.Vars.
type CLI struct {
	Bind             string `help:"Preferred listen address." default:"${bind_addr}"`
	PortCandidates   string `help:"Comma separated fallback listen addresses." default:"${port_candidates}"`
	NoFallback       bool   `help:"Fail instead of trying fallback addresses." default:"${no_fallback}"`
	ProjectRoot      string `help:"Directory relative script paths are resolved against." default:"${project_root}" type:"path"`
	PagesPollMS      int    `name:"pages-poll-ms" help:"Page list refresh period in milliseconds." default:"${pages_poll_ms}"`
	NetworkCacheSize int    `help:"Network response previews kept per device." default:"${network_cache_size}"`
	TraceDir         string `help:"Write relayed frames as JSONL under this directory." default:"${trace_dir}"`
	LogLevel         string `help:"Log level." enum:"debug,info,warn,error" default:"${log_level}"`
	LogFile          string `help:"Rotating log file." default:"${log_file}"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = io.WriteString(os.Stderr, "config load failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	var cli CLI
	kong.Parse(&cli,
		kong.Name("inspector_proxy"),
		kong.Description("Relays the inspector protocol between app runtimes and debugger front-ends."),
		kong.UsageOnError(),
		kong.Vars{
			"bind_addr":          cfg.BindAddr,
			"port_candidates":    strings.Join(cfg.PortCandidates, ","),
			"no_fallback":        strconv.FormatBool(!cfg.PortAutoFallback),
			"project_root":       cfg.ProjectRoot,
			"pages_poll_ms":      strconv.Itoa(cfg.PagesPollMS),
			"network_cache_size": strconv.Itoa(cfg.NetworkCacheSize),
			"trace_dir":          cfg.TraceDir,
			"log_level":          levelOrDefault(cfg.LogLevel),
			"log_file":           cfg.LogFile,
		},
	)
	cli.apply(cfg)

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("inspector proxy config loaded",
		"bind_addr", cfg.BindAddr,
		"port_candidates", cfg.PortCandidates,
		"port_auto_fallback", cfg.PortAutoFallback,
		"project_root", cfg.ProjectRoot,
		"pages_poll_ms", cfg.PagesPollMS,
		"network_cache_size", cfg.NetworkCacheSize,
		"trace_dir", cfg.TraceDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind inspector proxy", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	bindAddr := ln.Addr().String()

	opts := server.Options{
		ProjectRoot:      cfg.ProjectRoot,
		PollInterval:     cfg.PagesPollInterval(),
		NetworkCacheSize: cfg.NetworkCacheSize,
	}
	var traces *storage.WriterRegistry
	if cfg.TraceEnabled() {
		traces = storage.NewWriterRegistry(cfg.TraceDir, cfg.TraceBufferSize, cfg.TraceMaxFileSizeMB)
		opts.Tracer = capture.NewTrafficRecorder(traces, cfg.TraceMaxFrameBytes)
	}

	proxy := server.New(opts, relay.NewBroker())
	srv := &http.Server{Handler: proxy.Handler()}

	go func() {
		slog.Info("inspector proxy listening", "addr", bindAddr, "pages", "http://"+bindAddr+"/json")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("inspector proxy server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("inspector proxy shutdown failed", "error", err)
	}
	if err := proxy.Close(); err != nil {
		slog.Error("device shutdown failed", "error", err)
	}
	if traces != nil {
		if err := traces.Close(); err != nil {
			slog.Error("trace close failed", "error", err)
		}
	}
}

// apply copies parsed flags over the loaded configuration.
func (c *CLI) apply(cfg *config.Config) {
	cfg.BindAddr = c.Bind
	cfg.PortCandidates = config.SplitList(c.PortCandidates)
	cfg.PortAutoFallback = !c.NoFallback
	cfg.ProjectRoot = c.ProjectRoot
	cfg.PagesPollMS = c.PagesPollMS
	cfg.NetworkCacheSize = c.NetworkCacheSize
	cfg.TraceDir = c.TraceDir
	cfg.LogLevel = c.LogLevel
	cfg.LogFile = c.LogFile
	cfg.Normalize()
}

func levelOrDefault(level string) string {
	switch level {
	case "debug", "info", "warn", "error":
		return level
	default:
		return "info"
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
