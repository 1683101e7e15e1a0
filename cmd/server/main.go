package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/thereceipt/zpl-printer/internal/api"
	"github.com/thereceipt/zpl-printer/internal/config"
	"github.com/thereceipt/zpl-printer/internal/labelcache"
	"github.com/thereceipt/zpl-printer/internal/logger"
	"github.com/thereceipt/zpl-printer/internal/notify"
	"github.com/thereceipt/zpl-printer/internal/printer"
	"github.com/thereceipt/zpl-printer/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath string
		envFile    string
		debug      bool
		headless   bool
		port       int
		showVer    bool
	)
	flag.StringVar(&configPath, "config", config.DefaultPath(), "settings file")
	flag.StringVar(&envFile, "env", "", "dotenv file applied over the settings file")
	flag.BoolVar(&debug, "debug", false, "debug logging")
	flag.BoolVar(&headless, "headless", false, "run without the terminal UI")
	flag.IntVar(&port, "port", 0, "override the printer port for this run")
	flag.BoolVar(&showVer, "version", false, "print the version and exit")
	flag.Parse()

	if showVer {
		fmt.Println(Version)
		return
	}

	if err := run(configPath, envFile, debug, headless, port); err != nil {
		fmt.Fprintf(os.Stderr, "zpl-printer: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envFile string, debug, headless bool, port int) error {
	var envFiles []string
	if envFile != "" {
		envFiles = append(envFiles, envFile)
	}

	store, err := config.Open(configPath, envFiles...)
	if err != nil {
		return err
	}
	cfg := store.Get()

	// the TUI takes over the terminal once it runs, so log lines are routed
	// through a sink that can be repointed at the log panel
	sink := &logSink{w: os.Stderr}
	logger.Init(debug || cfg.Debug, sink)
	defer logger.Sync()

	log := logger.L()
	log.Info("starting zpl-printer", zap.String("version", Version), zap.String("config", store.Path()))

	cache, err := labelcache.Open(cfg.Cache.ImagePath, cfg.Cache.Index, logger.Named("cache"))
	if err != nil {
		return err
	}
	defer cache.Close()

	hub := notify.NewHub(logger.Named("events"))
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Redis.Addr != "" {
		bridge, err := notify.NewRedisBridge(cfg.Redis.Addr, cfg.Redis.Channel, hub, logger.Named("redis"))
		if err != nil {
			// events still reach the API and TUI
			log.Warn("redis bridge disabled", zap.Error(err))
		} else {
			defer bridge.Close()
			go bridge.Run(ctx)
		}
	}

	settings, err := cfg.PrinterSettings()
	if err != nil {
		return err
	}
	if port > 0 {
		settings.Port = port
	}

	server, err := printer.NewServer(settings, cache, hub, logger.Named("printer"))
	if err != nil {
		return err
	}

	if cfg.Printer.AutoStart {
		if err := server.Start(); err != nil {
			// the port may be taken; the printer can be started later from the UI
			log.Error("printer failed to start", zap.Error(err))
		}
	}

	monitor := printer.NewMonitor(server, cache, time.Duration(cfg.RefreshInterval), logger.Named("monitor"))
	monitor.Start()
	defer monitor.Stop()

	apiErr := make(chan error, 1)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(server, cache, store, hub, logger.Named("api"))
		go func() {
			if err := apiServer.Run(cfg.API.Addr); err != nil {
				apiErr <- err
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var tuiDone chan struct{}
	var tuiApp *tui.TViewApp
	if !headless {
		apiAddr := ""
		if cfg.API.Enabled {
			apiAddr = cfg.API.Addr
		}
		tuiApp = tui.NewTViewApp(server, cache, store, hub, apiAddr)
		sink.Set(tuiApp.LogWriter())

		tuiDone = make(chan struct{})
		go func() {
			defer close(tuiDone)
			if err := tuiApp.Run(); err != nil {
				log.Error("tui error", zap.Error(err))
			}
		}()
	}

	var runErr error
	select {
	case err := <-apiErr:
		runErr = fmt.Errorf("api server: %w", err)
	case sig := <-sigChan:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case <-tuiDone:
	}

	if tuiApp != nil {
		tuiApp.App.Stop()
		sink.Set(os.Stderr)
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
	defer done()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Warn("printer did not drain", zap.Error(err))
	}
	if apiServer != nil {
		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("api shutdown", zap.Error(err))
		}
	}

	return runErr
}

// logSink forwards log output to a writer that can change at runtime
type logSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *logSink) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
