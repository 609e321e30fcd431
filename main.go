package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kartoza/downtime-predictor/internal/cache"
	"github.com/kartoza/downtime-predictor/internal/catalog"
	"github.com/kartoza/downtime-predictor/internal/classifier"
	"github.com/kartoza/downtime-predictor/internal/config"
	"github.com/kartoza/downtime-predictor/internal/history"
	"github.com/kartoza/downtime-predictor/internal/logger"
	"github.com/kartoza/downtime-predictor/internal/prediction"
	"github.com/kartoza/downtime-predictor/internal/server"
	webview "github.com/webview/webview_go"
)

var version = "dev"

func main() {
	// .env files are read first so they can set LOG_LEVEL and LOG_FORMAT
	cfg, err := config.Load()
	log := logger.Setup()
	if err != nil {
		log.Error("config_error", "err", err)
		os.Exit(1)
	}
	cfg.Version = version

	// Parse command-line flags; explicit flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dataDir := flag.String("data-dir", cfg.DataDir, "Directory for the prediction history database")
	modelPath := flag.String("model", cfg.ModelPath, "Path to the exported model artifact")
	modelURL := flag.String("model-url", cfg.ModelURL, "Base URL of a remote model server (overrides -model)")
	headless := flag.Bool("headless", false, "Run in headless mode (no GUI window)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Downtime Predictor v%s\n", version)
		os.Exit(0)
	}

	cfg.Port = *port
	cfg.DataDir = *dataDir
	cfg.ModelPath = *modelPath
	cfg.ModelURL = *modelURL
	if err := cfg.Validate(); err != nil {
		log.Error("config_error", "err", err)
		os.Exit(1)
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Port, 10)
	if err != nil {
		log.Error("port_error", "err", err)
		os.Exit(1)
	}
	if availablePort != cfg.Port {
		log.Warn("port_in_use", "requested", cfg.Port, "using", availablePort)
		cfg.Port = availablePort
	}

	log.Info("starting", "version", version, "port", cfg.Port, "data_dir", cfg.DataDir)

	var cat *catalog.Catalog
	if cfg.CatalogPath != "" {
		cat, err = catalog.Load(cfg.CatalogPath)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		log.Error("catalog_error", "err", err)
		os.Exit(1)
	}

	// A missing model is not fatal: the form still renders
	model, err := classifier.Open(classifier.Options{
		ModelPath: cfg.ModelPath,
		ModelURL:  cfg.ModelURL,
		Timeout:   cfg.ModelTimeout,
		Columns:   cfg.ModelColumns,
		Accuracy:  cfg.ModelAccuracy,
	})
	if err != nil {
		log.Error("model_unavailable", "err", err)
	} else {
		info := model.Info()
		log.Info("model_loaded", "name", info.Name, "source", info.Source, "features", len(info.Features))
	}
	if rm, ok := model.(*classifier.Remote); ok {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ModelTimeout)
		if err := rm.Health(ctx); err != nil {
			log.Warn("model_unreachable", "url", cfg.ModelURL, "err", err)
		}
		cancel()
	}

	predCache := cache.New(cache.Options{
		RedisAddr: cfg.RedisAddr,
		RedisPass: cfg.RedisPass,
		RedisDB:   cfg.RedisDB,
		TTL:       cfg.CacheTTL,
	})
	if rc, ok := predCache.(*cache.Redis); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rc.Ping(ctx); err != nil {
			log.Warn("redis_unreachable", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()
	}

	var store history.Store = history.Nop{}
	if !cfg.HistoryDisabled {
		driver, dsn := cfg.HistoryDriver()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		s, err := history.Open(ctx, driver, dsn)
		cancel()
		if err != nil {
			log.Warn("history_unavailable", "driver", driver, "err", err)
		} else {
			store = s
		}
	}

	svc := prediction.NewService(cat, model, predCache, store, cfg.CacheTTL, log)

	// Create and start the server
	srv, err := server.New(cfg, svc, predCache, log)
	if err != nil {
		log.Error("server_error", "err", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(serverURL, 10*time.Second)

	if *headless {
		// Headless mode: wait for signal or error
		select {
		case err := <-errCh:
			if err != nil {
				log.Error("server_error", "err", err)
				os.Exit(1)
			}
		case sig := <-stop:
			log.Info("shutting_down", "signal", sig.String())
			if err := srv.Stop(); err != nil {
				log.Error("shutdown_error", "err", err)
			}
		}
		return
	}

	// GUI mode: open embedded WebView window
	log.Info("opening_window")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Internet Downtime Prediction")
	w.SetSize(1100, 900, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			if err != nil {
				log.Error("server_error", "err", err)
			}
		case sig := <-stop:
			log.Info("shutting_down", "signal", sig.String())
			w.Terminate()
		}
	}()

	// Run blocks until the window is closed
	w.Run()

	log.Info("window_closed")
	if err := srv.Stop(); err != nil {
		log.Error("shutdown_error", "err", err)
	}
}

// waitForServer polls until the server is accepting connections
func waitForServer(url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.L().Warn("server_not_ready", "url", url)
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
