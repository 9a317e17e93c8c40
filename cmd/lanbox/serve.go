package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lanbox/backend/internal/api"
	"github.com/lanbox/backend/internal/config"
	"github.com/lanbox/backend/internal/journal"
	"github.com/lanbox/backend/internal/logging"
	"github.com/lanbox/backend/internal/metrics"
	"github.com/lanbox/backend/internal/mirror"
	"github.com/lanbox/backend/internal/netinfo"
	"github.com/lanbox/backend/internal/storage"
	"github.com/lanbox/backend/internal/upload"
	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// Half-block glyphs for the terminal QR code.
const (
	qrBlackWhite = "\u2584"
	qrBlackBlack = " "
	qrWhiteBlack = "\u2580"
	qrWhiteWhite = "\u2588"
)

type serveOptions struct {
	configPath string
	port       int
	uploadDir  string
	maxSize    string
	noQR       bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the upload server",
		Long: `Start the upload server and print the addresses other devices can use.

The configuration file is created with defaults on first run.
PORT, UPLOAD_DIR, MAX_UPLOAD_SIZE and LOG_LEVEL override it, and
flags override both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = opts.port
			}
			if cmd.Flags().Changed("upload-dir") {
				cfg.Storage.UploadsDirectory = opts.uploadDir
			}
			if cmd.Flags().Changed("max-size") {
				cfg.Storage.MaxUploadSize = opts.maxSize
			}
			if opts.noQR {
				cfg.Advanced.PrintQRCode = false
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, opts.configPath)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "lanbox.yaml", "Path to the YAML config file")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 3000, "Port to listen on")
	cmd.Flags().StringVarP(&opts.uploadDir, "upload-dir", "d", "uploads", "Directory uploads are stored in")
	cmd.Flags().StringVar(&opts.maxSize, "max-size", "100MB", "Largest accepted upload (0 for no limit)")
	cmd.Flags().BoolVar(&opts.noQR, "no-qr", false, "Do not print a QR code at startup")

	return cmd
}

func runServe(ctx context.Context, cfg *config.AppConfig, configPath string) error {
	logging.Setup(cfg.Advanced.LogLevel, cfg.Advanced.LogFormat)
	logger := logging.For("server")

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	maxSize := cfg.GetMaxUploadBytes()
	store, err := storage.NewLocalStore(cfg.GetUploadDir(), storage.WithMaxSize(maxSize))
	if err != nil {
		return err
	}

	deps := &api.Dependencies{
		Store:         store,
		Uploads:       upload.NewManager(time.Duration(cfg.Progress.RetentionSeconds) * time.Second),
		Port:          cfg.Server.Port,
		MaxUploadSize: maxSize,
		Version:       Version,
	}

	// Optional components are only assigned when enabled so a nil pointer
	// never ends up inside a non-nil interface.
	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		deps.Journal = j
		logger.Info("journal enabled", "path", cfg.Journal.Path)
	}
	if cfg.Mirror.Enabled {
		deps.Mirror = mirror.New(cfg.Mirror)
		logger.Info("mirror enabled", "bucket", cfg.Mirror.Bucket, "prefix", cfg.Mirror.Prefix)
	}
	if cfg.Advanced.EnableMetrics {
		deps.Metrics = metrics.New()
	}

	e, err := api.NewRouter(deps, api.RouterOptions{
		EnableCORS:     cfg.Server.EnableCORS,
		AllowOrigins:   splitOrigins(cfg.Server.AllowOrigins),
		RequestLogging: cfg.Advanced.EnableRequestLogging,
		Compression:    cfg.Server.EnableCompression,
		Tracing:        cfg.Advanced.EnableTracing,
	})
	if err != nil {
		return err
	}

	s := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      e,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	urls := netinfo.URLs(netinfo.LocalIPv4s(), cfg.Server.Port)
	printBanner(cfg, configPath, urls)
	if cfg.Advanced.PrintQRCode && len(urls) > 0 {
		qrterminal.GenerateWithConfig(urls[0], qrterminal.Config{
			Level:          qrterminal.M,
			Writer:         os.Stdout,
			HalfBlocks:     true,
			BlackChar:      qrBlackBlack,
			WhiteBlackChar: qrWhiteBlack,
			WhiteChar:      qrWhiteWhite,
			BlackWhiteChar: qrBlackWhite,
			QuietZone:      1,
		})
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", s.Addr)
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func printBanner(cfg *config.AppConfig, configPath string, urls []string) {
	limit := cfg.Storage.MaxUploadSize
	if cfg.GetMaxUploadBytes() == 0 {
		limit = "unlimited"
	}

	fmt.Printf("\n")
	fmt.Printf("╔═══════════════════════════════════════════════════════════╗\n")
	fmt.Printf("║  lanbox %-50s║\n", Version)
	fmt.Printf("╠═══════════════════════════════════════════════════════════╣\n")
	fmt.Printf("║  Config:     %-45s║\n", configPath)
	fmt.Printf("║  Uploads:    %-45s║\n", cfg.GetUploadDir())
	fmt.Printf("║  Max size:   %-45s║\n", limit)
	fmt.Printf("║  Local:      %-45s║\n", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
	for _, u := range urls {
		fmt.Printf("║  Network:    %-45s║\n", u)
	}
	fmt.Printf("╚═══════════════════════════════════════════════════════════╝\n")
	fmt.Printf("\n")
}
