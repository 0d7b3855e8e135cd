package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/vidrelay/api"
	"github.com/yourusername/vidrelay/internal/app"
	"github.com/yourusername/vidrelay/internal/infrastructure"
	"github.com/yourusername/vidrelay/pkg/logger"
)

const version = "1.0.0"

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "vidrelay",
		Short: "Telegram bot that relays social media videos into chats",
		Long: `vidrelay watches chat messages for YouTube, Instagram, TikTok and
Facebook video links, downloads the media with yt-dlp, and posts the
file back into the originating conversation.`,
		RunE: run,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")
}

func run(cmd *cobra.Command, args []string) error {
	config, err := app.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	if err := os.MkdirAll(config.Download.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	log.Info("Starting vidrelay",
		zap.String("version", version),
		zap.String("download_dir", config.Download.Dir),
		zap.Int64("max_size_bytes", config.Download.MaxSizeBytes))

	sessions := app.NewSessionStore()
	fetcher := infrastructure.NewYTDLPFetcher(&config.Download, log)
	gateway := infrastructure.NewTelegramGateway(&config.Telegram, log)
	pipeline := app.NewPipeline(gateway, fetcher, sessions, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Optional operational HTTP surface
	var srv *http.Server
	if config.Server.Listen != "" {
		router := api.SetupRouter(sessions, version, log)
		srv = &http.Server{Addr: config.Server.Listen, Handler: router}
		go func() {
			log.Info("Status API listening", zap.String("addr", config.Server.Listen))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("Status API failed", zap.Error(err))
			}
		}()
	}

	// Blocks until the context is cancelled by a signal
	if err := gateway.Poll(ctx, pipeline.HandleMessage); err != nil && err != context.Canceled {
		log.Error("Polling stopped with error", zap.Error(err))
	}

	log.Info("Shutting down, waiting for in-flight downloads")
	if err := pipeline.Stop(30 * time.Second); err != nil {
		log.Warn("Shutdown wait", zap.Error(err))
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Status API shutdown", zap.Error(err))
		}
	}

	log.Info("Shutdown complete")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
