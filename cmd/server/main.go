package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kdimtricp/mediasnap/internal/api"
	"github.com/kdimtricp/mediasnap/internal/capture"
	"github.com/kdimtricp/mediasnap/internal/config"
	"github.com/kdimtricp/mediasnap/internal/database"
	"github.com/kdimtricp/mediasnap/internal/extract"
	"github.com/kdimtricp/mediasnap/internal/sessions"
	"github.com/kdimtricp/mediasnap/internal/sources"
	"github.com/kdimtricp/mediasnap/internal/storage"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "MediaSnap capture server",
	Long: `server - screenshots and clips from live Plex and Jellyfin playback

Serves the capture API, the thumbnail proxy and the captured files.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file (default: mediasnap.yaml in . or /etc/mediasnap)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	localStorage, err := storage.NewLocalStorage(cfg.CaptureDir)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	extractor, err := extract.NewExtractor(extract.Config{
		FFmpegPath: cfg.FFmpegPath,
		Quality:    cfg.ScreenshotQuality,
		ClipMode:   extract.ClipMode(cfg.ClipMode),
	})
	if err != nil {
		return err
	}

	aggregator := sessions.NewAggregator(
		sources.NewPlexAdapter(cfg.PlexURL, cfg.PlexToken, cfg.UpstreamTimeout),
		sources.NewJellyfinAdapter(cfg.JellyfinURL, cfg.JellyfinAPIKey, cfg.UpstreamTimeout),
	)
	if !cfg.PlexEnabled() && !cfg.JellyfinEnabled() {
		log.Printf("No media sources configured. Set PLEX_URL/PLEX_TOKEN or JELLYFIN_URL/JELLYFIN_API_KEY")
	}

	captureService := capture.NewService(aggregator, extractor, database.NewCaptureRepository(db), localStorage, capture.Config{
		MaxConcurrentClips: cfg.MaxConcurrentClips,
	})

	app := &api.App{
		Sessions:   aggregator,
		Captures:   captureService,
		Proxy:      api.NewThumbnailProxyFromConfig(cfg),
		CaptureDir: cfg.CaptureDir,
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("Server starting on %s", cfg.Addr())
	log.Printf("Capture directory: %s", cfg.CaptureDir)
	log.Printf("Database path: %s", cfg.DBPath)
	log.Printf("Plex enabled: %t, Jellyfin enabled: %t", cfg.PlexEnabled(), cfg.JellyfinEnabled())
	log.Printf("Clip mode: %s, max concurrent clips: %d", extractor.ClipMode(), cfg.MaxConcurrentClips)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Printf("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}

	log.Printf("Waiting for clip jobs to finish")
	captureService.Shutdown()
	return nil
}
