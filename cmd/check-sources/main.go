package main

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/kdimtricp/mediasnap/internal/config"
	"github.com/kdimtricp/mediasnap/internal/database"
	"github.com/kdimtricp/mediasnap/internal/sessions"
	"github.com/kdimtricp/mediasnap/internal/sources"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "check-sources",
	Short:        "Show configured media sources, their live sessions and capture stats",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return check(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func check(ctx context.Context, cfg *config.Config) error {
	adapters := []sources.Adapter{
		sources.NewPlexAdapter(cfg.PlexURL, cfg.PlexToken, cfg.UpstreamTimeout),
		sources.NewJellyfinAdapter(cfg.JellyfinURL, cfg.JellyfinAPIKey, cfg.UpstreamTimeout),
	}

	fmt.Println("=== Media Sources ===")
	for _, adapter := range adapters {
		if !adapter.Enabled() {
			fmt.Printf("%-10s not configured\n", adapter.Source())
			continue
		}
		found, err := adapter.FetchSessions(ctx)
		if err != nil {
			fmt.Printf("%-10s ERROR: %v\n", adapter.Source(), err)
			continue
		}
		fmt.Printf("%-10s OK (%d active sessions)\n", adapter.Source(), len(found))
	}

	fmt.Println()
	fmt.Println("=== Live Sessions ===")
	live := sessions.NewAggregator(adapters...).Refresh(ctx)
	if len(live) == 0 {
		fmt.Println("No playback in progress")
	}
	for _, s := range live {
		fmt.Printf("%-16s %-40s %s / %s\n", s.SessionID, s.DisplayTitle(), clock(s.PositionSeconds), clock(s.DurationSeconds))
	}

	fmt.Println()
	fmt.Println("=== Captures ===")
	db, err := database.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	stats, err := database.NewCaptureRepository(db).Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Total:   %s captures, %s on disk\n", humanize.Comma(int64(stats.Total)), humanize.Bytes(uint64(stats.TotalBytes)))
	for _, key := range sortedKeys(stats.ByType) {
		fmt.Printf("  %-12s %d\n", key, stats.ByType[key])
	}
	for _, key := range sortedKeys(stats.ByStatus) {
		fmt.Printf("  %-12s %d\n", key, stats.ByStatus[key])
	}
	return nil
}

func clock(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
