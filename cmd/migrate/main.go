package main

import (
	"fmt"
	"log"

	"github.com/kdimtricp/mediasnap/internal/config"
	"github.com/kdimtricp/mediasnap/internal/database"
	"github.com/spf13/cobra"
)

var (
	configFile string
	dbPath     string
	status     bool
)

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply or inspect capture database migrations",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dbPath == "" {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			dbPath = cfg.DBPath
		}

		db, err := database.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		migrator := database.NewMigrator(db.Conn())

		if status {
			statuses, err := migrator.Status()
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Println("Migration Status:")
			fmt.Println("=================")
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Printf("%-40s %s\n", s.Name, state)
			}
			return nil
		}

		log.Printf("Running migrations on %s", dbPath)
		if err := migrator.Run(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Println("Migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "Config file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Database path (overrides DB_PATH)")
	rootCmd.Flags().BoolVar(&status, "status", false, "Show migration status only")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
