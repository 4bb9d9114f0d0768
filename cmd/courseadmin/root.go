package main

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	web "courseadmin/internal/adapters/http"
	"courseadmin/internal/adapters/recordstore"
	"courseadmin/internal/config"
)

var (
	configPath string
	logLevel   string

	// cfg is loaded once before any subcommand runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "courseadmin",
	Short: "Administer courses, instructors, participants, rooms and enrollments",
	Long: `courseadmin manages the records of a course provider stored in a hosted
record API. It serves a JSON admin API with a dashboard, and can run a local
SQLite emulator of the record API for development and tests.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		level, err := config.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug|info|warn|error")
}

// newClient builds the record API client from cfg. reg may be nil.
func newClient(reg prometheus.Registerer) (*recordstore.Client, error) {
	var metrics *recordstore.Metrics
	if reg != nil {
		metrics = recordstore.NewMetrics(reg)
	}
	return recordstore.NewClient(recordstore.Options{
		BaseURL:    cfg.APIBaseURL,
		APIKey:     cfg.APIKey,
		AppIDs:     cfg.Apps.ByKind(),
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeout},
		Metrics:    metrics,
	})
}

// newStores exposes one collection per kind.
func newStores(client *recordstore.Client) web.Stores {
	return web.Stores{
		Courses:      recordstore.Courses(client),
		Instructors:  recordstore.Instructors(client),
		Participants: recordstore.Participants(client),
		Rooms:        recordstore.Rooms(client),
		Enrollments:  recordstore.Enrollments(client),
	}
}
