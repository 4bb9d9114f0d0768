package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"courseadmin/internal/adapters/recordapi"
	"courseadmin/internal/adapters/storage"
	recordStore "courseadmin/internal/adapters/storage/record"
)

var (
	emulateAddr string
	emulateDB   string
	accessLog   bool
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Run a local record API backed by SQLite",
	Long: `Run a local implementation of the hosted record API.

Records of every app are kept in one SQLite file. The API key, when
configured, is required in the X-API-Key header. Point api_base_url at
http://<addr>/rest to use it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if emulateAddr == "" {
			emulateAddr = cfg.Emulator.Addr
		}
		if emulateDB == "" {
			emulateDB = cfg.Emulator.DBPath
		}
		return runEmulate(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(emulateCmd)
	emulateCmd.Flags().StringVar(&emulateAddr, "addr", "", "Listen address (default from config)")
	emulateCmd.Flags().StringVar(&emulateDB, "db", "", "SQLite database path (default from config)")
	emulateCmd.Flags().BoolVar(&accessLog, "access-log", true, "Write a combined access log to stdout")
}

// openDB opens the emulator database with WAL, busy timeout and normal sync.
func openDB(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return db, nil
}

func runEmulate(ctx context.Context) error {
	db, err := openDB(emulateDB)
	if err != nil {
		return err
	}
	reg := prometheus.NewRegistry()
	timed := storage.NewTimedDB(db, storage.NewQueryMetrics(reg))
	defer timed.Close()

	opts := recordapi.Options{APIKey: cfg.APIKey}
	if accessLog {
		opts.AccessLog = os.Stdout
	}
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", recordapi.NewHandler(recordStore.NewSQLiteStore(timed), opts))

	srv := &http.Server{
		Addr:              emulateAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("emulator_event", "event", "starting", "addr", emulateAddr, "db", emulateDB,
		"base_url", "http://"+hostFor(emulateAddr)+recordapi.PathPrefix)
	return listenUntilSignal(ctx, srv)
}

// hostFor turns a listen address like ":8081" into a dialable host.
func hostFor(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
