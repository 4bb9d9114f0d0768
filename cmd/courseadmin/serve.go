package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	emailAdapter "courseadmin/internal/adapters/email"
	web "courseadmin/internal/adapters/http"
	"courseadmin/internal/application/dataset"
	"courseadmin/internal/application/orchestrators"
	"courseadmin/internal/domain/enrollment"
)

// shutdownTimeout bounds how long in-flight requests may finish.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the admin API",
	Long: `Serve the JSON admin API and dashboard on the configured listen address.

Every list request reloads from the record API. Prometheus metrics are served
at /metrics. Enrollment confirmations are mailed through Resend when
COURSEADMIN_RESEND_KEY is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, err := newClient(reg)
	if err != nil {
		return err
	}
	csrfKey, err := cfg.CSRFAuthKey()
	if err != nil {
		return err
	}

	app := web.NewMux(web.Options{
		Stores:                newStores(client),
		AfterEnrollmentCreate: confirmEnrollment(newSender()),
		CSRFKey:               csrfKey,
		SecureCookies:         cfg.IsProduction(),
		TrustedOrigins:        cfg.TrustedOrigins,
		RateLimitPerSecond:    cfg.RateLimit,
		Registry:              reg,
		StaticDir:             cfg.StaticDir,
	})
	defer app.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app,
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("server_event", "event", "starting", "version", version, "addr", cfg.ListenAddr,
		"env", cfg.Env, "api", cfg.APIBaseURL)
	return listenUntilSignal(ctx, srv)
}

// newSender picks Resend when a key is configured.
func newSender() emailAdapter.Sender {
	if cfg.Resend.APIKey != "" {
		slog.Info("server_event", "event", "email_sender", "sender", "resend")
		return emailAdapter.NewResendSender(cfg.Resend.APIKey, cfg.Resend.From)
	}
	if cfg.IsProduction() {
		slog.Warn("server_event", "event", "email_disabled", "reason", "COURSEADMIN_RESEND_KEY is not set")
	}
	return emailAdapter.NewNoopSender()
}

func confirmEnrollment(sender emailAdapter.Sender) func(context.Context, enrollment.Enrollment, dataset.Dataset) error {
	deps := orchestrators.SendEnrollmentConfirmationDeps{Sender: sender, ReplyTo: cfg.Resend.ReplyTo}
	return func(ctx context.Context, created enrollment.Enrollment, related dataset.Dataset) error {
		_, err := orchestrators.ExecuteSendEnrollmentConfirmation(ctx,
			orchestrators.SendEnrollmentConfirmationInput{Enrollment: created, Related: related}, deps)
		return err
	}
}

// listenUntilSignal serves until ctx ends or SIGINT/SIGTERM arrives, then
// shuts srv down gracefully.
func listenUntilSignal(ctx context.Context, srv *http.Server) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	slog.Info("server_event", "event", "shutting_down", "addr", srv.Addr)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
