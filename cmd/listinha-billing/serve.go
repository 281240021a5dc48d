package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpmw "github.com/mksouza37/listinha/middleware/http"
	"github.com/mksouza37/listinha/pkg/api"
	"github.com/mksouza37/listinha/pkg/billing"
	zerologadapter "github.com/mksouza37/listinha/pkg/billing/logger/zerolog"
	billingstripe "github.com/mksouza37/listinha/pkg/billing/stripe"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook, status and admin HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := load(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router, err := a.router()
	if err != nil {
		return err
	}
	servers := []*http.Server{{
		Addr:              a.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}}
	if a.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metricsHandler())
		servers = append(servers, &http.Server{
			Addr:              a.cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			a.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.log.Warn().Err(err).Str("addr", srv.Addr).Msg("Failed to shut down server cleanly")
			}
		}
		return nil
	})
	return g.Wait()
}

// router mounts the webhook, the paywall check and, with credentials
// configured, the admin API.
func (a *app) router() (http.Handler, error) {
	blog := zerologadapter.NewLogger(a.log)

	handler, err := api.NewHandler(api.Config{Engine: a.engine, Logger: blog})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Method(http.MethodPost, "/webhooks/stripe", a.webhookHandler())

	paywall := httpmw.Middleware(httpmw.Config{
		Gate:         a.engine,
		GetAccountID: httpmw.FromQuery("account"),
	})
	r.With(paywall).Get("/billing/entitled", func(w http.ResponseWriter, r *http.Request) {
		res, _ := httpmw.ResolutionFromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"entitled":true,"status":"` + string(res.Status) + `"}`))
	})

	if a.cfg.MetricsAddr == "" {
		r.Handle("/metrics", a.metricsHandler())
	}

	if !a.cfg.AdminEnabled() {
		a.log.Warn().Msg("ADMIN_USER or ADMIN_PASSWORD is not set; admin API disabled")
		return r, nil
	}
	r.Route("/admin/billing", func(r chi.Router) {
		r.Use(middleware.BasicAuth("listinha-admin", map[string]string{a.cfg.AdminUser: a.cfg.AdminPassword}))
		r.Get("/status", handler.GetStatus)
		r.Post("/grant-exempt", handler.GrantExempt)
		r.Post("/revoke-exempt", handler.RevokeExempt)
		r.Post("/extend-trial", handler.ExtendTrial)
		r.Post("/refresh", handler.Refresh)
		r.Post("/checkout", handler.Checkout)
		r.Post("/portal", handler.Portal)
	})
	return r, nil
}

func (a *app) webhookHandler() http.Handler {
	if a.provider != nil {
		return a.provider.WebhookHandler(a.engine)
	}
	// Without an API key the endpoint still verifies (or, in debug, accepts)
	// events; it answers 503 when neither is possible.
	return billingstripe.NewWebhookHandler(a.engine, billingstripe.WebhookConfig{
		Secret:          a.cfg.Stripe.WebhookSecret,
		AllowUnverified: a.cfg.AllowUnverified,
		Logger:          zerologadapter.NewLogger(a.log).With(billing.Field{Key: "component", Value: "webhook"}),
		Metrics:         a.engine.Config().Metrics,
	})
}

func (a *app) metricsHandler() http.Handler {
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}
