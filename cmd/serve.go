package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/enrich-cli/internal/cost"
	"github.com/sells-group/enrich-cli/internal/model"
	"github.com/sells-group/enrich-cli/internal/monitoring"
	"github.com/sells-group/enrich-cli/internal/store"
)

const shutdownTimeout = 30 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the enrichment HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}

		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		env, err := initEnv(ctx, "serve", reg)
		if err != nil {
			return err
		}
		defer env.Close()

		if n, err := pruneCache(ctx, env.Store); err != nil {
			zap.L().Warn("prune content cache", zap.Error(err))
		} else if n > 0 {
			zap.L().Info("pruned expired content", zap.Int("entries", n))
		}

		deps := apiDeps{
			Enrich:         env.enrich,
			Runs:           env.Store,
			Budgets:        env.Guard,
			Pricing:        cost.NewCalculator(cfg.Pricing),
			Gatherer:       reg,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
		}

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(
				monitoring.NewCollector(env.Store, env.Guard),
				monitoring.NewAlerter(cfg.Monitoring),
				cfg.Monitoring,
			)
			go checker.Run(ctx)
			deps.Status = checker.Latest
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// runGetter loads a persisted run by ID.
type runGetter interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
}

// apiDeps is everything the HTTP API needs. Status is nil when monitoring
// is disabled.
type apiDeps struct {
	Enrich         enrichFunc
	Runs           runGetter
	Budgets        monitoring.BudgetSource
	Pricing        *cost.Calculator
	Status         func() *monitoring.MetricsSnapshot
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func buildRouter(d apiDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         7200,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.With(timeoutMiddleware(d.RequestTimeout)).Post("/enrich", handleEnrich(d.Enrich))
		r.Get("/runs/{id}", handleGetRun(d.Runs))
		r.Get("/budgets", handleBudgets(d.Budgets, d.Pricing))
		r.Get("/status", handleStatus(d.Status))
	})

	return r
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	if d <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Timeout(d)
}

func handleEnrich(enrich enrichFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var ref model.EntityReference
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&ref); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		ref = ref.Trimmed()
		if err := ref.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "at least one of domain, name, profile_url, email or phone is required")
			return
		}

		run := enrich(r.Context(), ref)
		writeJSON(w, http.StatusOK, run)
	}
}

func handleGetRun(runs runGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		run, err := runs.GetRun(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "run not found")
		case err != nil:
			zap.L().Error("get run", zap.String("run_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal error")
		default:
			writeJSON(w, http.StatusOK, run)
		}
	}
}

// budgetView is a provider budget with its estimated spend.
type budgetView struct {
	model.RateBudget
	EstimatedSpend float64 `json:"estimated_spend_usd"`
}

func handleBudgets(src monitoring.BudgetSource, calc *cost.Calculator) http.HandlerFunc {
	if calc == nil {
		calc = cost.NewCalculator(cost.Rates{})
	}
	return func(w http.ResponseWriter, _ *http.Request) {
		budgets := src.Snapshot()
		views := make([]budgetView, len(budgets))
		for i, b := range budgets {
			views[i] = budgetView{RateBudget: b, EstimatedSpend: calc.Estimate(b)}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"budgets":                   views,
			"total_estimated_spend_usd": calc.Total(budgets),
		})
	}
}

func handleStatus(latest func() *monitoring.MetricsSnapshot) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if latest == nil {
			writeError(w, http.StatusNotFound, "monitoring disabled")
			return
		}
		snap := latest()
		if snap == nil {
			writeError(w, http.StatusServiceUnavailable, "no snapshot collected yet")
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

// requestLogger logs each request through zap.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
