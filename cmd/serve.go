package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/outreach-mate/outreach-cli/internal/model"
	"github.com/outreach-mate/outreach-cli/internal/pipeline"
	"github.com/outreach-mate/outreach-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for prospects and CSV import",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(env.Store, env.Pipeline, cfg.Batch.Concurrency),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			// The signal context is already canceled; give in-flight
			// requests their own drain window.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newRouter(st store.Store, p *pipeline.Pipeline, concurrency int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/prospects", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		filter := store.ProspectFilter{
			Status:      model.ProspectStatus(q.Get("status")),
			CompanyName: q.Get("company"),
		}
		if limit := q.Get("limit"); limit != "" {
			fmt.Sscanf(limit, "%d", &filter.Limit)
		}
		if offset := q.Get("offset"); offset != "" {
			fmt.Sscanf(offset, "%d", &filter.Offset)
		}

		prospects, err := st.ListProspects(req.Context(), filter)
		if err != nil {
			zap.L().Error("list prospects failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list prospects failed"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"prospects": prospects, "count": len(prospects)})
	})

	r.Get("/prospects/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		prospect, err := st.GetProspect(req.Context(), id)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "prospect not found"})
			return
		}
		writeJSON(w, http.StatusOK, prospect)
	})

	r.Post("/prospects/import", func(w http.ResponseWriter, req *http.Request) {
		result, err := p.RunCSV(req.Context(), req.Body, concurrency)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
