package viewer

import (
	"cfsync/audit"
	"cfsync/log"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFiles embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFiles, "templates/index.html"))

type Viewer struct {
	store audit.Lister
}

func New(store audit.Lister) *Viewer {
	return &Viewer{store: store}
}

// Router returns the read-only routes. ctx supplies the request logger.
func (v *Viewer) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(ctx))

	r.Get("/", v.index)
	r.Get("/api/updates", v.updates)
	r.Get("/health", v.health)

	return r
}

func requestLogger(ctx context.Context) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			reqCtx := log.WithLogger(r.Context(), log.L(ctx).With(zap.String("request_id", middleware.GetReqID(r.Context()))))
			next.ServeHTTP(ww, r.WithContext(reqCtx))

			log.S(ctx).Debugw("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		})
	}
}

func limitParam(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > audit.MaxEntries {
		return audit.MaxEntries
	}
	return limit
}

func (v *Viewer) index(w http.ResponseWriter, r *http.Request) {
	outcomes, err := v.store.ListRecent(r.Context(), audit.MaxEntries)
	if err != nil {
		log.S(r.Context()).Errorw("failed listing outcomes", zap.Error(err))
		http.Error(w, "failed to load update log", http.StatusInternalServerError)
		return
	}

	data := struct {
		Limit    int
		Outcomes []audit.Outcome
	}{
		Limit:    audit.MaxEntries,
		Outcomes: outcomes,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, data); err != nil {
		log.S(r.Context()).Errorw("failed rendering template", zap.Error(err))
	}
}

func (v *Viewer) updates(w http.ResponseWriter, r *http.Request) {
	outcomes, err := v.store.ListRecent(r.Context(), limitParam(r))
	if err != nil {
		log.S(r.Context()).Errorw("failed listing outcomes", zap.Error(err))
		writeJSON(r.Context(), w, http.StatusInternalServerError, map[string]string{"error": "failed to load update log"})
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, outcomes)
}

func (v *Viewer) health(w http.ResponseWriter, r *http.Request) {
	n, err := v.store.Count(r.Context())
	if err != nil {
		log.S(r.Context()).Warnw("health check failed", zap.Error(err))
		writeJSON(r.Context(), w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable"})
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"status": "ok", "entries": n})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.S(ctx).Warnw("failed writing response", zap.Error(err))
	}
}

// Serve runs the viewer on addr until ctx is cancelled.
func (v *Viewer) Serve(ctx context.Context, addr string) error {
	ctx = log.SWith(ctx, log.Stage("viewer"), "listen", addr)

	srv := &http.Server{
		Addr:              addr,
		Handler:           v.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.S(ctx).Infow("log viewer listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.S(ctx).Infow("log viewer stopped")
	return nil
}
