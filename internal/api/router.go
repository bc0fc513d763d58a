package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", HealthHandler)
		r.Get("/sessions", app.ListSessionsHandler)

		r.Post("/capture/screenshot", app.ScreenshotHandler)
		r.Post("/capture/clip", app.ClipHandler)

		r.Get("/captures", app.ListCapturesHandler)
		r.Get("/captures/{id}", app.GetCaptureHandler)
		r.Get("/captures/{id}/file", app.DownloadCaptureHandler)
		r.Delete("/captures/{id}", app.DeleteCaptureHandler)

		if app.Proxy != nil {
			r.Get("/proxy/{source}", app.Proxy.ServeHTTP)
		}
	})

	if app.CaptureDir != "" {
		fileServer := http.FileServer(http.Dir(app.CaptureDir))
		r.Handle("/captures/*", http.StripPrefix("/captures", filesOnly(fileServer)))
	}

	return r
}

// filesOnly hides directory listings; only individual artifacts are served.
func filesOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
