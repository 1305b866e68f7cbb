package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/leavend/photorefine/internal/http/handlers"
	"github.com/leavend/photorefine/internal/infra"
	"github.com/leavend/photorefine/internal/middleware"
)

type Options struct {
	AllowedOrigins []string
	DefaultLocale  string
	Logger         *infra.Logger
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(*logger),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
		middleware.Locale(opts.DefaultLocale),
	)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)

		r.Post("/sessions", app.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", app.GetSession)
			r.Delete("/", app.DeleteSession)
			r.Post("/image", app.SelectImage)
			r.Put("/prompt", app.SetPrompt)
			r.Post("/edit", app.Edit)
			r.Post("/reset", app.Reset)
			r.Get("/download", app.Download)
		})
	})

	return r
}
