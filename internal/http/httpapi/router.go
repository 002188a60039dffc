package httpapi

import (
	"net/http"
	"time"

	"avatar/internal/http/handlers"
	"avatar/internal/infra"
	appmw "avatar/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options carries the router's non-handler dependencies.
type Options struct {
	Logger          infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	CountryLookup   appmw.CountryLookup
	FrontendDir     string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		appmw.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		appmw.Logger(opts.Logger),
		appmw.CORS(opts.CORSOrigins),
		appmw.Locale(opts.CountryLookup),
	)

	r.Get("/health", app.Health)
	r.Get("/ws", app.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(appmw.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Get("/health", app.Health)
		r.Get("/config", app.Config)
		r.Post("/chat", app.ChatMessage)
		r.Post("/transcribe", app.Transcribe)

		r.Route("/avatar", func(r chi.Router) {
			r.Get("/voices", app.Voices)
			r.Get("/avatars", app.Avatars)
			r.Post("/videos", app.GenerateVideo)
			r.Post("/talks", app.SubmitTalk)
			r.Get("/talks/{id}", app.GetTalk)
			r.Delete("/talks/{id}", app.DeleteTalk)
		})
	})

	if opts.FrontendDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(opts.FrontendDir)))
	}

	return r
}
