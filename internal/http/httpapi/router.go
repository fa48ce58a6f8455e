package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"storybook/internal/http/handlers"
	"storybook/internal/middleware"
)

// RouterOptions carries the cross-cutting request plumbing.
type RouterOptions struct {
	DefaultLanguage string
	CountryLookup   middleware.CountryLookup
	RateLimitPerMin int
	AllowedOrigins  []string
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.Language(opts.DefaultLanguage, opts.CountryLookup),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/stories", func(r chi.Router) {
		r.Post("/", app.StoriesCreate)
		r.Get("/", app.StoriesList)

		r.Route("/{story_id}", func(r chi.Router) {
			r.Get("/", app.StoriesGet)
			r.Delete("/", app.StoriesDelete)
			r.Post("/position", app.StoriesSetPosition)

			r.Route("/pages/{page}", func(r chi.Router) {
				r.Post("/generate", app.PageTrigger)
				r.Get("/image", app.PageImage)
				r.Get("/audio", app.PageAudio)
				r.Post("/image/regenerate", app.PageImageRegenerate)
				r.Post("/audio/regenerate", app.PageAudioRegenerate)
				r.Post("/image/edits", app.PageImageEdit)
				r.Put("/text", app.PageTextEdit)
				r.Put("/character", app.PageSetCharacter)
			})

			r.Post("/export/video", app.ExportVideo)
			r.Post("/export/pdf", app.ExportPDF)
			r.Get("/export/bundle", app.ExportBundle)
			r.Get("/export/{artifact}", app.ExportDownload)
		})
	})

	r.Route("/v1/characters", func(r chi.Router) {
		r.Post("/", app.CharactersUpload)
		r.Get("/", app.CharactersList)
		r.Get("/{character_id}/image", app.CharacterImage)
		r.Delete("/{character_id}", app.CharactersDelete)
	})

	return r
}
