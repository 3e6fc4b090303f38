package http

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gram-sevak/internal/application/auth"
	"github.com/gram-sevak/internal/application/complaint"
	"github.com/gram-sevak/internal/config"
	"github.com/gram-sevak/internal/transport/http/handler"
	appmiddleware "github.com/gram-sevak/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	passthrough := func(next http.Handler) http.Handler { return next }

	optionalAuth := passthrough
	var signer handler.TokenSigner
	if deps.JWTProvider != nil {
		optionalAuth = appmiddleware.OptionalAuth(deps.JWTProvider)
		signer = deps.JWTProvider
	}

	// Off unless RATE_LIMIT_RPS is set; the login flow itself has no attempt limit.
	authRL := passthrough
	if cfg.RateLimitRPS > 0 {
		authRL = appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst).Limit
	}

	loc, err := time.LoadLocation(cfg.ComplaintTimezone)
	if err != nil {
		log.Printf("unknown COMPLAINT_TIMEZONE %q, using UTC: %v", cfg.ComplaintTimezone, err)
		loc = time.UTC
	}

	authSvc := auth.NewService(auth.ServiceDeps{
		Store:     deps.Credentials,
		Mailer:    deps.Mailer,
		Generator: deps.CodeGen,
		Clock:     deps.Clock,
	})
	complaintSvc := complaint.NewService(complaint.ServiceDeps{
		Mailer:      deps.Mailer,
		Attachments: deps.Attachments,
		Recipient:   cfg.RecipientEmail,
		Cc:          cfg.SMTPFrom,
		Location:    loc,
		InlineLimit: cfg.InlineAttachmentLimit,
		Clock:       deps.Clock,
	})

	healthH := handler.NewHealthHandler()
	authH := handler.NewAuthHandler(authSvc, signer)
	complaintH := handler.NewComplaintHandler(complaintSvc, cfg.MaxRequestBody)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.Group(func(r chi.Router) {
			r.Use(authRL)
			r.Post("/auth/send-otp", authH.SendCode)
			r.Post("/auth/verify-otp", authH.VerifyCode)
		})

		r.With(optionalAuth).Post("/email-complaint", complaintH.Submit)
	})

	return r
}
