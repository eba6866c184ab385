package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"glowbook/internal/config"
	"glowbook/internal/logging"
	"glowbook/internal/metrics"
	"glowbook/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Services are the domain entry points the HTTP API exposes.
type Services struct {
	Availability *service.AvailabilityService
	Catalog      *service.CatalogService
	Providers    *service.ProviderService
	Bookings     *service.BookingService
	Reviews      *service.ReviewService

	// Location is the civil timezone booking dates are expressed in.
	Location *time.Location
	// ExportDir receives a copy of every XLSX export when set.
	ExportDir string
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// HTTPServer is the public REST API.
type HTTPServer struct {
	cfg     *config.APIConfig
	svc     Services
	auth    *JWTAuth
	limiter *rateLimiter
	server  *http.Server
	log     zerolog.Logger
}

func NewHTTPServer(cfg *config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if svc.Location == nil {
		svc.Location = time.UTC
	}
	srv := &HTTPServer{
		cfg:     cfg,
		svc:     svc,
		auth:    NewJWTAuth(cfg.Auth),
		limiter: newRateLimiter(cfg.RateLimit),
		log:     logging.Component(logger, "http"),
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	return srv
}

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.throttle)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.svc.Metrics != nil {
		r.Handle("/metrics", s.svc.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/services", s.handleListServices)
		r.Get("/services/by-title/{title}", s.handlePriceRange)
		r.Get("/services/providers", s.handleProvidersOffering)
		r.Get("/services/{serviceID}", s.handleGetService)
		r.Get("/services/{serviceID}/reviews", s.handleServiceReviews)

		r.Route("/providers/{providerID}", func(r chi.Router) {
			r.Get("/", s.handleProviderDetails)
			r.Get("/services", s.handleProviderServices)
			r.Get("/availability", s.handleProviderAvailability)
			r.Get("/availability/{date}/slots", s.handleFreeSlots)
			r.Get("/bookable-dates", s.handleBookableDates)
			r.Get("/reviews", s.handleProviderReviews)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)

			r.Post("/services", s.handleCreateService)
			r.Put("/services/{serviceID}", s.handleUpdateService)
			r.Delete("/services/{serviceID}", s.handleDeleteService)

			r.Route("/me", func(r chi.Router) {
				r.Get("/profile", s.handleGetProfile)
				r.Post("/profile", s.handleCreateProfile)
				r.Put("/profile", s.handleUpdateProfile)
				r.Put("/availability", s.handleReplaceAvailability)
				r.Put("/availability/{date}", s.handleSetAvailability)
				r.Get("/bookings/export", s.handleExportBookings)
			})

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", s.handleCreateBooking)
				r.Get("/", s.handleListBookings)
				r.Get("/{bookingID}", s.handleGetBooking)
				r.Put("/{bookingID}", s.handleRescheduleBooking)
				r.Post("/{bookingID}/status", s.handleBookingStatus)
				r.Delete("/{bookingID}", s.handleCancelBooking)
			})

			r.Post("/reviews", s.handleCreateReview)
		})
	})

	return r
}

func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.Ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *HTTPServer) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientIP(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return clientKeyUnknown
}

func (s *HTTPServer) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		metrics.IncHTTP(r.Method + " " + route)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.log.Info()
		if status >= http.StatusInternalServerError {
			ev = s.log.Error()
		}
		ev.Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}
