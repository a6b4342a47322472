// Package api exposes the HTTP surface: CSV import, geocoding controls,
// and the introduction endpoints.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/introhq/introhq/internal/importer"
	"github.com/introhq/introhq/internal/model"
	"github.com/introhq/introhq/internal/referral"
	"github.com/introhq/introhq/internal/store"
)

// ImportRunner runs one CSV import.
type ImportRunner interface {
	Run(ctx context.Context, userID string, r io.Reader, policy importer.ConflictPolicy) (*importer.Summary, error)
}

// SweepEnqueuer schedules a geocoding sweep.
type SweepEnqueuer interface {
	EnqueueSweep(userID string) error
}

// ReferralService is the introduction lifecycle surface the handlers
// call.
type ReferralService interface {
	Create(ctx context.Context, input referral.CreateInput) ([]*model.Introduction, error)
	Get(ctx context.Context, introID, actorID string) (*model.Introduction, error)
	UpdateStatus(ctx context.Context, introID, actorID string, status model.PartyStatus) (*model.Introduction, error)
	UpdateRequestStatus(ctx context.Context, introID string, status model.RequestStatus) (*model.Introduction, error)
	SendReminder(ctx context.Context, introID, actorID, message string) error
	Revoke(ctx context.Context, introID, actorID string, flag bool) error
}

// ReferralLister answers the listing queries.
type ReferralLister interface {
	List(ctx context.Context, params referral.ListParams) ([]model.Introduction, int, error)
}

// GeocodeReader reads geocoding coverage for a user.
type GeocodeReader interface {
	CountContactsNeedingGeocode(ctx context.Context, userID string) (int, error)
	GeocodeProgress(ctx context.Context, userID string) (*store.GeocodeProgress, error)
}

// Handlers holds the wired dependencies for all routes.
type Handlers struct {
	importer  ImportRunner
	sweeps    SweepEnqueuer
	referrals ReferralService
	lister    ReferralLister
	geocode   GeocodeReader
}

// NewHandlers wires the HTTP handlers.
func NewHandlers(imp ImportRunner, sweeps SweepEnqueuer, referrals ReferralService, lister ReferralLister, geocode GeocodeReader) *Handlers {
	return &Handlers{
		importer:  imp,
		sweeps:    sweeps,
		referrals: referrals,
		lister:    lister,
		geocode:   geocode,
	}
}

// NewRouter builds the chi router with logging, recovery, and CORS.
func NewRouter(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-User-Email"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/contacts", func(r chi.Router) {
		r.Post("/import-csv", h.ImportCSV)
		r.Post("/geocode-pending", h.GeocodePending)
		r.Get("/geocoding-status", h.GeocodingStatus)
	})

	r.Post("/introductions", h.CreateIntroductions)

	r.Route("/referrals", func(r chi.Router) {
		r.Get("/", h.ListReferrals)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetReferral)
			r.Patch("/status", h.UpdateReferralStatus)
			r.Patch("/request-status", h.UpdateRequestStatus)
			r.Post("/reminder", h.SendReminder)
			r.Post("/revoke", h.RevokeReferral)
		})
	})

	return r
}

// requestLogger logs each request with latency and status.
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

// callerID returns the authenticated user's id. Authentication itself
// is terminated upstream; the gateway forwards identity headers.
func callerID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func callerEmail(r *http.Request) string {
	return r.Header.Get("X-User-Email")
}
