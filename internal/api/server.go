// Package api exposes the ledger over HTTP/JSON. Caller identity is taken
// from the X-Actor header; authenticating it is the job of the host in front
// of this service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"revenue-market/internal/ledger"
	"revenue-market/internal/observability"
	"revenue-market/internal/storage"
)

// ActorHeader carries the caller identity.
const ActorHeader = "X-Actor"

// Options configures the HTTP API.
type Options struct {
	Ledger *ledger.Ledger

	// History serves distribution history; nil disables the endpoint.
	History storage.DistributionHistoryStore

	// Feed serves /ws/events; nil disables it.
	Feed http.Handler

	// Health reports backend health; nil always reports ok.
	Health func(ctx context.Context) error

	Logger logrus.FieldLogger
}

// Server holds the HTTP handlers.
type Server struct {
	ledger  *ledger.Ledger
	history storage.DistributionHistoryStore
	health  func(ctx context.Context) error
	log     logrus.FieldLogger
}

// NewRouter builds the HTTP handler for opts.
func NewRouter(opts Options) http.Handler {
	s := &Server{
		ledger:  opts.Ledger,
		history: opts.History,
		health:  opts.Health,
		log:     opts.Logger,
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	s.log = s.log.WithField("component", "api")

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", observability.Handler())
	if opts.Feed != nil {
		r.Handle("/ws/events", opts.Feed)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.SetHeader("Content-Type", "application/json"))

		r.Route("/assets", func(r chi.Router) {
			r.Post("/", s.registerAsset)
			r.Route("/{assetID}", func(r chi.Router) {
				r.Get("/", s.getAsset)
				r.Post("/token", s.mintToken)
				r.Get("/earnings", s.getEarnings)
				r.Post("/distributions", s.distribute)
				r.Get("/distributions", s.distributionHistory)
			})
		})
		r.Get("/distributions", s.distributionsInRange)
		r.Get("/yields", s.rankAssets)

		r.Route("/tokens/{tokenID}", func(r chi.Router) {
			r.Get("/", s.getToken)
			r.Get("/apr", s.getAPR)
			r.Get("/holders", s.getHolders)
			r.Get("/balances/{holder}", s.getBalance)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", s.createListing)
			r.Get("/", s.listListings)
			r.Route("/{listingID}", func(r chi.Router) {
				r.Get("/", s.getListing)
				r.Get("/quote", s.quote)
				r.Get("/events", s.listingEvents)
				r.Get("/positions", s.listPositions)
				r.Get("/positions/{buyer}", s.getPosition)
				r.Post("/purchases", s.purchase)
				r.Post("/extend", s.extendListing)
				r.Post("/cancel", s.cancelListing)
				r.Post("/finalize", s.finalizeListing)
				r.Post("/claims/tokens", s.claimTokens)
				r.Post("/claims/refund", s.claimRefund)
			})
		})

		r.Get("/accounts/{accountID}", s.getAccount)
		r.Post("/withdrawals", s.withdraw)
		r.Get("/events", s.listEvents)
	})

	return r
}

// requestID propagates X-Request-ID or assigns a fresh one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
			"actor":      r.Header.Get(ActorHeader),
		}).Debug("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.WithError(err).Warn("health check failed")
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusOf maps a ledger error kind to an HTTP status.
func statusOf(kind ledger.Kind) int {
	switch kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindState:
		return http.StatusConflict
	case ledger.KindAuthorization:
		return http.StatusForbidden
	case ledger.KindArithmetic:
		return http.StatusUnprocessableEntity
	case ledger.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := ledger.KindOf(err)
	status := statusOf(kind)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.WithError(err).WithField("request_id", middleware.GetReqID(r.Context())).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Kind: kind.String()})
}

// badRequest reports malformed input that never reached the ledger.
func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Kind: ledger.KindValidation.String()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

func uintParam(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

func actor(r *http.Request) string {
	return r.Header.Get(ActorHeader)
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
