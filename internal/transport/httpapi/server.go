// Package httpapi exposes the scheduling engine as a JSON REST API for the
// web calendar, plus an iCalendar feed of active appointments.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"booking/internal/domain"
	"booking/internal/ics"
	"booking/internal/service/appointments"
	"booking/internal/transport/requestid"
)

type appointmentsService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	Cancel(ctx context.Context, id int64) error
	ListActive(ctx context.Context) ([]domain.Appointment, error)
}

type Options struct {
	RequestTimeout    time.Duration
	BodyLimitBytes    int64
	AllowedOrigins    []string
	RateLimiter       RateLimiter
	RateLimitFailOpen bool
	TrustedProxies    []netip.Prefix
	ICS               ics.Options
}

type API struct {
	svc    appointmentsService
	log    *slog.Logger
	opts   Options
	router *mux.Router
}

func NewAPI(svc appointmentsService, log *slog.Logger, opts Options) *API {
	if log == nil {
		log = slog.Default()
	}
	a := &API{
		svc:    svc,
		log:    log.With(slog.String("component", "http.appointments")),
		opts:   opts,
		router: mux.NewRouter(),
	}
	a.registerRoutes()
	return a
}

func (a *API) registerRoutes() {
	limit := WithRateLimit(a.opts.RateLimiter, a.log, a.opts.RateLimitFailOpen, a.opts.TrustedProxies)

	a.router.HandleFunc("/healthz", a.health).Methods(http.MethodGet)

	api := a.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/appointments", a.listAppointments).Methods(http.MethodGet)
	api.Handle("/appointments", limit(http.HandlerFunc(a.createAppointment))).Methods(http.MethodPost)
	api.HandleFunc("/appointments.ics", a.appointmentsFeed).Methods(http.MethodGet)
	api.Handle("/appointments/{id}", limit(http.HandlerFunc(a.cancelAppointment))).Methods(http.MethodDelete)

	a.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
	a.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethod, "method not allowed")
	})
}

// Handler wraps the router in the middleware chain. Tracing is outermost so
// the access log can report the trace id.
func (a *API) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(a.opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestid.Header}),
		handlers.ExposedHeaders([]string{requestid.Header}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(a.log.Handler(), slog.LevelError)),
	)

	h := Chain(a.router,
		recovery,
		WithRequestID,
		WithAccessLog(a.log),
		cors,
		WithBodyLimit(a.opts.BodyLimitBytes),
		WithTimeout(a.opts.RequestTimeout),
		WithLowercaseAPIPath,
	)
	return otelhttp.NewHandler(h, "booking.http")
}
