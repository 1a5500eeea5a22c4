package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	ledgerAuth "github.com/MrEthical07/ledgerAuth"
	"github.com/MrEthical07/ledgerAuth/metrics/export/prometheus"
	"github.com/MrEthical07/ledgerAuth/middleware"
)

// Options tune the router. Zero values fall back to the defaults below.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64
	// ServiceName is reported by /health.
	ServiceName string
}

func (o Options) withDefaults() Options {
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"https://*", "http://localhost:*"}
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 30 * time.Second
	}
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.ServiceName == "" {
		o.ServiceName = "ledgerauth"
	}
	return o
}

// Server holds the handlers' dependencies.
type Server struct {
	engine *ledgerAuth.Engine
	logger *zap.Logger
	opts   Options
}

// NewRouter builds the chi router with the full middleware stack and every
// route.
func NewRouter(engine *ledgerAuth.Engine, logger *zap.Logger, opts Options) chi.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: engine, logger: logger, opts: opts.withDefaults()}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(s.opts.RequestTimeout))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(requestContext)

	router.Get("/health", s.health)
	router.Handle("/metrics", prometheus.NewExporter(engine))

	router.Post("/register", s.register)
	router.Post("/login", s.login)

	router.Route("/2fa", func(r chi.Router) {
		r.Post("/verify-login-code", s.verifyLoginCode)
		r.Post("/verify-recovery-code", s.verifyRecoveryCode)
		r.Post("/send-code", s.sendCode)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(engine))
			r.Post("/generate-secret", s.generateSecret)
			r.Post("/verify-enable", s.verifyEnable)
		})
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(engine))
		r.Post("/logout", s.logout)
		r.Get("/me", s.me)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireVerified())
			r.Post("/users/disable-2fa", s.disable2FA)
			r.Post("/users/change-password", s.changePassword)

			r.With(middleware.RequirePermission(engine, "user:create")).
				Post("/users", s.createMember)
			r.With(middleware.RequireRole(engine, "admin")).
				Patch("/users/{userId}/role", s.changeRole)
			r.With(middleware.RequirePermission(engine, "user:update")).
				Patch("/users/{userId}/status", s.setStatus)
			r.With(
				middleware.RequireOrganization(engine, func(r *http.Request) string {
					return chi.URLParam(r, "organizationId")
				}),
				middleware.RequirePermission(engine, "user:read"),
			).Get("/organizations/{organizationId}/members", s.listMembers)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteMessage(w, http.StatusNotFound, "endpoint not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// LoggerMiddleware logs one line per request.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", chimw.GetReqID(r.Context())),
					zap.String("remote_addr", r.RemoteAddr),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}

// requestContext copies the request ID and client IP into the context the
// engine reads for audit events.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := ledgerAuth.WithRequestID(r.Context(), chimw.GetReqID(r.Context()))
		ctx = ledgerAuth.WithClientIP(ctx, clientIP(r.RemoteAddr))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

func requestID(r *http.Request) string {
	return chimw.GetReqID(r.Context())
}
