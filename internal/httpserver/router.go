package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"messagely/internal/metrics"
	"messagely/internal/security"
	"messagely/internal/service"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "messagely/docs"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	AppName     string
	CORSOrigins []string
	Tokens      *security.TokenService
	Auth        *service.AuthService
	Users       *service.UserService
	Messages    *service.MessageService
	// WS serves /ws. Nil leaves the route unmounted.
	WS http.Handler
	// Ping backs /health. Nil reports healthy.
	Ping   func(ctx context.Context) error
	Logger *slog.Logger
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// The notification socket outlives the request timeout below.
	if d.WS != nil {
		r.Method(http.MethodGet, "/ws", d.WS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", handleRoot(d.AppName))
		r.Get("/health", handleHealth(d.Ping, log))
		r.Method(http.MethodGet, "/metrics", metrics.Handler())

		// Swagger documentation
		r.Get("/docs/*", httpSwagger.Handler(
			httpSwagger.URL("/docs/doc.json"),
		))

		r.Route("/api", func(r chi.Router) {
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", handleRegister(d.Auth, log))
				r.Post("/login", handleLogin(d.Auth, log))
			})

			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(d.Tokens))

				r.Route("/users", func(r chi.Router) {
					r.Get("/", handleListUsers(d.Users, log))
					r.Get("/{username}", handleGetUser(d.Users, log))
					r.Get("/{username}/from", handleMessagesFrom(d.Users, log))
					r.Get("/{username}/to", handleMessagesTo(d.Users, log))
				})

				r.Route("/messages", func(r chi.Router) {
					r.Post("/", handleSendMessage(d.Messages, log))
					r.Get("/{id}", handleGetMessage(d.Messages, log))
					r.Post("/{id}/read", handleMarkRead(d.Messages, log))
				})
			})
		})
	})

	return r
}

func handleRoot(appName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("%s API", appName),
			"version": "1.0.0",
			"docs":    "/docs",
		})
	}
}

func handleHealth(ping func(ctx context.Context) error, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			if err := ping(r.Context()); err != nil {
				log.Warn("health check failed", "error", err)
				respond(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		respond(w, http.StatusOK, map[string]string{"status": "healthy"})
	}
}

// requestLogger logs one line per request and records the HTTP metrics
// under the matched route pattern.
func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, fmt.Sprint(status)).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())
			log.Info("http request",
				"method", r.Method,
				"route", route,
				"path", r.URL.Path,
				"status", status,
				"duration", elapsed,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// respond writes v as the JSON body. The body is encoded before the header
// goes out so an unencodable value turns into a plain 500.
func respond(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
