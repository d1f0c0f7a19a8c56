// http собирает HTTP-роутер сервиса: REST-эндпойнты аутентификации,
// пробы живости/готовности и экспорт метрик.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"admin-auth-service/internal/rate"
	"admin-auth-service/internal/service"
	"admin-auth-service/internal/transport/http/handlers"
	"admin-auth-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	Limiter rate.Limiter

	// Registry включает /metrics и сбор HTTP-метрик; nil отключает и то и другое.
	Registry *prometheus.Registry

	// Health опрашивается /healthz (обычно ping пула БД); nil — проба всегда зелёная.
	Health func(ctx context.Context) error
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Registry != nil {
		root.Use(middleware.NewHTTPMetrics(opts.Registry).Collect())
	}
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc, opts.Limiter)

	root.Post("/auth/signup", h.SignUp)
	root.Post("/auth/signin", h.SignIn)
	root.Post("/auth/refresh", h.Refresh)
	root.Post("/auth/logout", h.Logout)
	root.Get("/auth/me", h.Me)

	root.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if opts.Health != nil {
			if err := opts.Health(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if opts.Registry != nil {
		root.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{}))
	}

	return root
}
