package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"zenchat/internal/auth"
	"zenchat/internal/chat"
	"zenchat/internal/gateway"
	obsmw "zenchat/internal/observability/middleware"
	"zenchat/internal/store"
)

type RouterConfig struct {
	CORSOrigins  []string
	RateLimitRPM int
}

// NewRouter wires the full HTTP surface: account endpoints, the REST
// messaging fallback, and the realtime handshake. The websocket route sits
// outside the /api group so the per-request timeout never tears down
// long-lived connections.
func NewRouter(
	gw *gateway.Gateway,
	chatSvc *chat.Service,
	users *store.UserStore,
	tokens *auth.TokenService,
	hasher *auth.PasswordHasher,
	cfg RouterConfig,
) http.Handler {
	ah := &authHandler{users: users, tokens: tokens, hasher: hasher}
	mh := &messageHandler{chat: chatSvc}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(obsmw.WithRequestAndTrace)
	r.Use(obsmw.WithMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws", gw.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(30 * time.Second))
		if cfg.RateLimitRPM > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitRPM, 1*time.Minute))
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", ah.register)
			r.Post("/login", ah.login)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))

			r.Route("/messages", func(r chi.Router) {
				r.Get("/conversations", mh.listConversations)
				// {id} is the peer user id for GET/POST and the message id
				// for DELETE.
				r.Get("/{id}", mh.getMessages)
				r.Post("/{id}", mh.sendMessage)
				r.Delete("/{id}", mh.deleteMessage)
			})
		})
	})

	return r
}
