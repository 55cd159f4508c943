package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"missionrewards/internal/metrics"
	mw "missionrewards/internal/middleware"
	"missionrewards/internal/storage"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Accounts  Accounts
	Missions  MissionService
	Ledger    Redeemer
	Catalog   CatalogService
	Review    ReviewService
	Dashboard SummaryService
}

type RouterConfig struct {
	Logger      *zap.Logger
	Auth        *mw.AuthMiddleware
	RateLimiter *mw.RateLimiter
	CORSOrigins []string
	// UploadDir is served under /uploads when the local store is in use.
	UploadDir string
}

// NewRouter wires middleware and routes.
func NewRouter(cfg RouterConfig, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.ZapRequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authH := NewAuthHandler(svc.Accounts, cfg.Logger)
	userH := NewUserHandler(svc.Accounts, cfg.Logger)
	dashH := NewDashboardHandler(svc.Dashboard, cfg.Logger)
	missionH := NewMissionHandler(svc.Missions, cfg.Logger)
	voucherH := NewVoucherHandler(svc.Catalog, svc.Ledger, cfg.Logger)
	rewardH := NewRewardHandler(svc.Ledger, cfg.Logger)
	adminH := NewAdminHandler(svc.Review, cfg.Logger)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	if cfg.UploadDir != "" {
		fs := http.StripPrefix(storage.LocalRoute+"/", http.FileServer(http.Dir(cfg.UploadDir)))
		r.Handle(storage.LocalRoute+"/*", fs)
	}

	r.Group(func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Handler)
		}
		r.Post("/register", authH.Register)
		r.Post("/login", authH.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(cfg.Auth.RequireAuth)

		r.Post("/logout", authH.Logout)

		r.Get("/user", userH.GetMe)
		r.Post("/user/profile", userH.UpdateProfile)
		r.Get("/user/summary", dashH.Get)

		r.Get("/missions/active", missionH.Active)
		r.Get("/missions/{id}/progress", missionH.Progress)
		r.Get("/user-missions-history/{userId}", missionH.History)

		r.Get("/vouchers", voucherH.List)
		r.Get("/vouchers/{id}", voucherH.Show)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/overview", adminH.Overview)
			r.Get("/user-missions/pending", adminH.Pending)
			r.Post("/user-missions/{id}/approve", adminH.Approve)
			r.Post("/user-missions/{id}/reject", adminH.Reject)
		})

		// Writes that spend points or upload artifacts are rate limited per user.
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Handler)
			}
			r.Post("/user/profile-picture", userH.UploadPicture)
			r.Post("/missions/{id}/submit-proof", missionH.SubmitProof)
			r.Post("/user-missions/{id}/submit-proof", missionH.SubmitProof)
			r.Post("/vouchers/exchange", voucherH.Exchange)
			r.Post("/rewards/exchange", rewardH.Exchange)
		})
	})

	return r
}
