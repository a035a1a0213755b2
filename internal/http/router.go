package httpapi

import (
	"net/http"

	"canteen-menu-service/internal/config"
	"canteen-menu-service/internal/http/handlers"
	"canteen-menu-service/internal/middleware"
	"canteen-menu-service/internal/ws"
	"canteen-menu-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

func NewRouter(h *handlers.Handler, logger *zap.Logger, cfg config.Config, telemetry *middleware.Telemetry, wsServer *ws.Server) http.Handler {
	if telemetry == nil {
		telemetry = middleware.NewTelemetry(logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(telemetry.Handler)

	if cfg.Development() || len(cfg.CorsAllowedOrigins) > 0 {
		options := cors.Options{
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{
				"Accept",
				"Authorization",
				"Content-Type",
				"If-Match",
				"X-Requested-With",
				"X-Request-Id",
				"Cache-Control",
			},
			ExposedHeaders:   []string{"ETag", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}

		if cfg.Development() {
			options.AllowOriginFunc = func(_ *http.Request, origin string) bool {
				return true
			}
		} else {
			options.AllowedOrigins = cfg.CorsAllowedOrigins
		}

		r.Use(cors.Handler(options))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, map[string]any{
			"status": "ok",
			"routes": telemetry.Snapshot(),
		})
	})

	r.Post("/auth/login", h.Login)
	r.Get("/advanceMenu/overview", h.AdvanceMenuOverview)

	if wsServer != nil {
		r.Get("/ws/bookings/{bookingId}", wsServer.BookingWS)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(cfg.JWTSecret))

		h.MountCatalog(r)
		r.Post("/advanceMenu/publish", h.AdvanceMenuPublish)
		r.Post("/bookings", h.RegisterBooking)

		r.Route("/AdminCorrectMenus", func(r chi.Router) {
			r.Get("/structured", h.AdminStructuredMenus)
			r.Get("/structured/booking/{bookingId}", h.AdminStructuredBooking)
			r.Put("/bookingPrice/{bookingId}", h.AdminResetBookingPrice)
			r.Get("/{bookingId}/audit", h.AdminSelectionAudit)
			r.Put("/{bookingId}", h.AdminReplaceMenu)
			r.Delete("/{bookingId}", h.AdminDeleteMenu)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/{bookingId}/choices", h.OrderChoices)
			r.Post("/submit/{bookingId}", h.OrderSubmit)
			r.Post("/add-choice/{bookingId}", h.OrderAddChoice)
			r.Delete("/{bookingId}/remove-choice/{icmtId}", h.OrderRemoveChoice)
			r.Delete("/reset-choices/{bookingId}", h.OrderResetChoices)
			r.Patch("/{bookingId}/swap-choice/{oldIcmtId}", h.OrderSwapChoice)
		})
	})

	return r
}
