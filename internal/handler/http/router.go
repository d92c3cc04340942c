package http

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/health"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
)

// Services bundles the application services exposed over HTTP.
type Services struct {
	Sessions      *service.SessionService
	Carts         *service.CartService
	Orders        *service.OrderService
	Settlement    *service.SettlementService
	Checkout      *service.CheckoutService
	Favorites     *service.FavoriteService
	Subscriptions *service.SubscriptionService
}

// RouterConfig holds the HTTP edge settings.
type RouterConfig struct {
	ServiceName    string
	TokenValidator middleware.TokenValidator
	CORS           middleware.CORSConfig
	RateLimitRPS   float64
	RateLimitBurst int
	TrustedProxies []netip.Prefix
	SessionTTL     time.Duration
	SecureCookies  bool
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all marketplace routes registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.Tracing())
	r.Use(middleware.Session)
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	sessionHandler := NewSessionHandler(svc.Sessions, logger, cfg.SessionTTL, cfg.SecureCookies)
	cartHandler := NewCartHandler(svc.Carts, logger)
	orderHandler := NewOrderHandler(svc.Orders, svc.Carts, logger)
	paymentHandler := NewPaymentHandler(svc.Settlement, logger)
	checkoutHandler := NewCheckoutHandler(svc.Checkout, logger)
	favoriteHandler := NewFavoriteHandler(svc.Favorites, logger)
	subscribeHandler := NewSubscribeHandler(svc.Subscriptions, logger)

	// Anonymous writes share one per-IP limiter.
	limit := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustedProxies, logger)

	// Public endpoints
	r.Post("/sessions", sessionHandler.GetOrCreate)
	r.Get("/sessions/current", sessionHandler.GetOrCreate)

	r.Route("/cart/{sessionId}", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Post("/", cartHandler.GetCart)

		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/add", cartHandler.AddItem)
			r.Delete("/remove/{itemId}", cartHandler.RemoveItem)
			r.Delete("/", cartHandler.ClearCart)
		})
	})

	r.With(limit).Post("/subscribe", subscribeHandler.Subscribe)

	// Authenticated endpoints
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.TokenValidator, logger))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", orderHandler.CreateOrder)
			r.Get("/", orderHandler.ListOrders)
			r.Get("/{orderId}", orderHandler.GetOrder)
		})
		r.Get("/artisan/orders", orderHandler.ListSellerOrders)

		r.Post("/payment/process", paymentHandler.ProcessPayment)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkoutHandler.StartCheckout)
			r.Get("/{checkoutId}", checkoutHandler.GetCheckout)
			r.Post("/{checkoutId}/shipping", checkoutHandler.SubmitShipping)
			r.Post("/{checkoutId}/payment", checkoutHandler.SubmitPayment)
			r.Post("/{checkoutId}/abandon", checkoutHandler.AbandonCheckout)
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", favoriteHandler.ListFavorites)
			r.Post("/{itemId}", favoriteHandler.AddFavorite)
			r.Delete("/{itemId}", favoriteHandler.RemoveFavorite)
		})
	})

	return r
}
