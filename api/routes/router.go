package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robojust/storefront-backend/api/controllers"
	webhookcontrollers "github.com/robojust/storefront-backend/api/controllers/webhooks"
	"github.com/robojust/storefront-backend/api/middleware"
	"github.com/robojust/storefront-backend/internal/auth"
	"github.com/robojust/storefront-backend/internal/cart"
	"github.com/robojust/storefront-backend/internal/orders"
	"github.com/robojust/storefront-backend/internal/payments"
	"github.com/robojust/storefront-backend/internal/products"
	razorpaywebhook "github.com/robojust/storefront-backend/internal/webhooks/razorpay"
	"github.com/robojust/storefront-backend/internal/wishlist"
	"github.com/robojust/storefront-backend/pkg/config"
	"github.com/robojust/storefront-backend/pkg/db"
	"github.com/robojust/storefront-backend/pkg/logger"
	"github.com/robojust/storefront-backend/pkg/metrics"
	"github.com/robojust/storefront-backend/pkg/razorpay"
	"github.com/robojust/storefront-backend/pkg/redis"
)

// Deps bundles everything the router wires together.
type Deps struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.WebhookMetrics

	DB      *db.Client
	Redis   *redis.Client
	Gateway *razorpay.Client

	AuthService     auth.Service
	ProductsService products.Service
	CartService     cart.Service
	WishlistService wishlist.Service
	OrdersService   orders.Service
	PaymentsService *payments.Service

	WebhookService *razorpaywebhook.Service
	WebhookGuard   *razorpaywebhook.IdempotencyGuard

	PromRegistry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	var pingers []controllers.DependencyPinger
	if deps.DB != nil {
		pingers = append(pingers, deps.DB)
	}
	if deps.Redis != nil {
		pingers = append(pingers, deps.Redis)
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, pingers...))
	})

	if deps.PromRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.PromRegistry, promhttp.HandlerOpts{}))
	}

	// The webhook route stays outside the auth stack: the gateway signs
	// requests with the webhook secret instead of a bearer token.
	r.Post("/api/payment-webhook", webhookcontrollers.RazorpayWebhook(
		deps.WebhookService, deps.Gateway, deps.WebhookGuard, deps.Metrics, logg,
	))

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/register", controllers.Register(deps.AuthService, logg))
		r.Post("/login", controllers.Login(deps.AuthService, logg))
	})

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(deps.ProductsService, logg))
		r.Get("/{productId}", controllers.ProductsGet(deps.ProductsService, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/create-order", controllers.PaymentsCreateOrder(deps.PaymentsService, logg))
		r.Post("/verify-payment", controllers.PaymentsVerify(deps.PaymentsService, logg))

		r.Route("/v1/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(deps.CartService, logg))
			r.Post("/", controllers.CartAddItem(deps.CartService, logg))
			r.Delete("/", controllers.CartClear(deps.CartService, logg))
			r.Delete("/{productId}", controllers.CartRemoveItem(deps.CartService, logg))
		})

		r.Route("/v1/wishlist", func(r chi.Router) {
			r.Get("/", controllers.WishlistList(deps.WishlistService, logg))
			r.Post("/", controllers.WishlistAddItem(deps.WishlistService, logg))
			r.Delete("/{productId}", controllers.WishlistRemoveItem(deps.WishlistService, logg))
		})

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.OrdersList(deps.OrdersService, logg))
			r.Get("/{orderId}", controllers.OrdersGet(deps.OrdersService, logg))
			r.Post("/{orderId}/cancel", controllers.OrdersCancel(deps.OrdersService, logg))
		})
	})

	return r
}
