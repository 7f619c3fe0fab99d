package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mercadito-pesca/mercadito-backend/api/controllers"
	"github.com/mercadito-pesca/mercadito-backend/api/middleware"
	"github.com/mercadito-pesca/mercadito-backend/internal/analytics"
	"github.com/mercadito-pesca/mercadito-backend/internal/cart"
	"github.com/mercadito-pesca/mercadito-backend/internal/chat"
	"github.com/mercadito-pesca/mercadito-backend/internal/checkout"
	"github.com/mercadito-pesca/mercadito-backend/internal/orders"
	"github.com/mercadito-pesca/mercadito-backend/internal/products"
	"github.com/mercadito-pesca/mercadito-backend/internal/quotes"
	"github.com/mercadito-pesca/mercadito-backend/internal/reports"
	"github.com/mercadito-pesca/mercadito-backend/internal/users"
	"github.com/mercadito-pesca/mercadito-backend/pkg/config"
	"github.com/mercadito-pesca/mercadito-backend/pkg/logger"
)

// Services groups the domain services the API exposes.
type Services struct {
	Products  products.Service
	Cart      cart.Service
	Checkout  checkout.Service
	Orders    orders.Service
	Quotes    quotes.Service
	Analytics analytics.Service
	Users     users.Service
	Chat      chat.Service
	Reports   reports.Service
}

// Infra carries the shared clients the router needs beyond the services.
type Infra struct {
	Postgres    controllers.Pinger
	Redis       controllers.Pinger
	Idempotency middleware.ResponseStore
	Metrics     http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"postgres": infra.Postgres,
			"redis":    infra.Redis,
		}))
	})
	if infra.Metrics != nil {
		r.Handle("/metrics", infra.Metrics)
	}

	// Idempotency resolves its rule from the full route pattern, so it is
	// attached per endpoint after routing.
	idempotent := middleware.Idempotency(infra.Idempotency, logg)

	r.Route("/api/v1", func(r chi.Router) {
		// Public reads. A valid token personalizes the response.
		r.Group(func(r chi.Router) {
			r.Use(middleware.OptionalAuth(cfg.JWT, logg))

			r.Get("/products", controllers.ProductList(svc.Products, logg))
			r.Get("/products/{productID}", controllers.ProductDetail(svc.Products, svc.Analytics, logg))
			r.Get("/products/{productID}/price-comparison", controllers.ProductPriceComparison(svc.Analytics, logg))
			r.Get("/recommendations", controllers.AnalyticsRecommendations(svc.Analytics, logg))
			r.Get("/trending", controllers.AnalyticsTrending(svc.Analytics, logg))
			r.Get("/deals", controllers.AnalyticsDeals(svc.Analytics, logg))
			r.Get("/chat/messages", controllers.ChatList(svc.Chat, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Post("/products", controllers.ProductCreate(svc.Products, logg))
			r.Patch("/products/{productID}", controllers.ProductUpdate(svc.Products, logg))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svc.Cart, logg))
				r.Delete("/", controllers.CartClear(svc.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svc.Cart, logg))
				r.Patch("/items/{productID}", controllers.CartUpdateItem(svc.Cart, logg))
				r.Delete("/items/{productID}", controllers.CartRemoveItem(svc.Cart, logg))
			})

			r.With(idempotent).Post("/checkout", controllers.Checkout(svc.Checkout, logg))

			r.Get("/orders", controllers.OrderList(svc.Orders, logg))
			r.Get("/orders/{orderID}", controllers.OrderDetail(svc.Orders, logg))
			r.With(idempotent).Patch("/orders/{orderID}/status", controllers.OrderUpdateStatus(svc.Orders, logg))

			r.With(idempotent).Post("/quotes", controllers.QuoteGenerate(svc.Quotes, logg))
			r.Get("/quotes", controllers.QuoteList(svc.Quotes, logg))
			r.Get("/quotes/{quoteID}", controllers.QuoteDetail(svc.Quotes, logg))
			r.Get("/quotes/{quoteID}/pdf", controllers.QuotePDF(svc.Quotes, logg))
			r.Patch("/quotes/{quoteID}/status", controllers.QuoteUpdateStatus(svc.Quotes, logg))

			r.Post("/behaviors", controllers.AnalyticsRecordBehavior(svc.Analytics, logg))

			r.Route("/me", func(r chi.Router) {
				r.Get("/", controllers.UserMe(svc.Users, logg))
				r.Patch("/profile", controllers.UserUpdateProfile(svc.Users, logg))
				r.Get("/intent-score", controllers.AnalyticsIntentScore(svc.Analytics, logg))
				r.Post("/telegram", controllers.UserLinkTelegram(svc.Users, logg))
				r.Delete("/telegram", controllers.UserUnlinkTelegram(svc.Users, logg))
			})

			r.Post("/chat/messages", controllers.ChatPost(svc.Chat, logg))

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireStaff(logg))
				r.Post("/prices/refresh", controllers.AdminRefreshPrices(svc.Analytics, logg))
				r.Get("/reports/catalog", controllers.AdminCatalogExport(svc.Reports, logg))
			})
		})
	})

	return r
}
