package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/brandpay-backend/api/controllers"
	"github.com/angelmondragon/brandpay-backend/api/middleware"
	"github.com/angelmondragon/brandpay-backend/pkg/auth"
	"github.com/angelmondragon/brandpay-backend/pkg/config"
	"github.com/angelmondragon/brandpay-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/brandpay-backend/pkg/redis"
)

// settlementTarget is the cron target a new withdrawal nudges.
const settlementTarget = "settlement"

type redisClient interface {
	controllers.Pinger
	pkgredis.IdempotencyStore
	pkgredis.RateLimiter
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	storePinger controllers.Pinger,
	redis redisClient,
	ordersSvc controllers.OrderService,
	withdrawals controllers.WithdrawalService,
	trigger controllers.Trigger,
	cronTargets []string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", cfg.RateLimit.CheckoutWindow, cfg.RateLimit.CheckoutLimit)
	withdrawalPolicy := middleware.NewRateLimitPolicy("withdrawals", cfg.RateLimit.WithdrawalWindow, cfg.RateLimit.WithdrawalLimit)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"store": storePinger,
			"redis": redis,
		}))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redis, logg))

		r.With(middleware.RateLimit(checkoutPolicy, redis, logg)).Post("/v1/orders", controllers.Checkout(ordersSvc, logg))
		r.Get("/v1/orders", controllers.ListOrders(ordersSvc, logg))
		r.Get("/v1/orders/{reference}", controllers.OrderDetail(ordersSvc, logg))
		r.Post("/v1/orders/{id}/cancel", controllers.CancelOrder(ordersSvc, logg))
		r.Post("/v1/payments/{reference}/verify", controllers.VerifyPayment(ordersSvc, logg))
		r.With(middleware.RateLimit(withdrawalPolicy, redis, logg)).
			Post("/v1/withdrawals", controllers.Withdraw(withdrawals, trigger, settlementTarget, logg))

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, auth.RoleAdmin))
			r.Post("/cron/{target}", controllers.TriggerCron(trigger, cronTargets, logg))
		})
	})

	return r
}
