package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/petjoy-vn/petjoy-core/internal/availability"
	"github.com/petjoy-vn/petjoy-core/internal/booking"
	"github.com/petjoy-vn/petjoy-core/internal/handlers"
	"github.com/petjoy-vn/petjoy-core/internal/notify"
	"github.com/petjoy-vn/petjoy-core/internal/order"
	"github.com/petjoy-vn/petjoy-core/internal/outbox"
	"github.com/petjoy-vn/petjoy-core/internal/payment"
	"github.com/petjoy-vn/petjoy-core/internal/review"
	"github.com/petjoy-vn/petjoy-core/internal/storage"
	"github.com/petjoy-vn/petjoy-core/internal/sweeper"
	"github.com/petjoy-vn/petjoy-core/libs/config"
	"github.com/petjoy-vn/petjoy-core/libs/db"
	"github.com/petjoy-vn/petjoy-core/libs/httpx"
	"github.com/petjoy-vn/petjoy-core/libs/kafkax"
	otelx "github.com/petjoy-vn/petjoy-core/libs/otel"
	"github.com/petjoy-vn/petjoy-core/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "core-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	bookingRepo := storage.NewBookingRepository(pool)
	orderRepo := storage.NewOrderRepository(pool)
	paymentRepo := storage.NewPaymentRepository(pool)
	reviewRepo := storage.NewReviewRepository(pool)
	sweeperRepo := storage.NewSweeperRepository(pool)
	outboxRepo := outbox.NewRepository(pool)

	kafkaBrokers := config.String("KAFKA_BROKERS", "")
	var notifier notify.Notifier = notify.Noop{}
	if kafkaBrokers != "" {
		notifier = notify.NewOutboxNotifier(outboxRepo, logger)
		outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
			Brokers:   kafkaBrokers,
			PollEvery: 2 * time.Second,
			BatchSize: 50,
		})
		go outboxPublisher.Run(ctx)
	} else {
		logger.Warn("notifications disabled (no kafka brokers configured)")
	}

	engine := availability.NewEngine(bookingRepo, bookingRepo,
		config.Duration("BOOKING_LEAD_TIME", 30*time.Minute))
	bookingSvc := booking.NewService(bookingRepo, engine, notifier, logger,
		config.Duration("BOOKING_CANCEL_LEAD", 12*time.Hour))
	orderSvc := order.NewService(orderRepo, notifier, logger, order.Pricing{
		FreeShipThreshold: config.Int64("FREE_SHIPPING_THRESHOLD", 500000),
		FlatShippingFee:   config.Int64("FLAT_SHIPPING_FEE", 30000),
	}, config.Duration("ORDER_CHECKOUT_TTL", 15*time.Minute))

	stripeKey := config.String("STRIPE_SECRET_KEY", "")
	if stripeKey == "" {
		logger.Warn("card payments not configured (STRIPE_SECRET_KEY missing)")
	}
	paymentSvc := payment.NewService(paymentRepo, payment.NewStripeGateway(stripeKey), notifier, logger,
		config.Duration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second))
	reviewSvc := review.NewService(reviewRepo, logger)

	checkoutSweeper := sweeper.New(sweeperRepo, logger,
		config.Duration("SWEEP_INTERVAL", time.Minute),
		config.Duration("BOOKING_CHECKOUT_TTL", 5*time.Minute))
	go checkoutSweeper.Run(ctx)

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(kafkaBrokers)},
	)
	api := http.NewServeMux()
	handlers.NewBookingHandler(bookingSvc, logger).Register(api)
	handlers.NewOrderHandler(orderSvc, logger).Register(api)
	handlers.NewPaymentHandler(paymentSvc, logger).Register(api)
	handlers.NewAvailabilityHandler(engine, logger).Register(api)
	handlers.NewReviewHandler(reviewSvc, logger).Register(api)
	mux.Handle("/api/v1/", httpx.Chain(api, handlers.RequireAuth(jwtSecret)))

	rateLimit := rateLimitMiddleware(logger)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: strings.Split(config.String("CORS_ALLOWED_ORIGINS", "*"), ","),
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		}),
		httpx.WithBodyLimit(1<<20),
		rateLimit,
		httpx.WithTimeout(30*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// rateLimitMiddleware prefers the shared Redis window so limits hold across
// replicas; without Redis each replica falls back to a local window.
func rateLimitMiddleware(logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_REQUESTS", 120)
	window := config.Duration("RATE_LIMIT_WINDOW", time.Minute)

	redisAddr := config.String("REDIS_ADDR", "")
	if redisAddr == "" {
		return httpx.NewRateLimiter(limit, window).Middleware()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: config.String("REDIS_PASSWORD", ""),
	})
	return httpx.NewRedisRateLimiter(rdb, limit, window, "core:rl").Middleware(logger, true)
}
