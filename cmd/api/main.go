package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/museum-tickets/internal/access"
	"github.com/diagnosis/museum-tickets/internal/capacity"
	"github.com/diagnosis/museum-tickets/internal/http/handlers"
	"github.com/diagnosis/museum-tickets/internal/http/middleware"
	"github.com/diagnosis/museum-tickets/internal/platform/auth"
	"github.com/diagnosis/museum-tickets/internal/platform/mailer"
	"github.com/diagnosis/museum-tickets/internal/platform/payment"
	"github.com/diagnosis/museum-tickets/internal/pricing"
	"github.com/diagnosis/museum-tickets/internal/repo/memory"
	"github.com/diagnosis/museum-tickets/internal/repo/postgres"
	"github.com/diagnosis/museum-tickets/internal/reservation"
	"github.com/diagnosis/museum-tickets/pkg/config"
	"github.com/diagnosis/museum-tickets/pkg/database"
	"github.com/diagnosis/museum-tickets/pkg/events"
	"github.com/diagnosis/museum-tickets/pkg/logger"
	mw "github.com/diagnosis/museum-tickets/pkg/middleware"
)

func main() {
	if err := run(); err != nil {
		logger.Error("Ticketing service error", "error", err)
		os.Exit(1)
	}
}

type storage struct {
	orders      reservation.OrderRepository
	tickets     reservation.TicketRepository
	idempotency mw.IdempotencyStore
	cleanup     func(ctx context.Context) (int64, error)
	ping        mw.HealthCheck
	close       func()
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.close()

	var (
		locker  capacity.Locker    = capacity.NewLocalLocker()
		counter middleware.Counter = middleware.NewMemoryCounter()
	)
	checks := map[string]mw.HealthCheck{}
	if store.ping != nil {
		checks[cfg.Database.Driver] = store.ping
	}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		locker = capacity.NewRedisLocker(rdb, cfg.Redis.LockTTL)
		counter = middleware.NewRedisCounter(rdb)
		store.idempotency = mw.NewRedisIdempotencyStore(rdb)
		store.cleanup = nil
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		logger.Info("Using redis for locks, rate limits and idempotency")
	}

	bus, err := openEventBus(cfg.Events)
	if err != nil {
		return err
	}
	defer bus.Close()

	var processor payment.Processor = payment.DevProcessor{}
	if cfg.Stripe.SecretKey != "" {
		processor = payment.NewStripeProcessor(cfg.Stripe.SecretKey, cfg.Stripe.Currency)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, charges are simulated")
	}

	mail, err := newMailer(cfg.Email)
	if err != nil {
		return err
	}

	ctrl := capacity.NewController(store.tickets, cfg.Reservation.DailyCapacity)
	svc := reservation.NewService(reservation.Deps{
		Orders:     store.orders,
		Tickets:    store.tickets,
		Pricing:    pricing.NewPolicy(pricing.RatesFromConfig(cfg.Tariffs)),
		Capacity:   ctrl,
		Locker:     locker,
		Payments:   processor,
		Mailer:     mail,
		Events:     bus,
		Location:   cfg.Reservation.Location(),
		CutoffHour: cfg.Reservation.CutoffHour,
	})

	orderHandler := handlers.NewOrderHandler(svc, access.NewGuard(store.orders), handlers.OrderHandlerOptions{
		EntryPath:            cfg.Reservation.EntryPath,
		StripePublishableKey: cfg.Stripe.PublishableKey,
		Currency:             cfg.Stripe.Currency,
		CheckoutMiddleware: []func(http.Handler) http.Handler{
			mw.IdempotencyMiddleware(store.idempotency, cfg.Redis.IdempotencyTTL),
		},
	})
	proxies, err := middleware.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	limiter := middleware.NewRateLimiter(counter, middleware.RateLimitConfig{
		Requests:       cfg.Server.RateLimit,
		Window:         cfg.Server.RateWindow,
		SkipFunc:       middleware.OnlyPOST,
		TrustedProxies: proxies,
	})
	sessions := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("tickets"))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.Health(checks))
	r.Use(mw.CORS(cfg.Server.AllowOrigins))

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.VisitorSession(sessions, middleware.SessionConfig{
			CookieName: cfg.Auth.SessionCookie,
			Secure:     cfg.Auth.SecureCookie,
		}))
		r.Use(limiter.Middleware())
		r.Mount("/orders", orderHandler.Routes())
		r.Mount("/availability", handlers.NewAvailabilityHandler(ctrl).Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ticketing service", "port", cfg.Server.Port, "storage", cfg.Database.Driver, "event_bus", cfg.Events.Bus)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down ticketing service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if store.cleanup != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n, err := store.cleanup(gctx); err != nil {
						logger.Warn("Idempotency cleanup failed", "error", err)
					} else if n > 0 {
						logger.Info("Expired idempotency records removed", "count", n)
					}
				}
			}
		})
	}
	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.DatabaseConfig) (*storage, error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart")
		s := memory.NewStore()
		return &storage{
			orders:      s.Orders(),
			tickets:     s.Tickets(),
			idempotency: mw.NewMemoryIdempotencyStore(),
			close:       func() {},
		}, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	idem := postgres.NewIdempotencyRepo(pool)
	return &storage{
		orders:      postgres.NewOrderRepo(pool),
		tickets:     postgres.NewTicketRepo(pool),
		idempotency: idem,
		cleanup:     idem.CleanupExpired,
		ping:        pool.Ping,
		close:       pool.Close,
	}, nil
}

func openEventBus(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Bus {
	case "nats":
		return events.NewNATSEventBus(cfg.NATSURL)
	case "amqp":
		return events.NewAMQPPublisher(cfg.AMQPURL, "tickets.events")
	case "", "none":
		return events.NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown EVENT_BUS %q", cfg.Bus)
	}
}

func newMailer(cfg config.EmailConfig) (mailer.Service, error) {
	switch {
	case cfg.DevMode:
		return mailer.NewDevMailer(), nil
	case cfg.MailerSendKey != "":
		return mailer.NewMailer(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail, "reservation")
	default:
		return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.FromName, cfg.FromEmail, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS), nil
	}
}
