package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ecoStepAPI/handlers"
	"ecoStepAPI/internal/cache"
	"ecoStepAPI/internal/carbon"
	"ecoStepAPI/internal/config"
	"ecoStepAPI/internal/events"
	"ecoStepAPI/internal/jobs"
	"ecoStepAPI/internal/mail"
	"ecoStepAPI/internal/metrics"
	"ecoStepAPI/internal/notification"
	"ecoStepAPI/internal/repository"
	"ecoStepAPI/internal/store"
	"ecoStepAPI/middleware"
	"ecoStepAPI/pkg/logger"
	"ecoStepAPI/services"
)

type app struct {
	cfg   *config.Config
	store repository.Store

	userService         *services.UserService
	challengeService    *services.ChallengeService
	carbonService       *services.CarbonService
	progressService     *services.ProgressService
	leaderboardService  *services.LeaderboardService
	subscriptionService *services.SubscriptionService
	notificationService *services.NotificationService
	marketplaceService  *services.MarketplaceService
	dispatcher          *services.NotificationDispatcher

	producer  *events.Producer
	scheduler *jobs.Scheduler
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Init("production", "info")
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Service.Environment, cfg.Logging.Level)

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	st, err := store.Open(ctx, cfg, loc)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}

	a := newApp(cfg, st, loc)
	defer a.close()

	middleware.InitPrometheus()
	metrics.Register(prometheus.DefaultRegisterer)

	a.scheduler.Start()

	limiter := middleware.NewRateLimiter(10, 30)
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go limiter.CleanupVisitors(cleanupCtx, time.Minute, 3*time.Minute)

	r := a.router(limiter)

	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	server := http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("error starting server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}

	logger.Info().Msg("server shutdown complete")
}

// newApp builds the services and wires every optional collaborator that
// is configured. Missing collaborators are logged and skipped.
func newApp(cfg *config.Config, st repository.Store, loc *time.Location) *app {
	a := &app{cfg: cfg, store: st}

	var remote carbon.Remote
	if cfg.Estimator.BaseURL != "" {
		remote = carbon.NewClient(cfg.Estimator.BaseURL, cfg.Estimator.Timeout)
	} else {
		logger.Warn().Msg("no estimator URL configured; using local carbon formula")
	}
	estimator := carbon.NewEstimator(remote, cfg.Estimator.Timeout)

	a.userService = services.NewUserService(st)
	a.challengeService = services.NewChallengeService(st, loc)
	a.carbonService = services.NewCarbonService(st, estimator, loc)
	a.progressService = services.NewProgressService(st, a.challengeService, loc)
	a.leaderboardService = services.NewLeaderboardService(st, loc)
	a.subscriptionService = services.NewSubscriptionService(st, cfg.Billing.PremiumDays)
	a.subscriptionService.SetStripeWebhookSecret(cfg.Billing.StripeWebhookSecret)
	a.marketplaceService = services.NewMarketplaceService(st)

	a.dispatcher = services.NewNotificationDispatcher(st, cfg.Push.Workers, cfg.Push.QueueSize)
	a.challengeService.SetNotifier(a.dispatcher)
	a.notificationService = services.NewNotificationService(st, a.dispatcher)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if fcmService, err := notification.NewFCMService(ctx, cfg.Push.CredentialsFile); err != nil {
		logger.Warn().Err(err).Msg("could not initialize FCM; push notifications disabled")
	} else {
		a.dispatcher.SetPushProvider(fcmService)
		logger.Info().Msg("FCM push provider initialized")
	}

	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable; leaderboard cache disabled")
		} else {
			lc := cache.NewLeaderboardCache(client, cfg.Redis.LeaderboardTTL)
			a.leaderboardService.SetCache(lc)
			a.challengeService.SetLeaderboardCache(lc)
		}
	}

	if len(cfg.Kafka.Brokers) > 0 {
		a.producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		a.challengeService.SetEventPublisher(a.producer)
		a.subscriptionService.SetEventPublisher(a.producer)
	}

	if cfg.Mail.Host != "" {
		mailer, err := mail.NewMailer(mail.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("mailer disabled")
		} else {
			a.subscriptionService.SetMailer(mailer)
		}
	}

	if cfg.Billing.StripeSecretKey != "" {
		a.subscriptionService.SetGateway(services.NewStripeGateway(services.StripeConfig{
			SecretKey:  cfg.Billing.StripeSecretKey,
			PriceID:    cfg.Billing.StripePriceID,
			SuccessURL: cfg.Billing.SuccessURL,
			CancelURL:  cfg.Billing.CancelURL,
		}))
	}

	if cfg.Billing.PaddleAPIKey != "" {
		gw, err := services.NewPaddleGateway(services.PaddleConfig{
			APIKey:    cfg.Billing.PaddleAPIKey,
			Sandbox:   cfg.Billing.PaddleSandbox,
			PriceID:   cfg.Billing.PaddlePriceID,
			ReturnURL: cfg.Billing.SuccessURL,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("paddle checkout disabled")
		} else {
			a.subscriptionService.SetPaddleCheckout(gw)
		}
	}

	a.scheduler = jobs.NewScheduler(5 * time.Minute)
	err := a.scheduler.Register("premium-sweep", cfg.Jobs.PremiumSweep, func(ctx context.Context) error {
		n, err := a.subscriptionService.ExpireLapsed(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info().Int("expired", n).Msg("premium sweep")
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule premium sweep")
	}

	return a
}

func (a *app) authMiddleware() func(http.Handler) http.Handler {
	if a.cfg.Auth.Mode == config.AuthLocal {
		logger.Info().Msg("using local JWT authentication")
		return middleware.LocalJWTMiddleware([]byte(a.cfg.Auth.JWTSecret), a.cfg.Auth.JWTIssuer, a.userService)
	}
	clerk.SetKey(a.cfg.Auth.ClerkSecretKey)
	logger.Info().Msg("Clerk initialized successfully")
	return middleware.ClerkAuthMiddleware(a.userService)
}

// optionalAuthMiddleware attaches the caller when a valid token is sent
// and lets anonymous requests through.
func (a *app) optionalAuthMiddleware() func(http.Handler) http.Handler {
	if a.cfg.Auth.Mode == config.AuthLocal {
		verify := middleware.LocalVerifier([]byte(a.cfg.Auth.JWTSecret), a.cfg.Auth.JWTIssuer)
		return middleware.OptionalAuthMiddleware(verify, a.userService, true)
	}
	return middleware.OptionalAuthMiddleware(middleware.ClerkVerifier, a.userService, false)
}

func (a *app) router(limiter *middleware.RateLimiter) *mux.Router {
	userHandler := handlers.NewUserHandler(a.userService)
	carbonHandler := handlers.NewCarbonHandler(a.carbonService)
	challengeHandler := handlers.NewChallengeHandler(a.challengeService)
	progressHandler := handlers.NewProgressHandler(a.progressService, a.leaderboardService)
	subscriptionHandler := handlers.NewSubscriptionHandler(a.subscriptionService)
	notificationHandler := handlers.NewNotificationHandler(a.notificationService)
	marketplaceHandler := handlers.NewMarketplaceHandler(a.marketplaceService)
	webhookHandler := handlers.NewWebhookHandler(a.userService, a.subscriptionService, a.cfg.Auth.ClerkWebhookSecret, a.cfg.Billing.PaddleWebhookSecret)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(limiter.Middleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(a.cfg.Metrics.Username, a.cfg.Metrics.Password)(promhttp.Handler()))

	standardRouter.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := a.store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "` + a.cfg.Service.Name + `"}`))
	}).Methods("GET")

	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")
	standardRouter.HandleFunc("/webhooks/stripe", webhookHandler.HandleStripeWebhook).Methods("POST")
	standardRouter.HandleFunc("/webhooks/paddle", webhookHandler.HandlePaddleWebhook).Methods("POST")

	api := standardRouter.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/challenges/featured", challengeHandler.GetFeatured).Methods("GET")
	api.HandleFunc("/subscription/paddle/prices", subscriptionHandler.GetPaddlePrices).Methods("GET")
	api.HandleFunc("/marketplace/categories", marketplaceHandler.GetCategories).Methods("GET")
	api.HandleFunc("/marketplace/featured", marketplaceHandler.GetFeatured).Methods("GET")

	marketplace := api.PathPrefix("/marketplace").Subrouter()
	marketplace.Use(a.optionalAuthMiddleware())
	marketplace.HandleFunc("/catalog", marketplaceHandler.GetCatalog).Methods("GET")
	marketplace.HandleFunc("/products", marketplaceHandler.ListProducts).Methods("GET")
	marketplace.HandleFunc("/products/{id}", marketplaceHandler.GetProduct).Methods("GET")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(a.authMiddleware())

	protected.HandleFunc("/users/profile", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/users/profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/users/lifestyle", userHandler.UpdateLifestyle).Methods("PUT")
	protected.HandleFunc("/users/badges", userHandler.GetBadges).Methods("GET")
	protected.HandleFunc("/users/stats", userHandler.GetStats).Methods("GET")

	protected.HandleFunc("/carbon/calculate", carbonHandler.Calculate).Methods("POST")
	protected.HandleFunc("/carbon/history", carbonHandler.GetHistory).Methods("GET")
	protected.HandleFunc("/carbon/activity", carbonHandler.LogActivity).Methods("POST")
	protected.HandleFunc("/carbon/insights", carbonHandler.GetInsights).Methods("GET")

	protected.HandleFunc("/challenges", challengeHandler.ListChallenges).Methods("GET")
	protected.HandleFunc("/challenges/daily", challengeHandler.GetDaily).Methods("GET")
	protected.HandleFunc("/challenges/user/active", challengeHandler.GetActive).Methods("GET")
	protected.HandleFunc("/challenges/user/completed", challengeHandler.GetCompleted).Methods("GET")
	protected.HandleFunc("/challenges/{id}", challengeHandler.GetChallenge).Methods("GET")
	protected.HandleFunc("/challenges/{id}/start", challengeHandler.StartChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/complete", challengeHandler.CompleteChallenge).Methods("POST")
	protected.HandleFunc("/challenges/{id}/progress", challengeHandler.UpdateProgress).Methods("PUT")

	protected.HandleFunc("/progress/dashboard", progressHandler.GetDashboard).Methods("GET")
	protected.HandleFunc("/progress/history", progressHandler.GetHistory).Methods("GET")
	protected.HandleFunc("/progress/stats", progressHandler.GetStats).Methods("GET")
	protected.HandleFunc("/progress/charts", progressHandler.GetCharts).Methods("GET")
	protected.HandleFunc("/leaderboard/global", progressHandler.GetGlobalLeaderboard).Methods("GET")
	protected.HandleFunc("/leaderboard/weekly", progressHandler.GetWeeklyLeaderboard).Methods("GET")

	protected.HandleFunc("/subscription/status", subscriptionHandler.GetStatus).Methods("GET")
	protected.HandleFunc("/subscription/checkout", subscriptionHandler.CreateCheckout).Methods("POST")
	protected.HandleFunc("/subscription/cancel", subscriptionHandler.Cancel).Methods("POST")
	protected.HandleFunc("/subscription/paddle/checkout", subscriptionHandler.CreatePaddleCheckout).Methods("POST")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")
	protected.HandleFunc("/notifications/register-device", notificationHandler.UnregisterDevice).Methods("DELETE")
	protected.HandleFunc("/notifications/test", notificationHandler.SendTestNotification).Methods("POST")

	protected.HandleFunc("/marketplace/products/{id}/click", marketplaceHandler.TrackClick).Methods("POST")

	return r
}

func (a *app) close() {
	a.scheduler.Stop()
	a.dispatcher.Stop()
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close event producer")
		}
	}
	logger.Info().Msg("Closing database connection pool...")
	a.store.Close()
}
