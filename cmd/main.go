package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fintrack/api/handler"
	apiMiddleware "fintrack/api/middleware"
	"fintrack/api/routes"
	"fintrack/config"
	"fintrack/internal/device"
	"fintrack/internal/repository"
	"fintrack/internal/service"
	"fintrack/internal/tasks"
	"fintrack/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	db, err := config.ConnectionDb(cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var geoCache device.Cache = device.NewMemoryCache(cfg.GeoCacheTTL, nil)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, geolocation cache lookups will miss until it recovers")
		}
		geoCache = device.NewRedisCache(rdb, "fintrack:geo:", cfg.GeoCacheTTL, logger)
	}

	httpClient := &http.Client{Timeout: cfg.GeoLookupTimeout}
	locator := device.NewLocator(geoCache, cfg.GeoLookupTimeout, logger,
		device.NewIPAPICo(httpClient, ""),
		device.NewIPAPICom(httpClient, ""),
	)
	fingerprinter := device.NewFingerprinter(locator)

	runner := tasks.NewRunner(ctx, 30*time.Second, logger)
	scheduler := tasks.NewScheduler(logger)

	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	securityRepo := repository.NewSecurityLogRepository(db)

	tokens := service.NewTokenService(utils.TokenManager{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
	}, cfg.LoginTokenTTL, cfg.ResetTokenTTL)

	sessionService := service.NewSessionService(userRepo, sessionRepo, service.RealClock{}, service.SessionConfig{
		ActiveWindow: cfg.SessionActiveWindow,
		Retention:    cfg.SessionRetention,
	}, logger)

	var emailSender service.EmailSender
	if sender := service.NewResendEmailSender(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppBaseURL); sender.Configured() {
		emailSender = sender
	} else {
		logger.Warn("RESEND_API_KEY or EMAIL_FROM not set, emails are disabled")
	}

	authService := service.NewAuthService(
		userRepo,
		securityRepo,
		sessionService,
		tokens,
		fingerprinter,
		emailSender,
		service.BcryptPasswordHasher{Cost: cfg.BcryptCost},
		service.NewTOTPCodeGenerator(cfg.JWTIssuer),
		runner,
		service.RealClock{},
		service.AuthConfig{
			OTPTTL:          cfg.OTPTTL,
			OTPMaxAttempts:  cfg.OTPMaxAttempts,
			ResetRateWindow: cfg.ResetRateWindow,
			ResetRateLimit:  cfg.ResetRateLimit,
		},
		logger,
	)
	gate := service.NewAuthGate(tokens, userRepo, fingerprinter, sessionService, runner)

	scheduler.Every(ctx, "session.sweep", cfg.SessionSweepInterval, func(ctx context.Context) error {
		_, err := sessionService.SweepStale(ctx)
		return err
	})

	metrics, err := apiMiddleware.NewHTTPMetrics(apiMiddleware.HTTPMetricsOptions{})
	if err != nil {
		logger.WithError(err).Fatal("metrics registration failed")
	}

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	if cfg.TrustProxy {
		app.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		app.IPExtractor = echo.ExtractIPDirect()
	}
	app.Use(echoMiddleware.Recover())
	app.Use(metrics.Middleware())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status":  v.Status,
				"method":  v.Method,
				"uri":     v.URI,
				"ip":      v.RemoteIP,
				"latency": v.Latency.String(),
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	validate := validator.New()
	authMiddleware := apiMiddleware.AuthMiddleware{Gate: gate, Metrics: metrics, Logger: logger}
	router := routes.NewRouter(app,
		handler.NewAuthHandler(authService, validate),
		handler.NewSessionHandler(sessionService, authService),
		authMiddleware,
	)
	router.ForgotPasswordTimeout = cfg.ForgotPasswordTimeout
	router.RegisterRoutes()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("server started")
		if err := app.StartServer(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	scheduler.Wait()
	runner.Wait()
	logger.Info("server stopped")
}
