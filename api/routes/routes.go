package routes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"fintrack/api/handler"
	"fintrack/api/middleware"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const defaultForgotPasswordTimeout = 60 * time.Second

type Router struct {
	Echo           *echo.Echo
	Auth           *handler.AuthHandler
	Sessions       *handler.SessionHandler
	AuthMiddleware middleware.AuthMiddleware
	AuthRate       *middleware.RateLimiter
	LoginRate      *middleware.RateLimiter
	// Gatherer backs GET /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
	// ForgotPasswordTimeout bounds the forgot-password request including email delivery.
	ForgotPasswordTimeout time.Duration
}

func NewRouter(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	sessionHandler *handler.SessionHandler,
	authMiddleware middleware.AuthMiddleware,
) *Router {
	return &Router{
		Echo:                  e,
		Auth:                  authHandler,
		Sessions:              sessionHandler,
		AuthMiddleware:        authMiddleware,
		AuthRate:              middleware.NewRateLimiter(rate.Limit(5), 10, 5*time.Minute),
		LoginRate:             middleware.NewRateLimiter(rate.Limit(2), 4, 10*time.Minute),
		ForgotPasswordTimeout: defaultForgotPasswordTimeout,
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	gatherer := r.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	forgotTimeout := echoMiddleware.ContextTimeoutWithConfig(echoMiddleware.ContextTimeoutConfig{
		Timeout: r.forgotPasswordTimeout(),
		ErrorHandler: func(err error, c echo.Context) error {
			if errors.Is(err, context.DeadlineExceeded) {
				return echo.NewHTTPError(http.StatusGatewayTimeout, "request timed out").SetInternal(err)
			}
			return err
		},
	})

	auth := e.Group("/api/auth")
	auth.POST("/register", r.Auth.Register, r.AuthRate.Middleware())
	auth.POST("/login", r.Auth.Login, r.LoginRate.Middleware())
	auth.POST("/logout", r.Auth.Logout, r.AuthMiddleware.RequireAuth)
	auth.POST("/forgot-password", r.Auth.ForgotPassword, r.LoginRate.Middleware(), forgotTimeout)
	auth.POST("/verify-otp", r.Auth.VerifyOTP, r.LoginRate.Middleware())
	auth.POST("/reset-password", r.Auth.ResetPassword, r.AuthRate.Middleware())

	users := e.Group("/api/users", r.AuthMiddleware.RequireAuth)
	users.GET("/me", r.Auth.Me)
	users.DELETE("/me", r.Auth.DeleteMe)

	sessions := e.Group("/api/sessions", r.AuthMiddleware.RequireAuth)
	sessions.GET("", r.Sessions.List)
	sessions.GET("/security", r.Sessions.Security)
	sessions.POST("/terminate-others", r.Sessions.TerminateOthers)
	sessions.DELETE("/:deviceId", r.Sessions.Terminate)
}

func (r *Router) forgotPasswordTimeout() time.Duration {
	if r.ForgotPasswordTimeout <= 0 {
		return defaultForgotPasswordTimeout
	}
	return r.ForgotPasswordTimeout
}
