package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fintrack/internal/device"
	"fintrack/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

const CodeSessionTerminated = "SESSION_TERMINATED"

type Gate interface {
	Admit(ctx context.Context, token string, info device.RequestInfo) (*service.Admission, error)
}

type AuthMiddleware struct {
	Gate    Gate
	Metrics *HTTPMetrics
	Logger  logrus.FieldLogger
}

type sessionTerminatedResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Gate == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		token := extractBearerToken(c.Request())
		admission, err := m.Gate.Admit(c.Request().Context(), token, RequestInfo(c))
		if err != nil {
			reason := rejectionReason(err)
			m.Metrics.ObserveRejection(reason)
			if m.Logger != nil && reason == "session_unverifiable" {
				m.Logger.WithError(err).Warn("session verification failed")
			}
			if errors.Is(err, service.ErrSessionTerminated) {
				return c.JSON(http.StatusUnauthorized, sessionTerminatedResponse{
					Message: "session has been terminated, please log in again",
					Code:    CodeSessionTerminated,
				})
			}
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		SetAuthContext(c, admission.UserID, admission.DeviceID)
		return next(c)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, service.ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, service.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, service.ErrSubjectNotFound):
		return "subject_not_found"
	case errors.Is(err, service.ErrSessionTerminated):
		return "session_terminated"
	default:
		return "session_unverifiable"
	}
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
