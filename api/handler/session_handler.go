package handler

import (
	"errors"
	"net/http"
	"strings"

	"fintrack/api/middleware"
	"fintrack/internal/dto"
	"fintrack/internal/service"

	"github.com/labstack/echo/v4"
)

type SessionHandler struct {
	Sessions *service.SessionService
	Auth     *service.AuthService
}

func NewSessionHandler(sessions *service.SessionService, auth *service.AuthService) *SessionHandler {
	return &SessionHandler{Sessions: sessions, Auth: auth}
}

func (h *SessionHandler) List(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	deviceID, _ := middleware.DeviceIDFromContext(c)
	sessions, err := h.Sessions.List(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SessionListResponseFromEntities(sessions, deviceID))
}

func (h *SessionHandler) Terminate(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	deviceID := strings.TrimSpace(c.Param("deviceId"))
	if deviceID == "" {
		return writeError(c, http.StatusBadRequest, errors.New("device id is required"))
	}
	found, err := h.Auth.TerminateSession(c.Request().Context(), userID, deviceID)
	if err != nil {
		return writeServiceError(c, err)
	}
	if !found {
		return writeError(c, http.StatusNotFound, service.ErrUserNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) TerminateOthers(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	deviceID, ok := middleware.DeviceIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	found, err := h.Auth.TerminateOtherSessions(c.Request().Context(), userID, deviceID)
	if err != nil {
		return writeServiceError(c, err)
	}
	if !found {
		return writeError(c, http.StatusNotFound, service.ErrUserNotFound)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SessionHandler) Security(c echo.Context) error {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	analysis, err := h.Sessions.SecurityAnalysis(c.Request().Context(), userID)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SecurityResponse{
		SecurityAnalysis: analysis,
		Recommendations:  service.Recommendations(analysis),
	})
}
