package middleware

import (
	"fintrack/internal/device"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	contextUserIDKey   = "auth_user_id"
	contextDeviceIDKey = "auth_device_id"
)

func SetAuthContext(c echo.Context, userID uuid.UUID, deviceID string) {
	c.Set(contextUserIDKey, userID)
	c.Set(contextDeviceIDKey, deviceID)
}

func UserIDFromContext(c echo.Context) (uuid.UUID, bool) {
	value := c.Get(contextUserIDKey)
	userID, ok := value.(uuid.UUID)
	return userID, ok
}

func DeviceIDFromContext(c echo.Context) (string, bool) {
	value := c.Get(contextDeviceIDKey)
	deviceID, ok := value.(string)
	return deviceID, ok && deviceID != ""
}

// RequestInfo collects the fingerprinting inputs of the current request. The
// extractor-resolved IP is only used when an IPExtractor is configured.
func RequestInfo(c echo.Context) device.RequestInfo {
	req := c.Request()
	info := device.RequestInfo{
		UserAgent:    req.UserAgent(),
		RemoteAddr:   req.RemoteAddr,
		ForwardedFor: req.Header.Get(echo.HeaderXForwardedFor),
	}
	if c.Echo().IPExtractor != nil {
		info.ProxyIP = c.RealIP()
	}
	return info
}

// ClientIP is the address rate limits are keyed on. Without a configured
// IPExtractor it is the socket peer; forwarding headers are ignored.
func ClientIP(c echo.Context) string {
	if c.Echo().IPExtractor != nil {
		return c.RealIP()
	}
	return echo.ExtractIPDirect()(c.Request())
}
