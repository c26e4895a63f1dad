package dto

import (
	"time"

	"fintrack/internal/entity"
	"fintrack/internal/service"
)

type SessionResponse struct {
	DeviceID   string          `json:"device_id"`
	DeviceName string          `json:"device_name"`
	DeviceType string          `json:"device_type"`
	Browser    string          `json:"browser"`
	OS         string          `json:"os"`
	Location   entity.Location `json:"location"`
	LastActive time.Time       `json:"last_active"`
	LoginTime  time.Time       `json:"login_time"`
	IsActive   bool            `json:"is_active"`
	IsCurrent  bool            `json:"is_current"`
}

func SessionResponseFromEntity(session entity.Session, currentDeviceID string) SessionResponse {
	return SessionResponse{
		DeviceID:   session.DeviceID,
		DeviceName: session.DeviceName,
		DeviceType: string(session.DeviceType),
		Browser:    session.Browser,
		OS:         session.OS,
		Location:   session.Location,
		LastActive: session.LastActive,
		LoginTime:  session.LoginTime,
		IsActive:   session.IsActive,
		IsCurrent:  session.DeviceID == currentDeviceID,
	}
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

func SessionListResponseFromEntities(sessions []entity.Session, currentDeviceID string) SessionListResponse {
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionResponseFromEntity(s, currentDeviceID))
	}
	return SessionListResponse{Sessions: out, Total: len(out)}
}

type SecurityResponse struct {
	service.SecurityAnalysis
	Recommendations []service.Recommendation `json:"recommendations"`
}
