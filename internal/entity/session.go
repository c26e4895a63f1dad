package entity

import (
	"slices"
	"time"
)

// MaxSessions caps the number of device sessions embedded in a user.
const MaxSessions = 5

type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

type Location struct {
	IP        string   `json:"ip"`
	Country   string   `json:"country"`
	City      string   `json:"city"`
	Region    string   `json:"region"`
	Timezone  string   `json:"timezone"`
	ISP       string   `json:"isp"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Formatted string   `json:"formatted"`
}

type Session struct {
	DeviceID   string     `json:"device_id"`
	DeviceName string     `json:"device_name"`
	DeviceType DeviceType `json:"device_type"`
	Browser    string     `json:"browser"`
	OS         string     `json:"os"`
	Location   Location   `json:"location"`
	LastActive time.Time  `json:"last_active"`
	IsActive   bool       `json:"is_active"`
	LoginTime  time.Time  `json:"login_time"`
}

// SessionList is the bounded, deviceId-keyed session collection of one user.
// Methods never mutate the receiver's backing array in ways callers can observe
// except Touch and RefreshActivity, which update entries in place.
type SessionList []Session

func (l SessionList) index(deviceID string) int {
	for i := range l {
		if l[i].DeviceID == deviceID {
			return i
		}
	}
	return -1
}

func (l SessionList) Contains(deviceID string) bool {
	return l.index(deviceID) >= 0
}

// Upsert inserts s or replaces the entry with the same DeviceID, keeping the
// original LoginTime. When the list grows past MaxSessions the least recently
// active entries are evicted.
func (l SessionList) Upsert(s Session, now time.Time) (SessionList, Session) {
	out := slices.Clone(l)
	s.LastActive = now
	s.IsActive = true

	if i := out.index(s.DeviceID); i >= 0 {
		s.LoginTime = out[i].LoginTime
		out[i] = s
	} else {
		s.LoginTime = now
		out = append(out, s)
	}

	if len(out) > MaxSessions {
		out = out.SortedByRecency()[:MaxSessions]
	}
	return out, s
}

// Touch marks the session as active now. It reports whether a session matched.
func (l SessionList) Touch(deviceID string, now time.Time) bool {
	i := l.index(deviceID)
	if i < 0 {
		return false
	}
	l[i].LastActive = now
	l[i].IsActive = true
	return true
}

// RefreshActivity recomputes IsActive against the staleness window and reports
// whether any flag changed.
func (l SessionList) RefreshActivity(now time.Time, window time.Duration) bool {
	changed := false
	for i := range l {
		active := now.Sub(l[i].LastActive) <= window
		if l[i].IsActive != active {
			l[i].IsActive = active
			changed = true
		}
	}
	return changed
}

// SortedByRecency returns a copy ordered by LastActive, newest first.
func (l SessionList) SortedByRecency() SessionList {
	out := slices.Clone(l)
	slices.SortStableFunc(out, func(a, b Session) int {
		return b.LastActive.Compare(a.LastActive)
	})
	return out
}

func (l SessionList) Remove(deviceID string) SessionList {
	return slices.DeleteFunc(slices.Clone(l), func(s Session) bool {
		return s.DeviceID == deviceID
	})
}

func (l SessionList) KeepOnly(deviceID string) SessionList {
	return slices.DeleteFunc(slices.Clone(l), func(s Session) bool {
		return s.DeviceID != deviceID
	})
}

// PruneInactiveBefore drops sessions whose LastActive is before cutoff and
// returns the remaining list with the number removed.
func (l SessionList) PruneInactiveBefore(cutoff time.Time) (SessionList, int) {
	out := slices.DeleteFunc(slices.Clone(l), func(s Session) bool {
		return s.LastActive.Before(cutoff)
	})
	return out, len(l) - len(out)
}
