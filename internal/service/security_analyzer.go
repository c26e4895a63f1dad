package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fintrack/internal/entity"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

type AlertType string

const (
	AlertMultipleCountries            AlertType = "multiple_countries"
	AlertRapidLocationChange          AlertType = "rapid_location_change"
	AlertMultipleIPs                  AlertType = "multiple_ips"
	AlertConcurrentDifferentLocations AlertType = "concurrent_different_locations"
	AlertMultipleTimezones            AlertType = "multiple_timezones"
)

const (
	recentWindow       = 24 * time.Hour
	ipFanOutThreshold  = 3
	timezoneThreshold  = 2
	monitorIPThreshold = 5
)

type Alert struct {
	Type     AlertType `json:"type"`
	Severity RiskLevel `json:"severity"`
	Message  string    `json:"message"`
	Count    int       `json:"count"`
	Values   []string  `json:"values,omitempty"`
}

type SessionStats struct {
	TotalSessions   int `json:"total_sessions"`
	UniqueLocations int `json:"unique_locations"`
	UniqueCountries int `json:"unique_countries"`
	UniqueIPs       int `json:"unique_ips"`
	ActiveSessions  int `json:"active_sessions"`
}

type SecurityAnalysis struct {
	RiskLevel RiskLevel    `json:"risk_level"`
	Alerts    []Alert      `json:"alerts"`
	Stats     SessionStats `json:"stats"`
}

func (a *SecurityAnalysis) raise(alert Alert) {
	a.Alerts = append(a.Alerts, alert)
	if alert.Severity.rank() > a.RiskLevel.rank() {
		a.RiskLevel = alert.Severity
	}
}

func (a SecurityAnalysis) HasAlert(t AlertType) bool {
	for _, alert := range a.Alerts {
		if alert.Type == t {
			return true
		}
	}
	return false
}

type Recommendation struct {
	Type     string    `json:"type"`
	Priority RiskLevel `json:"priority"`
	Message  string    `json:"message"`
	Action   string    `json:"action"`
}

type stringSet map[string]struct{}

func (s stringSet) add(v string) {
	if v = strings.TrimSpace(v); v != "" {
		s[v] = struct{}{}
	}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// meaningfulCountry filters out pseudo-locations that say nothing about where the user is.
func meaningfulCountry(country string) bool {
	switch strings.TrimSpace(country) {
	case "", "Unknown", "Local":
		return false
	}
	return true
}

func countries(sessions []entity.Session, include func(entity.Session) bool) stringSet {
	set := stringSet{}
	for _, s := range sessions {
		if include(s) && meaningfulCountry(s.Location.Country) {
			set.add(s.Location.Country)
		}
	}
	return set
}

// AnalyzeSessions classifies the risk of a user's session list. Rules are
// independent; the resulting level is the highest any rule raised.
func AnalyzeSessions(sessions []entity.Session, now time.Time) SecurityAnalysis {
	analysis := SecurityAnalysis{RiskLevel: RiskLow, Alerts: []Alert{}}

	locations, ips, timezones := stringSet{}, stringSet{}, stringSet{}
	active := 0
	for _, s := range sessions {
		locations.add(s.Location.Formatted)
		ips.add(s.Location.IP)
		switch tz := strings.TrimSpace(s.Location.Timezone); tz {
		case "", "UTC", "Unknown":
		default:
			timezones.add(tz)
		}
		if s.IsActive {
			active++
		}
	}
	all := countries(sessions, func(entity.Session) bool { return true })

	analysis.Stats = SessionStats{
		TotalSessions:   len(sessions),
		UniqueLocations: len(locations),
		UniqueCountries: len(all),
		UniqueIPs:       len(ips),
		ActiveSessions:  active,
	}
	if len(sessions) <= 1 {
		return analysis
	}

	if len(all) > 1 {
		analysis.raise(Alert{
			Type:     AlertMultipleCountries,
			Severity: RiskMedium,
			Message:  fmt.Sprintf("Sessions from %d different countries", len(all)),
			Count:    len(all),
			Values:   all.sorted(),
		})
	}

	recent := countries(sessions, func(s entity.Session) bool {
		return now.Sub(s.LastActive) <= recentWindow
	})
	if len(recent) > 1 {
		analysis.raise(Alert{
			Type:     AlertRapidLocationChange,
			Severity: RiskHigh,
			Message:  fmt.Sprintf("Activity from %d countries within 24 hours", len(recent)),
			Count:    len(recent),
			Values:   recent.sorted(),
		})
	}

	if len(ips) > ipFanOutThreshold {
		analysis.raise(Alert{
			Type:     AlertMultipleIPs,
			Severity: RiskMedium,
			Message:  fmt.Sprintf("Sessions from %d different IP addresses", len(ips)),
			Count:    len(ips),
		})
	}

	concurrent := countries(sessions, func(s entity.Session) bool { return s.IsActive })
	if active > 1 && len(concurrent) > 1 {
		analysis.raise(Alert{
			Type:     AlertConcurrentDifferentLocations,
			Severity: RiskHigh,
			Message:  fmt.Sprintf("%d active sessions in %d different countries", active, len(concurrent)),
			Count:    len(concurrent),
			Values:   concurrent.sorted(),
		})
	}

	if len(timezones) > timezoneThreshold {
		analysis.raise(Alert{
			Type:     AlertMultipleTimezones,
			Severity: RiskMedium,
			Message:  fmt.Sprintf("Sessions across %d timezones", len(timezones)),
			Count:    len(timezones),
			Values:   timezones.sorted(),
		})
	}

	return analysis
}

// Recommendations maps an analysis to user-facing advice, most urgent first.
func Recommendations(analysis SecurityAnalysis) []Recommendation {
	out := []Recommendation{}
	if analysis.RiskLevel == RiskHigh {
		out = append(out, Recommendation{
			Type:     "change_password",
			Priority: RiskHigh,
			Message:  "Suspicious activity detected. Change your password.",
			Action:   "change_password",
		})
	}
	if analysis.HasAlert(AlertConcurrentDifferentLocations) {
		out = append(out, Recommendation{
			Type:     "review_sessions",
			Priority: RiskHigh,
			Message:  "Your account is active in several locations at once. Review your sessions.",
			Action:   "review_sessions",
		})
	}
	if analysis.Stats.UniqueCountries > 1 {
		out = append(out, Recommendation{
			Type:     "enable_2fa",
			Priority: RiskMedium,
			Message:  "Your account is used from multiple countries. Enable additional verification.",
			Action:   "enable_2fa",
		})
	}
	if analysis.Stats.UniqueIPs > monitorIPThreshold {
		out = append(out, Recommendation{
			Type:     "monitor_activity",
			Priority: RiskLow,
			Message:  "Your account is used from many networks. Keep an eye on account activity.",
			Action:   "monitor_activity",
		})
	}
	return out
}
