package device

import (
	"strings"

	"fintrack/internal/entity"
)

const (
	UnknownBrowser = "Unknown Browser"
	UnknownOS      = "Unknown OS"
)

// Traits is what can be read off a user-agent string.
type Traits struct {
	Type    entity.DeviceType
	Browser string
	OS      string
	Name    string
}

type rule[T any] struct {
	label T
	match func(ua string) bool
}

func containsAny(tokens ...string) func(string) bool {
	return func(ua string) bool {
		for _, token := range tokens {
			if strings.Contains(ua, token) {
				return true
			}
		}
		return false
	}
}

// Rules are evaluated in order against the lower-cased user agent; first match wins.
var (
	deviceTypeRules = []rule[entity.DeviceType]{
		{entity.DeviceMobile, containsAny("mobile", "android", "iphone", "ipod", "blackberry", "iemobile", "opera mini")},
		{entity.DeviceTablet, func(ua string) bool {
			return containsAny("tablet", "ipad")(ua) ||
				(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile"))
		}},
	}

	browserRules = []rule[string]{
		{"Chrome", func(ua string) bool {
			return containsAny("chrome", "crios")(ua) && !containsAny("edg", "opr/")(ua)
		}},
		{"Firefox", containsAny("firefox", "fxios")},
		{"Safari", func(ua string) bool {
			return strings.Contains(ua, "safari") && !containsAny("chrome", "crios")(ua)
		}},
		{"Edge", containsAny("edg")},
		{"Opera", containsAny("opr/", "opera")},
		{"Internet Explorer", containsAny("msie", "trident/")},
	}

	osRules = []rule[string]{
		{"Windows", containsAny("windows")},
		{"Android", containsAny("android")},
		{"iOS", containsAny("iphone", "ipad", "ipod")},
		{"macOS", containsAny("mac os", "macintosh")},
		{"Linux", containsAny("linux", "x11")},
	}
)

func classify[T any](ua string, rules []rule[T], fallback T) T {
	for _, r := range rules {
		if r.match(ua) {
			return r.label
		}
	}
	return fallback
}

// Classify derives device type, browser, OS and a display name from a user agent.
func Classify(userAgent string) Traits {
	ua := strings.ToLower(userAgent)
	traits := Traits{
		Type:    classify(ua, deviceTypeRules, entity.DeviceDesktop),
		Browser: classify(ua, browserRules, UnknownBrowser),
		OS:      classify(ua, osRules, UnknownOS),
	}
	traits.Name = displayName(traits)
	return traits
}

func displayName(t Traits) string {
	kind := string(t.Type)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return t.OS + " " + kind + " (" + t.Browser + ")"
}
