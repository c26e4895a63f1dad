package device

import (
	"context"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name string
		info RequestInfo
		want string
	}{
		{name: "proxy ip wins", info: RequestInfo{ProxyIP: "203.0.113.7", RemoteAddr: "10.0.0.1:5000", ForwardedFor: "198.51.100.1"}, want: "203.0.113.7"},
		{name: "socket address host", info: RequestInfo{RemoteAddr: "198.51.100.20:43122", ForwardedFor: "198.51.100.1"}, want: "198.51.100.20"},
		{name: "bare socket address", info: RequestInfo{RemoteAddr: "198.51.100.20"}, want: "198.51.100.20"},
		{name: "ipv6 socket address", info: RequestInfo{RemoteAddr: "[2001:db8::1]:443"}, want: "2001:db8::1"},
		{name: "first forwarded entry", info: RequestInfo{ForwardedFor: " 198.51.100.1 , 10.0.0.2"}, want: "198.51.100.1"},
		{name: "loopback fallback", info: RequestInfo{}, want: "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIP(tt.info); got != tt.want {
				t.Fatalf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDeviceIDStableAndSensitive(t *testing.T) {
	ua := "Mozilla/5.0 (X11; Linux x86_64) Firefox/125.0"
	a := DeviceID(ua, "198.51.100.1")
	if len(a) != deviceIDLength {
		t.Fatalf("len = %d, want %d", len(a), deviceIDLength)
	}
	if a != DeviceID(ua, "198.51.100.1") {
		t.Fatal("same inputs must give the same id")
	}
	if a == DeviceID(ua, "198.51.100.2") {
		t.Fatal("changing the ip must change the id")
	}
	if a == DeviceID(ua+" extra", "198.51.100.1") {
		t.Fatal("changing the user agent must change the id")
	}
}

func TestFingerprinterIdentify(t *testing.T) {
	fp := NewFingerprinter(NewLocator(nil, 0, nil))
	ua := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	got, err := fp.Identify(context.Background(), RequestInfo{UserAgent: ua, RemoteAddr: "192.168.1.10:5555"})
	if err != nil {
		t.Fatalf("Identify: %v", err)
	}
	if got.IP != "192.168.1.10" {
		t.Errorf("IP = %q", got.IP)
	}
	if got.DeviceID != DeviceID(ua, "192.168.1.10") {
		t.Errorf("DeviceID = %q", got.DeviceID)
	}
	if got.DeviceName != "Windows Desktop (Chrome)" {
		t.Errorf("DeviceName = %q", got.DeviceName)
	}
	if got.Location.Formatted != "Local Network" {
		t.Errorf("Location = %+v", got.Location)
	}

	session := got.Session()
	if session.DeviceID != got.DeviceID || session.Browser != "Chrome" || session.Location.IP != "192.168.1.10" {
		t.Errorf("Session = %+v", session)
	}
}

func TestFingerprinterIdentifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFingerprinter(nil).Identify(ctx, RequestInfo{}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
