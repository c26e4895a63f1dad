package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestResendEmailSenderNotConfigured(t *testing.T) {
	sender := NewResendEmailSender("", "", "")
	if sender.Configured() {
		t.Fatal("sender without api key should not be configured")
	}
	err := sender.SendWelcomeEmail(context.Background(), "a@example.com", "a")
	if !errors.Is(err, ErrEmailNotConfigured) {
		t.Fatalf("err = %v, want ErrEmailNotConfigured", err)
	}
}

func TestResendEmailSenderSendsResetCode(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" || r.Header.Get("Authorization") != "Bearer re_test" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"email_1"}`))
	}))
	defer server.Close()

	sender := NewResendEmailSender("re_test", "Fintrack <no-reply@example.com>", "https://app.example.com/")
	base, _ := url.Parse(server.URL + "/")
	sender.client.BaseURL = base

	if err := sender.SendPasswordResetOTP(context.Background(), "user@example.com", "482913", 10*time.Minute); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got["subject"] != "Your password reset code" {
		t.Fatalf("subject = %v", got["subject"])
	}
	text, _ := got["text"].(string)
	if !strings.Contains(text, "482913") || !strings.Contains(text, "10 minutes") || !strings.Contains(text, "https://app.example.com/reset-password") {
		t.Fatalf("text = %q", text)
	}
}

func TestResendEmailSenderEscapesUsername(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"id":"email_2"}`))
	}))
	defer server.Close()

	sender := NewResendEmailSender("re_test", "no-reply@example.com", "")
	base, _ := url.Parse(server.URL + "/")
	sender.client.BaseURL = base

	if err := sender.SendWelcomeEmail(context.Background(), "user@example.com", "<b>eve</b>"); err != nil {
		t.Fatal(err)
	}
	if html, _ := got["html"].(string); strings.Contains(html, "<b>eve</b>") {
		t.Fatalf("username not escaped: %q", html)
	}
}
