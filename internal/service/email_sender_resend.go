package service

import (
	"context"
	"errors"
	"fmt"
	stdhtml "html"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
)

var ErrEmailNotConfigured = errors.New("email sender not configured")

type ResendEmailSender struct {
	client     *resend.Client
	From       string
	AppBaseURL string
	ResetPath  string
}

func NewResendEmailSender(apiKey string, from string, appBaseURL string) *ResendEmailSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return &ResendEmailSender{}
	}
	return &ResendEmailSender{
		client:     resend.NewClient(apiKey),
		From:       from,
		AppBaseURL: strings.TrimRight(appBaseURL, "/"),
		ResetPath:  "/reset-password",
	}
}

func (s *ResendEmailSender) Configured() bool {
	return s.client != nil
}

func (s *ResendEmailSender) SendPasswordResetOTP(ctx context.Context, email string, code string, expiresIn time.Duration) error {
	minutes := int(expiresIn.Minutes())
	subject := "Your password reset code"
	html := fmt.Sprintf("<p>Your password reset code is:</p><h2>%s</h2><p>It expires in %d minutes.</p>", code, minutes)
	text := fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, minutes)
	if link := s.resetURL(); link != "" {
		html += fmt.Sprintf("<p>Enter it at <a href=\"%s\">%s</a>.</p>", link, link)
		text += " Enter it at " + link
	}
	return s.send(ctx, email, subject, html, text)
}

func (s *ResendEmailSender) SendWelcomeEmail(ctx context.Context, email string, username string) error {
	subject := "Welcome to Fintrack"
	html := fmt.Sprintf("<p>Hi %s,</p><p>Your account is ready. Start tracking your income and expenses.</p>", stdhtml.EscapeString(username))
	text := fmt.Sprintf("Hi %s, your account is ready. Start tracking your income and expenses.", username)
	return s.send(ctx, email, subject, html, text)
}

func (s *ResendEmailSender) resetURL() string {
	if s.AppBaseURL == "" {
		return ""
	}
	return s.AppBaseURL + s.ResetPath
}

func (s *ResendEmailSender) send(ctx context.Context, to string, subject string, html string, text string) error {
	if s.client == nil {
		return ErrEmailNotConfigured
	}
	_, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("resend email: %w", err)
	}
	return nil
}
