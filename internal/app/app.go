package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"librarium/pkg/auth"
	"librarium/pkg/domain"
	"librarium/pkg/queue"
	"librarium/pkg/store"
)

const defaultLoanPeriod = 30 * 24 * time.Hour

// Notifier enqueues a notification email for asynchronous delivery.
type Notifier interface {
	Enqueue(ctx context.Context, job queue.EmailJob) (queue.JobStatus, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	Store             store.Store
	Notifier          Notifier
	Tokens            *auth.TokenManager
	PasswordMinLength int
	LoanPeriod        time.Duration
	ActivationBaseURL string
}

// App wires storage, tokens, and notifications into the library's
// business rules. Handlers call App methods and translate the returned
// errors; App never touches HTTP.
type App struct {
	store             store.Store
	notifier          Notifier
	tokens            *auth.TokenManager
	passwordMinLength int
	loanPeriod        time.Duration
	activationBaseURL string
}

// New constructs the application core.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("token manager required")
	}
	loanPeriod := cfg.LoanPeriod
	if loanPeriod <= 0 {
		loanPeriod = defaultLoanPeriod
	}
	passwordMinLength := cfg.PasswordMinLength
	if passwordMinLength <= 0 {
		passwordMinLength = auth.DefaultMinPasswordLength
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.ActivationBaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:8321"
	}
	return &App{
		store:             cfg.Store,
		notifier:          cfg.Notifier,
		tokens:            cfg.Tokens,
		passwordMinLength: passwordMinLength,
		loanPeriod:        loanPeriod,
		activationBaseURL: baseURL,
	}, nil
}

// notify enqueues an email and swallows failures: delivery is
// fire-and-forget and must never fail the triggering request.
func (a *App) notify(ctx context.Context, subject, message string, recipients []string) {
	if a.notifier == nil || len(recipients) == 0 {
		return
	}
	if _, err := a.notifier.Enqueue(ctx, queue.EmailJob{
		Subject:    subject,
		Message:    message,
		Recipients: recipients,
	}); err != nil {
		slog.Warn("enqueue notification failed", "subject", subject, "err", err)
	}
}

// libraryStaffEmails returns the addresses of all library users.
func (a *App) libraryStaffEmails() []string {
	staff, err := a.store.ListUsersByType(domain.LibraryUser)
	if err != nil {
		slog.Warn("list library users failed", "err", err)
		return nil
	}
	emails := make([]string, 0, len(staff))
	for _, u := range staff {
		emails = append(emails, u.Email)
	}
	return emails
}
