package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"librarium/internal/app"
	"librarium/internal/ratelimit"
	"librarium/internal/util"
	"librarium/pkg/auth"
	"librarium/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// Rate limiting is optional: when RedisAddr is empty the limiters
	// stay nil and every request passes.
	RedisAddr                  string
	RedisPassword              string
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
}

// Server exposes the library's HTTP endpoints.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	s := &Server{
		app: cfg.App,
		mux: http.NewServeMux(),
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		loginLimit := cfg.LoginRateLimitPerMinute
		if loginLimit <= 0 {
			loginLimit = 10
		}
		registerLimit := cfg.RegisterRateLimitPerMinute
		if registerLimit <= 0 {
			registerLimit = 5
		}
		newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
			prefix := "librarium:ratelimit:" + name
			limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
			if err != nil {
				return nil, fmt.Errorf("init %s limiter: %w", name, err)
			}
			return limiter, nil
		}
		var err error
		if s.loginLimiter, err = newLimiter("login", loginLimit); err != nil {
			return nil, err
		}
		if s.registerLimiter, err = newLimiter("register", registerLimit); err != nil {
			return nil, err
		}
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the common
// middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// users
	s.mux.HandleFunc("/register/", s.handleRegister)
	s.mux.HandleFunc("/activate/", s.handleActivate)
	s.mux.HandleFunc("/login/", s.handleLogin)
	s.mux.Handle("/logout/", s.authenticated(s.handleLogout))
	s.mux.Handle("/delete/", s.authenticated(s.handleDeleteSelf))
	s.mux.Handle("/delete-visitor/", s.authenticated(s.handleDeleteVisitor))

	// catalog
	s.mux.Handle("/books/", s.authenticated(s.handleBooks))
	s.mux.Handle("/book/", s.authenticated(s.handleBookByID))

	// borrowing
	s.mux.Handle("/borrow/", s.authenticated(s.handleBorrow))
	s.mux.Handle("/return/", s.authenticated(s.handleReturn))
	s.mux.Handle("/user-borrowed-books/", s.authenticated(s.handleUserBorrowedBooks))
	s.mux.Handle("/my-borrowed-books/", s.authenticated(s.handleMyBorrowedBooks))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		user, err := s.app.Authenticate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next(w, r, user)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Warn("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		slog.Warn("empty bearer token", "path", r.URL.Path)
		return "", false
	}
	return token, true
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter) bool {
	if limiter == nil {
		return true
	}
	key := r.RemoteAddr
	if host, _, ok := strings.Cut(r.RemoteAddr, ":"); ok {
		key = host
	}
	if !limiter.Allow(key) {
		writeError(w, http.StatusTooManyRequests, "Request was throttled.")
		return false
	}
	return true
}

// pathID extracts the trailing id segment from Django-style paths like
// /book/{id}/.
func pathID(r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	id = strings.TrimSuffix(id, "/")
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

const maxBodyBytes = 1 << 20

// decodeJSON reads a size-capped JSON request body into dst, writing
// the 400 response itself on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// writeAppError maps business errors onto status codes. Every rejected
// operation carries a short human-readable "detail" message.
func writeAppError(w http.ResponseWriter, err error) {
	var invalid *app.ValidationError
	switch {
	case errors.As(err, &invalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrLoginFailed),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, app.ErrAuthUserNotFound):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrCannotAddBooks),
		errors.Is(err, app.ErrCannotUpdateBooks),
		errors.Is(err, app.ErrCannotDeleteBooks),
		errors.Is(err, app.ErrCannotBorrowBooks),
		errors.Is(err, app.ErrCannotReturnBooks),
		errors.Is(err, app.ErrCannotViewLoans),
		errors.Is(err, app.ErrOnlySelfDelete),
		errors.Is(err, app.ErrOnlyLibraryDelete),
		errors.Is(err, app.ErrDeleteLibraryUser),
		errors.Is(err, app.ErrVisitorHasLoans),
		errors.Is(err, app.ErrTargetIsStaff):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrBookNotFound),
		errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrOpenRecordNotFound),
		errors.Is(err, app.ErrNoUserLoans),
		errors.Is(err, app.ErrNoOwnLoans):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrNoCopiesAvailable),
		errors.Is(err, app.ErrAlreadyBorrowed),
		errors.Is(err, app.ErrCopiesBorrowed),
		errors.Is(err, app.ErrInvalidActivation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
