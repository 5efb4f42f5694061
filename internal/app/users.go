package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"librarium/internal/authz"
	"librarium/internal/util"
	"librarium/pkg/auth"
	"librarium/pkg/domain"
	"librarium/pkg/store"
)

// ValidationError marks a rejected registration or catalog payload.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }

func (e *ValidationError) Unwrap() error { return e.Err }

func validation(err error) error { return &ValidationError{Err: err} }

// Register creates an inactive account and enqueues the activation
// email. The caller gets the stored user back; the email is
// fire-and-forget.
func (a *App) Register(ctx context.Context, name, email, password string, userType domain.UserType) (domain.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return domain.User{}, validation(ErrNameRequired)
	}
	if email == "" {
		return domain.User{}, validation(ErrEmailRequired)
	}
	if !strings.Contains(email, "@") || strings.ContainsAny(email, " \t") {
		return domain.User{}, validation(ErrInvalidEmail)
	}
	if !userType.Valid() {
		return domain.User{}, validation(ErrInvalidUserType)
	}
	if err := auth.ValidatePassword(password, a.passwordMinLength); err != nil {
		return domain.User{}, validation(err)
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		UserType:     userType,
		IsActive:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return domain.User{}, validation(ErrEmailAlreadyExists)
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	a.sendActivationEmail(ctx, user)
	return user, nil
}

func (a *App) sendActivationEmail(ctx context.Context, user domain.User) {
	token, err := a.tokens.NewActivationToken(user.ID)
	if err != nil {
		return
	}
	link := fmt.Sprintf("%s/activate/%s/?token=%s", a.activationBaseURL, user.ID, token)
	message := fmt.Sprintf("Hello %s,\n\nPlease activate your account using the following link: %s", user.Name, link)
	a.notify(ctx, "Activate your account", message, []string{user.Email})
}

// ActivationToken re-issues the signed token embedded in the
// activation link. Exposed for the end-to-end tests.
func (a *App) ActivationToken(userID string) (string, error) {
	return a.tokens.NewActivationToken(userID)
}

// Activate flips is_active after verifying the signed activation
// token. Re-activating an active account reports alreadyActive and
// changes nothing.
func (a *App) Activate(userID, token string) (alreadyActive bool, err error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return false, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return false, ErrUserNotFound
	}
	subject, err := a.tokens.VerifyActivationToken(token)
	if err != nil || subject != user.ID {
		return false, ErrInvalidActivation
	}
	if user.IsActive {
		return true, nil
	}
	user.IsActive = true
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return false, fmt.Errorf("activate user: %w", err)
	}
	return false, nil
}

// Login validates credentials against an active account and issues a
// signed access token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) || !user.IsActive {
		return domain.User{}, "", ErrLoginFailed
	}
	token, err := a.tokens.NewAccessToken(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Authenticate resolves a bearer token to its user. Token errors keep
// their exact wording; an unresolvable subject reports "User not found".
func (a *App) Authenticate(token string) (domain.User, error) {
	userID, err := a.tokens.VerifyAccessToken(token)
	if err != nil {
		return domain.User{}, err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrAuthUserNotFound
	}
	return user, nil
}

// DeleteSelf removes the caller's own account (library users only).
func (a *App) DeleteSelf(caller domain.User) error {
	if !authz.Can(caller.UserType, authz.DeleteSelf) {
		return ErrOnlySelfDelete
	}
	if err := a.store.DeleteUser(caller.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// DeleteVisitor removes a visitor account on behalf of library staff.
// Visitors holding open borrow records cannot be deleted.
func (a *App) DeleteVisitor(caller domain.User, targetID string) error {
	if !authz.Can(caller.UserType, authz.ManageVisitors) {
		return ErrOnlyLibraryDelete
	}
	target, ok, err := a.store.GetUserByID(targetID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	if target.UserType == domain.LibraryUser {
		return ErrDeleteLibraryUser
	}
	hasOpen, err := a.store.HasOpenRecords(target.ID)
	if err != nil {
		return fmt.Errorf("check borrow records: %w", err)
	}
	if hasOpen {
		return ErrVisitorHasLoans
	}
	if err := a.store.DeleteUser(target.ID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}
