package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"accountd/internal/observability"
)

// Storage-level sentinels: the Store contract reports these, and the
// service maps them onto Rejections so callers never see raw storage
// errors.
var (
	ErrNoAccount       = errors.New("no such account")
	ErrEmailInUse      = errors.New("email already in use")
	ErrResetTokenSpent = errors.New("reset token invalid or spent")
)

// Store is the credential store contract. The Postgres repository is the
// production implementation; policy logic never touches SQL so it can be
// exercised against an in-memory double.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetByEmail(ctx context.Context, email string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id string, name, email *string) (User, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
	DeleteUser(ctx context.Context, id string) error

	// RegisterFailedLogin atomically increments the failure counter and
	// returns the lock timestamp when the attempt crossed the threshold.
	RegisterFailedLogin(ctx context.Context, id string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error)
	ResetLockout(ctx context.Context, id string) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error

	CreatePasswordReset(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ConsumePasswordReset atomically spends an unexpired, unused reset
	// token and returns the owning user id.
	ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

// Service composes the credential store, token manager, revocation
// registry, and lockout policy into the account operations the handlers
// expose.
type Service struct {
	store     Store
	tokens    *TokenManager
	blacklist *Blacklist
	lockout   LockoutPolicy
	resetTTL  time.Duration
	logger    *observability.Logger
}

func NewService(store Store, tokens *TokenManager, blacklist *Blacklist, lockout LockoutPolicy, resetTTL time.Duration, logger *observability.Logger) *Service {
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	return &Service{
		store:     store,
		tokens:    tokens,
		blacklist: blacklist,
		lockout:   lockout,
		resetTTL:  resetTTL,
		logger:    logger,
	}
}

// Register creates an email-provider account and returns its first token
// pair. A taken email is a CONFLICT regardless of which check catches it.
func (s *Service) Register(ctx context.Context, name, email, password string) (Tokens, error) {
	email = NormalizeEmail(email)

	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return Tokens{}, ErrConflict
	} else if !errors.Is(err, ErrNoAccount) {
		return Tokens{}, fmt.Errorf("check existing email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Tokens{}, fmt.Errorf("hash password: %w", err)
	}

	now := time.Now().UTC()
	user := User{
		ID:           newID(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		AuthProvider: ProviderEmail,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrEmailInUse) {
			return Tokens{}, ErrConflict
		}
		return Tokens{}, fmt.Errorf("create user: %w", err)
	}

	return s.tokens.Issue(user.ID)
}

// Authenticate checks an email/password pair against the store and the
// lockout policy. Absent accounts, inactive accounts, and wrong passwords
// all collapse into INVALID_CREDENTIALS so the response never reveals
// which part was wrong.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return User{}, ErrInvalidCredentials
	}

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, fmt.Errorf("load user for login: %w", err)
	}
	if !user.IsActive {
		return User{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if user.Locked(now) {
		return User{}, ErrAccountLocked
	}
	if user.AccountLockedUntil != nil || user.FailedLoginAttempts > 0 {
		// Expired lock or leftover counter: reset lazily, on evaluation.
		if user.AccountLockedUntil == nil || !user.AccountLockedUntil.After(now) {
			if err := s.store.ResetLockout(ctx, user.ID); err != nil {
				return User{}, fmt.Errorf("reset expired lockout: %w", err)
			}
			user.FailedLoginAttempts = 0
			user.AccountLockedUntil = nil
			user.LastFailedLogin = nil
		}
	}

	if user.PasswordHash == "" {
		return User{}, ErrExternalAuth
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		lockedUntil, regErr := s.store.RegisterFailedLogin(ctx, user.ID, s.lockout.MaxAttempts, s.lockout.LockDuration, now)
		if regErr != nil {
			return User{}, fmt.Errorf("record failed login: %w", regErr)
		}
		if lockedUntil != nil {
			return User{}, ErrAccountLocked
		}
		return User{}, ErrInvalidCredentials
	}

	if user.FailedLoginAttempts > 0 {
		if err := s.store.ResetLockout(ctx, user.ID); err != nil {
			return User{}, fmt.Errorf("reset lockout after login: %w", err)
		}
	}

	return user, nil
}

// Login authenticates and mints the token pair.
func (s *Service) Login(ctx context.Context, email, password string) (Tokens, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return Tokens{}, err
	}
	return s.tokens.Issue(user.ID)
}

// VerifyToken is the token verifier behind the gate and the refresh flow.
// Check order is contractual: structure, then expiry, then revocation,
// then account state. An expired token is rejected before the registry is
// consulted, so expiry never costs a Redis round-trip.
func (s *Service) VerifyToken(ctx context.Context, raw, wantType string) (User, error) {
	if raw == "" {
		return User{}, ErrMissingToken
	}

	claims, err := s.tokens.Parse(raw, wantType)
	if err != nil {
		return User{}, err
	}

	revoked, err := s.blacklist.IsRevoked(ctx, raw)
	if err != nil {
		return User{}, fmt.Errorf("consult revocation registry: %w", err)
	}
	if revoked {
		return User{}, ErrTokenRevoked
	}

	user, err := s.store.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("resolve token subject: %w", err)
	}
	if !user.IsActive {
		return User{}, ErrUserNotFound
	}
	if user.Locked(time.Now().UTC()) {
		return User{}, ErrAccountLocked
	}

	return user, nil
}

// Refresh exchanges a valid refresh token for a fresh access token.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (string, int64, error) {
	user, err := s.VerifyToken(ctx, rawRefresh, TokenTypeRefresh)
	if err != nil {
		return "", 0, err
	}
	return s.tokens.IssueAccess(user.ID)
}

// Logout revokes the presented access token.
func (s *Service) Logout(ctx context.Context, rawToken, userID string) error {
	if err := s.blacklist.Revoke(ctx, rawToken, userID, "logout"); err != nil {
		return fmt.Errorf("revoke token on logout: %w", err)
	}
	return nil
}

// GetProfile loads the account behind an authenticated request.
func (s *Service) GetProfile(ctx context.Context, id string) (User, error) {
	user, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("load profile: %w", err)
	}
	return user, nil
}

// UpdateProfile applies a partial profile edit. At least one field must be
// set; the handler enforces that, this method enforces email uniqueness.
func (s *Service) UpdateProfile(ctx context.Context, id string, name, email *string) (User, error) {
	if email != nil {
		normalized := NormalizeEmail(*email)
		email = &normalized

		existing, err := s.store.GetByEmail(ctx, normalized)
		if err == nil && existing.ID != id {
			return User{}, ErrConflict
		}
		if err != nil && !errors.Is(err, ErrNoAccount) {
			return User{}, fmt.Errorf("check email for update: %w", err)
		}
	}

	user, err := s.store.UpdateProfile(ctx, id, name, email)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailInUse):
			return User{}, ErrConflict
		case errors.Is(err, ErrNoAccount):
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}

	return user, nil
}

// ChangePassword verifies the current password and installs the new one.
func (s *Service) ChangePassword(ctx context.Context, id, currentPassword, newPassword string) error {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return ErrExternalAuth
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, id, string(hash)); err != nil {
		return fmt.Errorf("store new password: %w", err)
	}

	return nil
}

// DeleteAccount permanently erases the account after a password check and
// revokes the token that authorized the request. This is a hard delete:
// right-to-erasure semantics, not a flag.
func (s *Service) DeleteAccount(ctx context.Context, id, password, rawToken string) error {
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return ErrExternalAuth
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if err := s.blacklist.Revoke(ctx, rawToken, id, "account_deleted"); err != nil {
		return fmt.Errorf("revoke token after deletion: %w", err)
	}

	return nil
}

// RequestPasswordReset mints a one-time reset token for the account, when
// one exists. The raw token is returned for the delivery layer only; the
// HTTP response is the same generic success whether or not the account
// exists, so the endpoint is not an existence oracle.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNoAccount) {
			return "", nil
		}
		return "", fmt.Errorf("load user for reset: %w", err)
	}
	if !user.IsActive || user.PasswordHash == "" {
		return "", nil
	}

	raw, err := randomToken(32)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	expiresAt := time.Now().UTC().Add(s.resetTTL)
	if err := s.store.CreatePasswordReset(ctx, user.ID, fingerprint(raw), expiresAt); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	s.logger.Info("password_reset_issued", map[string]any{
		"user_id":    user.ID,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	return raw, nil
}

// SubmitPasswordReset spends a reset token and installs the new password.
// A consumed token also clears any lockout, so a user locked out by an
// attacker regains access immediately.
func (s *Service) SubmitPasswordReset(ctx context.Context, rawToken, newPassword string) error {
	userID, err := s.store.ConsumePasswordReset(ctx, fingerprint(rawToken), time.Now().UTC())
	if err != nil {
		if errors.Is(err, ErrResetTokenSpent) {
			return ErrInvalidToken
		}
		return fmt.Errorf("consume reset token: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash reset password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, userID, string(hash)); err != nil {
		return fmt.Errorf("store reset password: %w", err)
	}
	if err := s.store.ResetLockout(ctx, userID); err != nil {
		return fmt.Errorf("clear lockout after reset: %w", err)
	}

	return nil
}

// TouchLastActive records activity for an authenticated request. Callers
// run it off the request path; failures are logged, never surfaced.
func (s *Service) TouchLastActive(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.TouchLastActive(ctx, id, time.Now().UTC()); err != nil {
		s.logger.Error("touch_last_active_failed", map[string]any{
			"user_id": id,
			"error":   err.Error(),
		})
	}
}

// NormalizeEmail lowercases and trims; all lookups and writes go through
// it so an address compares equal regardless of how it was typed.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func randomToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
