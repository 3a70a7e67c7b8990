package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository is the Postgres credential store. Lockout counters live on
// the user row and are mutated with single atomic statements; there is no
// read-modify-write anywhere, so concurrent logins cannot undercount.
type Repository struct {
	db *sql.DB
}

// CleanupResult reports what a maintenance purge removed.
type CleanupResult struct {
	ClearedLockouts    int64 `json:"cleared_lockouts"`
	DeletedResetTokens int64 `json:"deleted_reset_tokens"`
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `
	id, email, name, password_hash, auth_provider, is_active,
	failed_login_attempts, last_failed_login, account_locked_until,
	last_active_at, created_at, updated_at
`

func (r *Repository) CreateUser(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, auth_provider, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`, u.ID, u.Email, u.Name, u.PasswordHash, u.AuthProvider, u.IsActive, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailInUse
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *Repository) getUser(ctx context.Context, query string, arg any) (User, error) {
	var (
		u            User
		passwordHash sql.NullString
		lastFailed   sql.NullTime
		lockedUntil  sql.NullTime
		lastActive   sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Email, &u.Name, &passwordHash, &u.AuthProvider, &u.IsActive,
		&u.FailedLoginAttempts, &lastFailed, &lockedUntil,
		&lastActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNoAccount
		}
		return User{}, fmt.Errorf("query user: %w", err)
	}

	u.PasswordHash = passwordHash.String
	u.LastFailedLogin = nullableTime(lastFailed)
	u.AccountLockedUntil = nullableTime(lockedUntil)
	u.LastActiveAt = nullableTime(lastActive)

	return u, nil
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, name, email *string) (User, error) {
	var (
		u            User
		passwordHash sql.NullString
		lastFailed   sql.NullTime
		lockedUntil  sql.NullTime
		lastActive   sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    updated_at = $4
		WHERE id = $1
		RETURNING `+userColumns+`
	`, id, name, email, time.Now().UTC()).Scan(
		&u.ID, &u.Email, &u.Name, &passwordHash, &u.AuthProvider, &u.IsActive,
		&u.FailedLoginAttempts, &lastFailed, &lockedUntil,
		&lastActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNoAccount
		}
		if isUniqueViolation(err) {
			return User{}, ErrEmailInUse
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}

	u.PasswordHash = passwordHash.String
	u.LastFailedLogin = nullableTime(lastFailed)
	u.AccountLockedUntil = nullableTime(lockedUntil)
	u.LastActiveAt = nullableTime(lastActive)

	return u, nil
}

func (r *Repository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNoAccount
	}

	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNoAccount
	}

	return nil
}

// RegisterFailedLogin bumps the failure counter and, when the attempt
// crosses the threshold, stamps the lock — all in one statement, so two
// interleaved failures cannot lose an increment.
func (r *Repository) RegisterFailedLogin(ctx context.Context, id string, maxAttempts int, lockDuration time.Duration, now time.Time) (*time.Time, error) {
	lockUntil := now.UTC().Add(lockDuration)

	var lockedUntil sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    last_failed_login = $2,
		    account_locked_until = CASE
		        WHEN failed_login_attempts + 1 >= $3 THEN $4
		        ELSE account_locked_until
		    END,
		    updated_at = $2
		WHERE id = $1
		RETURNING account_locked_until
	`, id, now.UTC(), maxAttempts, lockUntil).Scan(&lockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoAccount
		}
		return nil, fmt.Errorf("register failed login: %w", err)
	}

	if lockedUntil.Valid && lockedUntil.Time.After(now) {
		value := lockedUntil.Time.UTC()
		return &value, nil
	}

	return nil, nil
}

func (r *Repository) ResetLockout(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    last_failed_login = NULL,
		    account_locked_until = NULL,
		    updated_at = $2
		WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}

	return nil
}

func (r *Repository) TouchLastActive(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_active_at = $2
		WHERE id = $1
	`, id, at.UTC())
	if err != nil {
		return fmt.Errorf("touch last active: %w", err)
	}

	return nil
}

func (r *Repository) CreatePasswordReset(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_password_resets (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, newID(), userID, tokenHash, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert password reset: %w", err)
	}

	return nil
}

func (r *Repository) ConsumePasswordReset(ctx context.Context, tokenHash string, now time.Time) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx, `
		UPDATE auth_password_resets
		SET used_at = $2
		WHERE token_hash = $1
		  AND used_at IS NULL
		  AND expires_at > $2
		RETURNING user_id
	`, tokenHash, now.UTC()).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrResetTokenSpent
		}
		return "", fmt.Errorf("consume password reset: %w", err)
	}

	return userID, nil
}

// CleanupStaleAuthData clears lockout state whose lock expired before the
// retention cutoff and drops spent or expired reset tokens. Bounded per
// call so a cron invocation never holds long locks.
func (r *Repository) CleanupStaleAuthData(ctx context.Context, lockoutRetention, resetRetention time.Duration, batchSize int) (CleanupResult, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	if lockoutRetention <= 0 {
		lockoutRetention = 30 * 24 * time.Hour
	}
	if resetRetention <= 0 {
		resetRetention = 7 * 24 * time.Hour
	}

	now := time.Now().UTC()
	lockoutCutoff := now.Add(-lockoutRetention)
	resetCutoff := now.Add(-resetRetention)

	clearedLockouts, err := r.clearStaleLockouts(ctx, lockoutCutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	deletedResets, err := r.deleteStaleResetTokens(ctx, resetCutoff, batchSize)
	if err != nil {
		return CleanupResult{}, err
	}

	return CleanupResult{
		ClearedLockouts:    clearedLockouts,
		DeletedResetTokens: deletedResets,
	}, nil
}

func (r *Repository) clearStaleLockouts(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM users
			WHERE account_locked_until IS NOT NULL
			  AND account_locked_until < $1
			ORDER BY account_locked_until ASC
			LIMIT $2
		)
		UPDATE users u
		SET failed_login_attempts = 0,
		    last_failed_login = NULL,
		    account_locked_until = NULL
		FROM stale
		WHERE u.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("clear stale lockouts: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale lockouts rows affected: %w", err)
	}

	return affected, nil
}

func (r *Repository) deleteStaleResetTokens(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		WITH stale AS (
			SELECT id
			FROM auth_password_resets
			WHERE expires_at < NOW() OR (used_at IS NOT NULL AND used_at < $1)
			ORDER BY created_at ASC
			LIMIT $2
		)
		DELETE FROM auth_password_resets t
		USING stale
		WHERE t.id = stale.id
	`, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("delete stale reset tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale reset tokens rows affected: %w", err)
	}

	return affected, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableTime(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// fingerprint hashes secrets (reset tokens) before they touch storage.
func fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

var _ Store = (*Repository)(nil)
