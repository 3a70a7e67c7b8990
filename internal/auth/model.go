package auth

import "time"

// Auth providers recorded on a user row. Password hashes exist only for
// email accounts; provider accounts authenticate upstream.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// User is the credential record as stored. PasswordHash is empty for
// provider-backed accounts.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	AuthProvider string
	IsActive     bool

	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	AccountLockedUntil  *time.Time

	LastActiveAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Locked reports whether the account is currently locked. A lock timestamp
// in the past counts as unlocked; stale rows are cleared lazily, not by a
// background sweep.
func (u User) Locked(now time.Time) bool {
	return u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now)
}

// Principal is the authenticated identity attached to a request once the
// gate accepts its token.
type Principal struct {
	ID           string
	Email        string
	Name         string
	AuthProvider string
}

// Tokens is the credential pair returned by registration and login.
// ExpiresIn is the access-token lifetime in seconds.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Profile is the public projection of a user returned by /users/me.
type Profile struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	AuthProvider string     `json:"authProvider"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastActiveAt *time.Time `json:"lastActiveAt"`
}

// NewProfile projects a stored user onto its public shape.
func NewProfile(u User) Profile {
	return Profile{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		AuthProvider: u.AuthProvider,
		CreatedAt:    u.CreatedAt,
		LastActiveAt: u.LastActiveAt,
	}
}
