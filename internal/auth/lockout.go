package auth

import "time"

// LockoutPolicy bounds consecutive failed logins per account. It is
// account-keyed and entirely independent of the IP-keyed rate limiter:
// neither consults the other.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

const (
	defaultMaxAttempts  = 5
	defaultLockDuration = 2 * time.Hour
)

func NewLockoutPolicy(maxAttempts int, lockDuration time.Duration) LockoutPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if lockDuration <= 0 {
		lockDuration = defaultLockDuration
	}
	return LockoutPolicy{MaxAttempts: maxAttempts, LockDuration: lockDuration}
}
