package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blacklist is the revocation registry. A token with an entry here is
// rejected no matter how structurally valid it still is. Entries carry a
// TTL equal to the longest token lifetime, so the registry never holds a
// record past the point where expiry alone would reject the token.
type Blacklist struct {
	rdb *redis.Client
	ttl time.Duration
}

type revocationEntry struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	RevokedAt time.Time `json:"revoked_at"`
}

func NewBlacklist(rdb *redis.Client, ttl time.Duration) *Blacklist {
	return &Blacklist{rdb: rdb, ttl: ttl}
}

// Revoke records a token as revoked. Revoking the same token twice is a
// no-op: the first entry wins and keeps its original metadata.
func (b *Blacklist) Revoke(ctx context.Context, rawToken, userID, reason string) error {
	entry, err := json.Marshal(revocationEntry{
		UserID:    userID,
		Reason:    reason,
		RevokedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode revocation entry: %w", err)
	}

	if err := b.rdb.SetNX(ctx, blacklistKey(rawToken), entry, b.ttl).Err(); err != nil {
		return fmt.Errorf("write revocation entry: %w", err)
	}

	return nil
}

// IsRevoked reports whether this exact token value has been revoked.
func (b *Blacklist) IsRevoked(ctx context.Context, rawToken string) (bool, error) {
	count, err := b.rdb.Exists(ctx, blacklistKey(rawToken)).Result()
	if err != nil {
		return false, fmt.Errorf("read revocation entry: %w", err)
	}
	return count > 0, nil
}

// Tokens are fingerprinted at rest; the raw value never reaches Redis.
func blacklistKey(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return "bl:" + hex.EncodeToString(sum[:])
}
