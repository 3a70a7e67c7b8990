package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func TestBlacklistRevokeAndCheck(t *testing.T) {
	_, rdb := newTestRedis(t)
	bl := NewBlacklist(rdb, time.Hour)
	ctx := context.Background()

	revoked, err := bl.IsRevoked(ctx, "some-token")
	if err != nil {
		t.Fatalf("check fresh token: %v", err)
	}
	if revoked {
		t.Fatal("unrevoked token reported as revoked")
	}

	if err := bl.Revoke(ctx, "some-token", "user-1", "logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	revoked, err = bl.IsRevoked(ctx, "some-token")
	if err != nil {
		t.Fatalf("check revoked token: %v", err)
	}
	if !revoked {
		t.Fatal("revoked token not reported as revoked")
	}

	// Other tokens are untouched.
	revoked, err = bl.IsRevoked(ctx, "other-token")
	if err != nil {
		t.Fatalf("check other token: %v", err)
	}
	if revoked {
		t.Fatal("unrelated token reported as revoked")
	}
}

func TestBlacklistRevokeIsIdempotent(t *testing.T) {
	_, rdb := newTestRedis(t)
	bl := NewBlacklist(rdb, time.Hour)
	ctx := context.Background()

	if err := bl.Revoke(ctx, "token", "user-1", "logout"); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := bl.Revoke(ctx, "token", "user-1", "account_deleted"); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	revoked, err := bl.IsRevoked(ctx, "token")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !revoked {
		t.Fatal("token not revoked after double revoke")
	}
}

func TestBlacklistEntriesExpireWithTokenLifetime(t *testing.T) {
	mr, rdb := newTestRedis(t)
	bl := NewBlacklist(rdb, time.Hour)
	ctx := context.Background()

	if err := bl.Revoke(ctx, "token", "user-1", "logout"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	mr.FastForward(time.Hour + time.Minute)

	revoked, err := bl.IsRevoked(ctx, "token")
	if err != nil {
		t.Fatalf("check after expiry: %v", err)
	}
	if revoked {
		t.Fatal("revocation entry outlived the token lifetime")
	}
}
