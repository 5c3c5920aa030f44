package shared

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Claims holds the verified identity attributes bound to a bearer token.
// The tenant identifier claim is what downstream tenant resolution reads;
// interactive requests without it are rejected, never silently untenanted.
type Claims struct {
	Subject     string    `json:"sub"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Roles       []string  `json:"roles"`
}

// HasRole reports whether the claim set contains the given role.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SessionManager issues and resolves opaque bearer tokens backed by Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, secret string, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl, secret: []byte(secret)}
}

// Issue stores the claims under a freshly generated token.
func (sm *SessionManager) Issue(ctx context.Context, claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	token := sm.generateToken()
	if err := sm.client.Set(ctx, sm.redisKey(token), payload, sm.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Load resolves a bearer token back into its claims.
func (sm *SessionManager) Load(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrSessionExpired
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionExpired
		}
		return nil, err
	}
	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, err
	}
	return &claims, nil
}

// Revoke deletes the session backing a token.
func (sm *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := sm.client.Del(ctx, sm.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// redisKey derives the storage key from the token via a keyed hash, so a
// Redis dump never exposes usable bearer tokens.
func (sm *SessionManager) redisKey(token string) string {
	mac := hmac.New(sha256.New, sm.secret)
	mac.Write([]byte(token))
	return "session:" + hex.EncodeToString(mac.Sum(nil))
}

func (sm *SessionManager) generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the host is broken; uuid still gives
		// an unguessable token.
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
