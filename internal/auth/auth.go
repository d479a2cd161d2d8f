// Package auth validates the session tokens clients present at the
// socket handshake.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/statewire/pushgate/internal/config"
)

var (
	// ErrTokenInvalid covers parse failures, bad signatures and expiry.
	ErrTokenInvalid = errors.New("invalid session token")

	// ErrTokenRevoked marks tokens whose id is on the revocation list.
	ErrTokenRevoked = errors.New("session token revoked")
)

// Claims carries the registered claims plus the scopes granted to the
// session. The subject, when present, becomes the connection id so a
// client keeps a stable identity across reconnects. The jti claim keys
// the revocation list.
type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// Validator checks HMAC-signed session tokens.
type Validator struct {
	secret  []byte
	prefix  string
	revoker *redis.Client
	logger  *slog.Logger
}

// NewValidator builds a Validator from config. A nil revoker skips the
// revocation lookup entirely.
func NewValidator(cfg config.AuthConfig, revoker *redis.Client, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		secret:  []byte(cfg.JWTSecret),
		prefix:  cfg.RevocationPrefix,
		revoker: revoker,
		logger:  logger,
	}
}

// ValidateToken parses and verifies a token string, then consults the
// revocation list. Revocation checks fail open when Redis is unreachable
// so a cache outage cannot lock every client out.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	revoked, err := v.revoked(ctx, claims.ID)
	if err != nil {
		v.logger.Warn("revocation check failed", "error", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

func (v *Validator) revoked(ctx context.Context, jti string) (bool, error) {
	if v.revoker == nil || jti == "" {
		return false, nil
	}

	key := fmt.Sprintf("%s:%s", v.prefix, jti)
	n, err := v.revoker.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation list: %w", err)
	}
	return n == 1, nil
}
