package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"portal-rest-api/internal/failure"
	"portal-rest-api/internal/model"
	"portal-rest-api/pkg/uid"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTokenTTL is the default token lifetime.
	DefaultTokenTTL = 1 * time.Hour

	// RevokedKeyPrefix is the Redis key prefix for revoked token ids.
	RevokedKeyPrefix = "portal:revoked:"
)

// TokenConfig configures the token service.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Claims are the JWT claims issued to admin console users.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and validates signed identity tokens. Revocations are
// kept in Redis when a client is given, otherwise in process memory.
type TokenService struct {
	config TokenConfig
	redis  *redis.Client
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

// NewTokenService creates a new token service. redisClient may be nil.
func NewTokenService(config TokenConfig, redisClient *redis.Client) (*TokenService, error) {
	if len(config.Secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTokenTTL
	}
	if config.Issuer == "" {
		config.Issuer = "portal-api"
	}
	return &TokenService{
		config:  config,
		redis:   redisClient,
		now:     time.Now,
		revoked: make(map[string]time.Time),
	}, nil
}

// TTL returns the token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.config.TTL
}

// GenerateToken signs a token for subject with role.
func (s *TokenService) GenerateToken(subject, role string) (string, *model.Identity, error) {
	now := s.now()
	identity := &model.Identity{
		Subject:   subject,
		Role:      role,
		TokenID:   uid.New(),
		ExpiresAt: now.Add(s.config.TTL).Truncate(time.Second),
	}

	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.config.Issuer,
			ID:        identity.TokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(identity.ExpiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.config.Secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	log.Printf("[TokenService] Issued token for %s (role=%s, expires=%v)", subject, role, identity.ExpiresAt.Format(time.RFC3339))
	return token, identity, nil
}

// ValidateToken verifies signature, issuer, expiry and revocation. Every
// rejection wraps failure.ErrUnauthorized.
func (s *TokenService) ValidateToken(ctx context.Context, token string) (*model.Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token: %w", failure.ErrUnauthorized)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %v: %w", err, failure.ErrUnauthorized)
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, fmt.Errorf("token revoked: %w", failure.ErrUnauthorized)
	}

	return &model.Identity{
		Subject:   claims.Subject,
		Role:      claims.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// RevokeToken blocks the identity's token until it would have expired.
func (s *TokenService) RevokeToken(ctx context.Context, identity *model.Identity) error {
	ttl := identity.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if s.redis != nil {
		return s.redis.Set(ctx, RevokedKeyPrefix+identity.TokenID, identity.Subject, ttl).Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[identity.TokenID] = identity.ExpiresAt
	return nil
}

func (s *TokenService) isRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.redis != nil {
		n, err := s.redis.Exists(ctx, RevokedKeyPrefix+tokenID).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[tokenID]
	return ok, nil
}
