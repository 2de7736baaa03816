package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"docqa-backend/internal/config"
)

const (
	accessTokenTTL  = 1 * time.Hour
	refreshTokenTTL = 7 * 24 * time.Hour
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenRevoked = errors.New("token has been revoked")
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	rdb           *redis.Client
}

func NewTokenService(cfg *config.Config, rdb *redis.Client) *TokenService {
	return &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		rdb:           rdb,
	}
}

// IssueTokenPair creates a new access/refresh token pair for a user.
func (ts *TokenService) IssueTokenPair(userID, role string) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTokenTTL)
	refreshExp := now.Add(refreshTokenTTL)

	accessToken, err := ts.sign(userID, role, "access", accessExp, ts.accessSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}

	refreshToken, err := ts.sign(userID, role, "refresh", refreshExp, ts.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (ts *TokenService) sign(userID, role, subject string, exp time.Time, secret []byte) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateAccessToken verifies an access token and checks the revocation list.
func (ts *TokenService) ValidateAccessToken(ctx context.Context, tokenString string) (*Claims, error) {
	return ts.validate(ctx, tokenString, "access", ts.accessSecret)
}

// ValidateRefreshToken verifies a refresh token and checks the revocation list.
func (ts *TokenService) ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error) {
	return ts.validate(ctx, tokenString, "refresh", ts.refreshSecret)
}

func (ts *TokenService) validate(ctx context.Context, tokenString, subject string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject != subject {
		return nil, ErrTokenInvalid
	}

	// Revocation list lives in Redis; fail closed only on a positive hit so
	// a Redis outage does not lock every user out.
	if ts.rdb != nil {
		if revoked, err := ts.rdb.Exists(ctx, revocationKey(claims.ID)).Result(); err == nil && revoked > 0 {
			return nil, ErrTokenRevoked
		}
	}

	return claims, nil
}

// RevokeToken marks a token id as revoked until its natural expiry.
func (ts *TokenService) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if ts.rdb == nil {
		return nil
	}
	return ts.rdb.Set(ctx, revocationKey(jti), "1", ttl).Err()
}

func revocationKey(jti string) string {
	return "revoked:" + jti
}
