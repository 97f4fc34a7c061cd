package service

import (
	"errors"
	"fmt"
	"time"

	"civil-erp/internal/model"
	"civil-erp/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims carried by every access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies HS256 bearer tokens.
type TokenManager interface {
	Issue(user *model.User) (string, error)
	// Parse returns the subject user id. Expired tokens fail with Unauthenticated,
	// every other defect with InvalidCredential.
	Parse(token string) (uuid.UUID, *Claims, error)
}

type tokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenManager(secret string, ttl time.Duration) TokenManager {
	return &tokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (m *tokenManager) Issue(user *model.User) (string, error) {
	now := m.now()
	claims := Claims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *tokenManager) Parse(tokenString string) (uuid.UUID, *Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, nil, apperror.New(apperror.Unauthenticated, "Token expired")
		}
		return uuid.Nil, nil, apperror.New(apperror.InvalidCredential, "Invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return uuid.Nil, nil, apperror.New(apperror.InvalidCredential, "Invalid token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, nil, apperror.New(apperror.InvalidCredential, "Invalid token")
	}
	return id, claims, nil
}
