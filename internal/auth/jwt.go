package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid claims")
)

// Claims is what a verified token tells about its bearer.
type Claims struct {
	UserID string
	Email  string
	Type   TokenType
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (m *Manager) GenerateToken(userID, email string, typ TokenType) (string, error) {
	ttl := m.accessTTL
	if typ == RefreshToken {
		ttl = m.refreshTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"email":   email,
		"typ":     string(typ),
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// GenerateTokenPair issues an access and a refresh token for one login.
func (m *Manager) GenerateTokenPair(userID, email string) (access, refresh string, err error) {
	if access, err = m.GenerateToken(userID, email, AccessToken); err != nil {
		return "", "", err
	}
	if refresh, err = m.GenerateToken(userID, email, RefreshToken); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ParseToken verifies signature and expiry. A token without a typ claim is
// treated as an access token.
func (m *Manager) ParseToken(tokenStr string) (*Claims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidClaims
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return nil, ErrInvalidClaims
	}

	email, _ := claims["email"].(string)
	typ := AccessToken
	if v, ok := claims["typ"].(string); ok {
		typ = TokenType(v)
	}
	return &Claims{UserID: userID, Email: email, Type: typ}, nil
}

// ParseRefreshToken accepts only tokens issued as refresh tokens.
func (m *Manager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.ParseToken(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Type != RefreshToken {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
