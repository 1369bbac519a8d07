// Package auth issues and checks the credentials accepted by the admin routes:
// a signed session token from the login endpoint, or the shared API key.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
)

const issuer = "vehicle-status-backend"

// Claims carried by an admin session token
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Authenticator checks admin credentials and session tokens
type Authenticator struct {
	username string
	password string
	apiKey   string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// Config configures an Authenticator
type Config struct {
	Username  string
	Password  string
	APIKey    string // Empty disables API key checks
	JWTSecret string
	TokenTTL  time.Duration
}

// New creates an authenticator
func New(cfg Config) *Authenticator {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{
		username: cfg.Username,
		password: cfg.Password,
		apiKey:   cfg.APIKey,
		secret:   []byte(cfg.JWTSecret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Login verifies the admin credentials and returns a signed token with its expiry
func (a *Authenticator) Login(username, password string) (string, time.Time, error) {
	if !equal(username, a.username) || !equal(password, a.password) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	return a.IssueToken(username)
}

// IssueToken signs a session token for username
func (a *Authenticator) IssueToken(username string) (string, time.Time, error) {
	now := a.now()
	expires := now.Add(a.ttl)

	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expires, nil
}

// VerifyToken parses a session token and returns its claims
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// APIKeyRequired reports whether an API key has been configured
func (a *Authenticator) APIKeyRequired() bool {
	return a.apiKey != ""
}

// VerifyAPIKey checks key against the configured API key. With no key
// configured every key is accepted.
func (a *Authenticator) VerifyAPIKey(key string) bool {
	if a.apiKey == "" {
		return true
	}
	return equal(key, a.apiKey)
}

// VerifyBearer accepts either a valid session token or the API key
func (a *Authenticator) VerifyBearer(credential string) bool {
	if credential == "" {
		return false
	}
	if _, err := a.VerifyToken(credential); err == nil {
		return true
	}
	return a.VerifyAPIKey(credential)
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
