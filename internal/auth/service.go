package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

const (
	// Subject is the token subject issued to the editor operator.
	Subject = "editor"
	// Anonymous is the subject used when no password is configured.
	Anonymous = "anonymous"

	tokenTTL   = 24 * time.Hour
	bcryptCost = 12
)

// Service issues and checks bearer tokens for the single editor operator.
// With an empty password hash, authentication is off and every request
// runs as Anonymous.
type Service struct {
	passwordHash []byte
	jwtSecret    []byte
	now          func() time.Time
}

func NewService(passwordHash, jwtSecret string) *Service {
	return &Service{
		passwordHash: []byte(passwordHash),
		jwtSecret:    []byte(jwtSecret),
		now:          time.Now,
	}
}

// Enabled reports whether a password is required.
func (s *Service) Enabled() bool {
	return len(s.passwordHash) > 0
}

type TokenResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login checks the password and issues a token.
func (s *Service) Login(password string) (*TokenResult, error) {
	if s.Enabled() {
		if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	subject := Subject
	if !s.Enabled() {
		subject = Anonymous
	}
	return s.issueToken(subject)
}

// ValidateToken returns the token subject.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", fmt.Errorf("parse token: %w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	subject, ok := claims["sub"].(string)
	if !ok || subject == "" {
		return "", fmt.Errorf("missing subject: %w", ErrInvalidToken)
	}

	return subject, nil
}

// HashPassword produces a value suitable for PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Service) issueToken(subject string) (*TokenResult, error) {
	now := s.now()
	expires := now.Add(tokenTTL)
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": expires.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &TokenResult{Token: signed, ExpiresAt: time.Unix(expires.Unix(), 0).UTC()}, nil
}
