package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any failed login attempt.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims carries the authenticated reviewer identity inside a JWT.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Service issues and validates reviewer tokens.
type Service struct {
	secret []byte
	expiry time.Duration
}

// NewService builds a token service around an HMAC secret.
func NewService(secret string, expiry time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("jwt secret cannot be empty")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{secret: []byte(secret), expiry: expiry}, nil
}

// GenerateToken signs a token for the given reviewer.
func (s *Service) GenerateToken(username, role string) (string, error) {
	now := time.Now()
	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ParseToken validates tokenString and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

// HashPassword returns the bcrypt hash of a plaintext password.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyCredentials checks a login attempt against the configured reviewer
// account. Every failure mode reports the same error.
func VerifyCredentials(username, password, wantUsername, wantPasswordHash string) error {
	if username == "" || username != wantUsername {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(wantPasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
