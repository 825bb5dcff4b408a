package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"mathemelody/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidToken is returned for tokens that are malformed, expired,
// signed with the wrong key or carry no usable subject.
var ErrInvalidToken = errors.New("invalid token")

// jwtSecretEnv names the environment variable consulted when the config
// file leaves the signing secret empty. A .env file is loaded first.
const jwtSecretEnv = "MATHEMELODY_JWT_SECRET"

// Service issues and verifies the bearer tokens the API authenticates
// with, and owns password hashing. Tokens are stateless HS256 JWTs whose
// subject is the user ID; nothing is stored server-side per session.
type Service struct {
	secret []byte
	ttl    time.Duration
	logger *logrus.Logger
}

// NewService builds the auth service. The signing secret comes from the
// config file, then the environment, and as a last resort is generated
// randomly for this process only - tokens then die with the server, which
// is logged loudly.
func NewService(cfg *config.AuthConfig, ttl time.Duration, logger *logrus.Logger) (*Service, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		// Load .env file if it exists (for the secret)
		if _, err := os.Stat(".env"); err == nil {
			if err := godotenv.Load(".env"); err != nil {
				logger.WithError(err).Warn("Could not load .env file")
			}
		}
		secret = os.Getenv(jwtSecretEnv)
	}

	if secret == "" {
		generated, err := generateRandomSecret(32)
		if err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		secret = generated
		logger.Warn("No JWT secret configured; generated a random one. Tokens will not survive a restart - set jwt_secret in config.toml or " + jwtSecretEnv)
	}

	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// HashPassword hashes a plaintext password using bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	// Use cost factor 12 for good security/performance balance
	hash, err := bcrypt.GenerateFromPassword([]byte(password), 12)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether a plaintext password matches a stored hash.
func (s *Service) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IssueToken signs a bearer token for the given user ID.
func (s *Service) IssueToken(userID int) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a bearer token and returns the user ID it carries.
func (s *Service) ParseToken(tokenString string) (int, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID <= 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// generateRandomSecret generates a cryptographically secure random secret.
func generateRandomSecret(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
