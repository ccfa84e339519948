package identity

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// MinSigningKeyLen is the minimum HS256 key length in bytes.
const MinSigningKeyLen = 32

var (
	// ErrAuthDisabled is returned by Exchange when no admin secret hash is set.
	ErrAuthDisabled = errors.New("admin authentication is not configured")
	// ErrInvalidSecret is returned by Exchange for a wrong admin secret.
	ErrInvalidSecret = errors.New("invalid admin secret")
)

// AdminClaims are the JWT claims of an admin token.
type AdminClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// AuthorityConfig configures an Authority.
type AuthorityConfig struct {
	// SecretHash is the bcrypt hash of the admin secret. Empty disables
	// Exchange; tokens can still be verified.
	SecretHash string
	// SigningKey is the HS256 key. It must be at least MinSigningKeyLen bytes.
	SigningKey []byte
	Issuer     string
	TTL        time.Duration
}

// Authority issues and verifies admin tokens.
type Authority struct {
	secretHash []byte
	key        []byte
	issuer     string
	ttl        time.Duration
}

// NewAuthority validates cfg and returns an Authority.
func NewAuthority(cfg AuthorityConfig) (*Authority, error) {
	if len(cfg.SigningKey) < MinSigningKeyLen {
		return nil, fmt.Errorf("signing key must be at least %d bytes", MinSigningKeyLen)
	}
	if cfg.SecretHash != "" {
		if _, err := bcrypt.Cost([]byte(cfg.SecretHash)); err != nil {
			return nil, fmt.Errorf("admin secret hash: %w", err)
		}
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "threat-sentinel"
	}
	if cfg.TTL == 0 {
		cfg.TTL = 8 * time.Hour
	}
	return &Authority{
		secretHash: []byte(cfg.SecretHash),
		key:        cfg.SigningKey,
		issuer:     cfg.Issuer,
		ttl:        cfg.TTL,
	}, nil
}

// Enabled reports whether Exchange can succeed.
func (a *Authority) Enabled() bool {
	return len(a.secretHash) > 0
}

// Exchange checks secret against the configured hash and returns a signed
// admin token and its expiry.
func (a *Authority) Exchange(secret string) (string, time.Time, error) {
	if !a.Enabled() {
		return "", time.Time{}, ErrAuthDisabled
	}
	if err := bcrypt.CompareHashAndPassword(a.secretHash, []byte(secret)); err != nil {
		return "", time.Time{}, ErrInvalidSecret
	}
	return a.IssueAdminToken()
}

// IssueAdminToken signs a new admin token.
func (a *Authority) IssueAdminToken() (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(a.ttl)
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.New().String(),
		},
		Role: "admin",
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, exp, nil
}

// Verify parses and validates an admin token, returning its claims.
func (a *Authority) Verify(tokenStr string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&AdminClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return a.key, nil
		},
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify admin token: %w", err)
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid admin token claims")
	}
	return claims, nil
}

// HashSecret returns the bcrypt hash to configure as the admin secret hash.
func HashSecret(secret string) (string, error) {
	if secret == "" {
		return "", errors.New("secret must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash secret: %w", err)
	}
	return string(hash), nil
}

// RandomKey returns n cryptographically random bytes, for use as an
// ephemeral signing key when none is configured.
func RandomKey(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
