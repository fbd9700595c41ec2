package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is stamped into every credential and required on verification.
const Issuer = "oauth-front"

// TTL is the lifetime of every session credential minted by the auth flow.
const TTL = 15 * time.Minute

// Codec signs and verifies session credentials as HS256 JWTs.
type Codec struct {
	key    []byte
	now    func() time.Time
	parser *jwt.Parser
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat, exp and validation.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec builds a Codec from the signing secret. Surrounding whitespace is
// ignored; an empty secret yields a *ConfigurationError.
func NewCodec(secret string, opts ...Option) (*Codec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, &ConfigurationError{Setting: "signing secret", Reason: "is missing or empty"}
	}

	c := &Codec{
		key: []byte(secret),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	return c, nil
}

// Issue signs claims with iat set to now and exp set to now+ttl. The
// subject and profile fields are taken from claims; registered time fields
// on the input are ignored. Each credential gets a fresh token id.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("session ttl must be positive, got %s", ttl)
	}

	now := c.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    Issuer,
		Subject:   claims.Subject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign session: %w", err)
	}
	return signed, nil
}

// Verify checks the signature in constant time, then the expiry, and
// returns the embedded claims. Every failure wraps ErrInvalidCredential.
func (c *Codec) Verify(credential string) (*Claims, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCredential)
	}

	var claims Claims
	_, err := c.parser.ParseWithClaims(credential, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	return &claims, nil
}

// IsExpired reports whether err came from an expired but otherwise valid
// credential. It is meant for logging only.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}
