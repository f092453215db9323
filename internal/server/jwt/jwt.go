// Package jwt issues and verifies the signed, expiring tokens used for both
// access and refresh credentials.
package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for every verification failure: malformed
// input, bad signature, wrong algorithm, expiry or a bad subject.
var ErrInvalidToken = errors.New("invalid token")

// ErrEmptySecret is returned by NewCodec when no signing secret is given.
var ErrEmptySecret = errors.New("jwt secret must not be empty")

// Codec signs and verifies HS256 tokens carrying a numeric subject.
type Codec struct {
	now    func() time.Time
	parser *gojwt.Parser
	secret []byte
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec создает codec с общим секретом процесса.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		secret: secret,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	// Метод подписи зафиксирован: alg=none и подмена алгоритма отклоняются парсером.
	c.parser = gojwt.NewParser(
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(func() time.Time { return c.now() }),
	)

	return c, nil
}

// Issue signs a token for subject that expires after ttl.
func (c *Codec) Issue(subject int64, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := c.now()
	expiresAt := now.Add(ttl)

	claims := gojwt.RegisteredClaims{
		Subject:   strconv.FormatInt(subject, 10),
		ExpiresAt: gojwt.NewNumericDate(expiresAt),
		IssuedAt:  gojwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}

	token := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks the signature and expiry of token and returns its subject.
func (c *Codec) Verify(token string) (int64, error) {
	var claims gojwt.RegisteredClaims
	parsed, err := c.parser.ParseWithClaims(token, &claims, func(*gojwt.Token) (any, error) {
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	if claims.Subject == "" {
		return 0, ErrInvalidToken
	}

	subject, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}

	return subject, nil
}
