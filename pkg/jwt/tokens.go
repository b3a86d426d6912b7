package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// DefaultTTL applies when Issue is called without a positive ttl.
const DefaultTTL = 15 * time.Minute

// ErrInvalidToken is returned by Decode for every rejected token, whatever the cause.
var ErrInvalidToken = errors.New("jwt: invalid token")

// Config holds key material and algorithm selection for a Service.
type Config struct {
	Secret     string
	Algorithm  string
	DefaultTTL time.Duration
	Issuer     string
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service issues and verifies HMAC-signed bearer tokens with a single key and algorithm.
type Service struct {
	key        []byte
	method     *jwtlib.SigningMethodHMAC
	defaultTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewService validates cfg and constructs a Service.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt: signing secret required")
	}
	alg := strings.ToUpper(strings.TrimSpace(cfg.Algorithm))
	if alg == "" {
		alg = jwtlib.SigningMethodHS256.Name
	}
	method, ok := jwtlib.GetSigningMethod(alg).(*jwtlib.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("jwt: unsupported algorithm %q", cfg.Algorithm)
	}
	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Service{
		key:        []byte(cfg.Secret),
		method:     method,
		defaultTTL: ttl,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Algorithm returns the name of the only algorithm this service signs and accepts.
func (s *Service) Algorithm() string {
	return s.method.Name
}

// DefaultTTL is the lifetime applied when Issue gets a non-positive ttl.
func (s *Service) DefaultTTL() time.Duration {
	return s.defaultTTL
}

// Issue signs a token for subject that expires ttl from now.
func (s *Service) Issue(subject string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", errors.New("jwt: subject required")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()
	claims := jwtlib.RegisteredClaims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
	}
	token := jwtlib.NewWithClaims(s.method, claims)
	return token.SignedString(s.key)
}

// Decode verifies token and returns its subject.
func (s *Service) Decode(token string) (string, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &jwtlib.RegisteredClaims{}, func(t *jwtlib.Token) (interface{}, error) {
		return s.key, nil
	},
		jwtlib.WithValidMethods([]string{s.method.Name}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*jwtlib.RegisteredClaims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims.Subject, nil
}
