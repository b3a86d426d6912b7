package crypto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Supported password hashing schemes.
const (
	SchemeBcrypt   = "bcrypt"
	SchemeArgon2id = "argon2id"
)

// bcrypt only reads the first 72 bytes of a password.
const maxBcryptPasswordBytes = 72

// argon2 memory ceiling accepted from a stored encoding, in KiB (4 GiB).
const maxArgon2Memory = 4 << 20

var (
	// ErrUnknownScheme is returned when a hasher is configured with an unsupported scheme.
	ErrUnknownScheme = errors.New("crypto: unknown password scheme")
	// ErrPasswordTooLong is returned by Hash when the scheme cannot represent the whole password.
	ErrPasswordTooLong = errors.New("crypto: password exceeds 72 bytes")
)

// Argon2Params tunes the argon2id scheme.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// HasherConfig selects the scheme and cost used for new hashes.
type HasherConfig struct {
	Scheme     string
	BcryptCost int
	Argon2     Argon2Params
}

// Hasher hashes and verifies passwords. Safe for concurrent use.
type Hasher struct {
	scheme     string
	bcryptCost int
	argon2     *argon2id.Params
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	scheme := strings.ToLower(strings.TrimSpace(cfg.Scheme))
	if scheme == "" {
		scheme = SchemeBcrypt
	}
	h := &Hasher{scheme: scheme}
	switch scheme {
	case SchemeBcrypt:
		cost := cfg.BcryptCost
		if cost == 0 {
			cost = bcrypt.DefaultCost
		}
		if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return nil, fmt.Errorf("crypto: bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
		}
		h.bcryptCost = cost
	case SchemeArgon2id:
		params := *argon2id.DefaultParams
		if cfg.Argon2.Memory > 0 {
			params.Memory = cfg.Argon2.Memory
		}
		if cfg.Argon2.Iterations > 0 {
			params.Iterations = cfg.Argon2.Iterations
		}
		if cfg.Argon2.Parallelism > 0 {
			params.Parallelism = cfg.Argon2.Parallelism
		}
		if cfg.Argon2.SaltLength > 0 {
			params.SaltLength = cfg.Argon2.SaltLength
		}
		if cfg.Argon2.KeyLength > 0 {
			params.KeyLength = cfg.Argon2.KeyLength
		}
		h.argon2 = &params
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, cfg.Scheme)
	}
	return h, nil
}

// Scheme reports the scheme used for new hashes.
func (h *Hasher) Scheme() string {
	return h.scheme
}

// Hash returns a salted encoding of plain. Two calls with the same input differ.
func (h *Hasher) Hash(plain string) (string, error) {
	switch h.scheme {
	case SchemeArgon2id:
		return argon2id.CreateHash(plain, h.argon2)
	default:
		if len(plain) > maxBcryptPasswordBytes {
			return "", ErrPasswordTooLong
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.bcryptCost)
		if err != nil {
			return "", err
		}
		return string(hashed), nil
	}
}

// Verify reports whether plain matches encoded. The scheme is taken from the
// encoding itself, so hashes written under an earlier configuration still verify.
// Malformed encodings never match.
func (h *Hasher) Verify(plain, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, "$argon2id$"):
		if !saneArgon2Encoding(encoded) {
			return false
		}
		match, err := argon2id.ComparePasswordAndHash(plain, encoded)
		return err == nil && match
	case strings.HasPrefix(encoded, "$2a$"), strings.HasPrefix(encoded, "$2b$"), strings.HasPrefix(encoded, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(plain)) == nil
	default:
		return false
	}
}

// saneArgon2Encoding rejects parameters that x/crypto/argon2 panics on or that
// would let a stored row demand unbounded memory.
func saneArgon2Encoding(encoded string) bool {
	params, salt, key, err := argon2id.DecodeHash(encoded)
	if err != nil {
		return false
	}
	switch {
	case params.Iterations < 1, params.Parallelism < 1:
		return false
	case params.Memory < 1, params.Memory > maxArgon2Memory:
		return false
	case len(salt) == 0, len(key) == 0:
		return false
	}
	return true
}
