package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Supported hashing algorithms.
const (
	AlgorithmArgon2id = "argon2id"
	AlgorithmBcrypt   = "bcrypt"
)

const (
	argonKeyLen  = 32
	argonSaltLen = 16

	// bcryptMaxBytes is the input limit of bcrypt.
	bcryptMaxBytes = 72
)

// HasherConfig selects the algorithm and its work factor.
type HasherConfig struct {
	Algorithm     string
	Argon2Time    uint32 // iterations
	Argon2Memory  uint32 // KiB
	Argon2Threads uint8
	BcryptCost    int
}

// DefaultHasherConfig is Argon2id with t=3, m=64 MiB, p=1 (OWASP 2025),
// well above 100 ms per hash on server hardware.
func DefaultHasherConfig() HasherConfig {
	return HasherConfig{
		Algorithm:     AlgorithmArgon2id,
		Argon2Time:    3,
		Argon2Memory:  64 * 1024,
		Argon2Threads: 1,
		BcryptCost:    12,
	}
}

// Hasher hashes and verifies passwords. It is stateless and safe for
// concurrent use.
type Hasher struct {
	cfg HasherConfig
}

// NewHasher validates cfg and returns a Hasher.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	switch cfg.Algorithm {
	case AlgorithmArgon2id:
		if cfg.Argon2Time == 0 || cfg.Argon2Memory == 0 || cfg.Argon2Threads == 0 {
			return nil, fmt.Errorf("argon2id parameters must be positive")
		}
	case AlgorithmBcrypt:
		if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
			return nil, fmt.Errorf("bcrypt cost %d out of range", cfg.BcryptCost)
		}
	default:
		return nil, fmt.Errorf("unsupported password algorithm %q", cfg.Algorithm)
	}
	return &Hasher{cfg: cfg}, nil
}

// Hash returns a salted digest of password using the configured algorithm.
// Argon2id digests use the PHC string format:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func (h *Hasher) Hash(password string) (string, error) {
	if h.cfg.Algorithm == AlgorithmBcrypt {
		if len(password) > bcryptMaxBytes {
			return "", ErrPasswordTooLong
		}
		digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cfg.BcryptCost)
		if err != nil {
			return "", fmt.Errorf("hashing password: %w", err)
		}
		return string(digest), nil
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.cfg.Argon2Time, h.cfg.Argon2Memory, h.cfg.Argon2Threads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Argon2Memory, h.cfg.Argon2Time, h.cfg.Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches digest. It accepts Argon2id PHC
// strings and bcrypt digests regardless of the configured algorithm.
// Malformed digests never match.
func (h *Hasher) Verify(password, digest string) bool {
	if isBcryptDigest(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
	}

	p, err := decodePHC(digest)
	if err != nil {
		return false
	}
	candidate := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, p.threads, uint32(len(p.key))) //nolint:gosec // key length always fits uint32
	return subtle.ConstantTimeCompare(p.key, candidate) == 1
}

// NeedsRehash reports whether digest was produced by another algorithm or
// with weaker parameters than the current configuration.
func (h *Hasher) NeedsRehash(digest string) bool {
	if isBcryptDigest(digest) {
		if h.cfg.Algorithm != AlgorithmBcrypt {
			return true
		}
		cost, err := bcrypt.Cost([]byte(digest))
		return err != nil || cost < h.cfg.BcryptCost
	}

	p, err := decodePHC(digest)
	if err != nil {
		return true
	}
	if h.cfg.Algorithm != AlgorithmArgon2id {
		return true
	}
	return p.time < h.cfg.Argon2Time || p.memory < h.cfg.Argon2Memory || p.threads < h.cfg.Argon2Threads
}

// dummyDigest lets login spend the same time on unknown emails.
func (h *Hasher) dummyDigest() string {
	d, err := h.Hash("zmapp-timing-equaliser")
	if err != nil {
		return ""
	}
	return d
}

func isBcryptDigest(digest string) bool {
	return strings.HasPrefix(digest, "$2a$") ||
		strings.HasPrefix(digest, "$2b$") ||
		strings.HasPrefix(digest, "$2y$")
}

type phcDigest struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

var errMalformedDigest = errors.New("malformed password digest")

// decodePHC parses an Argon2id PHC string.
func decodePHC(encoded string) (phcDigest, error) {
	var p phcDigest

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != AlgorithmArgon2id {
		return p, errMalformedDigest
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, errMalformedDigest
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return p, errMalformedDigest
	}
	if p.time == 0 || p.memory == 0 || p.threads == 0 {
		return p, errMalformedDigest
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return p, errMalformedDigest
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) == 0 {
		return p, errMalformedDigest
	}
	return p, nil
}
