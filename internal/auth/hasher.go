// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Placy Contributors

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// OWASP-recommended argon2id parameters.
const (
	DefaultArgon2Time    = 1         // iterations
	DefaultArgon2Memory  = 64 * 1024 // 64 MB
	DefaultArgon2Threads = 4         // parallelism

	argon2SaltLen = 16
	argon2KeyLen  = 32
)

const (
	argon2Prefix = "$argon2id$"
	pbkdf2Prefix = "$pbkdf2-sha256$"
)

// HashParams tunes the argon2id cost.
type HashParams struct {
	Memory  uint32
	Time    uint32
	Threads uint8
}

// DefaultHashParams returns the parameters used when none are configured.
func DefaultHashParams() HashParams {
	return HashParams{
		Memory:  DefaultArgon2Memory,
		Time:    DefaultArgon2Time,
		Threads: DefaultArgon2Threads,
	}
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a self-describing encoded hash of the password.
	Hash(password string) string

	// Verify reports whether password matches the encoded hash.
	// Malformed or unsupported hashes never match.
	Verify(password, encoded string) bool

	// NeedsUpgrade reports whether encoded should be replaced with a fresh hash.
	NeedsUpgrade(encoded string) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
// It also verifies passlib pbkdf2-sha256 hashes so older credentials keep
// working until they are upgraded on the next successful login.
type Argon2idHasher struct {
	params HashParams
}

// NewArgon2idHasher creates a hasher. Zero fields in params take their defaults.
func NewArgon2idHasher(params HashParams) *Argon2idHasher {
	def := DefaultHashParams()
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	return &Argon2idHasher{params: params}
}

// Params returns the parameters new hashes are produced with.
func (h *Argon2idHasher) Params() HashParams {
	return h.params
}

// Hash produces an argon2id hash of the password.
// Any string, including the empty one, can be hashed.
func (h *Argon2idHasher) Hash(password string) string {
	salt := make([]byte, argon2SaltLen)
	// crypto/rand.Read never returns an error.
	_, _ = rand.Read(salt)

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, argon2KeyLen)

	// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encoded string) bool {
	switch {
	case strings.HasPrefix(encoded, argon2Prefix):
		parsed, err := parseArgon2id(encoded)
		if err != nil {
			return false
		}
		computed := argon2.IDKey([]byte(password), parsed.salt, parsed.params.Time,
			parsed.params.Memory, parsed.params.Threads, uint32(len(parsed.key)))
		return subtle.ConstantTimeCompare(computed, parsed.key) == 1
	case strings.HasPrefix(encoded, pbkdf2Prefix):
		parsed, err := parsePBKDF2(encoded)
		if err != nil {
			return false
		}
		computed := pbkdf2.Key([]byte(password), parsed.salt, parsed.rounds, len(parsed.key), sha256.New)
		return subtle.ConstantTimeCompare(computed, parsed.key) == 1
	default:
		return false
	}
}

// NeedsUpgrade returns true for legacy hashes and for argon2id hashes
// produced with different parameters.
func (h *Argon2idHasher) NeedsUpgrade(encoded string) bool {
	parsed, err := parseArgon2id(encoded)
	if err != nil {
		return true
	}
	return parsed.params != h.params
}

type argon2Hash struct {
	params HashParams
	salt   []byte
	key    []byte
}

func parseArgon2id(encoded string) (argon2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	if parts[1] != "argon2id" {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if version != argon2.Version {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("unsupported argon2 version: %d", version)
	}

	var memory, iterations, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if threads == 0 || threads > 255 {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("threads value %d out of range", threads)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 || len(key) > 1<<10 {
		return argon2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash key length: %d", len(key))
	}

	return argon2Hash{
		params: HashParams{Memory: memory, Time: iterations, Threads: uint8(threads)},
		salt:   salt,
		key:    key,
	}, nil
}

type pbkdf2Hash struct {
	rounds int
	salt   []byte
	key    []byte
}

// parsePBKDF2 reads passlib's modular crypt format:
// $pbkdf2-sha256$<rounds>$<ab64 salt>$<ab64 digest>
func parsePBKDF2(encoded string) (pbkdf2Hash, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[1] != "pbkdf2-sha256" {
		return pbkdf2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("invalid hash format")
	}

	rounds, err := strconv.Atoi(parts[2])
	if err != nil || rounds <= 0 {
		return pbkdf2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("invalid rounds: %q", parts[2])
	}

	salt, err := decodeAB64(parts[3])
	if err != nil {
		return pbkdf2Hash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	key, err := decodeAB64(parts[4])
	if err != nil {
		return pbkdf2Hash{}, oops.Code("AUTH_INVALID_HASH").Wrap(err)
	}
	if len(key) == 0 {
		return pbkdf2Hash{}, oops.Code("AUTH_INVALID_HASH").Errorf("empty digest")
	}

	return pbkdf2Hash{rounds: rounds, salt: salt, key: key}, nil
}

// decodeAB64 decodes passlib's "adapted base64", which uses '.' in place of '+'.
func decodeAB64(s string) ([]byte, error) {
	b, err := base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
	if err != nil {
		return nil, fmt.Errorf("decode ab64: %w", err)
	}
	return b, nil
}
