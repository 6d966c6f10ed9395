package security

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 4
	argonKeyLen  uint32 = 32
	saltLen             = 16
)

// ErrUnknownHashFormat is returned when a stored hash matches none of the supported schemes.
var ErrUnknownHashFormat = errors.New("security: unknown password hash format")

// HashPassword derives an Argon2id hash from the provided plaintext password.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	encoded := fmt.Sprintf("argon2id$v=19$t=%d$m=%d$p=%d$%s$%s",
		argonTime,
		argonMemory,
		argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// CheckPassword compares a plaintext password with a stored hash. Galette
// stores bcrypt hashes ($2y$); older installations still carry unsalted md5
// hex digests. Argon2id hashes produced by HashPassword are accepted too.
func CheckPassword(password, encodedHash string) (bool, error) {
	switch {
	case encodedHash == "":
		return false, nil
	case strings.HasPrefix(encodedHash, "argon2id$"):
		return VerifyPassword(password, encodedHash)
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("compare bcrypt hash: %w", err)
		}
		return true, nil
	case isMD5Hex(encodedHash):
		sum := md5.Sum([]byte(password))
		actual := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(actual), []byte(strings.ToLower(encodedHash))) == 1, nil
	default:
		return false, ErrUnknownHashFormat
	}
}

func isMD5Hex(s string) bool {
	if len(s) != 32 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// VerifyPassword compares a plaintext password with a hash produced by
// HashPassword.
func VerifyPassword(password, encodedHash string) (bool, error) {
	params, err := parseArgon2id(encodedHash)
	if err != nil {
		return false, err
	}
	actual := argon2.IDKey([]byte(password), params.salt, params.time, params.memory, params.threads, uint32(len(params.key)))
	return subtle.ConstantTimeCompare(actual, params.key) == 1, nil
}

type argon2idParams struct {
	time    uint32
	memory  uint32
	threads uint8
	salt    []byte
	key     []byte
}

// parseArgon2id reads "argon2id$v=19$t=..$m=..$p=..$salt$key".
func parseArgon2id(encoded string) (argon2idParams, error) {
	var p argon2idParams
	parts := strings.Split(encoded, "$")
	if len(parts) != 7 || parts[0] != "argon2id" {
		return p, fmt.Errorf("%w: not an argon2id hash", ErrUnknownHashFormat)
	}
	if parts[1] != "v=19" {
		return p, fmt.Errorf("argon2id: unsupported version %q", parts[1])
	}

	field := func(s, name string, bits int) (uint64, error) {
		v, err := strconv.ParseUint(strings.TrimPrefix(s, name+"="), 10, bits)
		if err != nil {
			return 0, fmt.Errorf("argon2id: parameter %s: %w", name, err)
		}
		return v, nil
	}
	t, err := field(parts[2], "t", 32)
	if err != nil {
		return p, err
	}
	m, err := field(parts[3], "m", 32)
	if err != nil {
		return p, err
	}
	threads, err := field(parts[4], "p", 8)
	if err != nil {
		return p, err
	}
	p.time, p.memory, p.threads = uint32(t), uint32(m), uint8(threads)

	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, fmt.Errorf("argon2id: salt: %w", err)
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[6]); err != nil {
		return p, fmt.Errorf("argon2id: key: %w", err)
	}
	return p, nil
}
