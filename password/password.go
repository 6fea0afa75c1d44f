package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/sha3"
)

const (
	// DefaultIterations is the derivation cost applied to new digests. The
	// cost is recorded inside every digest, so raising this constant never
	// invalidates previously stored records.
	DefaultIterations = 100_000

	algorithmID  = "PBKDF2"
	hashID       = "SHA3_512"
	saltLength   = 32
	keyLength    = 64
	recordFields = 5
)

var errTooFewIterations = errors.New("iteration count must be positive")

// Hash derives a self-describing digest record for password:
//
//	PBKDF2.SHA3_512.{iterations}.{salt-b64}.{hash-b64}
//
// A fresh random salt is generated per call.
func Hash(password string, iterations int) (string, error) {
	if iterations <= 0 {
		return "", errTooFewIterations
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, keyLength, sha3.New512)

	return strings.Join([]string{
		algorithmID,
		hashID,
		strconv.Itoa(iterations),
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	}, "."), nil
}

// Verify reports whether password matches the digest record. Malformed
// records, unknown algorithm or hash tokens, and undecodable fields all fail
// closed. The derived key is compared in full with a constant-time comparison.
func Verify(password, record string) bool {
	parts := strings.Split(record, ".")
	if len(parts) != recordFields {
		return false
	}
	if parts[0] != algorithmID || parts[1] != hashID {
		return false
	}

	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false
	}
	stored, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(stored) == 0 {
		return false
	}

	derived := pbkdf2.Key([]byte(password), salt, iterations, len(stored), sha3.New512)
	return subtle.ConstantTimeCompare(derived, stored) == 1
}
