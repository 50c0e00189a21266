// Package crypto provides cryptographic utilities for password hashing.
package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// N=16384 (2^14), r=8, p=1 are recommended for interactive logins.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// adminSalt is the salt used when comparing admin passwords. Both sides are
// derived at request time so it never needs to be stored.
const adminSalt = "reporter-admin"

// HashWithScrypt hashes an input string using scrypt with the given salt.
// The salt is lowercased before use. Returns hex-encoded hash.
func HashWithScrypt(input, salt string) (string, error) {
	saltBytes := []byte(strings.ToLower(salt))
	dk, err := scrypt.Key([]byte(input), saltBytes, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return hex.EncodeToString(dk), nil
}

// VerifyPassword reports whether candidate equals expected. Both values are
// stretched to fixed-length keys first so the comparison time depends on
// neither their contents nor their lengths. An empty expected password never
// matches.
func VerifyPassword(candidate, expected string) (bool, error) {
	if expected == "" {
		return false, nil
	}
	got, err := HashWithScrypt(candidate, adminSalt)
	if err != nil {
		return false, err
	}
	want, err := HashWithScrypt(expected, adminSalt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}
