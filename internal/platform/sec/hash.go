// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor used when none is configured.
const DefaultBcryptCost = 10

// MaxPasswordBytes is the longest secret bcrypt reads in full.
const MaxPasswordBytes = 72

// ErrPasswordTooLong is returned by [PasswordHasher.Hash] for secrets bcrypt cannot represent.
var ErrPasswordTooLong = errors.New("sec: password exceeds 72 bytes")

// PasswordHasher is the credential verifier: salted bcrypt digests with a
// configurable work factor.
//
// # Timing
//
// [PasswordHasher.Verify] always pays one bcrypt comparison, even when the
// stored digest is empty (unknown user or account without a local password).
// A decoy digest of the same cost absorbs that comparison so response times
// do not reveal which case occurred.
type PasswordHasher struct {
	cost  int
	decoy []byte
}

// NewPasswordHasher builds a hasher for the given bcrypt cost.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("sec: bcrypt cost %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	seed, err := GenerateSecureToken(16)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to seed decoy digest: %w", err)
	}

	decoy, err := bcrypt.GenerateFromPassword([]byte(seed), cost)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to build decoy digest: %w", err)
	}

	return &PasswordHasher{cost: cost, decoy: decoy}, nil
}

// Hash derives a salted digest from a plain-text secret.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	if len(plainTextPassword) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify reports whether plainTextPassword matches existingHash.
//
// A malformed or empty digest is a verification failure, never an error.
// Secrets longer than [MaxPasswordBytes] never match: bcrypt would ignore
// the tail and accept any suffix of a stored 72 byte secret.
func (hasher *PasswordHasher) Verify(plainTextPassword, existingHash string) bool {
	if existingHash == "" || len(plainTextPassword) > MaxPasswordBytes {
		_ = bcrypt.CompareHashAndPassword(hasher.decoy, []byte(plainTextPassword))
		return false
	}

	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}
