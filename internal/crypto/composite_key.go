// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package crypto

import (
	"bytes"
	"crypto/sha256"
	"fmt"
)

// CompositeKey combines the user's credentials into the raw key fed to the
// KDF. Components are hashed as they are added; the plain password is never
// stored.
type CompositeKey struct {
	keys      [][]byte
	responder ChallengeResponder
}

// NewCompositeKey returns an empty composite key.
func NewCompositeKey() *CompositeKey {
	return &CompositeKey{}
}

// NewPasswordKey is a shortcut for a composite key made of a password only.
func NewPasswordKey(password string) *CompositeKey {
	return NewCompositeKey().AddPassword(password)
}

// AddPassword adds SHA-256(password). An empty password is a valid
// component when added explicitly.
func (k *CompositeKey) AddPassword(password string) *CompositeKey {
	sum := sha256.Sum256([]byte(password))
	k.keys = append(k.keys, sum[:])
	return k
}

// AddKeyFile parses a key file with [LoadKeyFile] and adds its key.
func (k *CompositeKey) AddKeyFile(content []byte) error {
	key, err := LoadKeyFile(content)
	if err != nil {
		return err
	}
	k.keys = append(k.keys, key)
	return nil
}

// SetChallengeResponder attaches a challenge-response source. Passing nil
// removes it.
func (k *CompositeKey) SetChallengeResponder(r ChallengeResponder) *CompositeKey {
	k.responder = r
	return k
}

// IsEmpty reports whether the key has no component at all.
func (k *CompositeKey) IsEmpty() bool {
	return k == nil || (len(k.keys) == 0 && k.responder == nil)
}

// RawKey returns SHA-256 over the concatenated component keys in the order
// they were added.
func (k *CompositeKey) RawKey() ([]byte, error) {
	if k.IsEmpty() {
		return nil, ErrNoKey
	}
	sum := sha256.Sum256(bytes.Join(k.keys, nil))
	return sum[:], nil
}

// ChallengeResponse asks the attached responder with challenge (the master
// seed) and returns SHA-256 of the answer, or nil when no responder is set.
func (k *CompositeKey) ChallengeResponse(challenge []byte) ([]byte, error) {
	if k == nil || k.responder == nil {
		return nil, nil
	}
	resp, err := k.responder.Challenge(challenge)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChallengeResponse, err)
	}
	sum := sha256.Sum256(resp)
	return sum[:], nil
}

// Clone returns an independent copy sharing the same responder.
func (k *CompositeKey) Clone() *CompositeKey {
	c := &CompositeKey{responder: k.responder}
	for _, key := range k.keys {
		c.keys = append(c.keys, bytes.Clone(key))
	}
	return c
}
