// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"github.com/google/uuid"
)

// UUID identifies groups, entries, custom icons and tombstones. The zero
// value is the null UUID, used for "not set" references.
type UUID [16]byte

// NilUUID is the null UUID.
var NilUUID UUID

// NewUUID returns a random (version 4) UUID.
func NewUUID() UUID {
	return UUID(uuid.New())
}

// ParseUUID parses the canonical hyphenated text form.
func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return NilUUID, err
	}
	return UUID(u), nil
}

// IsNil reports whether u is the null UUID.
func (u UUID) IsNil() bool {
	return u == NilUUID
}

func (u UUID) String() string {
	return uuid.UUID(u).String()
}
