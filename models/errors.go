// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "errors"

// Tree errors.
var (
	// ErrNullUUID is returned when a group or entry is added without an id.
	ErrNullUUID = errors.New("null UUID")

	// ErrDuplicateUUID is returned when an id is already used by a group or
	// an entry of the same database.
	ErrDuplicateUUID = errors.New("duplicate UUID")

	// ErrGroupNotFound is returned when a referenced group does not exist.
	ErrGroupNotFound = errors.New("group not found")

	// ErrEntryNotFound is returned when a referenced entry does not exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrCycle is returned when a group would become its own ancestor.
	ErrCycle = errors.New("group cycle")

	// ErrRootGroup is returned when the root group is moved or deleted.
	ErrRootGroup = errors.New("operation not allowed on the root group")

	// ErrGroupNotEmpty is returned by RemoveGroup for a group with children.
	ErrGroupNotEmpty = errors.New("group is not empty")
)
