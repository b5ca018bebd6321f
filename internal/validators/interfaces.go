// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package validators checks the structural rules of a database tree that
// the model API alone cannot enforce: references into metadata, history
// shape and value formats.
//
// A Validator may be scoped to a subset of named fields; without fields it
// runs every check for the given type.
package validators

import "context"

// Validator defines a generic validation interface for arbitrary input values.
type Validator interface {

	// Validate validates the provided input and optionally
	// restricts validation to specific named fields.
	Validate(context.Context, any, ...string) error
}
