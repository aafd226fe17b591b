// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package recommend

import "errors"

// Engine errors surfaced to callers.
var (
	// ErrUnknownItem indicates the requested id is not in the catalog.
	ErrUnknownItem = errors.New("unknown item")

	// ErrInvalidParameter indicates a request parameter outside the
	// configured bounds. Rejected before any computation starts.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNoSnapshot indicates the engine has no graph snapshot yet.
	// Structural: the caller must trigger a rebuild first.
	ErrNoSnapshot = errors.New("no graph snapshot")
)
