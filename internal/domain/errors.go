package domain

import "errors"

// Error message string constants - single source of truth for error messages
// Use these in assert.Contains() checks when testing error messages
const (
	// Config errors
	ErrMsgConfigMissing = "config table missing"

	// Validation errors
	ErrMsgValidation = "invalid input"

	// Domain invariant errors
	ErrMsgDomain = "domain invariant violated"

	// Resource errors
	ErrMsgInsufficientResources = "insufficient resources"
	ErrMsgItemLocked            = "item stack is locked"

	// Concurrency errors
	ErrMsgLockTimeout        = "lock acquisition timed out"
	ErrMsgConcurrencyAborted = "operation aborted"

	// Storage errors
	ErrMsgStorageIO      = "storage i/o failure"
	ErrMsgStorageCorrupt = "storage corrupt"

	// Task errors
	ErrMsgTaskTimeout = "task timed out"

	// Lookup errors
	ErrMsgNotFound = "not found"
)

// Common domain errors
// These errors should be used consistently across all layers of the application.
// Wrap these errors with fmt.Errorf("%w: %s", domain.ErrXxx, details) for additional context.
var (
	ErrConfigMissing = errors.New(ErrMsgConfigMissing)

	ErrValidation = errors.New(ErrMsgValidation)

	ErrDomain = errors.New(ErrMsgDomain)

	ErrInsufficientResources = errors.New(ErrMsgInsufficientResources)
	ErrItemLocked            = errors.New(ErrMsgItemLocked)

	ErrLockTimeout        = errors.New(ErrMsgLockTimeout)
	ErrConcurrencyAborted = errors.New(ErrMsgConcurrencyAborted)

	ErrStorageIO      = errors.New(ErrMsgStorageIO)
	ErrStorageCorrupt = errors.New(ErrMsgStorageCorrupt)

	ErrTaskTimeout = errors.New(ErrMsgTaskTimeout)

	ErrNotFound = errors.New(ErrMsgNotFound)
)
