// Package services defines the business logic for profiles, sessions, and
// chat turns. This file centralizes common service-level error values so that
// they can be consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrSessionNotFound indicates that the requested session does not exist
	// or is not accessible to the current user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrEmptyPrompt is returned when a submitted prompt is empty after
	// trimming. The controller treats it as a silent no-op: nothing is
	// appended and no state changes.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a submitted prompt exceeds the maximum
	// configured length limit.
	ErrTooLong = errors.New("prompt too long")

	// ErrSessionBusy is returned when a send or a session switch is attempted
	// while a completion request is already in flight for that user. At most
	// one request may be in flight per session, and switching away from a
	// streaming session is disallowed.
	ErrSessionBusy = errors.New("a response is still in progress")

	// ErrInvalidState flags a programming-contract violation in the history
	// operations (e.g. replace-last on an empty transcript or on a user
	// turn). It should not occur under the controller's state machine.
	ErrInvalidState = errors.New("invalid history state")

	// ErrProfileExists is returned when onboarding is attempted for a user
	// that already has a profile; profiles are immutable after creation.
	ErrProfileExists = errors.New("profile already exists")

	// ErrProfileNotFound indicates the user has not completed onboarding.
	// No chat session may exist before a profile does.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidProfile is returned when onboarding input fails validation
	// (blank name, non-positive age, height, or weight, unknown gender).
	ErrInvalidProfile = errors.New("invalid profile input")
)
