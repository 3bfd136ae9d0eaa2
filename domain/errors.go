package domain

import "errors"

// Error taxonomy shared by the engine. All failures are returned to the
// caller as wrapped sentinels; none are swallowed.
var (
	// ErrMalformedIdentifier means an identifier had no user@domain shape.
	ErrMalformedIdentifier = errors.New("malformed identifier")

	// ErrDiscoveryFailed means the external discovery protocol could not
	// resolve an identifier. Nothing is persisted in that case.
	ErrDiscoveryFailed = errors.New("discovery failed")

	// ErrParseFailure means a wire payload could not be decoded.
	ErrParseFailure = errors.New("notification parse failure")

	// ErrVerificationFailed means a payload signature did not check out
	// against the actor's key. For a new record this is bad-request
	// territory; for an existing record it is an authorization failure.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrNotFound means no matching identity, activity or person exists.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means an actor tried to mutate a record it does not
	// own, such as updating an activity signed by someone else.
	ErrUnauthorized = errors.New("unauthorized")
)
