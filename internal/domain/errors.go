package domain

import "errors"

var (
	// ErrSubscriptionFailed is returned when subscription to events fails
	ErrSubscriptionFailed = errors.New("subscription failed")

	// ErrUnknownChain is returned when an event references a chain that is not configured
	ErrUnknownChain = errors.New("unknown chain")

	// ErrUnknownEvent is returned when an event name is not recognized
	ErrUnknownEvent = errors.New("unknown event")

	// ErrInvalidEvent is returned when a recognized event carries malformed fields
	ErrInvalidEvent = errors.New("invalid event")

	// ErrAlreadyApplied is returned when a transition's guard shows it was applied before
	ErrAlreadyApplied = errors.New("transition already applied")

	// ErrInvariantViolation is returned when a transition would break the artwork state machine
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNotFound is the parent of every lookup error
	ErrNotFound = errors.New("not found")

	// ErrArtworkNotFound is returned when no artwork matches an on-chain key
	ErrArtworkNotFound = &lookupError{entity: "artwork"}

	// ErrUserNotFound is returned when no user matches an address
	ErrUserNotFound = &lookupError{entity: "user"}

	// ErrCollectionNotFound is returned when no collection matches an on-chain key
	ErrCollectionNotFound = &lookupError{entity: "collection"}

	// ErrAuctionNotFound is returned when no auction matches an on-chain auction id
	ErrAuctionNotFound = &lookupError{entity: "auction"}

	// ErrSaleNotFound is returned when no sale matches an on-chain sale id
	ErrSaleNotFound = &lookupError{entity: "sale"}
)

type lookupError struct {
	entity string
}

func (e *lookupError) Error() string {
	return e.entity + " not found"
}

func (e *lookupError) Unwrap() error {
	return ErrNotFound
}

// IsLookupError reports whether err is caused by a missing entity
func IsLookupError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsBenign reports whether err only signals a duplicate delivery
func IsBenign(err error) bool {
	return errors.Is(err, ErrAlreadyApplied)
}

// IsPermanent reports whether retrying the event can never succeed without operator action
func IsPermanent(err error) bool {
	return IsLookupError(err) ||
		errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrUnknownChain)
}
