package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the (state, action) pair is not in the transition table
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a subject carries a status unknown to its workflow
	ErrInvalidState = errors.New("invalid state")

	// ErrUnauthorized is returned when the actor lacks the capability a transition requires
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSubjectNotFound is returned when the referenced document does not exist
	ErrSubjectNotFound = errors.New("subject not found")

	// ErrVersionNotFound is returned when a (document key, version number) pair does not exist
	ErrVersionNotFound = errors.New("version not found")

	// ErrPreconditionFailed is returned when a guard rejects the transition
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrStorageUnavailable is returned when the backing store cannot complete the unit of work
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Kind is the machine-readable error category surfaced to callers
type Kind string

const (
	KindInvalidTransition  Kind = "INVALID_TRANSITION"
	KindInvalidState       Kind = "INVALID_STATE"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindSubjectNotFound    Kind = "SUBJECT_NOT_FOUND"
	KindVersionNotFound    Kind = "VERSION_NOT_FOUND"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrInvalidState, KindInvalidState},
	{ErrUnauthorized, KindUnauthorized},
	{ErrSubjectNotFound, KindSubjectNotFound},
	{ErrVersionNotFound, KindVersionNotFound},
	{ErrPreconditionFailed, KindPreconditionFailed},
	{ErrStorageUnavailable, KindStorageUnavailable},
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}
