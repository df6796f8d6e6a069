package priceguess

import "errors"

var (
	ErrValidation        = errors.New("invalid input")
	ErrInvalidTransition = errors.New("action not allowed in current phase")
	ErrNotFound          = errors.New("not found")
	ErrDuplicateIdentity = errors.New("identity already taken")
)

// Error codes sent to clients in "error" events.
const (
	CodeValidation        = "validation"
	CodeInvalidTransition = "invalid_transition"
	CodeNotFound          = "not_found"
	CodeDuplicateIdentity = "duplicate_identity"
	CodeInternal          = "internal"
)

// ErrorCode classifies err for the wire.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrDuplicateIdentity):
		return CodeDuplicateIdentity
	}
	return CodeInternal
}
