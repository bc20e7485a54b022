package service

import (
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrInvalidType is returned when a part type is not exactly two ASCII digits.
	ErrInvalidType = status.Error(codes.InvalidArgument, "type must contain exactly 2 digits (e.g. '03')")
	// ErrInvalidQuantity is returned when a new BOM edge would not have a positive quantity.
	ErrInvalidQuantity = status.Error(codes.InvalidArgument, "quantity must be positive for new BOM rows")
	// ErrInvalidState is returned when a state name does not resolve to a registry entry.
	ErrInvalidState = status.Error(codes.InvalidArgument, "invalid state")
	// ErrInvalidIndex is returned for negative revision indices.
	ErrInvalidIndex = status.Error(codes.InvalidArgument, "revision index must not be negative")
	// ErrNoFiles is returned when an upload carries no file.
	ErrNoFiles = status.Error(codes.InvalidArgument, "no files received")
	// ErrEmptyAccount is returned when an account name is blank.
	ErrEmptyAccount = status.Error(codes.InvalidArgument, "account name is required")
	// ErrEmptyPassword is returned when a password is blank.
	ErrEmptyPassword = status.Error(codes.InvalidArgument, "password is required")

	// ErrPartNotFound is returned when a code does not resolve to a part.
	ErrPartNotFound = status.Error(codes.NotFound, "part not found")
	// ErrBomPartNotFound is returned when the parent or child of a BOM merge does not exist.
	ErrBomPartNotFound = status.Error(codes.NotFound, "parent or child part not found")
	// ErrRevisionNotFound is returned when a (code, index) pair does not resolve to a revision.
	ErrRevisionNotFound = status.Error(codes.NotFound, "revision not found")
	// ErrFileNotFound is returned when a stored file name is unknown.
	ErrFileNotFound = status.Error(codes.NotFound, "file not found")
	// ErrAccountNotFound is returned when a facility/group/account triple is unknown.
	ErrAccountNotFound = status.Error(codes.NotFound, "account not found")

	// ErrMissingAccountContext is returned when a mutation carries no valid account.
	ErrMissingAccountContext = status.Error(codes.Unauthenticated, "invalid account or missing header")
	// ErrUnauthorized is returned when a password does not verify.
	ErrUnauthorized = status.Error(codes.Unauthenticated, "invalid password")

	// ErrOpenRevisionExists is returned when a part already has an unreleased revision.
	ErrOpenRevisionExists = status.Error(codes.FailedPrecondition, "an unreleased revision already exists")
	// ErrDuplicateIndex is returned when an explicit revision index is taken.
	ErrDuplicateIndex = status.Error(codes.FailedPrecondition, "revision index already exists")
	// ErrAlreadyReleased is returned when a released revision would be modified.
	ErrAlreadyReleased = status.Error(codes.FailedPrecondition, "revision already released")
	// ErrStateRegression is returned when a state change would move backwards.
	ErrStateRegression = status.Error(codes.FailedPrecondition, "state cannot move backwards")
	// ErrDuplicateAccount is returned when an account name is taken.
	ErrDuplicateAccount = status.Error(codes.FailedPrecondition, "account already exists")
	// ErrBomCycle is returned when a new BOM edge would close a cycle.
	ErrBomCycle = status.Error(codes.FailedPrecondition, "component would create a BOM cycle")

	// ErrSequenceExhausted is returned when the six digit code sequence is used up.
	ErrSequenceExhausted = status.Error(codes.ResourceExhausted, "code sequence exhausted")
)

// PolicyViolationError lists every password rule a candidate failed.
type PolicyViolationError struct {
	Violations []string
}

func (e *PolicyViolationError) Error() string {
	return strings.Join(e.Violations, " ")
}

// GRPCStatus classifies the error as a validation failure.
func (e *PolicyViolationError) GRPCStatus() *status.Status {
	return status.New(codes.InvalidArgument, e.Error())
}
