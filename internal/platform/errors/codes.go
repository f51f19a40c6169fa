// Package errors provides structured error values shared by roster services.
package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Storage errors
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
	CodeStorageConstraint  Code = "STORAGE_CONSTRAINT"
	CodeStorageTimeout     Code = "STORAGE_TIMEOUT"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInvalidFilter   Code = "INVALID_FILTER"
	CodeUnauthenticated Code = "UNAUTHENTICATED"
)

// IsStorage reports whether the code belongs to the storage failure family.
func (c Code) IsStorage() bool {
	switch c {
	case CodeStorageUnavailable, CodeStorageConstraint, CodeStorageTimeout:
		return true
	default:
		return false
	}
}
