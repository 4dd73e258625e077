package validation

import (
	"fmt"

	dErrors "identix/pkg/domain-errors"
)

// MaxBodySize caps JSON request bodies (the verify endpoint).
const MaxBodySize = 4 * 1024

// String length limits, in bytes.
const (
	MaxIdentifierLength = 64
	MaxFileNameLength   = 255
	MaxIssuerIDLength   = 128
)

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}
