package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks lookups for tasks or images that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks transitions attempted on tasks that are neither
	// pending nor active.
	ErrInvalidState = errors.New("invalid state")
	// ErrUpstreamUnavailable marks failures reaching the hashing/matching
	// service. Review sessions recover from it by degrading to demo data.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrValidation marks malformed caller input, such as a similarity probe
	// with none of image, base64, or hash value supplied.
	ErrValidation = errors.New("validation error")
	// ErrLicenseRequired marks classification requests for licensed hash
	// families without a configured key. It is informational, not fatal.
	ErrLicenseRequired = errors.New("license required")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrUpstreamUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRecoverable reports whether a review session should keep its presented
// task and continue after the error rather than aborting.
func IsRecoverable(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrUpstreamUnavailable),
		errors.Is(err, ErrLicenseRequired):
		return true
	default:
		return false
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
