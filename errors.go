package shipper

import "github.com/meigma/shipper/core"

// Sentinel errors for common failure conditions.
// Re-exported from core package.
var (
	// ErrNotFound indicates the requested release or resource was not found.
	ErrNotFound = core.ErrNotFound

	// ErrUnauthorized indicates authentication failed.
	ErrUnauthorized = core.ErrUnauthorized

	// ErrNoRelease indicates neither a tag ref nor a commit sha was available.
	ErrNoRelease = core.ErrNoRelease

	// ErrRegistryExhausted indicates the release find-or-create loop hit its attempt cap.
	ErrRegistryExhausted = core.ErrRegistryExhausted

	// ErrNoSecret indicates an early release has no encryption secret configured.
	ErrNoSecret = core.ErrNoSecret

	// ErrUnknownProvider indicates a provider kind that shipper does not implement.
	ErrUnknownProvider = core.ErrUnknownProvider
)
