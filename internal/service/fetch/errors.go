package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrFetchFailed marks network and I/O failures during download.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrVerificationFailed marks a digest mismatch.
	ErrVerificationFailed = errors.New("verification failed")

	errBadHTTPStatus = errors.New("unexpected http status")
	errEmptyURL      = errors.New("url must be provided")
)

// VerificationError carries both digests of a failed verification.
type VerificationError struct {
	// URL is where the archive came from.
	URL string
	// Expected is the authoritative digest.
	Expected string
	// Actual is the digest of the downloaded bytes.
	Actual string
}

// Error implements error.
func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: sha256 mismatch for %s: expected %s, got %s",
		ErrVerificationFailed, e.URL, e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrVerificationFailed) match.
func (e *VerificationError) Is(target error) bool {
	return target == ErrVerificationFailed
}
