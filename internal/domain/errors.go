package domain

import (
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrRecordNotFound = errors.New("dns record not found")
	ErrZoneNotFound   = errors.New("zone not found")
	ErrInvalidRecord  = errors.New("invalid dns record")
	ErrNotConfigured  = errors.New("dns provider not configured")
	ErrProviderAuth   = errors.New("dns provider rejected credentials")
	ErrLookupTimeout  = errors.New("dns lookup timed out")
	ErrLookupFailed   = errors.New("dns lookup failed")
)

// InvalidDomainError is returned before any network call when the input is not a hostname
type InvalidDomainError struct {
	Domain string
	Reason string
}

func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("invalid domain %q: %s", e.Domain, e.Reason)
}

// ResolutionError means the DNS servers could not be reached at all. Safe to retry.
type ResolutionError struct {
	Name string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// ProviderAPIError is a rejected mutation at the DNS host
type ProviderAPIError struct {
	Op  string
	Err error
}

func (e *ProviderAPIError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderAPIError) Unwrap() error { return e.Err }

// IsSoftFailure reports whether err is a configuration problem that callers surface as ok:false
func IsSoftFailure(err error) bool {
	return errors.Is(err, ErrNotConfigured) || errors.Is(err, ErrProviderAuth)
}
