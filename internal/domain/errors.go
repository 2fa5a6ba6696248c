package domain

import (
	"fmt"
)

// Error taxonomy for the gateway. Handlers map these to HTTP statuses; the
// webhook endpoints are exempt and always acknowledge the provider.

// ValidationError is malformed caller input. No retry will help.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ConfigError is missing process-wide configuration. Fatal until an operator
// fixes it.
type ConfigError struct {
	Missing string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Missing)
}

// ProviderError is an upstream telephony or speech provider failure. The
// upstream detail is kept, not swallowed.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotConnectedError means the tenant has not configured a required
// integration. Distinct from ConfigError, which is process-wide.
type NotConnectedError struct {
	TenantID    string
	Integration string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("tenant %s has no %s integration configured", e.TenantID, e.Integration)
}

// TimeoutError means a bounded wait on an upstream call was exceeded.
type TimeoutError struct {
	Op string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out", e.Op)
}

// PersistenceError means the store was unavailable or rejected a write.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
