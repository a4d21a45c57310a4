package adapter

import "errors"

var (
	// ErrAdapterNotFound reports a registry lookup for an unregistered name.
	ErrAdapterNotFound = errors.New("adapter: not found")
	// ErrUnsupportedRepresentation reports a representation the registry
	// knows about but cannot serve (disabled by configuration).
	ErrUnsupportedRepresentation = errors.New("adapter: unsupported representation")
	// ErrMalformedRecord reports input that is not a JSON object at all.
	ErrMalformedRecord = errors.New("adapter: record is not a JSON object")
	// ErrVersionIncompatible reports that no compatible representation
	// version exists and the strategy disallows fallback.
	ErrVersionIncompatible = errors.New("adapter: no compatible version")
)
