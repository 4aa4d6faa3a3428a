// Package uuid provides UUID generation utilities for ListSync.
package uuid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// namespace for deterministic ids derived from reconciliation inputs.
// Fixed forever; changing it would change every derived conflict id.
var namespace = uuid.MustParse("9c1f4a52-7b0e-4f3d-8a46-2d5c90e17b63")

// New generates a new random UUID v4.
func New() string {
	return uuid.New().String()
}

// NewDeterministic derives a stable UUID from the given parts. The same
// parts always yield the same id.
func NewDeterministic(parts ...string) string {
	return uuid.NewSHA1(namespace, []byte(strings.Join(parts, "\x00"))).String()
}

// Validate returns an error if the string is not a valid UUID.
func Validate(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("invalid UUID: %w", err)
	}
	return nil
}

// IsValid checks if a string is a valid UUID.
func IsValid(s string) bool {
	return Validate(s) == nil
}
