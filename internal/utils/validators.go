package utils

import (
	"strings"

	"github.com/google/uuid"
)

// IsValidID checks that a route id is a CARP identifier, i.e. a UUID.
func IsValidID(id string) bool {
	if strings.TrimSpace(id) != id || id == "" {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// AreValidIDs reports whether every id is valid.
func AreValidIDs(ids ...string) bool {
	for _, id := range ids {
		if !IsValidID(id) {
			return false
		}
	}
	return true
}
