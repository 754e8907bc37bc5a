package uid

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a new unique identifier.
func New() string {
	return uuid.New().String()
}

// Short returns the first n hex characters of a fresh random identifier.
// Used as a collision suffix for object names.
func Short(n int) string {
	s := strings.ReplaceAll(uuid.New().String(), "-", "")
	if n <= 0 || n > len(s) {
		return s
	}
	return s[:n]
}

// IsValid checks if a string is a valid UUID.
func IsValid(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
