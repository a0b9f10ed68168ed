package soapclient

import (
	"github.com/google/uuid"
)

// generateID returns an XML ID, which must not start with a digit.
func generateID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}
