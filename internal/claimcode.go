package internal

import (
	"strings"

	"github.com/google/uuid"
)

const claimCodeLength = 8

// NewClaimCode returns the first eight hex digits of a random UUID.
func NewClaimCode() string {
	return strings.ToUpper(uuid.NewString()[:claimCodeLength])
}

func normalizeClaimCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
