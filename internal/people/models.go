// Package people holds the registered person record that badge scans resolve to.
package people

import (
	"strings"
	"unicode"

	"github.com/google/uuid"

	dErrors "badgegate/pkg/domain-errors"
)

// MaxBadgeIDLength bounds badge identifiers accepted from the wire.
const MaxBadgeIDLength = 128

// Person is a registered badge holder. BadgeID is the natural key and is
// unique across the store.
type Person struct {
	ID       uuid.UUID
	BadgeID  string
	FullName string
	Role     string
	Active   bool
}

// ValidateBadgeID checks a badge identifier received from a client. Only the
// empty string counts as missing; ids are never trimmed, so surrounding spaces
// are part of the id and simply fail to match a stored badge.
func ValidateBadgeID(badgeID string) error {
	if badgeID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "badge id is required")
	}
	if len(badgeID) > MaxBadgeIDLength {
		return dErrors.New(dErrors.CodeValidation, "badge id must be at most 128 bytes")
	}
	if strings.IndexFunc(badgeID, unicode.IsControl) >= 0 {
		return dErrors.New(dErrors.CodeValidation, "badge id contains control characters")
	}
	return nil
}
