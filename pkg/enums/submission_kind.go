package enums

import "fmt"

// SubmissionKind identifies which form produced a sheet row.
type SubmissionKind string

const (
	SubmissionKindUserRegistration SubmissionKind = "user_registration"
	SubmissionKindBasketAssignment SubmissionKind = "basket_assignment"
)

var validSubmissionKinds = []SubmissionKind{
	SubmissionKindUserRegistration,
	SubmissionKindBasketAssignment,
}

// IsValid reports whether the value matches a known submission kind.
func (k SubmissionKind) IsValid() bool {
	for _, candidate := range validSubmissionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseSubmissionKind converts the raw string to SubmissionKind.
func ParseSubmissionKind(value string) (SubmissionKind, error) {
	for _, candidate := range validSubmissionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid submission kind %q", value)
}
