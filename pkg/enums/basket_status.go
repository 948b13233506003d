package enums

import (
	"fmt"
	"strings"
)

// BasketStatus is the action chosen on the basket form.
type BasketStatus string

const (
	BasketStatusAssign BasketStatus = "Assign"
	BasketStatusReturn BasketStatus = "Return"
)

var validBasketStatuses = []BasketStatus{
	BasketStatusAssign,
	BasketStatusReturn,
}

func (s BasketStatus) IsValid() bool {
	for _, candidate := range validBasketStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseBasketStatus accepts the form value in any case.
func ParseBasketStatus(value string) (BasketStatus, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validBasketStatuses {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid basket status %q", value)
}
