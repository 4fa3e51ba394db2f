package httpapi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"universalis-edge-proxy/internal/httpapi/apierror"
)

var itemIDsShape = regexp.MustCompile(`^[0-9,]+$`)

const (
	maxItemIDs  = 100
	maxItemID   = 1_000_000
	maxListedID = 10
)

// ValidateDatacenter checks datacenter against a case-insensitive
// whitelist.
func ValidateDatacenter(datacenter string, whitelist []string) error {
	for _, w := range whitelist {
		if strings.EqualFold(w, datacenter) {
			return nil
		}
	}
	return apierror.NewInvalidInput(fmt.Sprintf("unknown datacenter %q", datacenter))
}

// ParseItemIDs parses the comma-separated itemIds path segment into 1-100
// positive integers each within [1, 1_000_000]. Any violation returns an
// InvalidInput error whose message lists up to the first 10 offending
// values.
func ParseItemIDs(raw string) ([]int, error) {
	if !itemIDsShape.MatchString(raw) {
		return nil, apierror.NewInvalidInput(fmt.Sprintf("itemIds must match ^[0-9,]+$, got %q", raw))
	}

	parts := strings.Split(raw, ",")

	ids := make([]int, 0, len(parts))
	var bad []string

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 1 || n > maxItemID {
			bad = append(bad, p)
			continue
		}
		ids = append(ids, n)
	}

	if len(bad) > 0 {
		if len(bad) > maxListedID {
			bad = bad[:maxListedID]
		}
		return nil, apierror.NewInvalidInput("invalid item ids: " + strings.Join(bad, ", "))
	}
	if len(ids) == 0 {
		return nil, apierror.NewInvalidInput("itemIds must contain at least one id")
	}
	if len(ids) > maxItemIDs {
		return nil, apierror.NewInvalidInput(fmt.Sprintf("itemIds must contain at most %d ids, got %d", maxItemIDs, len(ids)))
	}

	return ids, nil
}
