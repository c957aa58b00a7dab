package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"eviction_intake_go/models"
)

// ParseDate parses a date in the formats the intake form and dashboard send
// (YYYY-MM-DD, or a full RFC 3339 timestamp)
func ParseDate(dateStr string) (time.Time, error) {
	// Primary format: ISO 8601 (standard for HTML5 date inputs)
	layout := "2006-01-02"

	parsedTime, err := time.Parse(layout, dateStr)
	if err == nil {
		return parsedTime, nil
	}
	if parsedTime, err = time.Parse(time.RFC3339, dateStr); err == nil {
		return parsedTime, nil
	}
	return time.Time{}, fmt.Errorf("invalid date format: expected YYYY-MM-DD")
}

// formatDate renders a case date the way court filings print it
func formatDate(d *models.Date) string {
	if d == nil || d.IsZero() {
		return "_not provided_"
	}
	return d.Format("January 2, 2006")
}

// formatMoney renders a dollar amount with thousands separators
func formatMoney(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	s := strconv.FormatFloat(amount, 'f', 2, 64)
	whole, cents, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	out := "$" + b.String() + "." + cents
	if negative {
		out = "-" + out
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
