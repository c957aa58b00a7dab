package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Date is a calendar date from the intake form. It decodes both the
// YYYY-MM-DD value of an HTML date input and a full RFC 3339 timestamp,
// and always encodes as RFC 3339.
type Date struct {
	time.Time
}

// NewDate wraps t
func NewDate(t time.Time) *Date {
	return &Date{Time: t}
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(d.Format(time.RFC3339))
}
