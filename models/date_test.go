package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateUnmarshal(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"date input", `"2024-03-15"`, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", `"2024-03-15T10:30:00Z"`, time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)},
		{"empty", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			require.NoError(t, json.Unmarshal([]byte(tt.input), &d))
			assert.True(t, tt.want.Equal(d.Time))
		})
	}
}

func TestDateUnmarshalErrors(t *testing.T) {
	var d Date
	assert.Error(t, json.Unmarshal([]byte(`"15/03/2024"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`20240315`), &d))
}

func TestDateInCase(t *testing.T) {
	var c Case
	require.NoError(t, json.Unmarshal([]byte(`{"caseId":"HC-1","filingDate":"2024-01-01","leaseStart":null}`), &c))
	require.NotNil(t, c.FilingDate)
	assert.Nil(t, c.LeaseStart)
	assert.Equal(t, 2024, c.FilingDate.Year())

	out, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"filingDate":"2024-01-01T00:00:00Z"`)
	assert.NotContains(t, string(out), "leaseStart")
}

func TestDateMarshalZero(t *testing.T) {
	out, err := json.Marshal(Date{})
	require.NoError(t, err)
	assert.Equal(t, `""`, string(out))
}
