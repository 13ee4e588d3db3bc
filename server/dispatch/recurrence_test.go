package dispatch

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronExpression(t *testing.T) {
	tests := []struct {
		name     string
		pattern  RecurrencePattern
		expected string
		wantErr  bool
	}{
		{
			name:     "daily",
			pattern:  RecurrencePattern{Frequency: "daily", TimeOfDay: "09:30"},
			expected: "30 09 * * *",
		},
		{
			name:     "weekly",
			pattern:  RecurrencePattern{Frequency: "weekly", Day: "Friday", TimeOfDay: "17:00"},
			expected: "00 17 * * 5",
		},
		{
			name:     "monthly",
			pattern:  RecurrencePattern{Frequency: "monthly", Day: "15", TimeOfDay: "8:00"},
			expected: "00 8 15 * *",
		},
		{
			name:    "bad time",
			pattern: RecurrencePattern{Frequency: "daily", TimeOfDay: "25:00"},
			wantErr: true,
		},
		{
			name:    "bad weekday",
			pattern: RecurrencePattern{Frequency: "weekly", Day: "someday", TimeOfDay: "09:00"},
			wantErr: true,
		},
		{
			name:    "day of month out of range",
			pattern: RecurrencePattern{Frequency: "monthly", Day: "31", TimeOfDay: "09:00"},
			wantErr: true,
		},
		{
			name:    "unknown frequency",
			pattern: RecurrencePattern{Frequency: "hourly", TimeOfDay: "09:00"},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expression, err := tc.pattern.CronExpression()
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, expression)
		})
	}
}

func TestParseRecurrencePattern(t *testing.T) {
	pattern, err := ParseRecurrencePattern(datatypes.JSON(`{"frequency":"weekly","day":"monday","time":"10:15"}`))
	require.NoError(t, err)
	assert.Equal(t, "weekly", pattern.Frequency)

	_, err = ParseRecurrencePattern(nil)
	assert.Error(t, err)

	_, err = ParseRecurrencePattern(datatypes.JSON(`{"frequency":"weekly"}`))
	assert.Error(t, err)

	_, err = ParseRecurrencePattern(datatypes.JSON(`not json`))
	assert.Error(t, err)
}
