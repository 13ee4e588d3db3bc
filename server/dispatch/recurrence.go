package dispatch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gorm.io/datatypes"
)

const (
	DAILY_FREQUENCY   = "daily"
	WEEKLY_FREQUENCY  = "weekly"
	MONTHLY_FREQUENCY = "monthly"
)

var (
	timeOfDayRegex = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

	weekdays = map[string]int{
		"sunday":    0,
		"monday":    1,
		"tuesday":   2,
		"wednesday": 3,
		"thursday":  4,
		"friday":    5,
		"saturday":  6,
	}
)

// RecurrencePattern is the shape stored in a nudge target's
// recurrence_pattern column.
type RecurrencePattern struct {
	Frequency string `json:"frequency"`
	Day       string `json:"day,omitempty"`
	TimeOfDay string `json:"time"`
}

func ParseRecurrencePattern(raw datatypes.JSON) (*RecurrencePattern, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("no recurrence pattern set")
	}

	pattern := RecurrencePattern{}
	if err := json.Unmarshal(raw, &pattern); err != nil {
		return nil, fmt.Errorf("invalid recurrence pattern: %v", err)
	}

	if _, err := pattern.CronExpression(); err != nil {
		return nil, err
	}

	return &pattern, nil
}

// CronExpression renders the pattern as a standard 5-field cron expression.
func (pattern *RecurrencePattern) CronExpression() (string, error) {
	matches := timeOfDayRegex.FindStringSubmatch(pattern.TimeOfDay)
	if matches == nil {
		return "", fmt.Errorf("invalid time of day %q, expected HH:MM", pattern.TimeOfDay)
	}
	hour, minute := matches[1], matches[2]

	switch pattern.Frequency {
	case DAILY_FREQUENCY:
		return fmt.Sprintf("%v %v * * *", minute, hour), nil

	case WEEKLY_FREQUENCY:
		weekday, ok := weekdays[strings.ToLower(pattern.Day)]
		if !ok {
			return "", fmt.Errorf("invalid weekday %q", pattern.Day)
		}
		return fmt.Sprintf("%v %v * * %v", minute, hour, weekday), nil

	case MONTHLY_FREQUENCY:
		dayOfMonth, err := strconv.Atoi(pattern.Day)
		if err != nil || dayOfMonth < 1 || dayOfMonth > 28 {
			return "", fmt.Errorf("invalid day of month %q, expected 1-28", pattern.Day)
		}
		return fmt.Sprintf("%v %v %v * *", minute, hour, dayOfMonth), nil
	}

	return "", fmt.Errorf("invalid frequency %q", pattern.Frequency)
}
