package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/garage-core/internal/door"
)

var (
	// ErrInvalidCronExpression is returned for expressions the 5-field
	// parser rejects.
	ErrInvalidCronExpression = errors.New("schedule: invalid cron expression")

	// ErrScheduleNotFound is returned when no schedule matches, including
	// one owned by another user.
	ErrScheduleNotFound = errors.New("schedule: not found")
)

// parser accepts minute, hour, day of month, month and day of week.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Definition is a persisted recurring command.
type Definition struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	Action    door.Action `json:"action"`
	CronExpr  string      `json:"cron_time"`
	Enabled   bool        `json:"enabled"`
	CreatedAt time.Time   `json:"created_at"`
}

// ParseCron parses a 5-field expression. Per-expression timezones are
// rejected; every job runs in the registry's location.
func ParseCron(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidCronExpression)
	}
	if strings.HasPrefix(expr, "TZ=") || strings.HasPrefix(expr, "CRON_TZ=") {
		return nil, fmt.Errorf("%w: %q: timezone prefixes are not supported", ErrInvalidCronExpression, expr)
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCronExpression, expr, err)
	}
	return sched, nil
}

// ValidateCron reports whether expr is a valid 5-field expression.
func ValidateCron(expr string) error {
	_, err := ParseCron(expr)
	return err
}
