package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/garage-core/internal/door"
)

// DefaultListLimit is how many entries Recent returns.
const DefaultListLimit = 50

// ErrInvalidSource is returned for sources other than APP and SCHEDULED.
var ErrInvalidSource = errors.New("audit: invalid source")

// Telemetry mirrors appended entries. influxdb.Client satisfies it.
type Telemetry interface {
	WriteCommand(action, source, userID string, at time.Time)
}

// Sink appends execution log entries and reads them back.
type Sink struct {
	repo      Repository
	telemetry Telemetry
	now       func() time.Time
}

// NewSink returns a Sink over repo. telemetry may be nil.
func NewSink(repo Repository, telemetry Telemetry) *Sink {
	return &Sink{repo: repo, telemetry: telemetry, now: time.Now}
}

// Append records that action was delivered for userID from source.
func (s *Sink) Append(ctx context.Context, userID string, action door.Action, source door.Source) (*Entry, error) {
	if !action.Valid() {
		return nil, door.ErrInvalidAction
	}
	if !source.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}

	entry := &Entry{
		UserID:    userID,
		Action:    action,
		Source:    source,
		Timestamp: s.now().UTC(),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, err
	}

	if s.telemetry != nil {
		s.telemetry.WriteCommand(string(action), string(source), userID, entry.Timestamp)
	}
	return entry, nil
}

// Recent returns userID's latest DefaultListLimit entries, newest first.
func (s *Sink) Recent(ctx context.Context, userID string) ([]Entry, error) {
	return s.repo.ListByUser(ctx, userID, DefaultListLimit)
}
