package dispatch

import (
	"context"
	"time"

	"github.com/nerrad567/garage-core/internal/audit"
	"github.com/nerrad567/garage-core/internal/devicelink"
	"github.com/nerrad567/garage-core/internal/door"
)

// appendTimeout bounds the log write after a delivered command. The write
// is detached from the caller's cancellation.
const appendTimeout = 5 * time.Second

// Recorder appends execution log entries. *audit.Sink satisfies it.
type Recorder interface {
	Append(ctx context.Context, userID string, action door.Action, source door.Source) (*audit.Entry, error)
}

// Logger is the logging interface used by the facade.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result describes one dispatch.
type Result struct {
	Action    door.Action
	Source    door.Source
	Delivered bool
	Logged    bool
	Ack       devicelink.Ack
	Entry     *audit.Entry
	Duration  time.Duration
}

// Facade sends commands over a device link and records delivered ones.
type Facade struct {
	link     devicelink.Link
	recorder Recorder
	logger   Logger
}

// New returns a facade over link and recorder.
func New(link devicelink.Link, recorder Recorder) *Facade {
	return &Facade{link: link, recorder: recorder, logger: noopLogger{}}
}

// SetLogger sets the facade logger.
func (f *Facade) SetLogger(logger Logger) {
	f.logger = logger
}

// IsReachable reports whether the device link would attempt a send.
func (f *Facade) IsReachable() bool {
	return f.link.IsReachable()
}

// Dispatch sends action to the device once and, if it was transmitted,
// appends an execution log entry for userID with source.
//
// Errors:
//   - door.ErrInvalidAction for an unknown action; nothing is sent.
//   - *Error wrapping the link error when the command was not delivered.
//   - *LoggedDeliveryFailedError when the command was delivered but the
//     log append failed. Result.Delivered is true in that case.
func (f *Facade) Dispatch(ctx context.Context, action door.Action, userID string, source door.Source) (Result, error) {
	res := Result{Action: action, Source: source}
	if !action.Valid() {
		return res, door.ErrInvalidAction
	}

	start := time.Now()
	ack, err := f.link.Send(ctx, action)
	res.Duration = time.Since(start)
	if err != nil {
		f.logger.Warn("command not delivered",
			"action", action,
			"source", source,
			"user_id", userID,
			"error", err,
		)
		return res, &Error{Cause: err}
	}
	res.Delivered = true
	res.Ack = ack

	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appendTimeout)
	defer cancel()
	entry, err := f.recorder.Append(logCtx, userID, action, source)
	if err != nil {
		f.logger.Error("command delivered but execution log append failed",
			"action", action,
			"source", source,
			"user_id", userID,
			"error", err,
		)
		return res, &LoggedDeliveryFailedError{Cause: err}
	}
	res.Logged = true
	res.Entry = entry

	f.logger.Info("command dispatched",
		"action", action,
		"source", source,
		"user_id", userID,
		"transport", ack.Transport,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
