package schedule

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nerrad567/garage-core/internal/auth"
	"github.com/nerrad567/garage-core/internal/dispatch"
	"github.com/nerrad567/garage-core/internal/door"
	"github.com/nerrad567/garage-core/internal/infrastructure/config"
)

// DefaultFireTimeout bounds one scheduled dispatch.
const DefaultFireTimeout = 30 * time.Second

// Store lists the definitions loaded at Start. Repository satisfies it.
type Store interface {
	ListEnabled(ctx context.Context) ([]Definition, error)
}

// UserResolver looks up schedule owners. auth.UserRepository satisfies it.
type UserResolver interface {
	GetByID(ctx context.Context, id string) (*auth.User, error)
}

// Dispatcher sends a command. *dispatch.Facade satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, action door.Action, userID string, source door.Source) (dispatch.Result, error)
}

// Logger is the logging interface used by the registry.
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

// Options configures a Registry.
type Options struct {
	// Location is where cron expressions are evaluated.
	// Defaults to config.DefaultTimezone.
	Location *time.Location

	// FireTimeout bounds each dispatch. Defaults to DefaultFireTimeout.
	FireTimeout time.Duration

	// CronLogger receives robfig/cron's own log output.
	CronLogger cron.Logger
}

// job is the runtime half of a Definition.
type job struct {
	def     Definition
	entryID cron.EntryID
	removed atomic.Bool
}

// Registry holds at most one cron entry per schedule id.
//
// Thread Safety: all methods are safe for concurrent use. Fires run on
// cron's goroutines and only read the job they belong to.
type Registry struct {
	mu          sync.Mutex
	cron        *cron.Cron
	jobs        map[string]*job
	store       Store
	users       UserResolver
	dispatcher  Dispatcher
	location    *time.Location
	fireTimeout time.Duration
	logger      Logger
	ctx         context.Context
	cancel      context.CancelFunc
	started     bool
}

// NewRegistry creates a stopped registry.
func NewRegistry(store Store, users UserResolver, dispatcher Dispatcher, opts Options) *Registry {
	if opts.Location == nil {
		opts.Location = defaultLocation()
	}
	if opts.FireTimeout <= 0 {
		opts.FireTimeout = DefaultFireTimeout
	}
	if opts.CronLogger == nil {
		opts.CronLogger = cron.DiscardLogger
	}

	return &Registry{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLocation(opts.Location),
			cron.WithChain(cron.Recover(opts.CronLogger)),
			cron.WithLogger(opts.CronLogger),
		),
		jobs:        make(map[string]*job),
		store:       store,
		users:       users,
		dispatcher:  dispatcher,
		location:    opts.Location,
		fireTimeout: opts.FireTimeout,
		logger:      noopLogger{},
	}
}

// SetLogger sets the registry logger.
func (r *Registry) SetLogger(logger Logger) {
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// defaultLocation resolves config.DefaultTimezone. UTC is used only when
// the binary carries no timezone data.
func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(config.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Location returns the timezone jobs are evaluated in.
func (r *Registry) Location() *time.Location {
	return r.location
}

// Start loads every enabled definition and starts the timers. Definitions
// whose owner cannot be resolved are skipped with a warning and not
// retried. Fires use a context derived from ctx.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return nil
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	logger := r.logger
	r.mu.Unlock()

	defs, err := r.store.ListEnabled(ctx)
	if err != nil {
		r.mu.Lock()
		r.cancel()
		r.ctx, r.cancel = nil, nil
		r.mu.Unlock()
		return fmt.Errorf("loading schedules: %w", err)
	}

	skipped := 0
	for _, def := range defs {
		if _, err := r.users.GetByID(ctx, def.UserID); err != nil {
			logger.Warn("skipping schedule with unresolved owner",
				"schedule_id", def.ID,
				"user_id", def.UserID,
				"error", err,
			)
			skipped++
			continue
		}
		if err := r.AddJob(def); err != nil {
			skipped++
		}
	}

	r.mu.Lock()
	r.cron.Start()
	r.started = true
	count := len(r.jobs)
	r.mu.Unlock()

	logger.Info("schedule registry started",
		"jobs", count,
		"skipped", skipped,
		"timezone", r.location.String(),
	)
	return nil
}

// AddJob schedules def. Adding an id that is already present is a no-op.
// An invalid expression or action is logged and returned; no state is
// changed.
func (r *Registry) AddJob(def Definition) error {
	sched, err := ParseCron(def.CronExpr)
	if err == nil && !def.Action.Valid() {
		err = fmt.Errorf("%w: %q", door.ErrInvalidAction, def.Action)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		r.logger.Warn("rejecting schedule", "schedule_id", def.ID, "cron", def.CronExpr, "error", err)
		return err
	}
	if _, exists := r.jobs[def.ID]; exists {
		r.logger.Debug("schedule already registered", "schedule_id", def.ID)
		return nil
	}

	j := &job{def: def}
	j.entryID = r.cron.Schedule(sched, cron.FuncJob(func() { r.fire(j) }))
	r.jobs[def.ID] = j

	r.logger.Info("schedule registered",
		"schedule_id", def.ID,
		"action", def.Action,
		"cron", def.CronExpr,
	)
	return nil
}

// RemoveJob stops and forgets the job for id. A fire already running
// completes; no new fire starts once RemoveJob returns. Removing an
// unknown id logs a warning and returns false.
func (r *Registry) RemoveJob(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		r.logger.Warn("removing unknown schedule", "schedule_id", id)
		return false
	}
	j.removed.Store(true)
	r.cron.Remove(j.entryID)
	delete(r.jobs, id)

	r.logger.Info("schedule removed", "schedule_id", id)
	return true
}

// Has reports whether id has a live job.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[id]
	return ok
}

// Count returns the number of live jobs.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// JobIDs returns the live job ids in sorted order.
func (r *Registry) JobIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NextRun returns when id fires next. It is zero before Start.
func (r *Registry) NextRun(id string) (time.Time, bool) {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	return r.cron.Entry(j.entryID).Next, true
}

// Stop halts the timers, waits for running fires and drops every job.
func (r *Registry) Stop() {
	r.mu.Lock()
	for id, j := range r.jobs {
		j.removed.Store(true)
		r.cron.Remove(j.entryID)
		delete(r.jobs, id)
	}
	cancel := r.cancel
	r.started = false
	logger := r.logger
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	if cancel != nil {
		cancel()
	}
	logger.Info("schedule registry stopped")
}

func (r *Registry) fire(j *job) {
	if j.removed.Load() {
		return
	}

	r.mu.Lock()
	base := r.ctx
	logger := r.logger
	r.mu.Unlock()
	if base == nil {
		base = context.Background()
	}

	ctx, cancel := context.WithTimeout(base, r.fireTimeout)
	defer cancel()

	def := j.def
	res, err := r.dispatcher.Dispatch(ctx, def.Action, def.UserID, door.SourceScheduled)
	if err != nil {
		var lf *dispatch.LoggedDeliveryFailedError
		if errors.As(err, &lf) {
			logger.Warn("scheduled command delivered but not logged",
				"schedule_id", def.ID,
				"action", def.Action,
				"error", err,
			)
			return
		}
		logger.Warn("scheduled command failed",
			"schedule_id", def.ID,
			"action", def.Action,
			"user_id", def.UserID,
			"error", err,
		)
		return
	}

	logger.Info("scheduled command executed",
		"schedule_id", def.ID,
		"action", def.Action,
		"user_id", def.UserID,
		"duration_ms", res.Duration.Milliseconds(),
	)
}
