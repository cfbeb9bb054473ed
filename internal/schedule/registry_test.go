package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/garage-core/internal/audit"
	"github.com/nerrad567/garage-core/internal/auth"
	"github.com/nerrad567/garage-core/internal/devicelink"
	"github.com/nerrad567/garage-core/internal/dispatch"
	"github.com/nerrad567/garage-core/internal/door"
	"github.com/nerrad567/garage-core/internal/infrastructure/config"
	"github.com/nerrad567/garage-core/internal/testutil"
)

type fakeStore struct {
	defs []Definition
	err  error
}

func (s fakeStore) ListEnabled(context.Context) ([]Definition, error) { return s.defs, s.err }

type fakeUsers map[string]bool

func (u fakeUsers) GetByID(_ context.Context, id string) (*auth.User, error) {
	if !u[id] {
		return nil, auth.ErrUserNotFound
	}
	return &auth.User{ID: id, Role: auth.RoleUser}, nil
}

type call struct {
	action door.Action
	userID string
	source door.Source
}

type recordingDispatcher struct {
	mu      sync.Mutex
	calls   []call
	entered chan struct{}
	block   chan struct{}
	err     error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, action door.Action, userID string, source door.Source) (dispatch.Result, error) {
	if d.entered != nil {
		d.entered <- struct{}{}
	}
	if d.block != nil {
		<-d.block
	}
	d.mu.Lock()
	d.calls = append(d.calls, call{action, userID, source})
	d.mu.Unlock()
	return dispatch.Result{Delivered: d.err == nil}, d.err
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func newDef(id, userID string, action door.Action, expr string) Definition {
	return Definition{ID: id, UserID: userID, Action: action, CronExpr: expr, Enabled: true}
}

// cronJob returns the cron job registered for id.
func cronJob(t *testing.T, r *Registry, id string) cron.Job {
	t.Helper()
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	require.True(t, ok, "job %s not registered", id)
	return r.cron.Entry(j.entryID).Job
}

// runJob runs id's cron entry synchronously as a fire would.
func runJob(t *testing.T, r *Registry, id string) {
	t.Helper()
	cronJob(t, r, id).Run()
}

func TestRegistry_AddJobIdempotent(t *testing.T) {
	r := NewRegistry(fakeStore{}, fakeUsers{}, &recordingDispatcher{}, Options{})

	d := newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")
	require.NoError(t, r.AddJob(d))
	require.NoError(t, r.AddJob(d))

	assert.Equal(t, 1, r.Count())
	assert.Len(t, r.cron.Entries(), 1)
	assert.True(t, r.Has("sch-1"))
}

func TestRegistry_RemoveMissing(t *testing.T) {
	r := NewRegistry(fakeStore{}, fakeUsers{}, &recordingDispatcher{}, Options{})
	require.NoError(t, r.AddJob(newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")))

	assert.False(t, r.RemoveJob("sch-unknown"))
	assert.Equal(t, []string{"sch-1"}, r.JobIDs())

	assert.True(t, r.RemoveJob("sch-1"))
	assert.Zero(t, r.Count())
	assert.Empty(t, r.cron.Entries())
}

func TestRegistry_InvalidDefinitionsRejected(t *testing.T) {
	disp := &recordingDispatcher{}
	r := NewRegistry(fakeStore{}, fakeUsers{}, disp, Options{})

	err := r.AddJob(newDef("sch-bad", "usr-1", door.ActionOpen, "every morning"))
	assert.ErrorIs(t, err, ErrInvalidCronExpression)

	err = r.AddJob(newDef("sch-bad-action", "usr-1", door.Action("LOCK"), "0 7 * * *"))
	assert.ErrorIs(t, err, door.ErrInvalidAction)

	assert.False(t, r.Has("sch-bad"))
	assert.False(t, r.Has("sch-bad-action"))
	assert.Empty(t, r.cron.Entries())
	assert.Zero(t, disp.count())
}

func TestRegistry_FireDispatchesScheduled(t *testing.T) {
	disp := &recordingDispatcher{}
	r := NewRegistry(fakeStore{}, fakeUsers{}, disp, Options{})
	require.NoError(t, r.AddJob(newDef("sch-1", "usr-1", door.ActionClose, "0 22 * * *")))

	runJob(t, r, "sch-1")
	runJob(t, r, "sch-1")

	require.Equal(t, 2, disp.count())
	assert.Equal(t, call{door.ActionClose, "usr-1", door.SourceScheduled}, disp.calls[0])
}

func TestRegistry_FailedFireKeepsJob(t *testing.T) {
	disp := &recordingDispatcher{err: &dispatch.Error{Cause: devicelink.ErrNotConnected}}
	r := NewRegistry(fakeStore{}, fakeUsers{}, disp, Options{})
	require.NoError(t, r.AddJob(newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")))

	runJob(t, r, "sch-1")

	assert.Equal(t, 1, disp.count())
	assert.True(t, r.Has("sch-1"), "a failed fire must not remove the job")
}

func TestRegistry_RemoveDuringFire(t *testing.T) {
	disp := &recordingDispatcher{entered: make(chan struct{}, 1), block: make(chan struct{})}
	r := NewRegistry(fakeStore{}, fakeUsers{}, disp, Options{})
	require.NoError(t, r.AddJob(newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")))
	inFlight := cronJob(t, r, "sch-1")

	done := make(chan struct{})
	go func() {
		inFlight.Run()
		close(done)
	}()

	<-disp.entered
	require.True(t, r.RemoveJob("sch-1"))
	assert.Empty(t, r.cron.Entries())

	close(disp.block)
	<-done
	assert.Equal(t, 1, disp.count(), "the in-flight fire completes")

	// Later fires of the removed job do nothing.
	inFlight.Run()
	assert.Equal(t, 1, disp.count())
}

func TestRegistry_ConcurrentFiresOneFails(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.InsertUser(t, db, "usr-1", "alice")
	sink := audit.NewSink(audit.NewSQLiteRepository(db.DB), nil)
	facade := dispatch.New(&actionLink{fail: door.ActionClose}, sink)

	r := NewRegistry(fakeStore{}, fakeUsers{}, facade, Options{})
	require.NoError(t, r.AddJob(newDef("sch-open", "usr-1", door.ActionOpen, "0 7 * * *")))
	require.NoError(t, r.AddJob(newDef("sch-close", "usr-1", door.ActionClose, "0 7 * * *")))

	jobs := []cron.Job{cronJob(t, r, "sch-open"), cronJob(t, r, "sch-close")}

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.Run()
		}()
	}
	wg.Wait()

	entries, err := sink.Recent(context.Background(), "usr-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, door.ActionOpen, entries[0].Action)
	assert.Equal(t, door.SourceScheduled, entries[0].Source)
	assert.Equal(t, 2, r.Count())
}

// actionLink fails sends of one action.
type actionLink struct {
	fail door.Action
}

func (l *actionLink) IsReachable() bool { return true }

func (l *actionLink) Send(_ context.Context, action door.Action) (devicelink.Ack, error) {
	if action == l.fail {
		return devicelink.Ack{}, &devicelink.TransmitError{Transport: "test", Cause: errors.New("write failed")}
	}
	return devicelink.Ack{Transport: "test", SentAt: time.Now()}, nil
}

func TestRegistry_StartSkipsUnresolvedOwners(t *testing.T) {
	store := fakeStore{defs: []Definition{
		newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *"),
		newDef("sch-2", "usr-ghost", door.ActionClose, "0 22 * * *"),
		newDef("sch-3", "usr-2", door.ActionStop, "*/10 * * * *"),
	}}
	users := fakeUsers{"usr-1": true, "usr-2": true}

	r := NewRegistry(store, users, &recordingDispatcher{}, Options{})
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	assert.Equal(t, []string{"sch-1", "sch-3"}, r.JobIDs())
}

func TestRegistry_StartSkipsInvalidStoredCron(t *testing.T) {
	store := fakeStore{defs: []Definition{
		newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *"),
		newDef("sch-2", "usr-1", door.ActionOpen, "bogus"),
	}}

	r := NewRegistry(store, fakeUsers{"usr-1": true}, &recordingDispatcher{}, Options{})
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	assert.Equal(t, []string{"sch-1"}, r.JobIDs())
}

func TestRegistry_StartStoreError(t *testing.T) {
	r := NewRegistry(fakeStore{err: errors.New("db locked")}, fakeUsers{}, &recordingDispatcher{}, Options{})
	assert.Error(t, r.Start(context.Background()))
}

func TestRegistry_StopDropsJobs(t *testing.T) {
	store := fakeStore{defs: []Definition{newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")}}
	r := NewRegistry(store, fakeUsers{"usr-1": true}, &recordingDispatcher{}, Options{})
	require.NoError(t, r.Start(context.Background()))

	r.Stop()
	assert.Zero(t, r.Count())
	assert.Empty(t, r.cron.Entries())
}

func TestRegistry_DefaultsToConfiguredDefaultTimezone(t *testing.T) {
	r := NewRegistry(fakeStore{}, fakeUsers{}, &recordingDispatcher{}, Options{})
	assert.Equal(t, config.DefaultTimezone, r.Location().String())

	require.NoError(t, r.AddJob(newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")))
	r.mu.Lock()
	entryID := r.jobs["sch-1"].entryID
	r.mu.Unlock()
	next := r.cron.Entry(entryID).Schedule.Next(time.Now().In(r.Location()))
	assert.Equal(t, 0, next.UTC().Hour(), "07:00 in UTC+7 is midnight UTC")
}

func TestRegistry_EvaluatesInConfiguredTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}

	store := fakeStore{defs: []Definition{newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")}}
	r := NewRegistry(store, fakeUsers{"usr-1": true}, &recordingDispatcher{}, Options{Location: loc})
	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	next, ok := r.NextRun("sch-1")
	require.True(t, ok)
	require.False(t, next.IsZero())

	local := next.In(loc)
	assert.Equal(t, 7, local.Hour())
	assert.Equal(t, 0, local.Minute())
	assert.Equal(t, 0, next.UTC().Hour(), "07:00 in UTC+7 is midnight UTC")
}

type logLine struct {
	msg  string
	args []any
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []logLine
}

func (l *recordingLogger) add(msg string, args []any) {
	l.mu.Lock()
	l.lines = append(l.lines, logLine{msg, args})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add(msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add(msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add(msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add(msg, args) }

func (l *recordingLogger) find(msg string) []logLine {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logLine
	for _, line := range l.lines {
		if line.msg == msg {
			out = append(out, line)
		}
	}
	return out
}

func TestRegistry_StartLogsSummaryOnce(t *testing.T) {
	store := fakeStore{defs: []Definition{newDef("sch-1", "usr-1", door.ActionOpen, "0 7 * * *")}}
	r := NewRegistry(store, fakeUsers{"usr-1": true}, &recordingDispatcher{}, Options{Location: time.UTC})
	logger := &recordingLogger{}
	r.SetLogger(logger)

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()
	require.NoError(t, r.Start(context.Background()), "second Start is a no-op")

	started := logger.find("schedule registry started")
	require.Len(t, started, 1)
	assert.Equal(t, []any{"jobs", 1, "skipped", 0, "timezone", "UTC"}, started[0].args)
}
