// Package unit implements the deferral unit that buffers permission-decision
// reminders while the vehicle is distraction-restricted and posts one grouped
// notification when the restriction lifts.
package unit

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/safedrive/reminderd/internal/domain"
	"github.com/safedrive/reminderd/internal/metrics"
)

var (
	// ErrMissingField marks an intake request with an absent identifier.
	ErrMissingField = errors.New("reminder request missing field")
	// ErrTerminated is returned when a request reaches an already-terminated unit.
	ErrTerminated = errors.New("reminder unit terminated")
)

// Conn is an open subscription to the restriction feed.
type Conn interface {
	Events() <-chan domain.StateChange
	Close() error
}

// Connector establishes restriction feed subscriptions.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// ConnectFunc adapts a function to the Connector interface.
type ConnectFunc func(ctx context.Context) (Conn, error)

// Connect implements Connector.
func (f ConnectFunc) Connect(ctx context.Context) (Conn, error) { return f(ctx) }

// Presenter posts the grouped notification for a set of reminders.
type Presenter interface {
	Present(ctx context.Context, reminders []domain.Reminder) error
}

// State is the lifecycle state of a unit's restriction listener.
type State int

const (
	// StateWaiting means the unit is (or will be) subscribed and the
	// restriction has not lifted yet.
	StateWaiting State = iota
	// StateFired means the restriction lifted and the notification was
	// posted. A unit never leaves StateFired.
	StateFired
)

// Unit is one deferral session. It buffers pending reminders, holds at most
// one restriction feed subscription, and fires at most one notification in
// its lifetime. After termination (fire, connection failure or Stop) a unit
// is dead; callers need a fresh instance for further reminders.
type Unit struct {
	connector Connector
	presenter Presenter
	logger    *slog.Logger

	// ctx is the process context used for the feed connection and the
	// notification post. It outlives individual intake requests.
	ctx context.Context

	mu         sync.Mutex
	pending    map[domain.Reminder]struct{}
	scheduled  bool
	conn       Conn
	state      State
	terminated bool
	done       chan struct{}
}

// New creates a unit in StateWaiting with an empty pending set.
func New(ctx context.Context, connector Connector, presenter Presenter, logger *slog.Logger) *Unit {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unit{
		connector: connector,
		presenter: presenter,
		logger:    logger,
		ctx:       ctx,
		pending:   make(map[domain.Reminder]struct{}),
		done:      make(chan struct{}),
	}
}

// Add validates and buffers one reminder request. A request missing any
// identifier is dropped with a logged error and no state change. The first
// valid request schedules the deferred task (feed connection + listener);
// later requests coalesce into the pending set. Identical triples collapse
// to a single entry.
func (u *Unit) Add(req Request) error {
	if err := req.Validate(); err != nil {
		u.logger.Error("Dropping malformed reminder request",
			"error", err,
			"subject", req.SubjectID,
			"category", req.CategoryID,
			"principal", req.PrincipalID)
		metrics.RemindersRejected.Inc()
		return err
	}

	u.mu.Lock()
	if u.terminated {
		u.mu.Unlock()
		return ErrTerminated
	}

	r := req.reminder()
	if _, dup := u.pending[r]; dup {
		metrics.RemindersDuplicate.Inc()
		u.logger.Debug("Reminder already pending",
			"subject", r.SubjectID, "category", r.CategoryID, "principal", r.PrincipalID)
	} else {
		u.pending[r] = struct{}{}
		metrics.RemindersAccepted.Inc()
		u.logger.Debug("Reminder deferred until restriction lifts",
			"subject", r.SubjectID, "category", r.CategoryID, "principal", r.PrincipalID,
			"pending", len(u.pending))
	}

	if !u.scheduled {
		u.scheduled = true
		go u.establish()
	}
	u.mu.Unlock()
	return nil
}

// establish connects to the restriction feed and dispatches the result at a
// single point. The connection may complete after the unit was stopped; that
// path must close the connection and do nothing else.
func (u *Unit) establish() {
	conn, err := u.connector.Connect(u.ctx)

	u.mu.Lock()
	if u.terminated {
		u.mu.Unlock()
		if err == nil {
			if closeErr := conn.Close(); closeErr != nil {
				u.logger.Debug("Close restriction connection after teardown", "error", closeErr)
			}
		}
		return
	}
	if err != nil {
		u.mu.Unlock()
		u.logger.Warn("Restriction feed connection failed, discarding pending reminders", "error", err)
		metrics.RestrictionConnectFailures.Inc()
		u.Stop()
		return
	}
	u.conn = conn
	u.mu.Unlock()

	go u.listen(conn)
}

// listen consumes feed events until the restriction lifts or the connection
// closes. Events reporting the restriction still active are ignored.
func (u *Unit) listen(conn Conn) {
	for ev := range conn.Events() {
		metrics.RestrictionEvents.Inc()
		if ev.Restricted {
			u.logger.Debug("Restriction still active, reminders stay deferred", "at", ev.At)
			continue
		}
		u.fire()
		return
	}
}

// fire transitions WAITING -> FIRED exactly once, posts the grouped
// notification for the pending snapshot and terminates the unit.
func (u *Unit) fire() {
	u.mu.Lock()
	if u.terminated || u.state != StateWaiting {
		u.mu.Unlock()
		return
	}
	u.state = StateFired
	snapshot := make([]domain.Reminder, 0, len(u.pending))
	for r := range u.pending {
		snapshot = append(snapshot, r)
	}
	u.mu.Unlock()

	u.logger.Info("Restriction lifted, posting grouped reminder notification", "reminders", len(snapshot))
	if err := u.presenter.Present(u.ctx, snapshot); err != nil {
		u.logger.Error("Failed to post grouped reminder notification", "error", err)
	}
	u.Stop()
}

// Stop tears the unit down: the feed connection is closed and the pending
// set discarded. Stop is idempotent and is invoked on every termination
// path (normal fire, connection failure, explicit shutdown).
func (u *Unit) Stop() {
	u.mu.Lock()
	if u.terminated {
		u.mu.Unlock()
		return
	}
	u.terminated = true
	conn := u.conn
	u.conn = nil
	u.pending = make(map[domain.Reminder]struct{})
	close(u.done)
	u.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			u.logger.Debug("Close restriction connection", "error", err)
		}
	}
}

// Done is closed when the unit has terminated.
func (u *Unit) Done() <-chan struct{} { return u.done }

// Terminated reports whether the unit has been torn down.
func (u *Unit) Terminated() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.terminated
}

// State returns the listener state.
func (u *Unit) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// PendingCount returns the number of distinct buffered reminders.
func (u *Unit) PendingCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.pending)
}
