package unit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/safedrive/reminderd/internal/domain"
)

// fakeConn is a scriptable restriction feed connection.
type fakeConn struct {
	events chan domain.StateChange

	mu     sync.Mutex
	closed int
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan domain.StateChange)}
}

func (c *fakeConn) Events() <-chan domain.StateChange { return c.events }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	if c.closed == 1 {
		close(c.events)
	}
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// send delivers an event and fails the test if the listener never picks it up.
func (c *fakeConn) send(t *testing.T, restricted bool) {
	t.Helper()
	select {
	case c.events <- domain.StateChange{Restricted: restricted, At: time.Now()}:
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out delivering restriction event")
	}
}

type fakeConnector struct {
	err  error
	gate chan struct{} // when non-nil, Connect blocks until the gate closes

	mu       sync.Mutex
	conns    []*fakeConn
	attempts int
}

func (f *fakeConnector) Connect(ctx context.Context) (Conn, error) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.err != nil {
		return nil, f.err
	}
	c := newFakeConn()
	f.conns = append(f.conns, c)
	return c, nil
}

func (f *fakeConnector) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// conn waits for the unit's async connect to complete.
func (f *fakeConnector) conn(t *testing.T) *fakeConn {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.conns) > 0 {
			c := f.conns[len(f.conns)-1]
			f.mu.Unlock()
			return c
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("Timed out waiting for feed connection")
	return nil
}

type fakePresenter struct {
	mu    sync.Mutex
	calls [][]domain.Reminder
}

func (p *fakePresenter) Present(ctx context.Context, reminders []domain.Reminder) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, reminders)
	return nil
}

func (p *fakePresenter) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *fakePresenter) lastCall() []domain.Reminder {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return nil
	}
	return p.calls[len(p.calls)-1]
}

func waitDone(t *testing.T, u *Unit) {
	t.Helper()
	select {
	case <-u.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for unit termination")
	}
}

func TestUnit_RejectsMissingFields(t *testing.T) {
	connector := &fakeConnector{}
	u := New(context.Background(), connector, &fakePresenter{}, nil)

	cases := []Request{
		NewRequest("", "location", "user0"),
		NewRequest("app.a", "", "user0"),
		NewRequest("app.a", "location", ""),
		{},
	}
	for _, req := range cases {
		if err := u.Add(req); !errors.Is(err, ErrMissingField) {
			t.Errorf("Expected ErrMissingField for %+v, got %v", req, err)
		}
	}

	if n := u.PendingCount(); n != 0 {
		t.Errorf("Expected empty pending set, got %d", n)
	}
	// A rejected request must never schedule the deferred task.
	time.Sleep(50 * time.Millisecond)
	if n := connector.connectCount(); n != 0 {
		t.Errorf("Expected no connection attempts, got %d", n)
	}
}

func TestUnit_DuplicateRequestsCollapse(t *testing.T) {
	connector := &fakeConnector{}
	u := New(context.Background(), connector, &fakePresenter{}, nil)
	defer u.Stop()

	req := NewRequest("app.a", "location", "user0")
	if err := u.Add(req); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := u.Add(req); err != nil {
		t.Fatalf("Duplicate add failed: %v", err)
	}

	if n := u.PendingCount(); n != 1 {
		t.Errorf("Expected 1 pending reminder, got %d", n)
	}
}

func TestUnit_SchedulesOnce(t *testing.T) {
	connector := &fakeConnector{}
	presenter := &fakePresenter{}
	u := New(context.Background(), connector, presenter, nil)

	for _, req := range []Request{
		NewRequest("app.a", "location", "user0"),
		NewRequest("app.b", "contacts", "user0"),
		NewRequest("app.c", "microphone", "user0"),
	} {
		if err := u.Add(req); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	conn := connector.conn(t)
	conn.send(t, false)
	waitDone(t, u)

	if n := connector.connectCount(); n != 1 {
		t.Errorf("Expected exactly one connection attempt, got %d", n)
	}
	if n := presenter.callCount(); n != 1 {
		t.Errorf("Expected exactly one notification, got %d", n)
	}
	if n := len(presenter.lastCall()); n != 3 {
		t.Errorf("Expected 3 reminders in notification, got %d", n)
	}
}

func TestUnit_StillRestrictedKeepsWaiting(t *testing.T) {
	connector := &fakeConnector{}
	presenter := &fakePresenter{}
	u := New(context.Background(), connector, presenter, nil)
	defer u.Stop()

	if err := u.Add(NewRequest("app.a", "location", "user0")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	conn := connector.conn(t)
	// Events channel is unbuffered, so accepting the second event proves the
	// first was fully processed.
	conn.send(t, true)
	conn.send(t, true)

	if got := u.State(); got != StateWaiting {
		t.Errorf("Expected StateWaiting, got %v", got)
	}
	if n := presenter.callCount(); n != 0 {
		t.Errorf("Expected no notification while restricted, got %d", n)
	}
	if u.Terminated() {
		t.Error("Unit must stay subscribed while restricted")
	}
}

func TestUnit_FiresOnceOnLift(t *testing.T) {
	connector := &fakeConnector{}
	presenter := &fakePresenter{}
	u := New(context.Background(), connector, presenter, nil)

	reqA := NewRequest("app.a", "location", "user0")
	reqB := NewRequest("app.b", "contacts", "user0")
	if err := u.Add(reqA); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := u.Add(reqB); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := u.Add(reqA); err != nil {
		t.Fatalf("Duplicate add failed: %v", err)
	}

	conn := connector.conn(t)
	conn.send(t, true)
	conn.send(t, false)
	waitDone(t, u)

	if got := u.State(); got != StateFired {
		t.Errorf("Expected StateFired, got %v", got)
	}
	if n := presenter.callCount(); n != 1 {
		t.Fatalf("Expected exactly one notification, got %d", n)
	}

	got := presenter.lastCall()
	if len(got) != 2 {
		t.Fatalf("Expected 2 distinct reminders, got %d", len(got))
	}
	seen := make(map[domain.Reminder]bool, len(got))
	for _, r := range got {
		seen[r] = true
	}
	if !seen[domain.Reminder{SubjectID: "app.a", CategoryID: "location", PrincipalID: "user0"}] ||
		!seen[domain.Reminder{SubjectID: "app.b", CategoryID: "contacts", PrincipalID: "user0"}] {
		t.Errorf("Notification snapshot missing reminders: %v", got)
	}

	if n := conn.closeCount(); n == 0 {
		t.Error("Expected feed connection to be closed after firing")
	}

	// A late lift event must not fire a second notification.
	u.fire()
	if n := presenter.callCount(); n != 1 {
		t.Errorf("Expected still one notification after late event, got %d", n)
	}
}

func TestUnit_ConnectFailureTerminates(t *testing.T) {
	connector := &fakeConnector{err: errors.New("feed down")}
	presenter := &fakePresenter{}
	u := New(context.Background(), connector, presenter, nil)

	if err := u.Add(NewRequest("app.a", "location", "user0")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	waitDone(t, u)
	if n := presenter.callCount(); n != 0 {
		t.Errorf("Expected no notification on connection failure, got %d", n)
	}
	if n := u.PendingCount(); n != 0 {
		t.Errorf("Expected pending reminders discarded, got %d", n)
	}
}

func TestUnit_ConnectCompletesAfterStop(t *testing.T) {
	gate := make(chan struct{})
	connector := &fakeConnector{gate: gate}
	presenter := &fakePresenter{}
	u := New(context.Background(), connector, presenter, nil)

	if err := u.Add(NewRequest("app.a", "location", "user0")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Tear the unit down while the connection attempt is still in flight.
	u.Stop()
	close(gate)

	conn := connector.conn(t)
	deadline := time.Now().Add(2 * time.Second)
	for conn.closeCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if conn.closeCount() == 0 {
		t.Error("Expected late connection to be closed after teardown")
	}
	if n := presenter.callCount(); n != 0 {
		t.Errorf("Expected no notification after teardown, got %d", n)
	}
}

func TestUnit_StopIsIdempotent(t *testing.T) {
	connector := &fakeConnector{}
	u := New(context.Background(), connector, &fakePresenter{}, nil)

	if err := u.Add(NewRequest("app.a", "location", "user0")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	connector.conn(t)

	u.Stop()
	u.Stop()
	waitDone(t, u)

	if err := u.Add(NewRequest("app.b", "contacts", "user0")); !errors.Is(err, ErrTerminated) {
		t.Errorf("Expected ErrTerminated after stop, got %v", err)
	}
}
