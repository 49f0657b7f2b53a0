package unit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func newTestManager(connector Connector, presenter Presenter) *Manager {
	return NewManager(func() *Unit {
		return New(context.Background(), connector, presenter, nil)
	}, nil)
}

func TestManager_FreshUnitAfterFire(t *testing.T) {
	connector := &fakeConnector{}
	presenter := &fakePresenter{}
	m := newTestManager(connector, presenter)

	if err := m.Add(NewRequest("app.a", "location", "user0")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	first := m.Current()

	conn := connector.conn(t)
	conn.send(t, false)
	waitDone(t, first)

	// The fired unit is dead; the next request must get a fresh one.
	if err := m.Add(NewRequest("app.b", "contacts", "user0")); err != nil {
		t.Fatalf("Add after fire failed: %v", err)
	}
	second := m.Current()
	if second == first {
		t.Fatal("Expected a fresh unit after termination")
	}
	if got := second.State(); got != StateWaiting {
		t.Errorf("Expected fresh unit in StateWaiting, got %v", got)
	}
	if n := second.PendingCount(); n != 1 {
		t.Errorf("Expected 1 pending reminder in fresh unit, got %d", n)
	}
	second.Stop()
}

func TestManager_AddMalformedCreatesNoUnit(t *testing.T) {
	m := newTestManager(&fakeConnector{}, &fakePresenter{})

	if err := m.Add(NewRequest("app.a", "", "user0")); !errors.Is(err, ErrMissingField) {
		t.Fatalf("Expected ErrMissingField, got %v", err)
	}
	if m.Current() != nil {
		t.Error("Expected no unit created for malformed request")
	}
}

func TestManager_AddIfRestricted(t *testing.T) {
	connector := &fakeConnector{}
	presenter := &fakePresenter{}
	m := newTestManager(connector, presenter)

	var checks atomic.Int32
	restricted := func(ctx context.Context) (bool, error) {
		checks.Add(1)
		return true, nil
	}
	unrestricted := func(ctx context.Context) (bool, error) {
		checks.Add(1)
		return false, nil
	}

	deferred, err := m.AddIfRestricted(context.Background(), unrestricted, NewRequest("app.a", "location", "user0"))
	if err != nil {
		t.Fatalf("AddIfRestricted failed: %v", err)
	}
	if deferred {
		t.Error("Expected no deferral while unrestricted")
	}
	if m.Current() != nil {
		t.Error("Expected no unit created while unrestricted")
	}

	deferred, err = m.AddIfRestricted(context.Background(), restricted, NewRequest("app.a", "location", "user0"))
	if err != nil {
		t.Fatalf("AddIfRestricted failed: %v", err)
	}
	if !deferred {
		t.Error("Expected deferral while restricted")
	}
	u := m.Current()
	if u == nil || u.PendingCount() != 1 {
		t.Fatalf("Expected a unit with 1 pending reminder, got %+v", u)
	}
	u.Stop()
}

func TestManager_AddIfRestricted_MalformedSkipsCheck(t *testing.T) {
	m := newTestManager(&fakeConnector{}, &fakePresenter{})

	var checks atomic.Int32
	check := func(ctx context.Context) (bool, error) {
		checks.Add(1)
		return true, nil
	}

	_, err := m.AddIfRestricted(context.Background(), check, NewRequest("", "location", "user0"))
	if !errors.Is(err, ErrMissingField) {
		t.Fatalf("Expected ErrMissingField, got %v", err)
	}
	if n := checks.Load(); n != 0 {
		t.Errorf("Expected no restriction check for malformed request, got %d", n)
	}
	if m.Current() != nil {
		t.Error("Expected no unit created for malformed request")
	}
}

func TestManager_AddIfRestricted_CheckError(t *testing.T) {
	m := newTestManager(&fakeConnector{}, &fakePresenter{})

	checkErr := errors.New("feed down")
	deferred, err := m.AddIfRestricted(context.Background(), func(ctx context.Context) (bool, error) {
		return false, checkErr
	}, NewRequest("app.a", "location", "user0"))
	if !errors.Is(err, checkErr) {
		t.Fatalf("Expected check error, got %v", err)
	}
	if deferred {
		t.Error("Expected no deferral on check failure")
	}
}
