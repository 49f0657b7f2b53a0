package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/safedrive/reminderd/internal/domain"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []*domain.Notification
}

func (s *recordingSink) Deliver(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func TestCenter_PostReplacesSameSlot(t *testing.T) {
	c := NewCenter(nil)
	c.EnsureChannel(ChannelID)

	first := &domain.Notification{Channel: ChannelID, Slot: SlotTag, Title: Title, Body: "first"}
	second := &domain.Notification{Channel: ChannelID, Slot: SlotTag, Title: Title, Body: "second"}

	if err := c.Post(context.Background(), first); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if err := c.Post(context.Background(), second); err != nil {
		t.Fatalf("Post failed: %v", err)
	}

	got, ok := c.Current(ChannelID, SlotTag)
	if !ok {
		t.Fatal("Expected a current notification")
	}
	if got.Body != "second" {
		t.Errorf("Expected replacement, got body %q", got.Body)
	}
}

func TestCenter_PostRequiresChannel(t *testing.T) {
	c := NewCenter(nil)

	err := c.Post(context.Background(), &domain.Notification{Channel: "nope", Slot: SlotTag})
	if err == nil {
		t.Fatal("Expected error for unregistered channel")
	}
}

func TestCenter_EnsureChannelIdempotent(t *testing.T) {
	c := NewCenter(nil)
	c.EnsureChannel(ChannelID)
	c.EnsureChannel(ChannelID)
	c.EnsureChannel(ChannelID)

	n := &domain.Notification{Channel: ChannelID, Slot: SlotTag, Body: "ok"}
	if err := c.Post(context.Background(), n); err != nil {
		t.Fatalf("Post failed after repeated registration: %v", err)
	}
}

func TestCenter_FansOutToSinks(t *testing.T) {
	c := NewCenter(nil)
	c.EnsureChannel(ChannelID)

	a := &recordingSink{}
	b := &recordingSink{}
	c.AddSink(a)
	c.AddSink(b)

	if err := c.Post(context.Background(), &domain.Notification{Channel: ChannelID, Slot: SlotTag}); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if a.count() != 1 || b.count() != 1 {
		t.Errorf("Expected each sink delivered once, got %d and %d", a.count(), b.count())
	}
}

func TestPresenter_PostsComposedNotification(t *testing.T) {
	c := NewCenter(nil)
	sink := &recordingSink{}
	c.AddSink(sink)
	p := NewPresenter(c, testResolver(), nil)

	err := p.Present(context.Background(), []domain.Reminder{
		{SubjectID: "app.a", CategoryID: "location", PrincipalID: "user0"},
	})
	if err != nil {
		t.Fatalf("Present failed: %v", err)
	}

	n, ok := c.Current(ChannelID, SlotTag)
	if !ok {
		t.Fatal("Expected a posted notification")
	}
	if n.Body == "" {
		t.Error("Expected composed body")
	}
	if sink.count() != 1 {
		t.Errorf("Expected one sink delivery, got %d", sink.count())
	}
}

func TestPresenter_SkipsWhenNothingResolves(t *testing.T) {
	c := NewCenter(nil)
	sink := &recordingSink{}
	c.AddSink(sink)
	p := NewPresenter(c, testResolver(), nil)

	err := p.Present(context.Background(), []domain.Reminder{
		{SubjectID: "app.unknown", CategoryID: "cat.unknown", PrincipalID: "user0"},
	})
	if err != nil {
		t.Fatalf("Present should swallow unresolvable sets, got %v", err)
	}
	if _, ok := c.Current(ChannelID, SlotTag); ok {
		t.Error("Expected no notification posted")
	}
	if sink.count() != 0 {
		t.Errorf("Expected no sink delivery, got %d", sink.count())
	}
}
