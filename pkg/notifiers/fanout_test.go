package notifiers

import (
	"context"
	"errors"
	"testing"
)

type stubNotifier struct {
	id    string
	err   error
	calls int
}

func (s *stubNotifier) ID() string   { return s.id }
func (s *stubNotifier) Type() string { return "stub" }
func (s *stubNotifier) Notify(context.Context, Event) error {
	s.calls++
	return s.err
}

func TestFanoutNotifyAggregatesErrors(t *testing.T) {
	bad := &stubNotifier{id: "bad", err: errors.New("failed")}
	ok := &stubNotifier{id: "ok"}
	fanout := NewFanout([]Notifier{bad, nil, ok})

	if fanout.Size() != 2 {
		t.Fatalf("expected nil notifier dropped, size %d", fanout.Size())
	}

	count, err := fanout.Notify(context.Background(), NewEvent("xwlb", "t", "u", "at://x"))
	if count != 1 {
		t.Fatalf("expected 1 delivery, got %d", count)
	}
	if err == nil {
		t.Fatalf("expected aggregated error")
	}
	if ok.calls != 1 {
		t.Fatalf("a failing notifier must not block the others")
	}
}

func TestNilFanout(t *testing.T) {
	var f *Fanout
	if n, err := f.Notify(context.Background(), Event{}); n != 0 || err != nil {
		t.Fatalf("nil fanout should be a no-op, got %d %v", n, err)
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	ns, err := BuildAll(context.Background(), DefaultRegistry(), []NotifierConfig{
		{ID: "hook", Type: TypeHTTP, HTTP: &HTTPConfig{URL: "https://example.com", Method: "POST", TimeoutSeconds: 1}},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(ns) != 1 || ns[0].Type() != TypeHTTP || ns[0].ID() != "hook" {
		t.Fatalf("unexpected notifiers %#v", ns)
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []NotifierConfig{{ID: "x", Type: "kafka"}}, nil)
	if err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}
