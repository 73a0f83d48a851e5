package feedback

import (
	"errors"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndGet(t *testing.T) {
	s := newTestStore(t)

	f := &Feedback{MessageID: "msg-1", FeedbackType: "positive", SessionID: "sess-1"}
	if err := s.Record(f); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if f.ID == "" {
		t.Error("Record() did not mint an ID")
	}

	got, err := s.GetByMessage("msg-1")
	if err != nil {
		t.Fatalf("GetByMessage() error = %v", err)
	}
	if got.FeedbackType != "positive" || got.SessionID != "sess-1" {
		t.Errorf("GetByMessage() = %+v", got)
	}
}

func TestStore_ResubmissionReplacesVote(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record(&Feedback{MessageID: "msg-1", FeedbackType: "positive"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(&Feedback{MessageID: "msg-1", FeedbackType: "negative"}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetByMessage("msg-1")
	if err != nil {
		t.Fatalf("GetByMessage() error = %v", err)
	}
	if got.FeedbackType != "negative" {
		t.Errorf("FeedbackType = %q, want negative (latest vote wins)", got.FeedbackType)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByMessage("nope")
	if !errors.Is(err, ErrFeedbackNotFound) {
		t.Errorf("GetByMessage(nope) error = %v, want ErrFeedbackNotFound", err)
	}
}

func TestStore_ListBySession(t *testing.T) {
	s := newTestStore(t)

	for _, m := range []string{"m1", "m2", "m3"} {
		if err := s.Record(&Feedback{MessageID: m, FeedbackType: "positive", SessionID: "sess-1"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Record(&Feedback{MessageID: "m4", FeedbackType: "negative", SessionID: "sess-2"}); err != nil {
		t.Fatal(err)
	}

	list, err := s.ListBySession("sess-1")
	if err != nil {
		t.Fatalf("ListBySession() error = %v", err)
	}
	if len(list) != 3 {
		t.Errorf("ListBySession(sess-1) = %d rows, want 3", len(list))
	}
}

func TestStore_PruneOlderThan(t *testing.T) {
	s := newTestStore(t)

	if err := s.Record(&Feedback{MessageID: "m1", FeedbackType: "positive"}); err != nil {
		t.Fatal(err)
	}

	// cutoff in the past removes nothing
	n, err := s.PruneOlderThan(time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan() error = %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d rows, want 0", n)
	}

	// cutoff in the future removes the row
	n, err = s.PruneOlderThan(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan() error = %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d rows, want 1", n)
	}
}
