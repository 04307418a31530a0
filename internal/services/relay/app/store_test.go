package server

import (
	"fmt"
	"testing"
)

func TestAppendIsIdempotentPerSenderAndTempID(t *testing.T) {
	store := newMessageStore(10)

	first, duplicate := store.append("room-1", "user-1", "tmp-1", "hello")
	if duplicate {
		t.Fatal("first append reported duplicate")
	}
	if first.ID == "" {
		t.Fatal("expected message id")
	}
	if first.ServerSeq != 1 {
		t.Fatalf("server seq = %d, want 1", first.ServerSeq)
	}

	// A retried send returns the original message even when the text differs.
	second, duplicate := store.append("room-1", "user-1", "tmp-1", "hello again")
	if !duplicate {
		t.Fatal("second append not reported duplicate")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate id = %q, want %q", second.ID, first.ID)
	}
	if second.Text != "hello" {
		t.Fatalf("duplicate text = %q, want original text", second.Text)
	}

	if got := len(store.history("room-1", 0)); got != 1 {
		t.Fatalf("log length = %d, want 1", got)
	}
}

func TestAppendSameTempIDDifferentSenders(t *testing.T) {
	store := newMessageStore(10)

	first, _ := store.append("room-1", "user-1", "tmp-1", "from one")
	second, duplicate := store.append("room-1", "user-2", "tmp-1", "from two")
	if duplicate {
		t.Fatal("different sender reported duplicate")
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct messages for distinct senders")
	}
}

func TestLogEvictsOldestAtCapacity(t *testing.T) {
	store := newMessageStore(3)

	for i := 0; i < 5; i++ {
		store.append("room-1", "user-1", fmt.Sprintf("tmp-%d", i), fmt.Sprintf("msg %d", i))
	}

	history := store.history("room-1", 0)
	if len(history) != 3 {
		t.Fatalf("log length = %d, want 3", len(history))
	}
	for i, msg := range history {
		want := fmt.Sprintf("msg %d", i+2)
		if msg.Text != want {
			t.Fatalf("history[%d].Text = %q, want %q", i, msg.Text, want)
		}
	}
	for i := 1; i < len(history); i++ {
		if history[i].ServerSeq != history[i-1].ServerSeq+1 {
			t.Fatalf("server seq not monotonic: %d then %d", history[i-1].ServerSeq, history[i].ServerSeq)
		}
	}
}

func TestEvictionPrunesDedupEntry(t *testing.T) {
	store := newMessageStore(2)

	evictable, _ := store.append("room-1", "user-1", "tmp-0", "oldest")
	store.append("room-1", "user-1", "tmp-1", "middle")
	store.append("room-1", "user-1", "tmp-2", "newest")

	// tmp-0 was evicted, so the same pair creates a fresh message.
	recreated, duplicate := store.append("room-1", "user-1", "tmp-0", "oldest again")
	if duplicate {
		t.Fatal("evicted pair still reported duplicate")
	}
	if recreated.ID == evictable.ID {
		t.Fatal("expected a fresh message id after eviction")
	}

	// A pair still in the log stays idempotent.
	if _, duplicate := store.append("room-1", "user-1", "tmp-2", "newest"); !duplicate {
		t.Fatal("in-log pair not reported duplicate")
	}
}

func TestHistoryLimitReturnsMostRecent(t *testing.T) {
	store := newMessageStore(10)
	for i := 0; i < 5; i++ {
		store.append("room-1", "user-1", fmt.Sprintf("tmp-%d", i), fmt.Sprintf("msg %d", i))
	}

	history := store.history("room-1", 2)
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Text != "msg 3" || history[1].Text != "msg 4" {
		t.Fatalf("history = %q, %q; want the two most recent", history[0].Text, history[1].Text)
	}
}

func TestHistoryUnknownRoomIsEmpty(t *testing.T) {
	store := newMessageStore(10)
	if got := len(store.history("missing", 0)); got != 0 {
		t.Fatalf("history length = %d, want 0", got)
	}
}

func TestLogsAreIsolatedPerRoom(t *testing.T) {
	store := newMessageStore(10)
	store.append("room-1", "user-1", "tmp-1", "one")
	store.append("room-2", "user-1", "tmp-2", "two")

	if got := len(store.history("room-1", 0)); got != 1 {
		t.Fatalf("room-1 log length = %d, want 1", got)
	}
	if got := len(store.history("room-2", 0)); got != 1 {
		t.Fatalf("room-2 log length = %d, want 1", got)
	}
	if store.history("room-2", 0)[0].ServerSeq != 1 {
		t.Fatal("expected per-room sequence numbering")
	}
}
