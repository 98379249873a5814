package stats

import (
	"fmt"
	"sync"
	"testing"
)

func TestCounts(t *testing.T) {
	r := NewRecorder()

	r.RecordQuery("q1")
	r.RecordOutcome("blocked q1", true)
	r.RecordQuery("q2")
	r.RecordOutcome("forwarded q2", false)

	total, blocked := r.Counts()
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if blocked != 1 {
		t.Errorf("blocked = %d, want 1", blocked)
	}
}

func TestLogsNewestFirst(t *testing.T) {
	r := NewRecorder()
	r.RecordQuery("first")
	r.RecordQuery("second")
	r.RecordOutcome("third", false)

	logs := r.Logs()
	if len(logs) != 3 {
		t.Fatalf("len(logs) = %d, want 3", len(logs))
	}
	if logs[0] != "third" || logs[1] != "second" || logs[2] != "first" {
		t.Errorf("logs not newest-first: %v", logs)
	}
}

func TestRingEviction(t *testing.T) {
	r := NewRecorder()
	for i := 0; i < RingSize+25; i++ {
		r.RecordQuery(fmt.Sprintf("entry %d", i))
	}

	logs := r.Logs()
	if len(logs) != RingSize {
		t.Fatalf("len(logs) = %d, want %d", len(logs), RingSize)
	}
	if logs[0] != fmt.Sprintf("entry %d", RingSize+24) {
		t.Errorf("newest entry = %q", logs[0])
	}
	if logs[RingSize-1] != "entry 25" {
		t.Errorf("oldest retained entry = %q, want %q", logs[RingSize-1], "entry 25")
	}
}

func TestLogsReturnsCopy(t *testing.T) {
	r := NewRecorder()
	r.RecordQuery("original")

	logs := r.Logs()
	logs[0] = "mutated"

	if got := r.Logs()[0]; got != "original" {
		t.Errorf("ring entry changed through returned slice: %q", got)
	}
}

func TestBlockedNeverExceedsTotal(t *testing.T) {
	r := NewRecorder()
	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 250; j++ {
				r.RecordQuery("query")
				r.RecordOutcome("blocked", true)
			}
		}()
	}

	go func() {
		for {
			select {
			case <-done:
				return
			default:
			}
			total, blocked := r.Counts()
			if blocked > total {
				t.Errorf("blocked %d > total %d", blocked, total)
				return
			}
		}
	}()

	wg.Wait()
	close(done)

	total, blocked := r.Counts()
	if total != 1000 || blocked != 1000 {
		t.Errorf("final counts = (%d, %d), want (1000, 1000)", total, blocked)
	}
}
