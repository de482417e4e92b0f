package presence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/mahudhurio/core"
	testutil "github.com/trezcool/mahudhurio/tests"
)

var errCountsDown = errors.New("counts down")

// fakeCounts serves a settable present-count; autoInc makes every read return
// a strictly larger value so delivery order is observable.
type fakeCounts struct {
	mu      sync.Mutex
	n       int
	err     error
	autoInc bool
}

func (f *fakeCounts) PresentCount(ctx context.Context, courseID string, date time.Time, exec ...core.DBExecutor) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.autoInc {
		f.n++
	}
	return f.n, nil
}

func (f *fakeCounts) set(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n = n
}

func newTestHub(counts CountReader) *Hub {
	clock := testutil.NewClock(time.Date(2021, 3, 15, 10, 0, 0, 0, time.UTC))
	return NewHub(counts, clock, testutil.NewLogger())
}

func mustReceive(t *testing.T, sub *Subscriber) Update {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		if !ok {
			t.Fatal("update channel closed")
		}
		return u
	case <-time.After(time.Second):
		t.Fatal("no update queued")
	}
	return Update{}
}

func checkClosed(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case _, ok := <-sub.Updates():
		if ok {
			t.Error("expected a closed update channel")
		}
	case <-time.After(time.Second):
		t.Error("update channel still open")
	}
}

func Test_Hub_Subscribe(t *testing.T) {
	counts := &fakeCounts{n: 3}
	h := newTestHub(counts)

	sub := h.Subscribe("c1")
	if got := sub.CourseID(); got != "c1" {
		t.Errorf("CourseID() = %q; want %q", got, "c1")
	}
	if u := mustReceive(t, sub); u.Type != "attendance_update" || u.PresentCount != 3 {
		t.Errorf("initial update = %+v; want {attendance_update 3}", u)
	}
	if n := h.Subscribers("c1"); n != 1 {
		t.Errorf("Subscribers() = %d; want 1", n)
	}

	// a failed initial read keeps the subscription alive with nothing queued
	counts.err = errCountsDown
	sub2 := h.Subscribe("c1")
	select {
	case u := <-sub2.Updates():
		t.Errorf("unexpected update %+v", u)
	default:
	}
	if n := h.Subscribers("c1"); n != 2 {
		t.Errorf("Subscribers() = %d; want 2", n)
	}
}

func Test_Hub_Broadcast(t *testing.T) {
	counts := &fakeCounts{}
	h := newTestHub(counts)

	sub1 := h.Subscribe("c1")
	sub2 := h.Subscribe("c1")
	other := h.Subscribe("c2")
	mustReceive(t, sub1)
	mustReceive(t, sub2)
	mustReceive(t, other)

	counts.set(5)
	h.Broadcast("c1")
	for _, sub := range []*Subscriber{sub1, sub2} {
		if u := mustReceive(t, sub); u.PresentCount != 5 {
			t.Errorf("update = %+v; want count 5", u)
		}
	}

	// other courses are not disturbed
	select {
	case u := <-other.Updates():
		t.Errorf("unexpected update %+v on c2", u)
	default:
	}

	// a failed count read delivers nothing
	counts.err = errCountsDown
	h.Broadcast("c1")
	select {
	case u := <-sub1.Updates():
		t.Errorf("unexpected update %+v", u)
	default:
	}
}

// Broadcasts are serialized per course: reads and enqueues happen under one
// guard, so a subscriber always observes non-decreasing counts. With the
// buffer full, newer updates are dropped rather than reordered.
func Test_Hub_Broadcast_ordering(t *testing.T) {
	counts := &fakeCounts{autoInc: true}
	h := newTestHub(counts)

	sub := h.Subscribe("c1") // reads 1

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Broadcast("c1")
		}()
	}
	wg.Wait()

	h.Unsubscribe(sub) // close so the drain below terminates

	var got []int
	for u := range sub.Updates() {
		got = append(got, u.PresentCount)
	}
	if len(got) != subscriberBuffer {
		t.Fatalf("len(updates) = %d; want %d", len(got), subscriberBuffer)
	}
	for i, n := range got {
		if n != i+1 {
			t.Errorf("updates[%d] = %d; want %d", i, n, i+1)
		}
	}
}

func Test_Hub_Unsubscribe(t *testing.T) {
	counts := &fakeCounts{}
	h := newTestHub(counts)

	sub := h.Subscribe("c1")
	mustReceive(t, sub)

	h.Unsubscribe(sub)
	checkClosed(t, sub)
	if n := h.Subscribers("c1"); n != 0 {
		t.Errorf("Subscribers() = %d; want 0", n)
	}

	// safe to repeat, and on nil
	h.Unsubscribe(sub)
	h.Unsubscribe(nil)

	// broadcasting to an empty room is a no-op
	h.Broadcast("c1")
}

func Test_Hub_CloseRoom(t *testing.T) {
	counts := &fakeCounts{}
	h := newTestHub(counts)

	sub1 := h.Subscribe("c1")
	sub2 := h.Subscribe("c1")
	other := h.Subscribe("c2")
	mustReceive(t, sub1)
	mustReceive(t, sub2)
	mustReceive(t, other)

	h.CloseRoom("c1")
	checkClosed(t, sub1)
	checkClosed(t, sub2)
	if n := h.Subscribers("c1"); n != 0 {
		t.Errorf("Subscribers(c1) = %d; want 0", n)
	}
	if n := h.Subscribers("c2"); n != 1 {
		t.Errorf("Subscribers(c2) = %d; want 1", n)
	}
}
