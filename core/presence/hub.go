package presence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/mahudhurio/core"
)

// subscriberBuffer bounds how far a subscriber may lag before updates are
// dropped. Missed counts are caught up on the next submission or by a one-shot
// REST read.
const subscriberBuffer = 8

type (
	// Update is the message fanned out to dashboard viewers.
	Update struct {
		Type         string `json:"type"` // always "attendance_update"
		PresentCount int    `json:"presentCount"`
	}

	// CountReader reads today's present count from storage.
	CountReader interface {
		PresentCount(ctx context.Context, courseID string, date time.Time, exec ...core.DBExecutor) (int, error)
	}

	// Subscriber is one live dashboard connection. Updates are received from
	// Updates(); the channel closes on unsubscription.
	Subscriber struct {
		courseID string

		mu     sync.Mutex
		ch     chan Update
		closed bool
	}

	// Hub keeps a registry of subscribers per course and pushes fresh
	// present-counts to them. It owns only ephemeral handles; nothing here is
	// persisted.
	Hub struct {
		counts CountReader
		clock  core.Clock
		logger core.Logger

		mu    sync.RWMutex
		rooms map[string]map[*Subscriber]struct{}

		gmu    sync.Mutex
		guards map[string]*sync.Mutex
	}
)

func (s *Subscriber) CourseID() string { return s.courseID }

func (s *Subscriber) Updates() <-chan Update { return s.ch }

// send enqueues without blocking. It reports false when the subscriber is
// gone; a full buffer only drops this update.
func (s *Subscriber) send(u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.ch <- u:
	default:
	}
	return true
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func NewHub(counts CountReader, clock core.Clock, logger core.Logger) *Hub {
	return &Hub{
		counts: counts,
		clock:  clock,
		logger: logger,
		rooms:  make(map[string]map[*Subscriber]struct{}),
		guards: make(map[string]*sync.Mutex),
	}
}

// guard returns the course's broadcast lock. Count reads and enqueues are
// serialized per course so every subscriber observes non-decreasing counts
// within a day.
func (h *Hub) guard(courseID string) *sync.Mutex {
	h.gmu.Lock()
	defer h.gmu.Unlock()

	g, ok := h.guards[courseID]
	if !ok {
		g = &sync.Mutex{}
		h.guards[courseID] = g
	}
	return g
}

// Subscribe registers a new handle for the course and queues the current
// count so a fresh dashboard renders without waiting for the next submission.
func (h *Hub) Subscribe(courseID string) *Subscriber {
	sub := &Subscriber{
		courseID: courseID,
		ch:       make(chan Update, subscriberBuffer),
	}

	h.mu.Lock()
	room, ok := h.rooms[courseID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		h.rooms[courseID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	g := h.guard(courseID)
	g.Lock()
	defer g.Unlock()

	count, err := h.counts.PresentCount(context.Background(), courseID, h.clock.Today())
	if err != nil {
		h.logger.Warn(fmt.Sprintf("reading initial count for course %s: %v", courseID, err))
		return sub
	}
	sub.send(Update{Type: "attendance_update", PresentCount: count})
	return sub
}

// Unsubscribe drops the handle and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	if room, ok := h.rooms[sub.courseID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, sub.courseID)
		}
	}
	h.mu.Unlock()

	sub.close()
}

// Broadcast reads today's present count once and delivers it to every
// subscriber of the course, best effort. Failures are logged, never returned:
// the submission that triggered the broadcast already stands.
func (h *Hub) Broadcast(courseID string) {
	g := h.guard(courseID)
	g.Lock()
	defer g.Unlock()

	count, err := h.counts.PresentCount(context.Background(), courseID, h.clock.Today())
	if err != nil {
		h.logger.Error(fmt.Sprintf("reading count for course %s broadcast: %v", courseID, err), err)
		return
	}
	update := Update{Type: "attendance_update", PresentCount: count}

	for _, sub := range h.snapshot(courseID) {
		if !sub.send(update) {
			h.Unsubscribe(sub)
		}
	}
}

// CloseRoom unsubscribes every handle for the course, closing their update
// channels. Called when the course is deleted so live dashboards drop instead
// of idling on a dead id.
func (h *Hub) CloseRoom(courseID string) {
	for _, sub := range h.snapshot(courseID) {
		h.Unsubscribe(sub)
	}
}

// Subscribers reports how many handles are live for the course.
func (h *Hub) Subscribers(courseID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[courseID])
}

// snapshot copies the room so delivery never holds the registry lock.
func (h *Hub) snapshot(courseID string) []*Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room := h.rooms[courseID]
	subs := make([]*Subscriber, 0, len(room))
	for sub := range room {
		subs = append(subs, sub)
	}
	return subs
}
