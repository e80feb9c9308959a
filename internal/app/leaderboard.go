package app

import (
	"context"
	"log"
	"sync"
	"time"

	"ecn-prep-service/internal/domain"
)

// DefaultLeaderboardLimit is the number of rows pushed to subscribers.
const DefaultLeaderboardLimit = 10

// LeaderboardHub fans fresh leaderboards out to subscribers after each save.
// Subscribers are keyed by specialty; the empty key is the all-specialty board.
type LeaderboardHub struct {
	store ProgressStore
	limit int
	now   func() time.Time

	mu          sync.Mutex
	subscribers map[string]map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub(store ProgressStore, limit int) *LeaderboardHub {
	return NewLeaderboardHubWithClock(store, limit, time.Now)
}

// NewLeaderboardHubWithClock allows deterministic timestamps in tests.
func NewLeaderboardHubWithClock(store ProgressStore, limit int, now func() time.Time) *LeaderboardHub {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return &LeaderboardHub{
		store:       store,
		limit:       limit,
		now:         now,
		subscribers: make(map[string]map[chan domain.Leaderboard]struct{}),
	}
}

// Snapshot reads the current leaderboard from the store.
func (h *LeaderboardHub) Snapshot(ctx context.Context, specialty string, limit int) (domain.Leaderboard, error) {
	if limit <= 0 {
		limit = h.limit
	}
	entries, err := h.store.GetLeaderboard(ctx, specialty, limit)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	return domain.Leaderboard{Specialty: specialty, Entries: entries, UpdatedAt: h.now()}, nil
}

// Subscribe returns a channel that receives leaderboard updates for specialty,
// starting with the current snapshot. The caller must invoke cancel to avoid leaks.
func (h *LeaderboardHub) Subscribe(ctx context.Context, specialty string) (<-chan domain.Leaderboard, func(), error) {
	initial, err := h.Snapshot(ctx, specialty, 0)
	if err != nil {
		return nil, nil, err
	}
	ch := make(chan domain.Leaderboard, 8)
	ch <- initial

	h.mu.Lock()
	subs, ok := h.subscribers[specialty]
	if !ok {
		subs = make(map[chan domain.Leaderboard]struct{})
		h.subscribers[specialty] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[specialty]
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(h.subscribers, specialty)
			}
		}
	}
	return ch, cancel, nil
}

// Publish refreshes the boards touched by a save to specialty: that
// specialty's board and the global one.
func (h *LeaderboardHub) Publish(ctx context.Context, specialty string) {
	keys := []string{""}
	if specialty != "" {
		keys = append(keys, specialty)
	}
	for _, key := range keys {
		if !h.hasSubscribers(key) {
			continue
		}
		lb, err := h.Snapshot(ctx, key, 0)
		if err != nil {
			log.Printf("leaderboard refresh %q: %v", key, err)
			continue
		}
		h.broadcast(key, lb)
	}
}

func (h *LeaderboardHub) hasSubscribers(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[key]) > 0
}

func (h *LeaderboardHub) broadcast(key string, lb domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers[key] {
		select {
		case ch <- lb:
		default:
			// drop the oldest update so a slow subscriber never blocks a save
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
}
