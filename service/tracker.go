package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/ports"
)

const trackerStateKey = "tracker:state"

// TrackerState is the cross-cutting client state, persisted as one namespaced
// entry in the context's store.
type TrackerState struct {
	Session         core.Session      `json:"session"`
	TrackingEnabled bool              `json:"trackingEnabled"`
	PermissionAsked bool              `json:"permissionAsked"`
	JoinedAt        int64             `json:"joinedAt,omitempty"`
	Active          []core.MediaItem  `json:"active,omitempty"`
	PendingMints    []core.Completion `json:"pendingMints,omitempty"`
	Completions     []core.Completion `json:"completions,omitempty"`
}

// Tracker is the explicit state container behind the client's cross-cutting
// state. Every mutation goes through a named action, persists the whole state
// under one key, and notifies subscribers.
type Tracker struct {
	store ports.Store
	now   func() time.Time

	mu          sync.Mutex
	state       TrackerState
	subscribers map[int]func(TrackerState)
	nextSubID   int
}

// NewTracker creates a tracker, restoring any persisted state.
func NewTracker(ctx context.Context, store ports.Store) *Tracker {
	t := &Tracker{
		store:       store,
		now:         time.Now,
		subscribers: make(map[int]func(TrackerState)),
	}
	if raw, err := store.Get(ctx, trackerStateKey); err == nil {
		_ = json.Unmarshal([]byte(raw), &t.state)
	}
	return t
}

// State returns a copy of the current state.
func (t *Tracker) State() TrackerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.copyStateLocked()
}

// Subscribe registers fn for state change notifications.
func (t *Tracker) Subscribe(fn func(state TrackerState)) (cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextSubID
	t.nextSubID++
	t.subscribers[id] = fn
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subscribers, id)
	}
}

// SetSession installs the bridge's session replica. Wire this to
// Bridge.OnSessionChange.
func (t *Tracker) SetSession(ctx context.Context, session core.Session) {
	t.mutate(ctx, func(s *TrackerState) {
		s.Session = session
		if session.Connected && s.JoinedAt == 0 {
			s.JoinedAt = t.now().UnixMilli()
		}
	})
}

// SetTrackingEnabled flips the tracking flag.
func (t *Tracker) SetTrackingEnabled(ctx context.Context, enabled bool) {
	t.mutate(ctx, func(s *TrackerState) { s.TrackingEnabled = enabled })
}

// MarkPermissionAsked records that the tracking permission prompt was shown.
func (t *Tracker) MarkPermissionAsked(ctx context.Context) {
	t.mutate(ctx, func(s *TrackerState) { s.PermissionAsked = true })
}

// UpsertItem merges a detected or progressing item into active tracking.
// Items match by ID or URL and are never duplicated. An item whose completed
// flag becomes true also enters the pending-mint queue.
func (t *Tracker) UpsertItem(ctx context.Context, item core.MediaItem) {
	if item.UpdatedAt == 0 {
		item.UpdatedAt = t.now().UnixMilli()
	}
	t.mutate(ctx, func(s *TrackerState) {
		merged := item
		if _, i, found := lo.FindIndexOf(s.Active, func(existing core.MediaItem) bool {
			return existing.Matches(&item)
		}); found {
			existing := s.Active[i]
			existing.Merge(&item)
			s.Active[i] = existing
			merged = existing
		} else {
			if merged.StartedAt == 0 {
				merged.StartedAt = merged.UpdatedAt
			}
			s.Active = append(s.Active, merged)
		}

		if !merged.Completed {
			return
		}
		alreadyPending := lo.ContainsBy(s.PendingMints, func(c core.Completion) bool {
			return c.Item.Matches(&merged)
		})
		if !alreadyPending {
			s.PendingMints = append(s.PendingMints, core.Completion{
				Item:        merged,
				CompletedAt: t.now().UnixMilli(),
			})
		}
	})
}

// MintInitiated records that a pending completion was handed to the relay:
// the completion moves to the durable list with its deploy hash and the item
// leaves active tracking.
func (t *Tracker) MintInitiated(ctx context.Context, item core.MediaItem, deployHash string) {
	t.mutate(ctx, func(s *TrackerState) {
		pending, rest := lo.FilterReject(s.PendingMints, func(c core.Completion, _ int) bool {
			return c.Item.Matches(&item)
		})
		s.PendingMints = rest
		for _, c := range pending {
			c.DeployHash = deployHash
			s.Completions = append(s.Completions, c)
		}
		s.Active = lo.Reject(s.Active, func(existing core.MediaItem, _ int) bool {
			return existing.Matches(&item)
		})
	})
}

// Reset clears everything, e.g. on logout.
func (t *Tracker) Reset(ctx context.Context) {
	t.mutate(ctx, func(s *TrackerState) { *s = TrackerState{} })
}

func (t *Tracker) mutate(ctx context.Context, fn func(s *TrackerState)) {
	t.mu.Lock()
	fn(&t.state)
	snapshot := t.copyStateLocked()
	fns := make([]func(TrackerState), 0, len(t.subscribers))
	for _, sub := range t.subscribers {
		fns = append(fns, sub)
	}
	t.mu.Unlock()

	// Persistence failures degrade to in-memory state; the UI must keep
	// working rather than crash.
	if raw, err := json.Marshal(snapshot); err == nil {
		_ = t.store.Set(ctx, trackerStateKey, string(raw))
	}

	for _, sub := range fns {
		sub(snapshot)
	}
}

func (t *Tracker) copyStateLocked() TrackerState {
	snapshot := t.state
	snapshot.Active = append([]core.MediaItem(nil), t.state.Active...)
	snapshot.PendingMints = append([]core.Completion(nil), t.state.PendingMints...)
	snapshot.Completions = append([]core.Completion(nil), t.state.Completions...)
	return snapshot
}
