package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

// Memory is an in-memory SessionStore.  A single mutex guards the
// session map: every operation is a short in-memory critical section,
// which gives the required per-session mutual exclusion and lets
// Insert check the active-session invariant and write atomically.
type Memory struct {
	clk clock.Clock

	mu       sync.Mutex
	sessions map[string]*model.Session
}

// NewMemory returns an empty in-memory session store.
func NewMemory(clk clock.Clock) *Memory {
	return &Memory{clk: clk, sessions: make(map[string]*model.Session)}
}

// Insert implements SessionStore.
func (m *Memory) Insert(ctx context.Context, s *model.Session) (*model.Session, error) {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.UserID == s.UserID && existing.ActiveAt(now) {
			return nil, ErrActiveSessionExists
		}
	}
	stored := *s
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.sessions[stored.ID] = &stored
	out := stored
	return &out, nil
}

// FindByID implements SessionStore.
func (m *Memory) FindByID(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

// ListForUser implements SessionStore.
func (m *Memory) ListForUser(ctx context.Context, userID string, f Filter) ([]model.Session, error) {
	now := m.clk.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Session, 0)
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		upcoming := s.Status != model.StatusCancelled && s.EndTime.After(now)
		switch f {
		case FilterUpcoming:
			if !upcoming {
				continue
			}
		case FilterPast:
			if upcoming {
				continue
			}
		}
		out = append(out, *s)
	}
	ascending := f == FilterUpcoming
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.StartTime.Equal(b.StartTime) {
			if ascending {
				return a.StartTime.Before(b.StartTime)
			}
			return a.StartTime.After(b.StartTime)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// Transition implements SessionStore.
func (m *Memory) Transition(ctx context.Context, id string, expected model.SessionStatus, mutate func(*model.Session)) (*model.Session, error) {
	return m.guardedTransition(id, expected, nil, mutate)
}

// guardedTransition is Transition with an extra guard evaluated under
// the same lock as the compare-and-swap, so a wrapper's precondition
// cannot go stale between check and update.
func (m *Memory) guardedTransition(id string, expected model.SessionStatus, guard func(*model.Session) error, mutate func(*model.Session)) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if guard != nil {
		if err := guard(s); err != nil {
			return nil, err
		}
	}
	if s.Status != expected {
		return nil, ErrUnexpectedStatus
	}
	mutate(s)
	s.UpdatedAt = m.clk.Now()
	out := *s
	return &out, nil
}

// Cancel implements SessionStore.
func (m *Memory) Cancel(ctx context.Context, id, reason string, at time.Time) (*model.Session, error) {
	return m.guardedTransition(id, model.StatusConfirmed,
		func(s *model.Session) error {
			if !at.Before(s.StartTime) {
				return ErrCancelWindowClosed
			}
			return nil
		},
		func(s *model.Session) {
			s.Status = model.StatusCancelled
			cancelled := at
			s.CancelledAt = &cancelled
			s.CancellationReason = reason
		})
}

// MarkCheckedIn implements SessionStore.
func (m *Memory) MarkCheckedIn(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	return m.guardedTransition(id, model.StatusConfirmed,
		func(s *model.Session) error {
			if at.Before(s.StartTime) || !at.Before(s.EndTime) {
				return ErrOutsideWindow
			}
			return nil
		},
		func(s *model.Session) {
			s.Status = model.StatusCheckedIn
			checkedIn := at
			s.CheckedInAt = &checkedIn
		})
}

// MarkCompleted implements SessionStore.
func (m *Memory) MarkCompleted(ctx context.Context, id string, at time.Time) (*model.Session, error) {
	return m.guardedTransition(id, model.StatusCheckedIn, nil,
		func(s *model.Session) {
			s.Status = model.StatusCompleted
			checkedOut := at
			s.CheckedOutAt = &checkedOut
		})
}

// ExtendWindow implements SessionStore.
func (m *Memory) ExtendWindow(ctx context.Context, id string, newEnd time.Time, addedPriceCents int64, tok model.CheckInToken) (*model.Session, error) {
	return m.guardedTransition(id, model.StatusCheckedIn,
		func(s *model.Session) error {
			if !newEnd.After(s.EndTime) {
				return ErrWindowNotWidened
			}
			return nil
		},
		func(s *model.Session) {
			s.EndTime = newEnd
			s.DurationMinutes = int(newEnd.Sub(s.StartTime) / time.Minute)
			s.TotalPriceCents += addedPriceCents
			s.Token = tok
		})
}
