package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testSession(id, userID string, start time.Time, minutes int) *model.Session {
	return &model.Session{
		ID:              id,
		UserID:          userID,
		LocationID:      "loc-1",
		StartTime:       start,
		EndTime:         start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		UnitPriceCents:  300,
		TotalPriceCents: 300,
		Currency:        "USD",
		Status:          model.StatusConfirmed,
		CheckInCode:     "FIT-ABC234",
	}
}

func TestInsertEnforcesSingleActiveSession(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)

	if _, err := m.Insert(ctx, testSession("s1", "u1", base.Add(time.Hour), 60)); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := m.Insert(ctx, testSession("s2", "u1", base.Add(3*time.Hour), 60)); !errors.Is(err, ErrActiveSessionExists) {
		t.Fatalf("second insert error = %v, want ErrActiveSessionExists", err)
	}
	// A different user is unaffected.
	if _, err := m.Insert(ctx, testSession("s3", "u2", base.Add(time.Hour), 60)); err != nil {
		t.Errorf("insert for another user failed: %v", err)
	}
}

func TestInsertAllowedAfterCancellation(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)

	m.Insert(ctx, testSession("s1", "u1", base.Add(time.Hour), 60))
	if _, err := m.Cancel(ctx, "s1", "changed plans", clk.Now()); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := m.Insert(ctx, testSession("s2", "u1", base.Add(2*time.Hour), 60)); err != nil {
		t.Errorf("insert after cancellation failed: %v", err)
	}
}

func TestInsertAllowedAfterWindowElapsed(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)

	m.Insert(ctx, testSession("s1", "u1", base.Add(time.Hour), 60))
	// Never checked in; once the window elapses the session is an
	// effective no-show and no longer blocks a new booking.
	clk.Advance(3 * time.Hour)
	if _, err := m.Insert(ctx, testSession("s2", "u1", clk.Now().Add(time.Hour), 60)); err != nil {
		t.Errorf("insert after elapsed window failed: %v", err)
	}
}

func TestFindByIDNotFound(t *testing.T) {
	m := NewMemory(clock.NewFixed(base))
	if _, err := m.FindByID(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestListForUserFiltersAndOrdering(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)

	// Build history directly: two past sessions, one cancelled, two
	// upcoming (one of them sharing a start time with another id to
	// pin the tie-break).
	past1 := testSession("s-past-b", "u1", base.Add(-4*time.Hour), 60)
	past1.Status = model.StatusCompleted
	past2 := testSession("s-past-a", "u1", base.Add(-2*time.Hour), 60)
	past2.Status = model.StatusCompleted
	cancelled := testSession("s-cancelled", "u1", base.Add(2*time.Hour), 60)
	cancelled.Status = model.StatusCancelled
	up1 := testSession("s-up-b", "u1", base.Add(3*time.Hour), 60)
	up2 := testSession("s-up-a", "u1", base.Add(3*time.Hour), 60)

	for _, s := range []*model.Session{past1, past2, cancelled, up1, up2} {
		m.mu.Lock()
		dup := *s
		m.sessions[s.ID] = &dup
		m.mu.Unlock()
	}

	upcoming, err := m.ListForUser(ctx, "u1", FilterUpcoming)
	if err != nil {
		t.Fatalf("ListForUser(upcoming) failed: %v", err)
	}
	wantUpcoming := []string{"s-up-a", "s-up-b"}
	if len(upcoming) != len(wantUpcoming) {
		t.Fatalf("upcoming = %d sessions, want %d", len(upcoming), len(wantUpcoming))
	}
	for i, want := range wantUpcoming {
		if upcoming[i].ID != want {
			t.Errorf("upcoming[%d] = %q, want %q", i, upcoming[i].ID, want)
		}
	}

	past, err := m.ListForUser(ctx, "u1", FilterPast)
	if err != nil {
		t.Fatalf("ListForUser(past) failed: %v", err)
	}
	// Past is the complement, newest start first; the cancelled
	// session belongs here even though its window is in the future.
	wantPast := []string{"s-cancelled", "s-past-a", "s-past-b"}
	if len(past) != len(wantPast) {
		t.Fatalf("past = %d sessions, want %d", len(past), len(wantPast))
	}
	for i, want := range wantPast {
		if past[i].ID != want {
			t.Errorf("past[%d] = %q, want %q", i, past[i].ID, want)
		}
	}
}

func TestTransitionCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)
	m.Insert(ctx, testSession("s1", "u1", base.Add(time.Hour), 60))

	if _, err := m.Transition(ctx, "s1", model.StatusCheckedIn, func(s *model.Session) {}); !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("transition from wrong status error = %v, want ErrUnexpectedStatus", err)
	}
	if _, err := m.Transition(ctx, "missing", model.StatusConfirmed, func(s *model.Session) {}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("transition on missing session error = %v, want ErrSessionNotFound", err)
	}
}

func TestCancelGuards(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)
	m.Insert(ctx, testSession("s1", "u1", base.Add(time.Hour), 60))

	// Once the window has opened, cancellation is rejected.
	if _, err := m.Cancel(ctx, "s1", "too late", base.Add(time.Hour)); !errors.Is(err, ErrCancelWindowClosed) {
		t.Fatalf("late cancel error = %v, want ErrCancelWindowClosed", err)
	}

	got, err := m.Cancel(ctx, "s1", "changed plans", base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("status = %q, want %q", got.Status, model.StatusCancelled)
	}
	if got.CancelledAt == nil || got.CancellationReason != "changed plans" {
		t.Errorf("cancellation audit fields not stamped: %+v", got)
	}

	// Cancelling twice fails the compare-and-swap.
	if _, err := m.Cancel(ctx, "s1", "again", base.Add(31*time.Minute)); !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("second cancel error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestMarkCheckedInGuards(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)
	start := base.Add(time.Hour)
	m.Insert(ctx, testSession("s1", "u1", start, 60))

	if _, err := m.MarkCheckedIn(ctx, "s1", start.Add(-time.Minute)); !errors.Is(err, ErrOutsideWindow) {
		t.Errorf("early check-in error = %v, want ErrOutsideWindow", err)
	}
	if _, err := m.MarkCheckedIn(ctx, "s1", start.Add(60*time.Minute)); !errors.Is(err, ErrOutsideWindow) {
		t.Errorf("late check-in error = %v, want ErrOutsideWindow", err)
	}

	got, err := m.MarkCheckedIn(ctx, "s1", start.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	if got.Status != model.StatusCheckedIn || got.CheckedInAt == nil {
		t.Errorf("check-in did not stamp session: %+v", got)
	}

	if _, err := m.MarkCheckedIn(ctx, "s1", start.Add(6*time.Minute)); !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("double check-in error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestMarkCompleted(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)
	start := base.Add(time.Hour)
	m.Insert(ctx, testSession("s1", "u1", start, 60))

	if _, err := m.MarkCompleted(ctx, "s1", start.Add(30*time.Minute)); !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("checkout before check-in error = %v, want ErrUnexpectedStatus", err)
	}
	m.MarkCheckedIn(ctx, "s1", start.Add(5*time.Minute))
	got, err := m.MarkCompleted(ctx, "s1", start.Add(50*time.Minute))
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if got.Status != model.StatusCompleted || got.CheckedOutAt == nil {
		t.Errorf("checkout did not stamp session: %+v", got)
	}
}

func TestExtendWindow(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewFixed(base)
	m := NewMemory(clk)
	start := base.Add(time.Hour)
	m.Insert(ctx, testSession("s1", "u1", start, 60))
	m.MarkCheckedIn(ctx, "s1", start.Add(5*time.Minute))

	oldEnd := start.Add(60 * time.Minute)
	if _, err := m.ExtendWindow(ctx, "s1", oldEnd, 150, model.CheckInToken{}); !errors.Is(err, ErrWindowNotWidened) {
		t.Fatalf("non-widening extend error = %v, want ErrWindowNotWidened", err)
	}

	newEnd := oldEnd.Add(30 * time.Minute)
	tok := model.CheckInToken{SessionID: "s1", Checksum: "new"}
	got, err := m.ExtendWindow(ctx, "s1", newEnd, 150, tok)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if !got.EndTime.Equal(newEnd) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, newEnd)
	}
	if got.DurationMinutes != 90 {
		t.Errorf("DurationMinutes = %d, want 90", got.DurationMinutes)
	}
	if got.TotalPriceCents != 450 {
		t.Errorf("TotalPriceCents = %d, want 450", got.TotalPriceCents)
	}
	if got.Token.Checksum != "new" {
		t.Errorf("token was not replaced: %+v", got.Token)
	}
	if got.Status != model.StatusCheckedIn {
		t.Errorf("status = %q, want %q", got.Status, model.StatusCheckedIn)
	}
}

func TestEffectiveStatusDerivation(t *testing.T) {
	start := base.Add(time.Hour)
	s := testSession("s1", "u1", start, 60)

	if got := model.EffectiveStatus(s, base); got != model.StatusConfirmed {
		t.Errorf("before window: effective = %q, want CONFIRMED", got)
	}
	if got := model.EffectiveStatus(s, start.Add(2*time.Hour)); got != model.StatusNoShow {
		t.Errorf("elapsed unattended: effective = %q, want NO_SHOW", got)
	}

	checkedIn := start.Add(5 * time.Minute)
	s.Status = model.StatusCheckedIn
	s.CheckedInAt = &checkedIn
	if got := model.EffectiveStatus(s, start.Add(30*time.Minute)); got != model.StatusCheckedIn {
		t.Errorf("mid window: effective = %q, want CHECKED_IN", got)
	}
	if got := model.EffectiveStatus(s, start.Add(2*time.Hour)); got != model.StatusCompleted {
		t.Errorf("checked in, elapsed: effective = %q, want COMPLETED", got)
	}
}
