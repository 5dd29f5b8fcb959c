package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fitgrid/gym-session-engine/internal/catalog"
	"github.com/fitgrid/gym-session-engine/internal/checkin"
	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/fault"
	"github.com/fitgrid/gym-session-engine/internal/ledger"
	"github.com/fitgrid/gym-session-engine/internal/model"
	"github.com/fitgrid/gym-session-engine/internal/store"
	"github.com/fitgrid/gym-session-engine/internal/token"
)

var base = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	clk    *clock.Fixed
	ledger *ledger.Memory
	store  *store.Memory
	co     *Coordinator
}

func newFixture(t *testing.T, inj fault.Injector) *fixture {
	t.Helper()
	clk := clock.NewFixed(base)
	l := ledger.NewMemory(clk)
	m := store.NewMemory(clk)
	cat := catalog.NewStatic(model.Location{
		ID:              "loc-downtown",
		Name:            "Downtown Gym",
		HourlyRateCents: 300,
		Currency:        "USD",
		IsActive:        true,
	})
	return &fixture{clk: clk, ledger: l, store: m, co: New(l, m, cat, clk, inj)}
}

func (f *fixture) fund(t *testing.T, userID string, cents int64) {
	t.Helper()
	if _, err := f.ledger.Credit(context.Background(), userID, cents, "GS-SEED0001", ""); err != nil {
		t.Fatalf("funding wallet failed: %v", err)
	}
}

func TestPriceForMinutes(t *testing.T) {
	cases := []struct {
		rate    int64
		minutes int
		want    int64
	}{
		{300, 60, 300},
		{300, 30, 150},
		{301, 30, 151}, // 150.5 rounds half-up
		{299, 10, 50},  // 49.83 rounds up
		{100, 45, 75},
		{1, 1, 0}, // 0.016 cents rounds down
	}
	for _, tc := range cases {
		if got := PriceForMinutes(tc.rate, tc.minutes); got != tc.want {
			t.Errorf("PriceForMinutes(%d, %d) = %d, want %d", tc.rate, tc.minutes, got, tc.want)
		}
	}
}

func TestCreateDebitsAndConfirms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	conf, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	s := conf.Session
	if s.Status != model.StatusConfirmed {
		t.Errorf("status = %q, want %q", s.Status, model.StatusConfirmed)
	}
	if s.TotalPriceCents != 300 {
		t.Errorf("TotalPriceCents = %d, want 300", s.TotalPriceCents)
	}
	if s.Currency != "USD" {
		t.Errorf("Currency = %q, want USD", s.Currency)
	}
	if conf.BalanceCents != 700 {
		t.Errorf("balance after booking = %d, want 700", conf.BalanceCents)
	}
	if s.CheckInCode == "" || s.Token.Checksum == "" {
		t.Error("credential was not issued")
	}

	// The serialized token must round-trip and verify.
	tok, err := token.Deserialize(conf.SerializedToken)
	if err != nil {
		t.Fatalf("confirmation token does not parse: %v", err)
	}
	if !token.Verify(tok) {
		t.Error("confirmation token failed verification")
	}
	if tok.SessionID != s.ID {
		t.Errorf("token session = %q, want %q", tok.SessionID, s.ID)
	}

	// The debit entry references the session.
	entries, _ := f.ledger.Entries(ctx, "u1")
	if entries[0].Kind != model.EntryDebit || entries[0].RelatedSessionID != s.ID {
		t.Errorf("most recent entry = %+v, want a debit related to %s", entries[0], s.ID)
	}
}

func TestCreateRejectsSecondActiveSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	if _, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	_, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(5*time.Hour), 60)
	if !errors.Is(err, store.ErrActiveSessionExists) {
		t.Fatalf("second booking error = %v, want ErrActiveSessionExists", err)
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 700 {
		t.Errorf("balance after rejected booking = %d, want 700", balance)
	}
}

func TestCreateInsufficientFundsLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 100)

	_, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	sessions, _ := f.co.List(ctx, "u1", store.FilterAll)
	if len(sessions) != 0 {
		t.Errorf("sessions after failed booking = %d, want 0", len(sessions))
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 100 {
		t.Errorf("balance = %d, want 100", balance)
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	if _, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("zero duration error = %v, want ErrInvalidDuration", err)
	}
	if _, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(-time.Hour), 60); !errors.Is(err, ErrStartInPast) {
		t.Errorf("past start error = %v, want ErrStartInPast", err)
	}
	if _, err := f.co.Create(ctx, "u1", "loc-nowhere", base.Add(time.Hour), 60); !errors.Is(err, catalog.ErrLocationNotFound) {
		t.Errorf("unknown location error = %v, want ErrLocationNotFound", err)
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 1000 {
		t.Errorf("balance after rejected inputs = %d, want 1000", balance)
	}
}

func TestCreateInsertRaceCompensates(t *testing.T) {
	ctx := context.Background()
	forced := errors.New("forced insert conflict")
	inj := fault.NewSentinel("u1", map[fault.Op]error{fault.OpInsert: forced})
	f := newFixture(t, inj)
	f.fund(t, "u1", 1000)

	_, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	if !errors.Is(err, forced) {
		t.Fatalf("error = %v, want the injected conflict", err)
	}

	// The debit was compensated: balance restored, and the ledger
	// shows both the debit and the refund.
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 1000 {
		t.Errorf("balance after compensation = %d, want 1000", balance)
	}
	entries, _ := f.ledger.Entries(ctx, "u1")
	if len(entries) != 3 { // seed credit, debit, refund
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Kind != model.EntryRefund || entries[1].Kind != model.EntryDebit {
		t.Errorf("entry kinds = %q, %q; want REFUND then DEBIT", entries[0].Kind, entries[1].Kind)
	}
	sessions, _ := f.co.List(ctx, "u1", store.FilterAll)
	if len(sessions) != 0 {
		t.Errorf("sessions after compensated failure = %d, want 0", len(sessions))
	}
}

func TestCreateForcedFundsError(t *testing.T) {
	ctx := context.Background()
	inj := fault.NewSentinel("u1", map[fault.Op]error{fault.OpDebit: ledger.ErrInsufficientFunds})
	f := newFixture(t, inj)
	f.fund(t, "u1", 1000)

	if _, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want the injected funds failure", err)
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 1000 {
		t.Errorf("balance = %d, want 1000", balance)
	}
}

// checkIn walks the booked session through a real validator so the
// coordinator tests exercise the same path the API does.
func (f *fixture) checkIn(t *testing.T, s *model.Session) *model.Session {
	t.Helper()
	v := checkin.NewValidator(f.store, f.clk, nil)
	res, err := v.CheckIn(context.Background(), s.CheckInCode, s.ID)
	if err != nil {
		t.Fatalf("check-in failed: %v", err)
	}
	return res.Session
}

func TestExtendRepricesAndReissues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	conf, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.clk.Advance(65 * time.Minute) // inside the window
	f.checkIn(t, conf.Session)

	got, err := f.co.Extend(ctx, conf.Session.ID, 30)
	if err != nil {
		t.Fatalf("Extend failed: %v", err)
	}
	wantEnd := conf.Session.EndTime.Add(30 * time.Minute)
	if !got.EndTime.Equal(wantEnd) {
		t.Errorf("EndTime = %v, want %v", got.EndTime, wantEnd)
	}
	if got.TotalPriceCents != 450 {
		t.Errorf("TotalPriceCents = %d, want 450", got.TotalPriceCents)
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 550 {
		t.Errorf("balance = %d, want 550", balance)
	}
	// Re-issued token covers the widened window, same reference code.
	if !token.Verify(got.Token) {
		t.Error("re-issued token failed verification")
	}
	if !got.Token.WindowEnd.Equal(wantEnd) {
		t.Errorf("token WindowEnd = %v, want %v", got.Token.WindowEnd, wantEnd)
	}
	if got.Token.ReferenceCode != conf.Session.Token.ReferenceCode {
		t.Errorf("reference code changed on extension: %q vs %q",
			got.Token.ReferenceCode, conf.Session.Token.ReferenceCode)
	}
}

func TestExtendInsufficientFundsLeavesWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 320) // enough to book, not to extend

	conf, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.clk.Advance(65 * time.Minute)
	f.checkIn(t, conf.Session)

	_, err = f.co.Extend(ctx, conf.Session.ID, 30)
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	got, _ := f.co.Get(ctx, conf.Session.ID)
	if !got.EndTime.Equal(conf.Session.EndTime) {
		t.Errorf("EndTime changed on failed extension: %v vs %v", got.EndTime, conf.Session.EndTime)
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 20 {
		t.Errorf("balance = %d, want 20", balance)
	}
}

func TestExtendRequiresCheckedIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	conf, err := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.co.Extend(ctx, conf.Session.ID, 30); !errors.Is(err, store.ErrUnexpectedStatus) {
		t.Errorf("extend of confirmed session error = %v, want ErrUnexpectedStatus", err)
	}
}

func TestCheckOutCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	conf, _ := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	f.clk.Advance(65 * time.Minute)
	f.checkIn(t, conf.Session)

	got, err := f.co.CheckOut(ctx, conf.Session.ID)
	if err != nil {
		t.Fatalf("CheckOut failed: %v", err)
	}
	if got.Status != model.StatusCompleted || got.CheckedOutAt == nil {
		t.Errorf("checkout did not complete the session: %+v", got)
	}
}

func TestCancelRefunds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	conf, _ := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	got, err := f.co.Cancel(ctx, conf.Session.ID, "schedule conflict")
	if err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got.Status != model.StatusCancelled {
		t.Errorf("status = %q, want %q", got.Status, model.StatusCancelled)
	}
	if got.CancellationReason != "schedule conflict" {
		t.Errorf("reason = %q, want %q", got.CancellationReason, "schedule conflict")
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 1000 {
		t.Errorf("balance after refund = %d, want 1000", balance)
	}
	entries, _ := f.ledger.Entries(ctx, "u1")
	if entries[0].Kind != model.EntryRefund || entries[0].AmountCents != 300 {
		t.Errorf("most recent entry = %+v, want a 300 cent refund", entries[0])
	}
}

func TestCancelAfterStartRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 1000)

	conf, _ := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	f.clk.Advance(61 * time.Minute)
	if _, err := f.co.Cancel(ctx, conf.Session.ID, "too late"); !errors.Is(err, store.ErrCancelWindowClosed) {
		t.Fatalf("error = %v, want ErrCancelWindowClosed", err)
	}
	balance, _ := f.co.Balance(ctx, "u1")
	if balance != 700 {
		t.Errorf("balance after rejected cancel = %d, want 700", balance)
	}
}

func TestSingleActiveInvariantAcrossLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.fund(t, "u1", 5000)

	active := func() int {
		now := f.clk.Now()
		sessions, _ := f.co.List(ctx, "u1", store.FilterAll)
		n := 0
		for i := range sessions {
			if sessions[i].ActiveAt(now) {
				n++
			}
		}
		return n
	}

	conf, _ := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	if got := active(); got != 1 {
		t.Fatalf("active after booking = %d, want 1", got)
	}
	f.co.Cancel(ctx, conf.Session.ID, "replan")
	if got := active(); got != 0 {
		t.Fatalf("active after cancel = %d, want 0", got)
	}

	conf2, _ := f.co.Create(ctx, "u1", "loc-downtown", base.Add(time.Hour), 60)
	f.clk.Advance(65 * time.Minute)
	f.checkIn(t, conf2.Session)
	if got := active(); got != 1 {
		t.Fatalf("active after check-in = %d, want 1", got)
	}
	f.co.CheckOut(ctx, conf2.Session.ID)
	if got := active(); got != 0 {
		t.Fatalf("active after checkout = %d, want 0", got)
	}
}

func TestTopUp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	e, err := f.co.TopUp(ctx, "u1", 2500)
	if err != nil {
		t.Fatalf("TopUp failed: %v", err)
	}
	if e.Kind != model.EntryCredit || e.BalanceAfter != 2500 {
		t.Errorf("top-up entry = %+v, want a credit to 2500", e)
	}
}
