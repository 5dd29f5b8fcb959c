package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitgrid/gym-session-engine/internal/booking"
	"github.com/fitgrid/gym-session-engine/internal/catalog"
	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/model"
	"github.com/fitgrid/gym-session-engine/internal/queue"
	"github.com/fitgrid/gym-session-engine/internal/repository"
	queue_publisher "github.com/fitgrid/gym-session-engine/internal/service"
	"github.com/fitgrid/gym-session-engine/internal/store"
)

// SessionHandler exposes the booking lifecycle over HTTP.
type SessionHandler struct {
	Coord   *booking.Coordinator
	Catalog catalog.Catalog
	Clk     clock.Clock
	Events  bool // publish lifecycle events to the broker
}

func NewSessionHandler(co *booking.Coordinator, cat catalog.Catalog, clk clock.Clock, events bool) *SessionHandler {
	if co == nil || cat == nil || clk == nil {
		panic("nil dependency passed to NewSessionHandler")
	}
	return &SessionHandler{Coord: co, Catalog: cat, Clk: clk, Events: events}
}

type createSessionReq struct {
	LocationID      string    `json:"location_id"`
	StartTime       time.Time `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
}

type confirmationResp struct {
	Session      sessionResp `json:"session"`
	Token        string      `json:"token"`
	BalanceCents int64       `json:"balance_cents"`
}

// Create handles POST /v1/sessions: charge the wallet, persist the
// session and hand back the check-in credential.
func (h *SessionHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createSessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.LocationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "location_id is required"})
	}

	conf, err := h.Coord.Create(c.Request().Context(), uid, req.LocationID, req.StartTime, req.DurationMinutes)
	if err != nil {
		return engineError(c, err)
	}

	if h.Events {
		go h.publishBooked(conf.Session)
	}

	return c.JSON(http.StatusCreated, confirmationResp{
		Session:      toSessionResp(conf.Session, h.Clk.Now()),
		Token:        conf.SerializedToken,
		BalanceCents: conf.BalanceCents,
	})
}

// Get handles GET /v1/sessions/:id.  Members see only their own
// sessions; staff may inspect any.
func (h *SessionHandler) Get(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	s, err := h.Coord.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(c, err)
	}
	if s.UserID != uid && !isStaff(c) {
		return engineError(c, repository.ErrForbidden)
	}
	return c.JSON(http.StatusOK, toSessionResp(s, h.Clk.Now()))
}

// List handles GET /v1/sessions?filter=upcoming|past|all for the
// authenticated member.
func (h *SessionHandler) List(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var f store.Filter
	switch c.QueryParam("filter") {
	case "", "upcoming":
		f = store.FilterUpcoming
	case "past":
		f = store.FilterPast
	case "all":
		f = store.FilterAll
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "filter must be upcoming, past or all"})
	}
	list, err := h.Coord.List(c.Request().Context(), uid, f)
	if err != nil {
		return engineError(c, err)
	}
	now := h.Clk.Now()
	out := make([]sessionResp, 0, len(list))
	for i := range list {
		out = append(out, toSessionResp(&list[i], now))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

type extendReq struct {
	AdditionalMinutes int `json:"additional_minutes"`
}

// Extend handles POST /v1/sessions/:id/extend: widen a checked-in
// session's window, charging the incremental price.
func (h *SessionHandler) Extend(c echo.Context) error {
	s, ok, err := h.owned(c)
	if err != nil {
		return err
	}
	if !ok {
		return nil // response already written
	}
	var req extendReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	updated, err := h.Coord.Extend(c.Request().Context(), s.ID, req.AdditionalMinutes)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(updated, h.Clk.Now()))
}

// CheckOut handles POST /v1/sessions/:id/checkout: end a checked-in
// session early.
func (h *SessionHandler) CheckOut(c echo.Context) error {
	s, ok, err := h.owned(c)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	updated, err := h.Coord.CheckOut(c.Request().Context(), s.ID)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(updated, h.Clk.Now()))
}

type cancelReq struct {
	Reason string `json:"reason"`
}

// Cancel handles DELETE /v1/sessions/:id: cancel before the window
// opens and refund the full price to the wallet.
func (h *SessionHandler) Cancel(c echo.Context) error {
	s, ok, err := h.owned(c)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	var req cancelReq
	_ = c.Bind(&req) // reason is optional
	updated, err := h.Coord.Cancel(c.Request().Context(), s.ID, req.Reason)
	if err != nil {
		return engineError(c, err)
	}

	if h.Events {
		go h.publishCancelled(updated)
	}
	return c.JSON(http.StatusOK, toSessionResp(updated, h.Clk.Now()))
}

// owned loads the session from the path parameter and enforces
// ownership.  When ok is false a response has already been written.
func (h *SessionHandler) owned(c echo.Context) (*model.Session, bool, error) {
	uid, err := getUserID(c)
	if err != nil {
		return nil, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	s, err := h.Coord.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return nil, false, engineError(c, err)
	}
	if s.UserID != uid && !isStaff(c) {
		return nil, false, engineError(c, repository.ErrForbidden)
	}
	return s, true, nil
}

func (h *SessionHandler) publishBooked(s *model.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	name := s.LocationID
	if loc, err := h.Catalog.Location(ctx, s.LocationID); err == nil {
		name = loc.Name
	}
	_ = queue_publisher.PublishSessionBooked(ctx, queue.SessionBookedEvent{
		SessionID:       s.ID,
		UserID:          s.UserID,
		LocationID:      s.LocationID,
		LocationName:    name,
		StartsAt:        s.StartTime.UTC().Format(time.RFC3339),
		EndsAt:          s.EndTime.UTC().Format(time.RFC3339),
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.TotalPriceCents,
		ReferenceCode:   s.Token.ReferenceCode,
		BookedAt:        s.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *SessionHandler) publishCancelled(s *model.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cancelledAt := ""
	if s.CancelledAt != nil {
		cancelledAt = s.CancelledAt.UTC().Format(time.RFC3339)
	}
	_ = queue_publisher.PublishSessionCancelled(ctx, queue.SessionCancelledEvent{
		SessionID:   s.ID,
		UserID:      s.UserID,
		LocationID:  s.LocationID,
		RefundCents: s.TotalPriceCents,
		Reason:      s.CancellationReason,
		CancelledAt: cancelledAt,
	})
}
