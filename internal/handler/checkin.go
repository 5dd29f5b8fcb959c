package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitgrid/gym-session-engine/internal/checkin"
	"github.com/fitgrid/gym-session-engine/internal/clock"
	"github.com/fitgrid/gym-session-engine/internal/queue"
	queue_publisher "github.com/fitgrid/gym-session-engine/internal/service"
	"github.com/fitgrid/gym-session-engine/internal/token"
)

// CheckInHandler exposes the front-desk check-in flow.
type CheckInHandler struct {
	Validator *checkin.Validator
	Clk       clock.Clock
	Events    bool
}

func NewCheckInHandler(v *checkin.Validator, clk clock.Clock, events bool) *CheckInHandler {
	if v == nil || clk == nil {
		panic("nil dependency passed to NewCheckInHandler")
	}
	return &CheckInHandler{Validator: v, Clk: clk, Events: events}
}

type checkInReq struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

// CheckIn handles POST /v1/checkin: validate the entered code against
// the session and commit the CHECKED_IN transition.
func (h *CheckInHandler) CheckIn(c echo.Context) error {
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SessionID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
	}

	res, err := h.Validator.CheckIn(c.Request().Context(), req.Code, req.SessionID)
	if err != nil {
		return engineError(c, err)
	}

	if h.Events {
		go publishCheckedIn(res)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"session":       toSessionResp(res.Session, h.Clk.Now()),
		"checked_in_at": res.CheckedInAt,
		"message":       res.Message,
	})
}

type decodeReq struct {
	Token string `json:"token"`
}

// DecodeToken handles POST /v1/checkin/decode (staff only): parse a
// serialized credential, verify its checksum and report its window
// relative to now.  Nothing here touches the session store; the
// endpoint exists so front-desk staff can triage a credential that a
// scanner rejects.
func (h *CheckInHandler) DecodeToken(c echo.Context) error {
	var req decodeReq
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}
	tok, err := token.Deserialize(req.Token)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	now := h.Clk.Now()
	return c.JSON(http.StatusOK, echo.Map{
		"session_id":        tok.SessionID,
		"location_id":       tok.LocationID,
		"user_id":           tok.UserID,
		"window_start":      tok.WindowStart,
		"window_end":        tok.WindowEnd,
		"reference_code":    tok.ReferenceCode,
		"checksum_valid":    token.Verify(tok),
		"within_window":     token.WithinWindow(tok, now),
		"expired":           token.Expired(tok, now),
		"remaining_minutes": token.RemainingMinutes(tok, now),
	})
}

func publishCheckedIn(res *checkin.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = queue_publisher.PublishSessionCheckedIn(ctx, queue.SessionCheckedInEvent{
		SessionID:   res.Session.ID,
		UserID:      res.Session.UserID,
		LocationID:  res.Session.LocationID,
		CheckedInAt: res.CheckedInAt.UTC().Format(time.RFC3339),
	})
}
