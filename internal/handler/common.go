package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitgrid/gym-session-engine/internal/booking"
	"github.com/fitgrid/gym-session-engine/internal/catalog"
	"github.com/fitgrid/gym-session-engine/internal/checkin"
	"github.com/fitgrid/gym-session-engine/internal/ledger"
	"github.com/fitgrid/gym-session-engine/internal/model"
	"github.com/fitgrid/gym-session-engine/internal/repository"
	"github.com/fitgrid/gym-session-engine/internal/store"
)

// getUserID extracts the authenticated user's ID from echo.Context.
func getUserID(c echo.Context) (string, error) {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v, nil
	}
	return "", errors.New("invalid user_id in context")
}

// isStaff reports whether the caller authenticated with the STAFF role.
func isStaff(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "STAFF"
}

// engineError maps engine sentinels onto HTTP responses.  Unrecognized
// errors become 500 with a generic message so internals never leak.
func engineError(c echo.Context, err error) error {
	msg := err.Error()
	switch {
	case errors.Is(err, booking.ErrInvalidDuration),
		errors.Is(err, booking.ErrStartInPast),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, checkin.ErrInvalidCodeFormat):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, store.ErrSessionNotFound),
		errors.Is(err, catalog.ErrLocationNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return c.JSON(http.StatusPaymentRequired, echo.Map{"error": msg})
	case errors.Is(err, store.ErrActiveSessionExists),
		errors.Is(err, store.ErrUnexpectedStatus),
		errors.Is(err, store.ErrCancelWindowClosed),
		errors.Is(err, store.ErrOutsideWindow),
		errors.Is(err, store.ErrWindowNotWidened),
		errors.Is(err, ledger.ErrBalanceCeiling),
		errors.Is(err, checkin.ErrSessionCancelled),
		errors.Is(err, checkin.ErrAlreadyCheckedIn),
		errors.Is(err, checkin.ErrSessionNotActivatable),
		errors.Is(err, checkin.ErrSessionNotStarted),
		errors.Is(err, checkin.ErrCodeMismatch):
		return c.JSON(http.StatusConflict, echo.Map{"error": msg})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// sessionResp is the wire representation of a session.  Status carries
// the effective (derived) state, stored_status the persisted one.
type sessionResp struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	LocationID         string     `json:"location_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	DurationMinutes    int        `json:"duration_minutes"`
	UnitPriceCents     int64      `json:"unit_price_cents"`
	TotalPriceCents    int64      `json:"total_price_cents"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	StoredStatus       string     `json:"stored_status"`
	CheckInCode        string     `json:"check_in_code"`
	ReferenceCode      string     `json:"reference_code"`
	CheckedInAt        *time.Time `json:"checked_in_at,omitempty"`
	CheckedOutAt       *time.Time `json:"checked_out_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toSessionResp(s *model.Session, now time.Time) sessionResp {
	return sessionResp{
		ID:                 s.ID,
		UserID:             s.UserID,
		LocationID:         s.LocationID,
		StartTime:          s.StartTime,
		EndTime:            s.EndTime,
		DurationMinutes:    s.DurationMinutes,
		UnitPriceCents:     s.UnitPriceCents,
		TotalPriceCents:    s.TotalPriceCents,
		Currency:           s.Currency,
		Status:             string(model.EffectiveStatus(s, now)),
		StoredStatus:       string(s.Status),
		CheckInCode:        s.CheckInCode,
		ReferenceCode:      s.Token.ReferenceCode,
		CheckedInAt:        s.CheckedInAt,
		CheckedOutAt:       s.CheckedOutAt,
		CancelledAt:        s.CancelledAt,
		CancellationReason: s.CancellationReason,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
	}
}
