package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fitgrid/gym-session-engine/internal/booking"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

// WalletHandler exposes the member wallet: balance, statement and
// top-ups.
type WalletHandler struct {
	Coord *booking.Coordinator
}

func NewWalletHandler(co *booking.Coordinator) *WalletHandler {
	if co == nil {
		panic("nil dependency passed to NewWalletHandler")
	}
	return &WalletHandler{Coord: co}
}

// Balance handles GET /v1/wallet.
func (h *WalletHandler) Balance(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bal, err := h.Coord.Balance(c.Request().Context(), uid)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"balance_cents": bal})
}

type entryResp struct {
	ID                 string `json:"id"`
	Kind               string `json:"kind"`
	Status             string `json:"status"`
	AmountCents        int64  `json:"amount_cents"`
	BalanceBeforeCents int64  `json:"balance_before_cents"`
	BalanceAfterCents  int64  `json:"balance_after_cents"`
	RelatedSessionID   string `json:"related_session_id,omitempty"`
	ReferenceCode      string `json:"reference_code,omitempty"`
	CreatedAt          string `json:"created_at"`
}

// Ledger handles GET /v1/wallet/ledger: the member's statement, newest
// entry first.
func (h *WalletHandler) Ledger(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	entries, err := h.Coord.LedgerEntries(c.Request().Context(), uid)
	if err != nil {
		return engineError(c, err)
	}
	out := make([]entryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResp(e))
	}
	return c.JSON(http.StatusOK, echo.Map{"entries": out})
}

type topUpReq struct {
	AmountCents int64 `json:"amount_cents"`
}

// TopUp handles POST /v1/wallet/topup.
func (h *WalletHandler) TopUp(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req topUpReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	entry, err := h.Coord.TopUp(c.Request().Context(), uid, req.AmountCents)
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"entry":         toEntryResp(*entry),
		"balance_cents": entry.BalanceAfter,
	})
}

func toEntryResp(e model.LedgerEntry) entryResp {
	return entryResp{
		ID:                 e.ID,
		Kind:               string(e.Kind),
		Status:             string(e.Status),
		AmountCents:        e.AmountCents,
		BalanceBeforeCents: e.BalanceBefore,
		BalanceAfterCents:  e.BalanceAfter,
		RelatedSessionID:   e.RelatedSessionID,
		ReferenceCode:      e.ReferenceCode,
		CreatedAt:          e.CreatedAt.UTC().Format(time.RFC3339),
	}
}
