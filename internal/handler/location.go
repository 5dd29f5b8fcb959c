package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fitgrid/gym-session-engine/internal/catalog"
	"github.com/fitgrid/gym-session-engine/internal/model"
)

// LocationHandler lets members browse bookable gym locations.
type LocationHandler struct {
	Catalog catalog.Catalog
}

func NewLocationHandler(cat catalog.Catalog) *LocationHandler {
	if cat == nil {
		panic("nil dependency passed to NewLocationHandler")
	}
	return &LocationHandler{Catalog: cat}
}

type locationResp struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Address         string `json:"address,omitempty"`
	HourlyRateCents int64  `json:"hourly_rate_cents"`
	Currency        string `json:"currency"`
}

// List handles GET /v1/locations.
func (h *LocationHandler) List(c echo.Context) error {
	locs, err := h.Catalog.Locations(c.Request().Context())
	if err != nil {
		return engineError(c, err)
	}
	out := make([]locationResp, 0, len(locs))
	for _, l := range locs {
		out = append(out, toLocationResp(l))
	}
	return c.JSON(http.StatusOK, echo.Map{"locations": out})
}

// Get handles GET /v1/locations/:id.
func (h *LocationHandler) Get(c echo.Context) error {
	loc, err := h.Catalog.Location(c.Request().Context(), c.Param("id"))
	if err != nil {
		return engineError(c, err)
	}
	return c.JSON(http.StatusOK, toLocationResp(*loc))
}

func toLocationResp(l model.Location) locationResp {
	return locationResp{
		ID:              l.ID,
		Name:            l.Name,
		Address:         l.Address,
		HourlyRateCents: l.HourlyRateCents,
		Currency:        l.Currency,
	}
}
