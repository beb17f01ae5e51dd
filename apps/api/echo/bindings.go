package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/shule/core"
)

var orderingParam = "ordering"

// bindOrdering parses the `ordering` query param, eg. `?ordering=name,-created_at`.
func bindOrdering(ctx echo.Context, allowed []string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

type (
	SuccessResponse struct {
		Success string `json:"success"`
	}

	CountResponse struct {
		Count int `json:"count"`
	}

	RoleResponse struct {
		Role string `json:"role"`
	}
)
