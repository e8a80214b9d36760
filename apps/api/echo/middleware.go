package echoapi

import "github.com/labstack/echo/v4"

// roomMiddleware rejects malformed class ids before they reach a store.
func (api *whiteboardApi) roomMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if err := api.validate.Var(ctx.Param("id"), "roomid"); err != nil {
			return errInvalidRoomID
		}
		return next(ctx)
	}
}
