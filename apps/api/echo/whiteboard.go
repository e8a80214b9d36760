package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-board/core"
	"github.com/trezcool/masomo-board/core/board"
	"github.com/trezcool/masomo-board/core/surface"
)

type whiteboardApi struct {
	store      board.Store
	conf       *core.Config
	logger     core.Logger
	validate   *validator.Validate
	translator ut.Translator
	upgrader   feedUpgrader
}

func registerWhiteboardAPI(g *echo.Group, auth *jwtAuth, deps ServerDeps) {
	api := whiteboardApi{
		store:      deps.Store,
		conf:       deps.Conf,
		logger:     deps.Logger,
		validate:   deps.Validate,
		translator: deps.Translator,
		upgrader:   newFeedUpgrader(deps.Conf.Server.AllowedOrigins),
	}

	wg := g.Group("/classes/:id/whiteboard", api.roomMiddleware)
	wg.GET("", api.retrieve, auth.Header())
	wg.PUT("", api.overwrite, auth.Header())
	wg.GET("/export", api.export, auth.Header())
	wg.GET("/feed", api.feed, auth.Query())
}

// Handlers

func (api *whiteboardApi) retrieve(ctx echo.Context) error {
	rec, err := api.store.Record(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting whiteboard record")
	}
	return ctx.JSON(http.StatusOK, board.NewPayload(rec))
}

func (api *whiteboardApi) overwrite(ctx echo.Context) error {
	var data board.WriteRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to WriteRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}
	if max := api.conf.Board.MaxDocumentBytes; max > 0 && len(data.Document) > max {
		return errors.Wrapf(surface.ErrSnapshotTooLarge, "%d bytes", len(data.Document))
	}
	// a document no client could load is refused rather than stored
	if _, err := surface.Decode(data.Document, api.validate); err != nil {
		return errors.Wrap(err, "decoding document")
	}

	if err := api.store.Overwrite(ctx.Request().Context(), ctx.Param("id"), data.Document, data.Timestamp); err != nil {
		return errors.Wrap(err, "overwriting whiteboard record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *whiteboardApi) export(ctx echo.Context) error {
	format := surface.FormatPNG
	if f := ctx.QueryParam("format"); f != "" {
		var err error
		if format, err = surface.ParseFormat(f); err != nil {
			return err
		}
	}

	rec, err := api.store.Record(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting whiteboard record")
	}
	snap, err := surface.Decode(rec.Document, api.validate)
	if err != nil {
		// stored documents are validated on write: a damaged one is a server error
		return errors.Errorf("decoding stored whiteboard of %s: %v", rec.RoomID, err)
	}
	exp, err := surface.RenderExport(snap, format)
	if err != nil {
		return errors.Wrap(err, "rendering whiteboard")
	}

	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", exp.Filename))
	return ctx.Blob(http.StatusOK, exp.ContentType, exp.Data)
}
