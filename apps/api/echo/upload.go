package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type uploadAPI struct {
	opts *Options
}

func registerUploadAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := uploadAPI{opts: opts}
	g.POST("/uploads", api.upload, jwt)
}

// upload hosts an image on the external image host and returns its public
// URL; the caller then writes that URL wherever it belongs.
func (api *uploadAPI) upload(ctx echo.Context) error {
	fileHdr, err := ctx.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "an image file is required")
	}
	file, err := fileHdr.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = file.Close() }()

	url, err := api.opts.Uploader.Upload(ctx.Request().Context(), fileHdr.Filename, file)
	if err != nil {
		return errors.Wrap(err, "hosting image")
	}
	return ctx.JSON(http.StatusCreated, UploadResponse{URL: url})
}

type UploadResponse struct {
	URL string `json:"url"`
}
