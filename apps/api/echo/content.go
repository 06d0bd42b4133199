package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core/content"
)

type contentAPI struct {
	opts *Options
}

func registerContentAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := contentAPI{opts: opts}
	admin := adminMiddleware()

	pg := g.Group("/posts", jwt)
	pg.GET("", api.listPosts)
	pg.POST("", api.createPost, admin)
	pg.DELETE("/:id", api.deletePost, admin)

	rg := g.Group("/resources", jwt)
	rg.GET("", api.listResources)
	rg.POST("", api.createResource, admin)
	rg.DELETE("/:id", api.deleteResource, admin)

	sg := g.Group("/subjective-questions", jwt)
	sg.GET("", api.listSubjectiveQuestions)
	sg.POST("", api.createSubjectiveQuestion, admin)
	sg.DELETE("/:id", api.deleteSubjectiveQuestion, admin)

	ng := g.Group("/notices", jwt)
	ng.GET("", api.listNotices)
	ng.POST("", api.createNotice, admin)
	ng.DELETE("/:id", api.deleteNotice, admin)

	cg := g.Group("/config", jwt)
	cg.GET("", api.getConfig)
	cg.PUT("", api.updateConfig, admin)
}

// Handlers

func (api *contentAPI) listPosts(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []content.Post{})
	}
	posts, err := api.opts.ContentSvc.ListPosts(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "listing posts")
	}
	return ctx.JSON(http.StatusOK, posts)
}

func (api *contentAPI) createPost(ctx echo.Context) error {
	var data content.NewPost
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPost")
	}
	post, err := api.opts.ContentSvc.CreatePost(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating post")
	}
	return ctx.JSON(http.StatusCreated, post)
}

func (api *contentAPI) deletePost(ctx echo.Context) error {
	if err := api.opts.ContentSvc.DeletePost(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting post")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentAPI) listResources(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []content.Resource{})
	}
	resources, err := api.opts.ContentSvc.ListResources(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "listing resources")
	}
	return ctx.JSON(http.StatusOK, resources)
}

func (api *contentAPI) createResource(ctx echo.Context) error {
	var data content.NewResource
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResource")
	}
	res, err := api.opts.ContentSvc.CreateResource(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating resource")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *contentAPI) deleteResource(ctx echo.Context) error {
	if err := api.opts.ContentSvc.DeleteResource(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentAPI) listSubjectiveQuestions(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []content.SubjectiveQuestion{})
	}
	questions, err := api.opts.ContentSvc.ListSubjectiveQuestions(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "listing subjective questions")
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *contentAPI) createSubjectiveQuestion(ctx echo.Context) error {
	var data content.NewSubjectiveQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubjectiveQuestion")
	}
	sq, err := api.opts.ContentSvc.CreateSubjectiveQuestion(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subjective question")
	}
	return ctx.JSON(http.StatusCreated, sq)
}

func (api *contentAPI) deleteSubjectiveQuestion(ctx echo.Context) error {
	if err := api.opts.ContentSvc.DeleteSubjectiveQuestion(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subjective question")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentAPI) listNotices(ctx echo.Context) error {
	notices, err := api.opts.ContentSvc.ListNotices(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing notices")
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *contentAPI) createNotice(ctx echo.Context) error {
	var data content.NewNotice
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNotice")
	}
	notice, err := api.opts.ContentSvc.CreateNotice(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, notice)
}

func (api *contentAPI) deleteNotice(ctx echo.Context) error {
	if err := api.opts.ContentSvc.DeleteNotice(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentAPI) getConfig(ctx echo.Context) error {
	conf, err := api.opts.ContentSvc.GetConfig(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting app config")
	}
	return ctx.JSON(http.StatusOK, conf)
}

func (api *contentAPI) updateConfig(ctx echo.Context) error {
	var data content.AppConfig
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AppConfig")
	}
	conf, err := api.opts.ContentSvc.UpdateConfig(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "updating app config")
	}
	return ctx.JSON(http.StatusOK, conf)
}
