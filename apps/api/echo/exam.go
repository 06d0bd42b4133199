package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core/exam"
	"github.com/eduprohq/edupro/core/wallet"
)

type examAPI struct {
	opts *Options
}

func registerExamAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := examAPI{opts: opts}

	eg := g.Group("/exams", jwt)
	eg.GET("", api.list)
	eg.GET("/:id", api.retrieve)
	eg.GET("/:id/state", api.state)
	eg.POST("/:id/register", api.register)
	eg.PUT("/:id/answers", api.answer)
	eg.POST("/:id/submit", api.submit)
	eg.GET("/:id/attempt", api.attempt)

	// admin endpoints
	eg.GET("/all", api.listAll, adminMiddleware())
	eg.POST("", api.publish, adminMiddleware())
	eg.DELETE("/:id", api.destroy, adminMiddleware())
	eg.GET("/:id/participants", api.participants, adminMiddleware())
	eg.POST("/:id/participants/:uid/prize", api.awardPrize, adminMiddleware())

	pg := g.Group("/practice", jwt)
	pg.GET("", api.practiceList)
	pg.POST("/:id/check", api.practiceCheck)
}

// Handlers

func (api *examAPI) list(ctx echo.Context) error {
	filter := new(exam.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}
	exams, err := api.opts.ExamSvc.List(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "listing exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examAPI) practiceList(ctx echo.Context) error {
	filter := new(exam.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}
	exams, err := api.opts.ExamSvc.PracticeList(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "listing practice sets")
	}
	return ctx.JSON(http.StatusOK, exams)
}

// listAll serves every exam with its solutions, for the admin console.
func (api *examAPI) listAll(ctx echo.Context) error {
	exams, err := api.opts.ExamSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing all exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examAPI) retrieve(ctx echo.Context) error {
	exm, err := api.opts.ExamSvc.GetForTaker(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHTTPNotFound
		}
		return errors.Wrap(err, "getting exam")
	}
	return ctx.JSON(http.StatusOK, exm)
}

func (api *examAPI) state(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	state, err := api.opts.ExamSvc.State(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting exam state")
	}
	return ctx.JSON(http.StatusOK, StateResponse{State: state})
}

func (api *examAPI) register(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data exam.Registration
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Registration")
	}

	sess, err := api.opts.ExamSvc.Register(ctx.Request().Context(), usr, ctx.Param("id"), data)
	if err != nil {
		switch errors.Cause(err) {
		case exam.ErrNotFound:
			return errHTTPNotFound
		case exam.ErrAlreadyAttended:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case exam.ErrNotStarted, exam.ErrEnded, exam.ErrPracticeExam, wallet.ErrInsufficientBalance:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return errors.Wrap(err, "registering for exam")
	}
	return ctx.JSON(http.StatusOK, SessionResponse{State: exam.StateRegistered, EndsAt: sess.EndsAt})
}

func (api *examAPI) answer(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data AnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}

	err = api.opts.ExamSvc.Answer(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data.QuestionID, data.OptionIndex)
	if err != nil {
		switch errors.Cause(err) {
		case exam.ErrNoSession, exam.ErrAlreadySubmitted:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "recording answer")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examAPI) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	att, err := api.opts.ExamSvc.Submit(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		if errors.Cause(err) == exam.ErrNoSession {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "submitting exam")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *examAPI) attempt(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	att, err := api.opts.ExamSvc.Attempt(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		if errors.Cause(err) == exam.ErrNoAttempt {
			return errHTTPNotFound
		}
		return errors.Wrap(err, "getting attempt")
	}
	return ctx.JSON(http.StatusOK, att)
}

func (api *examAPI) publish(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	exm, err := api.opts.ExamSvc.Publish(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "publishing exam")
	}
	return ctx.JSON(http.StatusCreated, exm)
}

func (api *examAPI) destroy(ctx echo.Context) error {
	if err := api.opts.ExamSvc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examAPI) participants(ctx echo.Context) error {
	atts, err := api.opts.ExamSvc.Participants(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing participants")
	}
	return ctx.JSON(http.StatusOK, atts)
}

func (api *examAPI) awardPrize(ctx echo.Context) error {
	var data PrizeRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PrizeRequest")
	}
	if data.Amount <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "prize amount must be positive")
	}

	err := api.opts.WalletSvc.AwardPrize(ctx.Request().Context(), ctx.Param("id"), ctx.Param("uid"), data.Amount)
	if err != nil {
		switch errors.Cause(err) {
		case wallet.ErrAttemptNotFound:
			return errHTTPNotFound
		case wallet.ErrPrizeAlreadyAwarded:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "awarding prize")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examAPI) practiceCheck(ctx echo.Context) error {
	var data AnswerRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnswerRequest")
	}

	res, err := api.opts.ExamSvc.PracticeCheck(ctx.Request().Context(), ctx.Param("id"), data.QuestionID, data.OptionIndex)
	if err != nil {
		switch errors.Cause(err) {
		case exam.ErrNotFound, exam.ErrQuestionNotFound:
			return errHTTPNotFound
		case exam.ErrNotPracticeExam:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return errors.Wrap(err, "checking practice answer")
	}
	return ctx.JSON(http.StatusOK, res)
}

type (
	StateResponse struct {
		State exam.State `json:"state"`
	}

	SessionResponse struct {
		State  exam.State `json:"state"`
		EndsAt int64      `json:"endsAt"`
	}

	AnswerRequest struct {
		QuestionID  string `json:"questionId"`
		OptionIndex int    `json:"optionIndex"`
	}

	PrizeRequest struct {
		Amount int64 `json:"amount"`
	}
)
