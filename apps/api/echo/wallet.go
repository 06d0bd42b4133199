package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core/wallet"
)

type walletAPI struct {
	opts *Options
}

func registerWalletAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := walletAPI{opts: opts}

	wg := g.Group("/wallet", jwt)
	wg.GET("/transactions", api.history)
	wg.POST("/deposits", api.requestDeposit)

	// admin endpoints
	wg.GET("/transactions/all", api.queryAll, adminMiddleware())
	wg.POST("/transactions/:id/approve", api.approve, adminMiddleware())
	wg.POST("/transactions/:id/reject", api.reject, adminMiddleware())
}

// Handlers

func (api *walletAPI) history(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	txs, err := api.opts.WalletSvc.History(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting wallet history")
	}
	return ctx.JSON(http.StatusOK, txs)
}

func (api *walletAPI) requestDeposit(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data wallet.DepositRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to DepositRequest")
	}

	tx, err := api.opts.WalletSvc.RequestDeposit(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "requesting deposit")
	}
	return ctx.JSON(http.StatusCreated, tx)
}

func (api *walletAPI) queryAll(ctx echo.Context) error {
	txs, err := api.opts.WalletSvc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying transactions")
	}
	return ctx.JSON(http.StatusOK, txs)
}

func (api *walletAPI) approve(ctx echo.Context) error {
	return api.settle(ctx, true)
}

func (api *walletAPI) reject(ctx echo.Context) error {
	return api.settle(ctx, false)
}

func (api *walletAPI) settle(ctx echo.Context, approve bool) error {
	tx, err := api.opts.WalletSvc.Settle(ctx.Request().Context(), ctx.Param("id"), approve)
	if err != nil {
		switch errors.Cause(err) {
		case wallet.ErrNotFound:
			return errHTTPNotFound
		case wallet.ErrAlreadySettled:
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "settling transaction")
	}
	return ctx.JSON(http.StatusOK, tx)
}
