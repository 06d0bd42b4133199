package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core/chat"
)

type chatAPI struct {
	opts *Options
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, opts *Options) {
	api := chatAPI{opts: opts}

	cg := g.Group("/chat", jwt)
	cg.GET("", api.history)
	cg.POST("", api.send)
	cg.GET("/stream", api.stream)
}

// Handlers

func (api *chatAPI) history(ctx echo.Context) error {
	msgs, err := api.opts.ChatSvc.History(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting chat history")
	}
	return ctx.JSON(http.StatusOK, msgs)
}

func (api *chatAPI) send(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.opts.UserSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data chat.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}

	msg, err := api.opts.ChatSvc.Send(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "sending message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// stream pushes the room over Server-Sent Events: the full ascending
// history on connect, then again after every new message.
func (api *chatAPI) stream(ctx echo.Context) error {
	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	// buffered so a slow client drops snapshots instead of blocking the hub
	updates := make(chan []chat.Message, 8)
	unsubscribe := api.opts.ChatSvc.Listen(func(msgs []chat.Message) {
		select {
		case updates <- msgs:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-ctx.Request().Context().Done():
			return nil
		case msgs := <-updates:
			data, err := json.Marshal(msgs)
			if err != nil {
				return errors.Wrap(err, "encoding chat snapshot")
			}
			if _, err = fmt.Fprintf(res, "data: %s\n\n", data); err != nil {
				return nil // client went away
			}
			res.Flush()
		}
	}
}
