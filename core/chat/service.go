// Package chat is the portal-wide message room. History is served
// ascending; live updates ride the store's Listen primitive, which the API
// layer streams out over SSE.
package chat

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/user"
	"github.com/eduprohq/edupro/storage/store"
)

type (
	// Message lives at chat/{id}.
	Message struct {
		ID        string `json:"id"`
		UID       string `json:"uid"`
		UserName  string `json:"userName"`
		Role      string `json:"role"`
		Message   string `json:"message"`
		Timestamp int64  `json:"timestamp"`
	}

	NewMessage struct {
		Message string `json:"message" validate:"required"`
	}

	Service struct {
		store    store.Store
		validate *validator.Validate
	}
)

func NewService(st store.Store, validate *validator.Validate) *Service {
	return &Service{store: st, validate: validate}
}

// Send pushes a message from the given user.
func (svc *Service) Send(ctx context.Context, usr user.User, nm NewMessage) (Message, error) {
	nm.Message = core.CleanString(nm.Message)
	if err := svc.validate.Struct(nm); err != nil {
		return Message{}, err
	}

	msg := Message{
		UID:       usr.UID,
		UserName:  usr.Name,
		Role:      usr.Role,
		Message:   nm.Message,
		Timestamp: core.NowMillis(),
	}
	id, err := svc.store.Push(ctx, "chat", msg)
	if err != nil {
		return Message{}, err
	}
	msg.ID = id
	return msg, nil
}

// History returns all messages, oldest first.
func (svc *Service) History(ctx context.Context) ([]Message, error) {
	raw, err := svc.store.Get(ctx, "chat")
	if err != nil {
		return nil, err
	}
	return materialize(raw)
}

// Listen streams the room: fn receives the full ascending history
// immediately and again after every new message, until unsubscribed.
func (svc *Service) Listen(fn func([]Message)) store.UnsubscribeFunc {
	return svc.store.Listen("chat", func(raw json.RawMessage) {
		msgs, err := materialize(raw)
		if err != nil {
			return
		}
		fn(msgs)
	})
}

func materialize(raw json.RawMessage) ([]Message, error) {
	entries, err := store.DecodeMap(raw)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(entries))
	for id, entry := range entries {
		var m Message
		if _, err = store.Decode(entry, &m); err != nil {
			return nil, err
		}
		m.ID = id
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].Timestamp < msgs[j].Timestamp })
	return msgs, nil
}
