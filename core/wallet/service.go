// Package wallet is the portal's money ledger. Every balance mutation,
// fee debit, prize credit and deposit credit, goes through a store
// transaction on the user's profile so concurrent movements cannot clobber
// each other.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/eduprohq/edupro/core"
	"github.com/eduprohq/edupro/core/user"
	"github.com/eduprohq/edupro/storage/store"
)

var (
	// errors
	ErrNotFound            = errors.New("transaction not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAlreadySettled      = errors.New("transaction already settled")
	ErrPrizeAlreadyAwarded = errors.New("prize already awarded for this attempt")
	ErrAttemptNotFound     = errors.New("exam attempt not found")
)

type Service struct {
	store    store.Store
	mailSvc  core.EmailService
	conf     *core.Config
	validate *validator.Validate
}

func NewService(st store.Store, mailSvc core.EmailService, conf *core.Config, validate *validator.Validate) *Service {
	return &Service{
		store:    st,
		mailSvc:  mailSvc,
		conf:     conf,
		validate: validate,
	}
}

// RequestDeposit files a pending deposit for the given user. An admin
// settles it later via Settle.
func (svc *Service) RequestDeposit(ctx context.Context, usr user.User, dr DepositRequest) (Transaction, error) {
	if err := dr.Validate(svc); err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		UID:       usr.UID,
		UserName:  usr.Name,
		Amount:    dr.Amount,
		Method:    dr.Method,
		Type:      TypeDeposit,
		Status:    StatusPending,
		Timestamp: core.NowMillis(),
	}
	id, err := svc.store.Push(ctx, "transactions", tx)
	if err != nil {
		return Transaction{}, err
	}
	tx.ID = id
	return tx, nil
}

// History returns the user's own transactions, most recent first.
func (svc *Service) History(ctx context.Context, uid string) ([]Transaction, error) {
	all, err := svc.QueryAll(ctx)
	if err != nil {
		return nil, err
	}
	own := make([]Transaction, 0, len(all))
	for _, tx := range all {
		if tx.UID == uid {
			own = append(own, tx)
		}
	}
	return own, nil
}

// QueryAll returns every transaction, most recent first.
func (svc *Service) QueryAll(ctx context.Context) ([]Transaction, error) {
	raw, err := svc.store.Get(ctx, "transactions")
	if err != nil {
		return nil, err
	}
	entries, err := store.DecodeMap(raw)
	if err != nil {
		return nil, err
	}

	txs := make([]Transaction, 0, len(entries))
	for id, entry := range entries {
		var tx Transaction
		if _, err = store.Decode(entry, &tx); err != nil {
			return nil, err
		}
		tx.ID = id
		txs = append(txs, tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Timestamp > txs[j].Timestamp })
	return txs, nil
}

// Settle approves or rejects a pending deposit. The status transition is
// guarded so a transaction settles exactly once; approval credits the
// user's balance and emails them.
func (svc *Service) Settle(ctx context.Context, id string, approve bool) (Transaction, error) {
	var settled Transaction
	err := svc.store.Transact(ctx, store.JoinPath("transactions", id), func(cur json.RawMessage) (interface{}, error) {
		found, err := store.Decode(cur, &settled)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotFound
		}
		if !settled.IsPending() {
			return nil, ErrAlreadySettled
		}
		if approve {
			settled.Status = StatusApproved
		} else {
			settled.Status = StatusRejected
		}
		return settled, nil
	})
	if err != nil {
		return Transaction{}, err
	}
	settled.ID = id

	if approve {
		if err = svc.CreditBalance(ctx, settled.UID, settled.Amount); err != nil {
			// put the deposit back to pending so it can be settled again
			if rerr := svc.setStatus(ctx, id, StatusPending); rerr != nil {
				return Transaction{}, errors.Wrap(rerr, "reopening deposit after failed credit")
			}
			return Transaction{}, errors.Wrap(err, "crediting approved deposit")
		}
		svc.sendDepositApprovedEmail(ctx, settled)
	}
	return settled, nil
}

func (svc *Service) setStatus(ctx context.Context, id, status string) error {
	return svc.store.Transact(ctx, store.JoinPath("transactions", id), func(cur json.RawMessage) (interface{}, error) {
		var tx Transaction
		found, err := store.Decode(cur, &tx)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, ErrNotFound
		}
		tx.Status = status
		return tx, nil
	})
}

// DebitFee atomically deducts amount from the user's balance, failing when
// the balance does not cover it.
func (svc *Service) DebitFee(ctx context.Context, uid string, amount int64) error {
	return svc.adjustBalance(ctx, uid, -amount)
}

// CreditBalance atomically adds amount to the user's balance.
func (svc *Service) CreditBalance(ctx context.Context, uid string, amount int64) error {
	return svc.adjustBalance(ctx, uid, amount)
}

func (svc *Service) adjustBalance(ctx context.Context, uid string, delta int64) error {
	return svc.store.Transact(ctx, store.JoinPath("users", uid), func(cur json.RawMessage) (interface{}, error) {
		var usr user.User
		found, err := store.Decode(cur, &usr)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, user.ErrNotFound
		}
		if usr.Balance+delta < 0 {
			return nil, ErrInsufficientBalance
		}
		usr.Balance += delta
		return usr, nil
	})
}

// AwardPrize credits a participant's prize and marks the attempt, at most
// once per attempt. The mark is guarded on the attempt document itself.
func (svc *Service) AwardPrize(ctx context.Context, examID, uid string, amount int64) error {
	attemptPath := store.JoinPath("exam_attempts", examID, uid)
	err := svc.store.Transact(ctx, attemptPath, func(cur json.RawMessage) (interface{}, error) {
		attempt, err := store.DecodeMap(cur)
		if err != nil {
			return nil, err
		}
		if cur == nil || len(attempt) == 0 {
			return nil, ErrAttemptNotFound
		}
		if raw, ok := attempt["prizeAwarded"]; ok && string(raw) != "null" {
			return nil, ErrPrizeAlreadyAwarded
		}
		attempt["prizeAwarded"] = mustMarshal(amount)
		return attempt, nil
	})
	if err != nil {
		return err
	}
	return svc.CreditBalance(ctx, uid, amount)
}

func (svc *Service) sendDepositApprovedEmail(ctx context.Context, tx Transaction) {
	raw, err := svc.store.Get(ctx, store.JoinPath("users", tx.UID))
	if err != nil {
		return
	}
	var usr user.User
	if found, err := store.Decode(raw, &usr); err != nil || !found {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Deposit approved",
		Body: fmt.Sprintf("Hi %s,\n\nYour deposit of %d via %s requested on %s has been approved and credited to your %s balance.",
			usr.Name, tx.Amount, tx.Method, core.MillisToTime(tx.Timestamp).Format("Jan 2, 2006"), svc.conf.AppName),
	})
}

func mustMarshal(v interface{}) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
