package wallet

// Transaction statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Transaction types
const (
	TypeDeposit    = "deposit"
	TypeWithdrawal = "withdrawal"
)

// Payment methods
const (
	MethodBkash = "bKash"
	MethodNagad = "Nagad"
)

// MinDepositAmount is the smallest deposit a user may request.
const MinDepositAmount = 10

// Transaction records a wallet movement at transactions/{id}. Amounts are
// whole taka. Type withdrawal exists for forward compatibility; only
// deposits can currently be requested.
type Transaction struct {
	ID        string `json:"id"`
	UID       string `json:"uid"`
	UserName  string `json:"userName"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

func (t *Transaction) IsPending() bool { return t.Status == StatusPending }

// DepositRequest is the user-facing payload for filing a deposit.
type DepositRequest struct {
	Amount int64  `json:"amount" validate:"required,min=10"`
	Method string `json:"method" validate:"required,oneof=bKash Nagad"`
}

func (dr *DepositRequest) Validate(svc *Service) error {
	return svc.validate.Struct(dr)
}
