package dto

import (
	"time"

	"github.com/iho/ledgercore/internal/domain"
	"github.com/iho/ledgercore/internal/usecase"
)

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	AllowNegative bool      `json:"allow_negative"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	return &AccountResponse{
		ID:            a.ID,
		Currency:      a.Currency.Code(),
		Status:        string(a.Status),
		AllowNegative: a.AllowNegative,
		CreatedAt:     a.CreatedAt,
	}
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// BalanceResponse represents an account balance.
type BalanceResponse struct {
	AccountID    string `json:"account_id"`
	Currency     string `json:"currency"`
	Balance      string `json:"balance"`
	BalanceMinor int64  `json:"balance_minor"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// BalanceFromView converts a balance view to response.
func BalanceFromView(v *usecase.BalanceView) *BalanceResponse {
	return &BalanceResponse{
		AccountID:    v.AccountID,
		Currency:     v.Currency.Code(),
		Balance:      domain.FormatMinor(v.BalanceMinor, v.Currency),
		BalanceMinor: v.BalanceMinor,
		AsOfSequence: v.AsOfSequence,
	}
}

// TransferResultResponse is returned for a transfer command.
type TransferResultResponse struct {
	TransferID string `json:"transfer_id"`
	CommandID  string `json:"command_id"`
	Replayed   bool   `json:"replayed"`
}

// TransferResultFromOutcome converts a command outcome to response.
func TransferResultFromOutcome(o usecase.TransferOutcome) *TransferResultResponse {
	return &TransferResultResponse{
		TransferID: o.TransferID,
		CommandID:  o.CommandID,
		Replayed:   o.Replayed,
	}
}

// TransferResponse represents a transfer in API responses.
type TransferResponse struct {
	CreatedAt     time.Time `json:"created_at"`
	ID            string    `json:"id"`
	CommandID     string    `json:"command_id"`
	FromAccountID string    `json:"from_account_id"`
	ToAccountID   string    `json:"to_account_id"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	AmountMinor   int64     `json:"amount_minor"`
}

// TransferFromDomain converts domain transfer to response.
func TransferFromDomain(t *domain.Transfer) *TransferResponse {
	return &TransferResponse{
		ID:            t.ID,
		CommandID:     t.CommandID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		Amount:        domain.FormatMinor(t.Money.Amount(), t.Money.Currency()),
		Currency:      t.Money.Currency().Code(),
		AmountMinor:   t.Money.Amount(),
		CreatedAt:     t.CreatedAt,
	}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	CreatedAt   time.Time `json:"created_at"`
	ID          string    `json:"id"`
	TransferID  string    `json:"transfer_id"`
	AccountID   string    `json:"account_id"`
	Direction   string    `json:"direction"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	AmountMinor int64     `json:"amount_minor"`
	Sequence    int64     `json:"sequence"`
}

// EntryFromDomain converts domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	return &EntryResponse{
		ID:          e.ID,
		TransferID:  e.TransferID,
		AccountID:   e.AccountID,
		Direction:   string(e.Direction),
		Amount:      domain.FormatMinor(e.Money.Amount(), e.Money.Currency()),
		Currency:    e.Money.Currency().Code(),
		AmountMinor: e.Money.Amount(),
		Sequence:    e.Sequence,
		CreatedAt:   e.CreatedAt,
	}
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// ListEntriesResponse represents a page of an account's entries.
// NextAfterSequence is the cursor for the following page, zero when the page is empty.
type ListEntriesResponse struct {
	Entries           []*EntryResponse `json:"entries"`
	NextAfterSequence int64            `json:"next_after_sequence,omitempty"`
}

// AccountReportResponse is the result of verifying one account.
type AccountReportResponse struct {
	AccountID        string   `json:"account_id"`
	Problems         []string `json:"problems,omitempty"`
	EntryCount       int      `json:"entry_count"`
	LastSequence     int64    `json:"last_sequence"`
	ComputedBalance  int64    `json:"computed_balance_minor"`
	SnapshotBalance  int64    `json:"snapshot_balance_minor"`
	SnapshotSequence int64    `json:"snapshot_sequence"`
	Consistent       bool     `json:"consistent"`
}

// AccountReportFromUseCase converts an account report to response.
func AccountReportFromUseCase(r *usecase.AccountReport) *AccountReportResponse {
	return &AccountReportResponse{
		AccountID:        r.AccountID,
		Problems:         r.Problems,
		EntryCount:       r.EntryCount,
		LastSequence:     r.LastSequence,
		ComputedBalance:  r.ComputedBalance,
		SnapshotBalance:  r.SnapshotBalance,
		SnapshotSequence: r.SnapshotSequence,
		Consistent:       r.Consistent,
	}
}

// TransferReportResponse is the result of verifying one transfer.
type TransferReportResponse struct {
	TransferID string   `json:"transfer_id"`
	Problems   []string `json:"problems,omitempty"`
	EntryCount int      `json:"entry_count"`
	SignedSum  int64    `json:"signed_sum"`
	Consistent bool     `json:"consistent"`
}

// TransferReportFromUseCase converts a transfer report to response.
func TransferReportFromUseCase(r *usecase.TransferReport) *TransferReportResponse {
	return &TransferReportResponse{
		TransferID: r.TransferID,
		Problems:   r.Problems,
		EntryCount: r.EntryCount,
		SignedSum:  r.SignedSum,
		Consistent: r.Consistent,
	}
}

// LedgerReportResponse is the result of verifying the whole ledger.
type LedgerReportResponse struct {
	CheckedAt      time.Time                `json:"checked_at"`
	CurrencyTotals map[string]int64         `json:"currency_totals"`
	Discrepancies  []*AccountReportResponse `json:"discrepancies,omitempty"`
	Problems       []string                 `json:"problems,omitempty"`
	Accounts       int                      `json:"accounts"`
	Consistent     bool                     `json:"consistent"`
}

// LedgerReportFromUseCase converts a ledger report to response.
func LedgerReportFromUseCase(r *usecase.LedgerReport) *LedgerReportResponse {
	resp := &LedgerReportResponse{
		CheckedAt:      r.CheckedAt,
		CurrencyTotals: r.CurrencyTotals,
		Problems:       r.Problems,
		Accounts:       r.Accounts,
		Consistent:     r.Consistent,
	}

	for _, d := range r.Discrepancies {
		resp.Discrepancies = append(resp.Discrepancies, AccountReportFromUseCase(d))
	}

	return resp
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
