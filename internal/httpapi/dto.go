package httpapi

import (
	"time"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

type balanceResponse struct {
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Currency  string `json:"currency"`
}

func newBalanceResponse(balance ledger.Balance) balanceResponse {
	return balanceResponse{
		Available: balance.Available.String(),
		Held:      balance.Held.String(),
		Total:     balance.Total.String(),
		Currency:  balance.Currency.String(),
	}
}

type journalLineResponse struct {
	LineID    string `json:"line_id"`
	AccountID string `json:"account_id"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	Bucket    string `json:"bucket"`
}

type journalEntryResponse struct {
	EntryID       string                `json:"entry_id"`
	Kind          string                `json:"kind"`
	InitiatorID   string                `json:"initiator_wallet_id,omitempty"`
	Currency      string                `json:"currency"`
	ReferenceID   string                `json:"reference_id,omitempty"`
	Metadata      map[string]any        `json:"metadata,omitempty"`
	LinkedEntryID string                `json:"linked_entry_id,omitempty"`
	CreatedAt     time.Time             `json:"created_at"`
	Lines         []journalLineResponse `json:"lines"`
}

func newJournalEntryResponse(entry ledger.JournalEntry) journalEntryResponse {
	lines := make([]journalLineResponse, 0, len(entry.Lines))
	for _, line := range entry.Lines {
		lines = append(lines, journalLineResponse{
			LineID:    line.LineID,
			AccountID: line.AccountID.String(),
			Side:      string(line.Side),
			Amount:    line.Amount.String(),
			Bucket:    string(line.Bucket),
		})
	}
	resp := journalEntryResponse{
		EntryID:     entry.EntryID.String(),
		Kind:        string(entry.Kind),
		InitiatorID: entry.InitiatorID.String(),
		Currency:    entry.Currency.String(),
		ReferenceID: entry.ReferenceID,
		Metadata:    entry.Metadata,
		CreatedAt:   entry.CreatedAt,
		Lines:       lines,
	}
	if !entry.LinkedEntryID.IsZero() {
		resp.LinkedEntryID = entry.LinkedEntryID.String()
	}
	return resp
}

type holdCaptureResponse struct {
	Entry     journalEntryResponse `json:"entry"`
	EntryID   string               `json:"entry_id"`
	Remaining string               `json:"remaining"`
}

func newHoldCaptureResponse(entry ledger.JournalEntry, remaining money.Amount) holdCaptureResponse {
	return holdCaptureResponse{
		Entry:     newJournalEntryResponse(entry),
		EntryID:   entry.EntryID.String(),
		Remaining: remaining.String(),
	}
}

type holdResponse struct {
	HoldID        string    `json:"hold_id"`
	PayerAccount  string    `json:"payer_account_id"`
	Currency      string    `json:"currency"`
	Amount        string    `json:"amount"`
	Remaining     string    `json:"remaining"`
	Status        string    `json:"status"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
	CreatingEntry string    `json:"creating_entry_id"`
}

func newHoldResponse(hold ledger.Hold) holdResponse {
	return holdResponse{
		HoldID:        hold.HoldID.String(),
		PayerAccount:  hold.PayerAccount.String(),
		Currency:      hold.Currency.String(),
		Amount:        hold.Amount.String(),
		Remaining:     hold.Remaining.String(),
		Status:        string(hold.Status),
		ExpiresAt:     hold.ExpiresAt,
		CreatedAt:     hold.CreatedAt,
		CreatingEntry: hold.CreatingEntry.String(),
	}
}

type intentResponse struct {
	IntentID    string         `json:"intent_id"`
	PayeeID     string         `json:"payee_account_id"`
	Currency    string         `json:"currency"`
	Amount      string         `json:"amount"`
	Status      string         `json:"status"`
	ExpiresAt   time.Time      `json:"expires_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	PaidEntryID string         `json:"paid_entry_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func newIntentResponse(intent ledger.PaymentIntent) intentResponse {
	resp := intentResponse{
		IntentID:  intent.IntentID.String(),
		PayeeID:   intent.PayeeID.String(),
		Currency:  intent.Currency.String(),
		Amount:    intent.Amount.String(),
		Status:    string(intent.Status),
		ExpiresAt: intent.ExpiresAt,
		Metadata:  intent.Metadata,
		CreatedAt: intent.CreatedAt,
	}
	if !intent.PaidEntryID.IsZero() {
		resp.PaidEntryID = intent.PaidEntryID.String()
	}
	return resp
}

type refundResponse struct {
	RefundID      string    `json:"refund_id"`
	CaptureEntry  string    `json:"capture_entry_id"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	CreatingEntry string    `json:"creating_entry_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func newRefundResponse(refund ledger.Refund) refundResponse {
	resp := refundResponse{
		RefundID:     refund.RefundID.String(),
		CaptureEntry: refund.CaptureEntry.String(),
		Amount:       refund.Amount.String(),
		Status:       string(refund.Status),
		CreatedAt:    refund.CreatedAt,
	}
	if !refund.CreatingEntry.IsZero() {
		resp.CreatingEntry = refund.CreatingEntry.String()
	}
	return resp
}

type walletResponse struct {
	WalletID    string    `json:"wallet_id"`
	Handle      string    `json:"handle,omitempty"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func newWalletResponse(wallet ledger.Wallet) walletResponse {
	return walletResponse{
		WalletID:    wallet.WalletID.String(),
		Handle:      wallet.Handle,
		DisplayName: wallet.DisplayName,
		CreatedAt:   wallet.CreatedAt,
	}
}

type accountResponse struct {
	AccountID string    `json:"account_id"`
	WalletID  string    `json:"wallet_id"`
	Currency  string    `json:"currency"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountResponse(account ledger.Account) accountResponse {
	return accountResponse{
		AccountID: account.AccountID.String(),
		WalletID:  account.WalletID.String(),
		Currency:  account.Currency.String(),
		Type:      string(account.Type),
		Status:    string(account.Status),
		CreatedAt: account.CreatedAt,
	}
}

type transferRequest struct {
	PayerWalletID string         `json:"payer_wallet_id" binding:"required"`
	Currency      string         `json:"currency" binding:"required"`
	Recipient     string         `json:"recipient" binding:"required"`
	AmountMinor   int64          `json:"amount_minor" binding:"required"`
	ReferenceID   string         `json:"reference_id"`
	Metadata      map[string]any `json:"metadata"`
}

type holdCreateRequest struct {
	PayerWalletID    string `json:"payer_wallet_id" binding:"required"`
	Currency         string `json:"currency" binding:"required"`
	AmountMinor      int64  `json:"amount_minor" binding:"required"`
	ExpiresInSeconds int64  `json:"expires_in_seconds" binding:"required,min=1,max=86400"`
}

type holdCaptureRequest struct {
	Payee         string `json:"payee" binding:"required"`
	CapturedMinor int64  `json:"captured_minor" binding:"required"`
}

type intentCreateRequest struct {
	PayeeWalletID    string         `json:"payee_wallet_id" binding:"required"`
	Currency         string         `json:"currency" binding:"required"`
	AmountMinor      int64          `json:"amount_minor" binding:"required"`
	ExpiresInSeconds int64          `json:"expires_in_seconds" binding:"required,min=1,max=86400"`
	Metadata         map[string]any `json:"metadata"`
}

type intentPayRequest struct {
	PayerWalletID string `json:"payer_wallet_id" binding:"required"`
}

type refundRequest struct {
	CaptureEntryID string `json:"capture_entry_id" binding:"required"`
	AmountMinor    int64  `json:"amount_minor" binding:"required"`
}

type createWalletRequest struct {
	DisplayName string `json:"display_name" binding:"required"`
}

type setHandleRequest struct {
	Handle string `json:"handle" binding:"required"`
}

type createAccountRequest struct {
	Currency string `json:"currency" binding:"required"`
	Type     string `json:"type" binding:"required"`
}

type listTransactionsResponse struct {
	Entries    []journalEntryResponse `json:"entries"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}
