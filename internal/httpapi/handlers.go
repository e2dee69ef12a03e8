package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

// balanceCache is the read-through acceleration Handler.getBalance
// consults before falling through to the authoritative store read.
// internal/cache.BalanceCache satisfies this; nil-safe callers pass a
// nil Handler.cache when no cache backend is configured.
type balanceCache interface {
	Get(ctx context.Context, walletID, currency string) (ledger.Balance, bool)
	Set(ctx context.Context, walletID string, balance ledger.Balance)
}

// Handler exposes the ledger Service over HTTP. It owns no storage of
// its own; every call is a thin translation between JSON and the core.
type Handler struct {
	service *ledger.Service
	cache   balanceCache
}

func NewHandler(service *ledger.Service) *Handler {
	return &Handler{service: service}
}

// WithBalanceCache attaches a read-through balance cache. Balance reads
// check it first and populate it on a miss; every other handler is
// unaffected, since only Balance is served from a cache-aside path.
func (h *Handler) WithBalanceCache(cache balanceCache) *Handler {
	h.cache = cache
	return h
}

func (h *Handler) getBalance(c *gin.Context) {
	walletID, currency, ok := h.parseWalletCurrencyParams(c)
	if !ok {
		return
	}
	if !callerIdentity(c).HasScope(ledger.ScopeRead) {
		writeDomainError(c, ledger.ErrForbiddenScope)
		return
	}
	ctx := c.Request.Context()
	if h.cache != nil {
		if balance, found := h.cache.Get(ctx, walletID.String(), currency.String()); found {
			c.JSON(http.StatusOK, newBalanceResponse(balance))
			return
		}
	}
	balance, err := h.service.Balance(ctx, callerIdentity(c), walletID, currency)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if h.cache != nil {
		h.cache.Set(ctx, walletID.String(), balance)
	}
	c.JSON(http.StatusOK, newBalanceResponse(balance))
}

func (h *Handler) listTransactions(c *gin.Context) {
	walletID, currency, ok := h.parseWalletCurrencyParams(c)
	if !ok {
		return
	}
	before, err := ledger.DecodeCursor(c.Query("cursor"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	entries, err := h.service.ListTransactions(c.Request.Context(), callerIdentity(c), walletID, currency, before, limit)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	resp := listTransactionsResponse{Entries: make([]journalEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, newJournalEntryResponse(entry))
	}
	if len(entries) > 0 {
		last := entries[len(entries)-1]
		resp.NextCursor = ledger.EncodeCursor(last.CreatedAt, last.EntryID)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createTransfer(c *gin.Context) {
	var req transferRequest
	idempotencyKey, fingerprint, ok := bindIdempotent(c, &req)
	if !ok {
		return
	}
	payerWalletID, err := ledger.NewWalletID(req.PayerWalletID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	amount, err := money.NewPositiveAmount(req.AmountMinor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entry, err := h.service.Transfer(c.Request.Context(), callerIdentity(c), payerWalletID, currency, req.Recipient, amount, req.ReferenceID, req.Metadata, idempotencyKey, fingerprint)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJournalEntryResponse(entry))
}

func (h *Handler) createHold(c *gin.Context) {
	var req holdCreateRequest
	idempotencyKey, fingerprint, ok := bindIdempotent(c, &req)
	if !ok {
		return
	}
	payerWalletID, err := ledger.NewWalletID(req.PayerWalletID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	amount, err := money.NewPositiveAmount(req.AmountMinor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	expiresAt := time.Now().Add(time.Duration(req.ExpiresInSeconds) * time.Second)
	hold, err := h.service.HoldCreate(c.Request.Context(), callerIdentity(c), payerWalletID, currency, amount, expiresAt, idempotencyKey, fingerprint)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newHoldResponse(hold))
}

func (h *Handler) captureHold(c *gin.Context) {
	var req holdCaptureRequest
	idempotencyKey, fingerprint, ok := bindIdempotent(c, &req)
	if !ok {
		return
	}
	holdID, err := ledger.NewHoldID(c.Param("hold_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	captured, err := money.NewPositiveAmount(req.CapturedMinor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entry, remaining, err := h.service.HoldCapture(c.Request.Context(), callerIdentity(c), holdID, req.Payee, captured, idempotencyKey, fingerprint)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newHoldCaptureResponse(entry, remaining))
}

func (h *Handler) releaseHold(c *gin.Context) {
	idempotencyKey, fingerprint, ok := bindIdempotent(c, &struct{}{})
	if !ok {
		return
	}
	holdID, err := ledger.NewHoldID(c.Param("hold_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entry, err := h.service.HoldRelease(c.Request.Context(), callerIdentity(c), holdID, idempotencyKey, fingerprint)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJournalEntryResponse(entry))
}

func (h *Handler) createIntent(c *gin.Context) {
	var req intentCreateRequest
	idempotencyKey, fingerprint, ok := bindIdempotent(c, &req)
	if !ok {
		return
	}
	payeeWalletID, err := ledger.NewWalletID(req.PayeeWalletID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	amount, err := money.NewPositiveAmount(req.AmountMinor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	expiresAt := time.Now().Add(time.Duration(req.ExpiresInSeconds) * time.Second)
	intent, err := h.service.IntentCreate(c.Request.Context(), callerIdentity(c), payeeWalletID, currency, amount, expiresAt, req.Metadata, idempotencyKey, fingerprint)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newIntentResponse(intent))
}

func (h *Handler) payIntent(c *gin.Context) {
	var req intentPayRequest
	idempotencyKey, fingerprint, ok := bindIdempotent(c, &req)
	if !ok {
		return
	}
	intentID, err := ledger.NewIntentID(c.Param("intent_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	payerWalletID, err := ledger.NewWalletID(req.PayerWalletID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	entry, err := h.service.IntentPay(c.Request.Context(), callerIdentity(c), intentID, payerWalletID, idempotencyKey, fingerprint)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newJournalEntryResponse(entry))
}

func (h *Handler) createRefund(c *gin.Context) {
	var req refundRequest
	idempotencyKey, fingerprint, ok := bindIdempotent(c, &req)
	if !ok {
		return
	}
	captureEntryID, err := ledger.NewEntryID(req.CaptureEntryID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	amount, err := money.NewPositiveAmount(req.AmountMinor)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	refund, err := h.service.Refund(c.Request.Context(), callerIdentity(c), captureEntryID, amount, idempotencyKey, fingerprint)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newRefundResponse(refund))
}

func (h *Handler) createWallet(c *gin.Context) {
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errMalformedBody)
		return
	}
	wallet, err := h.service.CreateWallet(c.Request.Context(), callerIdentity(c), req.DisplayName)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newWalletResponse(wallet))
}

func (h *Handler) setHandle(c *gin.Context) {
	walletID, err := ledger.NewWalletID(c.Param("wallet_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	var req setHandleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errMalformedBody)
		return
	}
	if err := h.service.SetHandle(c.Request.Context(), callerIdentity(c), walletID, req.Handle); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) createAccount(c *gin.Context) {
	walletID, err := ledger.NewWalletID(c.Param("wallet_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errMalformedBody)
		return
	}
	currency, err := money.NewCurrency(req.Currency)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	account, err := h.service.CreateAccount(c.Request.Context(), callerIdentity(c), walletID, currency, ledger.AccountType(req.Type))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAccountResponse(account))
}

func (h *Handler) freezeAccount(c *gin.Context) {
	h.setAccountStatus(c, h.service.FreezeAccount)
}

func (h *Handler) unfreezeAccount(c *gin.Context) {
	h.setAccountStatus(c, h.service.UnfreezeAccount)
}

// accountStatusOp matches the signature shared by FreezeAccount and
// UnfreezeAccount, letting their near-identical handlers collapse to
// one body parameterized on which Service method to call.
type accountStatusOp func(ctx context.Context, identity ledger.CallerIdentity, accountID ledger.AccountID) error

func (h *Handler) setAccountStatus(c *gin.Context, op accountStatusOp) {
	accountID, err := ledger.NewAccountID(c.Param("account_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if err := op(c.Request.Context(), callerIdentity(c), accountID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) parseWalletCurrencyParams(c *gin.Context) (ledger.WalletID, money.Currency, bool) {
	walletID, err := ledger.NewWalletID(c.Param("wallet_id"))
	if err != nil {
		writeDomainError(c, err)
		return ledger.WalletID{}, money.Currency{}, false
	}
	currency, err := money.NewCurrency(c.Param("currency"))
	if err != nil {
		writeDomainError(c, err)
		return ledger.WalletID{}, money.Currency{}, false
	}
	return walletID, currency, true
}
