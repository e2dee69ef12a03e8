package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/coreledger/wallet-ledger/pkg/money"
)

// stubStore is an in-memory Store used by every test in this package.
// WithTx runs fn directly against the same store rather than simulating
// real transaction isolation; tests that need to exercise retry
// behavior install a store that fails a fixed number of times instead.
type stubStore struct {
	accounts     map[string]Account
	wallets      map[string]Wallet
	handles      map[string]string // handle -> wallet id
	externalRefs map[string]string // external ref -> wallet id
	entries      map[string]JournalEntry
	entryOrder   []string // insertion order, oldest first
	lines        []JournalLine
	holds        map[string]Hold
	intents      map[string]PaymentIntent
	refunds      map[string]Refund
	idempotency  map[string]*IdempotencyRecord

	// withTxErrCount, when positive, makes WithTx fail with
	// ErrTransientConflict that many times before it runs fn for real.
	withTxErrCount int
}

func newStubStore() *stubStore {
	return &stubStore{
		accounts:     make(map[string]Account),
		wallets:      make(map[string]Wallet),
		handles:      make(map[string]string),
		externalRefs: make(map[string]string),
		entries:      make(map[string]JournalEntry),
		holds:        make(map[string]Hold),
		intents:      make(map[string]PaymentIntent),
		refunds:      make(map[string]Refund),
		idempotency:  make(map[string]*IdempotencyRecord),
	}
}

func (s *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	if s.withTxErrCount > 0 {
		s.withTxErrCount--
		return ErrTransientConflict
	}
	return fn(ctx, s)
}

func (s *stubStore) LockAccount(ctx context.Context, accountID AccountID) (Account, error) {
	return s.GetAccount(ctx, accountID)
}

func (s *stubStore) GetAccount(ctx context.Context, accountID AccountID) (Account, error) {
	account, ok := s.accounts[accountID.String()]
	if !ok {
		return Account{}, ErrRecipientNotFound
	}
	return account, nil
}

func (s *stubStore) GetAccountByWalletCurrency(ctx context.Context, walletID WalletID, currency money.Currency) (Account, error) {
	for _, account := range s.accounts {
		if account.WalletID == walletID && account.Currency.Equal(currency) {
			return account, nil
		}
	}
	return Account{}, ErrRecipientNotFound
}

func (s *stubStore) GetWalletByHandle(ctx context.Context, handle string) (Wallet, error) {
	walletID, ok := s.handles[handle]
	if !ok {
		return Wallet{}, ErrRecipientNotFound
	}
	return s.wallets[walletID], nil
}

func (s *stubStore) GetWalletByExternalRef(ctx context.Context, externalRef string) (Wallet, error) {
	walletID, ok := s.externalRefs[externalRef]
	if !ok {
		return Wallet{}, ErrRecipientNotFound
	}
	return s.wallets[walletID], nil
}

func (s *stubStore) CreateWallet(ctx context.Context, wallet Wallet) error {
	s.wallets[wallet.WalletID.String()] = wallet
	return nil
}

func (s *stubStore) SetWalletHandle(ctx context.Context, walletID WalletID, handle string) error {
	if _, taken := s.handles[handle]; taken {
		return ErrValidation
	}
	wallet, ok := s.wallets[walletID.String()]
	if !ok {
		return ErrRecipientNotFound
	}
	wallet.Handle = handle
	s.wallets[walletID.String()] = wallet
	s.handles[handle] = walletID.String()
	return nil
}

func (s *stubStore) CreateAccount(ctx context.Context, account Account) error {
	s.accounts[account.AccountID.String()] = account
	return nil
}

func (s *stubStore) UpdateAccountStatus(ctx context.Context, accountID AccountID, status AccountStatus) error {
	account, ok := s.accounts[accountID.String()]
	if !ok {
		return ErrRecipientNotFound
	}
	account.Status = status
	s.accounts[accountID.String()] = account
	return nil
}

func (s *stubStore) SumBuckets(ctx context.Context, accountID AccountID) (available, held money.Amount, err error) {
	available, held = money.Zero, money.Zero
	for _, line := range s.lines {
		if line.AccountID != accountID {
			continue
		}
		switch line.Bucket {
		case BucketAvailable:
			if line.Side == SideCredit {
				available, err = money.Add(available, line.Amount)
			} else {
				available, err = money.Sub(available, line.Amount)
			}
		case BucketHeld:
			if line.Side == SideCredit {
				held, err = money.Add(held, line.Amount)
			} else {
				held, err = money.Sub(held, line.Amount)
			}
		}
		if err != nil {
			return money.Zero, money.Zero, err
		}
	}
	return available, held, nil
}

func (s *stubStore) InsertEntry(ctx context.Context, entry JournalEntry) error {
	if entry.EntryID.IsZero() {
		entry.EntryID = NewGeneratedEntryID()
	}
	s.entries[entry.EntryID.String()] = entry
	s.entryOrder = append(s.entryOrder, entry.EntryID.String())
	s.lines = append(s.lines, entry.Lines...)
	return nil
}

func (s *stubStore) GetEntry(ctx context.Context, entryID EntryID) (JournalEntry, error) {
	entry, ok := s.entries[entryID.String()]
	if !ok {
		return JournalEntry{}, ErrRecipientNotFound
	}
	return entry, nil
}

func (s *stubStore) ListEntries(ctx context.Context, accountID AccountID, before time.Time, limit int) ([]JournalEntry, error) {
	var matched []JournalEntry
	for i := len(s.entryOrder) - 1; i >= 0; i-- {
		entry := s.entries[s.entryOrder[i]]
		if !before.IsZero() && !entry.CreatedAt.Before(before) {
			continue
		}
		for _, line := range entry.Lines {
			if line.AccountID == accountID {
				matched = append(matched, entry)
				break
			}
		}
		if len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (s *stubStore) SumCommittedDebits(ctx context.Context, walletID WalletID, since time.Time) (money.Amount, error) {
	total := money.Zero
	for _, key := range s.entryOrder {
		entry := s.entries[key]
		if entry.InitiatorID != walletID {
			continue
		}
		if entry.CreatedAt.Before(since) {
			continue
		}
		for _, line := range entry.Lines {
			if line.Side == SideDebit {
				var err error
				total, err = money.Add(total, line.Amount)
				if err != nil {
					return money.Zero, err
				}
				break
			}
		}
	}
	return total, nil
}

func (s *stubStore) PutHold(ctx context.Context, hold Hold) error {
	s.holds[hold.HoldID.String()] = hold
	return nil
}

func (s *stubStore) GetHold(ctx context.Context, holdID HoldID) (Hold, error) {
	hold, ok := s.holds[holdID.String()]
	if !ok {
		return Hold{}, ErrHoldNotActive
	}
	return hold, nil
}

func (s *stubStore) UpdateHold(ctx context.Context, hold Hold) error {
	s.holds[hold.HoldID.String()] = hold
	return nil
}

func (s *stubStore) PutIntent(ctx context.Context, intent PaymentIntent) error {
	s.intents[intent.IntentID.String()] = intent
	return nil
}

func (s *stubStore) GetIntent(ctx context.Context, intentID IntentID) (PaymentIntent, error) {
	intent, ok := s.intents[intentID.String()]
	if !ok {
		return PaymentIntent{}, ErrIntentExpired
	}
	return intent, nil
}

func (s *stubStore) UpdateIntent(ctx context.Context, intent PaymentIntent) error {
	s.intents[intent.IntentID.String()] = intent
	return nil
}

func (s *stubStore) PutRefund(ctx context.Context, refund Refund) error {
	s.refunds[refund.RefundID.String()] = refund
	return nil
}

func (s *stubStore) GetRefund(ctx context.Context, refundID RefundID) (Refund, error) {
	refund, ok := s.refunds[refundID.String()]
	if !ok {
		return Refund{}, ErrRecipientNotFound
	}
	return refund, nil
}

func (s *stubStore) SumRefundsForCapture(ctx context.Context, captureEntryID EntryID) (money.Amount, error) {
	total := money.Zero
	for _, refund := range s.refunds {
		if refund.CaptureEntry == captureEntryID && refund.Status == RefundStatusPosted {
			var err error
			total, err = money.Add(total, refund.Amount)
			if err != nil {
				return money.Zero, err
			}
		}
	}
	return total, nil
}

func (s *stubStore) idempotencyRecordKey(apiKeyID APIKeyID, key IdempotencyKey) string {
	return apiKeyID.String() + ":" + key.String()
}

func (s *stubStore) IdempotencyReserve(ctx context.Context, apiKeyID APIKeyID, key IdempotencyKey, fingerprint string) (IdempotencyReservation, error) {
	recordKey := s.idempotencyRecordKey(apiKeyID, key)
	existing, ok := s.idempotency[recordKey]
	if !ok {
		s.idempotency[recordKey] = &IdempotencyRecord{
			APIKeyID:    apiKeyID,
			Key:         key,
			Status:      IdempotencyStatusInFlight,
			Fingerprint: fingerprint,
		}
		return IdempotencyReservation{Outcome: IdempotencyOutcomeFresh}, nil
	}
	if existing.Fingerprint != fingerprint {
		return IdempotencyReservation{Outcome: IdempotencyOutcomeConflictMismatch}, nil
	}
	switch existing.Status {
	case IdempotencyStatusInFlight:
		return IdempotencyReservation{Outcome: IdempotencyOutcomeConflictInProgress}, nil
	default:
		return IdempotencyReservation{Outcome: IdempotencyOutcomeReplay, Snapshot: existing.Snapshot}, nil
	}
}

func (s *stubStore) IdempotencyComplete(ctx context.Context, apiKeyID APIKeyID, key IdempotencyKey, status IdempotencyStatus, snapshot []byte) error {
	recordKey := s.idempotencyRecordKey(apiKeyID, key)
	record, ok := s.idempotency[recordKey]
	if !ok {
		return ErrStoreError
	}
	record.Status = status
	record.Snapshot = snapshot
	return nil
}

// seedAvailable credits amount directly into accountID's available
// bucket, bypassing InsertEntry's balance bookkeeping so tests can set
// up a starting balance without a matching counter-leg.
func (s *stubStore) seedAvailable(accountID AccountID, amount money.Amount) {
	s.lines = append(s.lines, JournalLine{AccountID: accountID, Side: SideCredit, Amount: amount, Bucket: BucketAvailable})
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustNewService(tb testing.TB, store Store, options ...ServiceOption) *Service {
	tb.Helper()
	service, err := NewService(store, fixedClock(time.Unix(1_700_000_000, 0).UTC()), options...)
	if err != nil {
		tb.Fatalf("new service: %v", err)
	}
	return service
}

func mustWalletID(tb testing.TB, raw string) WalletID {
	tb.Helper()
	id, err := NewWalletID(raw)
	if err != nil {
		tb.Fatalf("wallet id %q: %v", raw, err)
	}
	return id
}

func mustAccountID(tb testing.TB, raw string) AccountID {
	tb.Helper()
	id, err := NewAccountID(raw)
	if err != nil {
		tb.Fatalf("account id %q: %v", raw, err)
	}
	return id
}

func mustAPIKeyID(tb testing.TB, raw string) APIKeyID {
	tb.Helper()
	id, err := NewAPIKeyID(raw)
	if err != nil {
		tb.Fatalf("api key id %q: %v", raw, err)
	}
	return id
}

func mustHoldID(tb testing.TB, raw string) HoldID {
	tb.Helper()
	id, err := NewHoldID(raw)
	if err != nil {
		tb.Fatalf("hold id %q: %v", raw, err)
	}
	return id
}

func mustIntentID(tb testing.TB, raw string) IntentID {
	tb.Helper()
	id, err := NewIntentID(raw)
	if err != nil {
		tb.Fatalf("intent id %q: %v", raw, err)
	}
	return id
}

func mustEntryID(tb testing.TB, raw string) EntryID {
	tb.Helper()
	id, err := NewEntryID(raw)
	if err != nil {
		tb.Fatalf("entry id %q: %v", raw, err)
	}
	return id
}

func mustIdempotencyKey(tb testing.TB, raw string) IdempotencyKey {
	tb.Helper()
	key, err := NewIdempotencyKey(raw)
	if err != nil {
		tb.Fatalf("idempotency key %q: %v", raw, err)
	}
	return key
}

func mustCurrency(tb testing.TB, raw string) money.Currency {
	tb.Helper()
	currency, err := money.NewCurrency(raw)
	if err != nil {
		tb.Fatalf("currency %q: %v", raw, err)
	}
	return currency
}

func mustPositiveAmount(tb testing.TB, minorUnits int64) money.Amount {
	tb.Helper()
	amount, err := money.NewPositiveAmount(minorUnits)
	if err != nil {
		tb.Fatalf("amount %d: %v", minorUnits, err)
	}
	return amount
}

// newFundedAccount creates a wallet and one active account for it in
// currency, credits available with amount, and returns both ids.
func newFundedAccount(tb testing.TB, store *stubStore, currency money.Currency, available int64) (WalletID, AccountID) {
	tb.Helper()
	walletID := NewGeneratedWalletID()
	accountID := NewGeneratedAccountID()
	if err := store.CreateWallet(context.Background(), Wallet{WalletID: walletID, CreatedAt: time.Now()}); err != nil {
		tb.Fatalf("create wallet: %v", err)
	}
	account := Account{
		AccountID: accountID,
		WalletID:  walletID,
		Currency:  currency,
		Type:      AccountTypeUser,
		Status:    AccountStatusActive,
		CreatedAt: time.Now(),
	}
	if err := store.CreateAccount(context.Background(), account); err != nil {
		tb.Fatalf("create account: %v", err)
	}
	if available > 0 {
		amount, err := money.NewAmount(available)
		if err != nil {
			tb.Fatalf("seed amount: %v", err)
		}
		store.seedAvailable(accountID, amount)
	}
	return walletID, accountID
}

// identityWithScopes builds a CallerIdentity carrying exactly the given
// scopes, with no spend ceiling.
func identityWithScopes(apiKeyID APIKeyID, walletID WalletID, scopes ...Scope) CallerIdentity {
	scopeSet := make(map[Scope]bool, len(scopes))
	for _, scope := range scopes {
		scopeSet[scope] = true
	}
	return CallerIdentity{APIKeyID: apiKeyID, WalletID: walletID, Scopes: scopeSet}
}
