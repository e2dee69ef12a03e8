// Package authn resolves an incoming bearer token into a ledger.CallerIdentity.
package authn

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
	"github.com/coreledger/wallet-ledger/pkg/money"
)

// ErrMissingToken is returned when no bearer token was presented.
var ErrMissingToken = errors.New("authn: missing bearer token")

// tokenClaims is the wire shape of a ledger access token. Scopes are
// carried as a plain string list rather than a bitmask so tokens stay
// human-readable in day-to-day debugging.
type tokenClaims struct {
	jwt.RegisteredClaims
	APIKeyID     string   `json:"api_key_id"`
	WalletID     string   `json:"wallet_id"`
	Scopes       []string `json:"scopes"`
	SpendCeiling int64    `json:"spend_ceiling_minor"`
	Currency     string   `json:"spend_ceiling_currency"`
}

// Issuer signs access tokens for a caller identity. Only used by
// ledgerctl and test setup; the server side only ever validates.
type Issuer struct {
	secret []byte
	expiry time.Duration
}

func NewIssuer(secret string, expiry time.Duration) Issuer {
	return Issuer{secret: []byte(secret), expiry: expiry}
}

// Issue mints a signed token carrying the given identity's scopes and
// spend ceiling. The ceiling is written as a bare minor-unit amount with
// no currency; a zero amount means "no ceiling".
func (issuer Issuer) Issue(identity ledger.CallerIdentity) (string, error) {
	now := time.Now()
	scopes := make([]string, 0, len(identity.Scopes))
	for scope, granted := range identity.Scopes {
		if granted {
			scopes = append(scopes, string(scope))
		}
	}
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(issuer.expiry)),
		},
		APIKeyID:     identity.APIKeyID.String(),
		WalletID:     identity.WalletID.String(),
		Scopes:       scopes,
		SpendCeiling: identity.SpendCeiling.Int64(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(issuer.secret)
	if err != nil {
		return "", fmt.Errorf("authn: sign token: %w", err)
	}
	return signed, nil
}

// Validator parses and verifies bearer tokens into a CallerIdentity.
// It is the counterpart wired into every httpapi request.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) Validator {
	return Validator{secret: []byte(secret)}
}

// Validate parses tokenString and returns the identity it carries. The
// spend ceiling is read as a bare minor-unit amount; no currency is
// read for it.
func (validator Validator) Validate(tokenString string) (ledger.CallerIdentity, error) {
	if tokenString == "" {
		return ledger.CallerIdentity{}, ErrMissingToken
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return validator.secret, nil
	})
	if err != nil {
		return ledger.CallerIdentity{}, fmt.Errorf("authn: validate token: %w", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return ledger.CallerIdentity{}, fmt.Errorf("authn: invalid token claims")
	}

	apiKeyID, err := ledger.NewAPIKeyID(claims.APIKeyID)
	if err != nil {
		return ledger.CallerIdentity{}, fmt.Errorf("authn: token api_key_id: %w", err)
	}
	identity := ledger.CallerIdentity{
		APIKeyID: apiKeyID,
		Scopes:   make(map[ledger.Scope]bool, len(claims.Scopes)),
	}
	if claims.WalletID != "" {
		walletID, err := ledger.NewWalletID(claims.WalletID)
		if err != nil {
			return ledger.CallerIdentity{}, fmt.Errorf("authn: token wallet_id: %w", err)
		}
		identity.WalletID = walletID
	}
	for _, scope := range claims.Scopes {
		identity.Scopes[ledger.Scope(scope)] = true
	}
	if claims.SpendCeiling > 0 {
		if ceiling, err := money.NewAmount(claims.SpendCeiling); err == nil {
			identity.SpendCeiling = ceiling
		}
	}
	return identity, nil
}
