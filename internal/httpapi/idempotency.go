package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

const idempotencyHeader = "Idempotency-Key"

// bindIdempotent reads the Idempotency-Key header and the raw request
// body, hashes the body into a fingerprint, unmarshals it into dst, and
// checks dst's `binding` tags, rejecting a failure as a malformed body.
// The fingerprint lets the executor detect a key reused with a
// different payload without the core ever seeing raw bytes.
func bindIdempotent(c *gin.Context, dst any) (ledger.IdempotencyKey, string, bool) {
	rawKey := c.GetHeader(idempotencyHeader)
	if rawKey == "" {
		writeError(c, errMissingIdempotencyKey)
		return ledger.IdempotencyKey{}, "", false
	}
	key, err := ledger.NewIdempotencyKey(rawKey)
	if err != nil {
		writeError(c, &AppError{Status: 400, Code: "INVALID_IDEMPOTENCY_KEY", Message: err.Error()})
		return ledger.IdempotencyKey{}, "", false
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, errInternal)
		return ledger.IdempotencyKey{}, "", false
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			writeError(c, errMalformedBody)
			return ledger.IdempotencyKey{}, "", false
		}
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		writeError(c, errMalformedBody)
		return ledger.IdempotencyKey{}, "", false
	}
	sum := sha256.Sum256(body)
	return key, hex.EncodeToString(sum[:]), true
}
