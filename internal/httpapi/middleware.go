package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coreledger/wallet-ledger/internal/authn"
	"github.com/coreledger/wallet-ledger/internal/observability"
	"github.com/coreledger/wallet-ledger/pkg/ledger"
)

const identityContextKey = "caller_identity"

// requireAuth resolves the bearer token on every request into a
// ledger.CallerIdentity and stores it in the gin context. Handlers read
// it back with callerIdentity(c); there is no anonymous path in this
// adapter, since every operation the core exposes requires a scope.
func requireAuth(validator authn.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := authn.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			writeError(c, errMissingToken)
			c.Abort()
			return
		}
		identity, err := validator.Validate(token)
		if err != nil {
			writeError(c, errInvalidToken)
			c.Abort()
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

func callerIdentity(c *gin.Context) ledger.CallerIdentity {
	identity, _ := c.Get(identityContextKey)
	callerIdentity, _ := identity.(ledger.CallerIdentity)
	return callerIdentity
}

// metricsMiddleware records one HTTPRequestsTotal/HTTPRequestDuration
// observation per request, labeled by the route pattern rather than the
// raw path so that path-parameterized routes don't explode cardinality.
func metricsMiddleware(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTP(c.Request.Method, route, statusLabel(c.Writer.Status()), time.Since(start))
	}
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
