package httpapi

import "github.com/gin-gonic/gin"

func writeError(c *gin.Context, appErr *AppError) {
	c.JSON(appErr.Status, appErr)
}

// writeDomainError maps a core error to its AppError and writes it.
// Call sites pass the raw error returned by a Service method.
func writeDomainError(c *gin.Context, err error) {
	writeError(c, mapError(err))
}
