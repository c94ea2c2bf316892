package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mediafetch/internal/storage"
	logx "mediafetch/pkg/logx"
)

// abortWithError maps store errors onto status codes. Unknown errors are
// logged and reported without detail.
func abortWithError(c *gin.Context, log logx.Logger, err error) {
	var ve *storage.ValidationError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: ve.Error(), Field: ve.Field})
	default:
		log.Error("request failed", logx.String("path", c.FullPath()), logx.Err(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
