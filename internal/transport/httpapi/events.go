package httpapi

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"mediafetch/internal/storage"
)

// eventFilter reads ?all=1 and ?limit=N. It aborts c on bad input.
func eventFilter(c *gin.Context) storage.EventFilter {
	var f storage.EventFilter
	if raw := c.Query("all"); raw != "" {
		all, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "all must be a boolean")
			return f
		}
		f.IncludeDismissed = all
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return f
		}
		f.Limit = n
	}
	return f
}
