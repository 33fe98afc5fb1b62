package questions

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListHandler serves the whole bank so clients build polls from it.
func ListHandler(b *Bank) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, b)
	}
}
