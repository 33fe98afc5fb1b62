package auth

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// RequireAuth is a middleware that ensures the creator is signed in. API
// requests get a 401 JSON body, page requests are sent to the login flow.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, _ := session.Get(SessionUserID).(string)

		if userID == "" {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Please sign in."})
				return
			}
			c.Redirect(http.StatusFound, "/auth/google")
			c.Abort()
			return
		}

		// Set context values for downstream handlers
		c.Set(SessionUserID, userID)
		c.Set(SessionUserEmail, session.Get(SessionUserEmail))
		c.Set(SessionUserName, session.Get(SessionUserName))

		c.Next()
	}
}
