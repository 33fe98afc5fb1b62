package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/markbates/goth/gothic"
)

// Session keys
const (
	SessionUserID    = "user_id"
	SessionUserEmail = "user_email"
	SessionUserName  = "user_name"
)

// CreatorLinker attaches a login identity to the creator rows created with
// its email.
type CreatorLinker interface {
	LinkCreator(ctx context.Context, email, subject string) (int64, error)
}

func withProvider(c *gin.Context) {
	// Gothic requires the "provider" query parameter
	q := c.Request.URL.Query()
	q.Set("provider", providerName)
	c.Request.URL.RawQuery = q.Encode()
}

// HandleLogin initiates the Google OAuth flow
func HandleLogin(c *gin.Context) {
	withProvider(c)
	gothic.BeginAuthHandler(c.Writer, c.Request)
}

// HandleCallback completes the OAuth flow, links creator rows, and stores
// the identity in the session.
func HandleCallback(linker CreatorLinker, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		withProvider(c)

		gothUser, err := gothic.CompleteUserAuth(c.Writer, c.Request)
		if err != nil {
			logger.Warn("Auth error", "error", err.Error())
			c.Redirect(http.StatusFound, "/?error=auth_failed")
			return
		}

		if linker != nil {
			linked, err := linker.LinkCreator(c.Request.Context(), gothUser.Email, gothUser.UserID)
			if err != nil {
				logger.Error("Failed to link creator", "email", gothUser.Email, "error", err.Error())
			} else if linked > 0 {
				logger.Info("Linked creator rows to login", "email", gothUser.Email, "count", linked)
			}
		}

		session := sessions.Default(c)
		session.Set(SessionUserID, gothUser.UserID)
		session.Set(SessionUserEmail, gothUser.Email)
		session.Set(SessionUserName, gothUser.Name)

		if err := session.Save(); err != nil {
			logger.Error("Session save error", "error", err.Error())
			c.Redirect(http.StatusFound, "/?error=session_failed")
			return
		}

		logger.Info("Creator authenticated", "email", gothUser.Email)
		c.Redirect(http.StatusFound, "/")
	}
}

// HandleLogout clears the session and redirects home
func HandleLogout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()

	if err := session.Save(); err != nil {
		slog.Warn("Session clear error", "error", err.Error())
	}

	c.Redirect(http.StatusFound, "/")
}

// HandleMe returns the signed-in creator or 401.
func HandleMe(c *gin.Context) {
	session := sessions.Default(c)
	userID, _ := session.Get(SessionUserID).(string)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Please sign in."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":    userID,
		"email": session.Get(SessionUserEmail),
		"name":  session.Get(SessionUserName),
	})
}
