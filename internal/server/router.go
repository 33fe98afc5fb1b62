// Package server assembles the HTTP router.
package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jimdaga/friend-frenzy/internal/auth"
	"github.com/jimdaga/friend-frenzy/internal/config"
	"github.com/jimdaga/friend-frenzy/internal/health"
	"github.com/jimdaga/friend-frenzy/internal/logger"
	"github.com/jimdaga/friend-frenzy/internal/polls"
	"github.com/jimdaga/friend-frenzy/internal/questions"
)

const sessionName = "frenzy_session"

// Deps are the handlers and services the router mounts.
type Deps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Polls    *polls.Handler
	Insights polls.InsightsService
	Bank     *questions.Bank
	// Linker is nil when creator login is disabled.
	Linker      auth.CreatorLinker
	AuthEnabled bool
	ReadyChecks map[string]health.Checker
}

// NewRouter builds the gin engine with every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(d.Logger))

	store := cookie.NewStore([]byte(d.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   d.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/health/ready", health.ReadyHandler(d.ReadyChecks))

	if d.AuthEnabled {
		r.GET("/auth/google", auth.HandleLogin)
		r.GET("/auth/google/callback", auth.HandleCallback(d.Linker, d.Logger))
		r.POST("/auth/logout", auth.HandleLogout)
	}

	api := r.Group("/api")
	{
		api.GET("/questions", questions.ListHandler(d.Bank))
		api.GET("/me", auth.HandleMe)

		api.POST("/polls", d.Polls.CreatePoll)
		api.GET("/polls/:id", d.Polls.GetPoll)
		api.POST("/polls/:id/votes", d.Polls.CastVote)
		api.GET("/polls/:id/results", d.Polls.Results)
		api.POST("/polls/:id/confessions", d.Polls.AddConfession)
		api.PATCH("/polls/:id/admin", d.Polls.Admin)
		api.DELETE("/polls/:id/admin", d.Polls.DeletePoll)
		api.GET("/polls/:id/ai-insights", polls.InsightsHandler(d.Insights))

		api.GET("/creators/check", d.Polls.CheckCreator)
		api.GET("/creators/polls", auth.RequireAuth(), d.Polls.CreatorPolls)
	}

	return r
}
