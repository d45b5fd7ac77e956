package http

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Patellll34/RiversideClone/internal/config"
)

func SetupRouter(cfg *config.Config, api *API) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("StudioSessions", store))

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	r.POST("/api/auth/login", Login(cfg.JWTSecret))

	authed := r.Group("/api", JWTAuth(cfg.JWTSecret))

	authed.POST("/rooms", api.CreateRoom)
	authed.GET("/rooms", api.MyRooms)
	authed.POST("/rooms/join", api.JoinRoom)
	authed.POST("/rooms/leave", api.LeaveRoom)
	authed.POST("/rooms/end", api.EndRoom)

	authed.GET("/state", api.State)
	authed.GET("/ws/state", api.StateStream)

	authed.POST("/recordings/start", api.StartRecording)
	authed.POST("/recordings/stop", api.StopRecording)
	authed.GET("/recordings", api.MyRecordings)

	authed.POST("/media/video/toggle", api.ToggleVideo)
	authed.POST("/media/audio/toggle", api.ToggleAudio)
	authed.POST("/media/screen/start", api.StartScreenShare)
	authed.POST("/media/screen/stop", api.StopScreenShare)

	return r
}
