package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Patellll34/RiversideClone/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const wsWriteTimeout = 5 * time.Second

// StateStream pushes a snapshot frame to the client whenever the
// user's session state changes. The client never writes anything
// meaningful; reads only serve to detect the close.
func (a *API) StateStream(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthRequired.Error()})
		return
	}
	coord := a.hub.GetOrCreate(user)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := coord.Watch()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// First frame is the current state so the client does not wait
	// for a change.
	snap, err := coord.Snapshot(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws initial snapshot")
		return
	}
	if err := writeFrame(conn, snap); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			log.Info().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("ws state client gone")
			return
		case snap, ok := <-updates:
			if !ok {
				log.Info().Str("module", "adapters.http").Str("user", string(user.ID)).Msg("ws state source closed")
				return
			}
			if err := writeFrame(conn, snap); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("ws state write")
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
