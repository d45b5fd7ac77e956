// Package http exposes the session actions and observable state over
// gin.
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Patellll34/RiversideClone/internal/core"
	"github.com/Patellll34/RiversideClone/internal/domain"
	"github.com/Patellll34/RiversideClone/internal/session"
)

type API struct {
	hub        *session.Hub
	rooms      core.RoomStore
	recordings core.RecordingStore
	limiter    *JoinRateLimiter
}

func NewAPI(hub *session.Hub, rooms core.RoomStore, recordings core.RecordingStore, limiter *JoinRateLimiter) *API {
	return &API{hub: hub, rooms: rooms, recordings: recordings, limiter: limiter}
}

// status maps the action error taxonomy onto transport codes.
func status(err error) int {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrNoActiveRecording):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRoomInactive),
		errors.Is(err, domain.ErrRoomFull),
		errors.Is(err, domain.ErrAlreadyPresent),
		errors.Is(err, domain.ErrAlreadyRecording),
		errors.Is(err, domain.ErrNoActiveRoom):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMediaAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRoomNameEmpty):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func fail(c *gin.Context, err error) {
	c.JSON(status(err), gin.H{"error": err.Error()})
}

func (a *API) coordinator(c *gin.Context) (*session.Coordinator, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthRequired.Error()})
		return nil, false
	}
	return a.hub.GetOrCreate(user), true
}

type createRoomRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (a *API) CreateRoom(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	if !a.limiter.Allow(user.ID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
		return
	}
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	room, err := coord.CreateRoom(c.Request.Context(), domain.RoomName(req.Name), req.Description)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

type joinRoomRequest struct {
	Code string `json:"code" binding:"required"`
}

func (a *API) JoinRoom(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	user, _ := currentUser(c)
	if !a.limiter.Allow(user.ID) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many attempts"})
		return
	}
	var req joinRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code is required"})
		return
	}
	room, err := coord.JoinRoom(c.Request.Context(), req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (a *API) LeaveRoom(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	if err := coord.Leave(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": true})
}

func (a *API) EndRoom(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	if err := coord.EndRoom(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ended": true})
}

func (a *API) MyRooms(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthRequired.Error()})
		return
	}
	rooms, err := a.rooms.ListByHost(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (a *API) State(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	snap, err := coord.Snapshot(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

type startRecordingRequest struct {
	Title string `json:"title" binding:"required"`
}

func (a *API) StartRecording(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	var req startRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}
	rec, err := coord.StartRecording(c.Request.Context(), req.Title)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type stopRecordingRequest struct {
	ID      domain.RecordingID `json:"id" binding:"required"`
	Elapsed int                `json:"elapsed"`
}

func (a *API) StopRecording(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	var req stopRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}
	if err := coord.StopRecording(c.Request.Context(), req.ID, req.Elapsed); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": true})
}

func (a *API) MyRecordings(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": domain.ErrAuthRequired.Error()})
		return
	}
	recs, err := a.recordings.ListByHost(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

func (a *API) ToggleVideo(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	on, err := coord.ToggleVideo(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": on})
}

func (a *API) ToggleAudio(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	on, err := coord.ToggleAudio(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audio": on})
}

func (a *API) StartScreenShare(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	if err := coord.StartScreenShare(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"screen": true})
}

func (a *API) StopScreenShare(c *gin.Context) {
	coord, ok := a.coordinator(c)
	if !ok {
		return
	}
	if err := coord.StopScreenShare(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"screen": false})
}
