package session

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/classpoll/backend/internal/rooms"
	"github.com/classpoll/backend/pkg/response"
)

// Handler exposes the REST boundary for rooms.
type Handler struct {
	coord *Coordinator
}

// NewHandler creates a room REST handler.
func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord}
}

// RegisterRoutes mounts the room endpoints under the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/create", h.Create)
	rg.GET("", h.List)
	rg.GET("/:roomId", h.GetRoom)
	rg.GET("/:roomId/stats", h.GetStats)
	rg.GET("/:roomId/exists", h.Exists)
}

// CreateRequest is the body for POST /api/rooms/create.
type CreateRequest struct {
	TeacherName string `json:"teacherName" binding:"required"`
}

// Create handles POST /api/rooms/create.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "teacherName is required")
		return
	}
	name, err := rooms.ValidateName(req.TeacherName, rooms.MaxTeacherNameLength)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	summary, err := h.coord.CreateRoom(name)
	if err != nil {
		response.Internal(c, "failed to create room")
		return
	}
	response.Created(c, gin.H{
		"roomId":      summary.ID,
		"teacherName": summary.TeacherName,
		"createdAt":   summary.CreatedAt,
	})
}

// List handles GET /api/rooms.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, h.coord.ListRooms())
}

// GetRoom handles GET /api/rooms/:roomId.
func (h *Handler) GetRoom(c *gin.Context) {
	roomID, ok := h.roomID(c)
	if !ok {
		return
	}
	summary, err := h.coord.RoomSummary(roomID)
	if err != nil {
		response.NotFound(c, "room not found")
		return
	}
	response.OK(c, summary)
}

// GetStats handles GET /api/rooms/:roomId/stats.
func (h *Handler) GetStats(c *gin.Context) {
	roomID, ok := h.roomID(c)
	if !ok {
		return
	}
	stats, err := h.coord.RoomStats(roomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		response.Internal(c, "failed to get room stats")
		return
	}
	response.OK(c, stats)
}

// Exists handles GET /api/rooms/:roomId/exists.
func (h *Handler) Exists(c *gin.Context) {
	roomID, ok := h.roomID(c)
	if !ok {
		return
	}
	exists, active := h.coord.RoomExists(roomID)
	response.OK(c, gin.H{"exists": exists, "isActive": active})
}

func (h *Handler) roomID(c *gin.Context) (string, bool) {
	id := c.Param("roomId")
	if !rooms.ValidRoomID(id) {
		response.BadRequest(c, "invalid room ID format")
		return "", false
	}
	return id, true
}
