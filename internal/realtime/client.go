package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/classpoll/backend/internal/rooms"
	"github.com/classpoll/backend/internal/session"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// Client represents a single WebSocket connection. Its connection id is the
// participant identity for the session layer, like a socket id.
type Client struct {
	ID     string
	hub    *Hub
	coord  *session.Coordinator
	conn   *websocket.Conn
	send   chan WSMessage
	logger *zap.Logger

	// session state, touched only by this client's readPump
	roomID   string
	role     string
	userName string
}

// ServeWs handles the WebSocket upgrade and runs the client loop.
func ServeWs(hub *Hub, coord *session.Coordinator, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			ID:     uuid.New().String(),
			hub:    hub,
			coord:  coord,
			conn:   conn,
			send:   make(chan WSMessage, 256),
			logger: logger,
		}
		hub.Register(client)
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.coord.Leave(c.ID)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(65536)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			break
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait * time.Second))
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg WSMessage) {
	switch msg.Event {
	case session.ActionJoinAsTeacher:
		c.handleJoinAsTeacher(msg.Data)
	case session.ActionJoinAsStudent:
		c.handleJoinAsStudent(msg.Data)
	case session.ActionAskQuestion:
		c.handleAskQuestion(msg.Data)
	case session.ActionSubmitAnswer:
		c.handleSubmitAnswer(msg.Data)
	case session.ActionSendMessage:
		c.handleSendMessage(msg.Data)
	case session.ActionKickStudent:
		c.handleKickStudent(msg.Data)
	case session.ActionGetRoomStats:
		c.handleGetRoomStats()
	default:
		// ignore
	}
}

func (c *Client) handleJoinAsTeacher(data json.RawMessage) {
	var payload struct {
		RoomID string `json:"roomId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || !rooms.ValidRoomID(payload.RoomID) {
		c.sendError("valid roomId is required")
		return
	}
	summary, err := c.coord.JoinAsTeacher(payload.RoomID, c.ID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.hub.JoinRoom(payload.RoomID, c.ID)
	c.roomID = payload.RoomID
	c.role = rooms.RoleTeacher
	c.userName = summary.TeacherName
}

func (c *Client) handleJoinAsStudent(data json.RawMessage) {
	var payload struct {
		RoomID      string `json:"roomId"`
		StudentName string `json:"studentName"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || !rooms.ValidRoomID(payload.RoomID) {
		c.sendError("valid roomId is required")
		return
	}
	name, err := rooms.ValidateName(payload.StudentName, rooms.MaxStudentNameLength)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if err := c.coord.JoinAsStudent(payload.RoomID, c.ID, name); err != nil {
		c.sendError(err.Error())
		return
	}
	c.hub.JoinRoom(payload.RoomID, c.ID)
	c.roomID = payload.RoomID
	c.role = rooms.RoleStudent
	c.userName = name
}

func (c *Client) handleAskQuestion(data json.RawMessage) {
	if c.role != rooms.RoleTeacher {
		c.sendError("Only teachers can ask questions")
		return
	}
	var payload struct {
		Question  string         `json:"question"`
		Options   []rooms.Option `json:"options"`
		TimeLimit int            `json:"timeLimit"` // seconds, optional
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("invalid question payload")
		return
	}
	spec := rooms.QuestionSpec{Prompt: payload.Question, Options: payload.Options}
	if err := rooms.ValidateQuestionSpec(&spec); err != nil {
		c.sendError(err.Error())
		return
	}
	limit := rooms.ClampTimeLimit(time.Duration(payload.TimeLimit) * time.Second)
	if _, err := c.coord.AskQuestion(c.roomID, c.ID, spec, limit); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleSubmitAnswer(data json.RawMessage) {
	if c.role != rooms.RoleStudent {
		c.sendError("Only students can submit answers")
		return
	}
	var payload struct {
		QuestionID     string `json:"questionId"`
		SelectedOption string `json:"selectedOption"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.QuestionID == "" || payload.SelectedOption == "" {
		c.sendError("questionId and selectedOption are required")
		return
	}
	if _, err := c.coord.SubmitAnswer(c.roomID, c.ID, payload.QuestionID, payload.SelectedOption); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleSendMessage(data json.RawMessage) {
	if c.roomID == "" {
		c.sendError("You are not in a room")
		return
	}
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		c.sendError("invalid message payload")
		return
	}
	message, err := rooms.ValidateChatMessage(payload.Message)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	if _, err := c.coord.SendChatMessage(c.roomID, c.ID, message); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleKickStudent(data json.RawMessage) {
	if c.role != rooms.RoleTeacher {
		c.sendError("Only teachers can kick students")
		return
	}
	var payload struct {
		StudentID string `json:"studentId"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.StudentID == "" {
		c.sendError("studentId is required")
		return
	}
	if err := c.coord.KickStudent(c.roomID, c.ID, payload.StudentID); err != nil {
		c.sendError(err.Error())
	}
}

func (c *Client) handleGetRoomStats() {
	if c.roomID == "" {
		c.sendError("You are not in a room")
		return
	}
	stats, err := c.coord.RoomStats(c.roomID)
	if err != nil {
		c.sendError(err.Error())
		return
	}
	c.hub.ToClient(c.ID, session.EventRoomStats, stats)
}

func (c *Client) sendError(message string) {
	c.hub.ToClient(c.ID, session.EventError, map[string]string{"message": message})
}

// enqueue hands a message to the write pump. Slow consumers are skipped so a
// full buffer never blocks a broadcast.
func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		// buffer full, skip
	}
}

func (c *Client) close() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
