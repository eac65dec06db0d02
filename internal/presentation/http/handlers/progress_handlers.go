package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/petpeevephobia/solvia/internal/infrastructure/messaging"
	"github.com/petpeevephobia/solvia/internal/infrastructure/observability/logging"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Dashboard and service share localhost
	},
}

// ProgressHandlers serves the websocket surface that the dashboard listens
// on for popup, group-progress, identity, and termination events.
type ProgressHandlers struct {
	broadcaster  *messaging.ProgressBroadcaster
	writeTimeout time.Duration
	logger       *logging.ChanneledLogger
}

// NewProgressHandlers creates the progress socket handler
func NewProgressHandlers(broadcaster *messaging.ProgressBroadcaster, writeTimeout time.Duration, logger *logging.ChanneledLogger) *ProgressHandlers {
	return &ProgressHandlers{
		broadcaster:  broadcaster,
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

// Stream handles GET /api/v1/dashboard/progress - upgrades to a websocket
// and pumps broadcast events until the client goes away
func (h *ProgressHandlers) Stream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Socket().Error("Progress socket upgrade failed", "error", err.Error())
		return
	}

	client := h.broadcaster.NewClient(conn)
	h.broadcaster.Register(client)

	go h.writePump(client)
	h.readPump(client)
}

// writePump drains the client's send channel onto the socket. Exits when the
// broadcaster closes the channel.
func (h *ProgressHandlers) writePump(client *messaging.ProgressClient) {
	defer client.Conn.Close()

	for message := range client.Send {
		client.Conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Socket().Debug("Progress socket write failed", "error", err.Error())
			return
		}
	}

	client.Conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames; its job is detecting disconnect.
func (h *ProgressHandlers) readPump(client *messaging.ProgressClient) {
	defer h.broadcaster.Unregister(client)

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
