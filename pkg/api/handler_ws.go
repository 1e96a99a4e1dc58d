package api

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
)

// wsHandler upgrades the connection and delegates to the
// ConnectionManager, which blocks until the client disconnects. The
// client drives subscribe/unsubscribe over the socket (see
// pkg/events.ClientMessage) rather than via a query parameter, so a
// single connection may follow several jobs at once.
func (s *Server) wsHandler(c *gin.Context) {
	if s.connManager == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		// Origin validation is left to a reverse proxy in front of this
		// service; this layer accepts any origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}

	s.connManager.HandleConnection(c.Request.Context(), userID(c), conn)
}
